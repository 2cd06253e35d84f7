package utils

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(old) })
}

func TestLoadConfigDefaults(t *testing.T) {
	chdir(t, t.TempDir())
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, DefaultBackendURL, cfg.BackendURL)
	assert.Equal(t, 10*time.Second, cfg.Timeout.Duration)
	assert.Equal(t, 250, cfg.ScannerViewport)
	assert.Equal(t, 5, cfg.ScannerFPS)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfigFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	path := filepath.Join(dir, "desk.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"backendUrl": "http://tickets.local:5001/",
		"timeout": 3,
		"outputDir": "pdfs",
		"scannerFps": 10
	}`), 0o644))

	t.Setenv("TICKETDESK_TIMEOUT", "1500ms")
	t.Setenv("TICKETDESK_LOG_LEVEL", "debug")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "http://tickets.local:5001", cfg.BackendURL)
	assert.Equal(t, 1500*time.Millisecond, cfg.Timeout.Duration)
	assert.Equal(t, "pdfs", cfg.OutputDir)
	assert.Equal(t, 10, cfg.ScannerFPS)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadConfigDotEnv(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("TICKETDESK_EXCHANGE=desk-events\n"), 0o644))
	t.Cleanup(func() { os.Unsetenv("TICKETDESK_EXCHANGE") })

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "desk-events", cfg.Exchange)
}

func TestLoadConfigErrors(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"timeout": true}`), 0o644))
	_, err := LoadConfig(bad)
	assert.Error(t, err)

	t.Setenv("TICKETDESK_SCANNER_FPS", "fast")
	_, err = LoadConfig("")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := map[string]func(*Config){
		"bad url":       func(c *Config) { c.BackendURL = "localhost" },
		"zero timeout":  func(c *Config) { c.Timeout = Duration{} },
		"zero qr size":  func(c *Config) { c.ReceiptQRSize = 0 },
		"zero fps":      func(c *Config) { c.ScannerFPS = 0 },
		"no output dir": func(c *Config) { c.OutputDir = "" },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultConfig()
			mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestStationID(t *testing.T) {
	assert.NotEmpty(t, StationID())
}

func TestNewLogger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "desk.log")
	l, err := NewLogger(path, "debug")
	require.NoError(t, err)
	l.WithField("holder", "Ana").Info("ticket issued")
	require.NoError(t, l.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"holder":"Ana"`)

	_, err = NewLogger("", "loud")
	assert.Error(t, err)
}
