package utils

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DefaultBackendURL = "http://localhost:5001"
	DefaultConfigFile = "ticketdesk.json"
	DefaultTemplate   = "plantillaQr.png"
)

// Duration accepts "10s" style strings or a number of seconds in JSON.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return err
		}
		d.Duration = parsed
		return nil
	}
	var secs float64
	if err := json.Unmarshal(b, &secs); err != nil {
		return fmt.Errorf("duration must be a string or number of seconds")
	}
	d.Duration = time.Duration(secs * float64(time.Second))
	return nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// Config holds every setting of the CLI and the operator console.
type Config struct {
	BackendURL string   `json:"backendUrl"`
	Timeout    Duration `json:"timeout"`

	OutputDir      string `json:"outputDir"`
	TemplateSource string `json:"template"`
	ReceiptQRSize  int    `json:"receiptQrSize"`
	TicketQRSize   int    `json:"ticketQrSize"`

	ScannerViewport int `json:"scannerViewport"`
	ScannerFPS      int `json:"scannerFps"`

	ConsoleAddr         string `json:"consoleAddr"`
	ConsoleUser         string `json:"consoleUser"`
	ConsolePasswordHash string `json:"consolePasswordHash"`
	CertDir             string `json:"certDir"`

	RabbitMQURL string `json:"rabbitmqUrl"`
	Exchange    string `json:"exchange"`

	MailerSendAPIKey string `json:"mailersendApiKey"`
	MailerSendFrom   string `json:"mailersendFrom"`

	LogFile  string `json:"logFile"`
	LogLevel string `json:"logLevel"`
}

// DefaultConfig returns the settings used when nothing overrides them.
func DefaultConfig() Config {
	return Config{
		BackendURL:      DefaultBackendURL,
		Timeout:         Duration{10 * time.Second},
		OutputDir:       ".",
		TemplateSource:  filepath.Join(GetProjectRoot(), DefaultTemplate),
		ReceiptQRSize:   100,
		TicketQRSize:    500,
		ScannerViewport: 250,
		ScannerFPS:      5,
		ConsoleAddr:     ":8081",
		ConsoleUser:     "operator",
		Exchange:        "tickets",
		LogLevel:        "info",
	}
}

// LoadConfig loads .env (if present), then the JSON file at path (if
// present), then TICKETDESK_* environment overrides. Flags are applied by
// the caller afterwards.
func LoadConfig(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg := DefaultConfig()
	if path == "" {
		path = DefaultConfigFile
	}
	f, err := os.Open(path)
	switch {
	case err == nil:
		defer f.Close()
		if err := json.NewDecoder(f).Decode(&cfg); err != nil {
			return Config{}, fmt.Errorf("decode %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist):
		// defaults only
	default:
		return Config{}, err
	}

	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	strs := map[string]*string{
		"TICKETDESK_BACKEND_URL":           &c.BackendURL,
		"TICKETDESK_OUTPUT_DIR":            &c.OutputDir,
		"TICKETDESK_TEMPLATE":              &c.TemplateSource,
		"TICKETDESK_CONSOLE_ADDR":          &c.ConsoleAddr,
		"TICKETDESK_CONSOLE_USER":          &c.ConsoleUser,
		"TICKETDESK_CONSOLE_PASSWORD_HASH": &c.ConsolePasswordHash,
		"TICKETDESK_CERT_DIR":              &c.CertDir,
		"RABBITMQ_URL":                     &c.RabbitMQURL,
		"TICKETDESK_EXCHANGE":              &c.Exchange,
		"MAILERSEND_API_KEY":               &c.MailerSendAPIKey,
		"MAILERSEND_EMAIL":                 &c.MailerSendFrom,
		"TICKETDESK_LOG_FILE":              &c.LogFile,
		"TICKETDESK_LOG_LEVEL":             &c.LogLevel,
	}
	for key, dst := range strs {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	c.BackendURL = strings.TrimRight(c.BackendURL, "/")

	if v := os.Getenv("TICKETDESK_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid TICKETDESK_TIMEOUT: %w", err)
		}
		c.Timeout = Duration{d}
	}
	if v := os.Getenv("TICKETDESK_SCANNER_FPS"); v != "" {
		fps, err := strconv.Atoi(v)
		if err != nil {
			return errors.New("invalid TICKETDESK_SCANNER_FPS env variable")
		}
		c.ScannerFPS = fps
	}
	return nil
}

// Validate rejects settings the workflows cannot run with.
func (c Config) Validate() error {
	u, err := url.Parse(c.BackendURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid backend url %q", c.BackendURL)
	}
	if c.Timeout.Duration <= 0 {
		return errors.New("timeout must be positive")
	}
	if c.ReceiptQRSize <= 0 || c.TicketQRSize <= 0 {
		return errors.New("qr sizes must be positive")
	}
	if c.ScannerViewport <= 0 || c.ScannerFPS <= 0 {
		return errors.New("scanner viewport and fps must be positive")
	}
	if c.OutputDir == "" {
		return errors.New("output dir required")
	}
	return nil
}

// GetProjectRoot returns the absolute path to the project root directory.
func GetProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return "." // fallback
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break // reached root
		}
		dir = parent
	}
	return "." // fallback
}
