package notify

import (
	"bytes"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorderAndMulti(t *testing.T) {
	var a, b Recorder
	m := Multi{&a, &b}

	Success(m, "¡Entrada creada exitosamente!")
	Error(m, "Faltan datos")

	for _, r := range []*Recorder{&a, &b} {
		assert.Equal(t, 1, r.Count(LevelSuccess))
		assert.Equal(t, 1, r.Count(LevelError))
		last, ok := r.Last()
		require.True(t, ok)
		assert.Equal(t, "Faltan datos", last.Message)
		assert.False(t, last.At.IsZero())
	}
}

func TestConsole(t *testing.T) {
	var buf bytes.Buffer
	c := Console{Out: &buf}
	Success(c, "Ticket validado: ok")
	Error(c, "boom")
	assert.Equal(t, "[OK] Ticket validado: ok\n[ERROR] boom\n", buf.String())
}

func TestLog(t *testing.T) {
	logger, hook := test.NewNullLogger()
	l := Log{Logger: logger}

	Success(l, "done")
	Error(l, "failed")

	require.Len(t, hook.Entries, 2)
	assert.Equal(t, logrus.InfoLevel, hook.Entries[0].Level)
	assert.Equal(t, logrus.WarnLevel, hook.Entries[1].Level)
	assert.Equal(t, "error", hook.Entries[1].Data["notification"])
}
