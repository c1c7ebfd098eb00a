package logger

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nathoo/fablecore/config"
)

func TestNew_DevelopmentIsText(t *testing.T) {
	var buf bytes.Buffer
	l := New(&config.Config{Environment: "development", LogLevel: slog.LevelInfo}, &buf)
	l.Info("game loaded", "rooms", 3)
	assert.Contains(t, buf.String(), "msg=\"game loaded\" rooms=3")
}

func TestNew_ProductionIsJSON(t *testing.T) {
	var buf bytes.Buffer
	l := New(&config.Config{Environment: "production", LogLevel: slog.LevelInfo}, &buf)
	WithSession(l, "abc").Info("saved")
	assert.Contains(t, buf.String(), `"session":"abc"`)
	assert.Contains(t, buf.String(), `"msg":"saved"`)
}

func TestNew_RespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New(&config.Config{LogLevel: slog.LevelWarn}, &buf)
	l.Info("quiet")
	WithError(l, errors.New("boom")).Warn("loud")
	assert.NotContains(t, buf.String(), "quiet")
	assert.Contains(t, buf.String(), "error=boom")
}
