package logger

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestZerologLoggerMethods(t *testing.T) {
	assert.NoError(t, os.Setenv("APP_ENV", "dev"))
	defer func() { assert.NoError(t, os.Unsetenv("APP_ENV")) }()
	l := NewZerologLogger("test")
	if l == nil {
		t.Fatalf("nil logger")
	}
	l.Debugf("debug %d", 1)
	l.Debugw("debug", map[string]any{"k": 1})
	l.Infof("info %s", "test")
	l.Warnf("warn")
	l.Errorf("error")
}

func TestZerologLoggerLevelOverride(t *testing.T) {
	assert.NoError(t, os.Setenv("PARKD_LOG_LEVEL", "warn"))
	defer func() { assert.NoError(t, os.Unsetenv("PARKD_LOG_LEVEL")) }()
	var buf bytes.Buffer
	l := newZerologLogger("test", &buf)
	l.Infof("below threshold")
	l.Warnf("kept entry")
	out := buf.String()
	assert.NotContains(t, out, "below threshold")
	assert.Contains(t, out, "kept entry")
	assert.Contains(t, out, `"component":"test"`)
}
