package logger

import (
	"bytes"
	"testing"

	"github.com/go-kit/log/level"
	"github.com/stretchr/testify/assert"
)

func TestNewWithWriter_FiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	l := Component(NewWithWriter(&buf, "warn"), "ratelimit")

	level.Info(l).Log("msg", "hidden")
	level.Warn(l).Log("msg", "shown")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "msg=shown")
	assert.Contains(t, out, "component=ratelimit")
	assert.Contains(t, out, "level=warn")
}

func TestComponent_NilLogger(t *testing.T) {
	l := Component(nil, "x")
	assert.NoError(t, l.Log("msg", "ok"))
}
