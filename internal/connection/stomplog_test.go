package connection

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStompLogger_FollowsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}))
	l := newStompLogger(logger)

	l.Debugf("heart-beat %d", 1)
	l.Info("connected")
	assert.Empty(t, buf.String())

	l.Errorf("received %s; closing underlying connection", "ERROR")
	l.Warning("slow reader")

	out := buf.String()
	assert.Contains(t, out, "level=ERROR")
	assert.Contains(t, out, `msg="received ERROR; closing underlying connection"`)
	assert.Contains(t, out, "source=stomp")
	assert.Contains(t, out, "level=WARN")
}
