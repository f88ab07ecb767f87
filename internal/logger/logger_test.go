package logger

import (
	"bytes"
	"log"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	log.SetOutput(&buf)
	t.Cleanup(func() { log.SetOutput(os.Stderr) })
	return &buf
}

func TestEnvLogger_Debug(t *testing.T) {
	tests := []struct {
		name      string
		envValue  string
		flag      bool
		expectLog bool
	}{
		{name: "logs when KORASI_DEBUG is set", envValue: "1", expectLog: true},
		{name: "logs when --debug is set", flag: true, expectLog: true},
		{name: "silent by default", expectLog: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := captureLog(t)
			t.Setenv("KORASI_DEBUG", tt.envValue)
			SetDebug(tt.flag)
			t.Cleanup(func() { SetDebug(false) })

			l := NewEnvLogger("[test]")
			l.Debug("test message %s", "arg")

			if tt.expectLog {
				assert.Contains(t, buf.String(), "[test] test message arg")
			} else {
				assert.Empty(t, buf.String())
			}
		})
	}
}

func TestEnvLogger_Levels(t *testing.T) {
	buf := captureLog(t)

	l := NewEnvLogger("[sync]")
	l.Info("uploaded %d files", 3)
	l.Warn("skipped %s", "a.txt")
	l.Error("failed")

	out := buf.String()
	assert.Contains(t, out, "[sync] uploaded 3 files")
	assert.Contains(t, out, "[sync] WARN: skipped a.txt")
	assert.Contains(t, out, "[sync] ERROR: failed")
}

func TestNoop(t *testing.T) {
	buf := captureLog(t)

	l := Noop()
	l.Debug("x")
	l.Info("x")
	l.Warn("x")
	l.Error("x")

	assert.Empty(t, buf.String())
}

func TestBufferLogger(t *testing.T) {
	l := NewBufferLogger()
	l.Info("one")
	l.Warn("two %d", 2)
	l.Warn("three")

	assert.True(t, l.HasLevel("warn"))
	assert.False(t, l.HasLevel("error"))
	assert.Equal(t, 2, l.Count("warn"))
	assert.Equal(t, "two 2", l.Messages()[1].Message)
}

func TestBufferLogger_Concurrent(t *testing.T) {
	l := NewBufferLogger()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			l.Debug("msg %d", n)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 20, l.Count("debug"))
}
