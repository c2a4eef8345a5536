package logger

import (
	"bytes"
	"os"
	"strings"
	"sync"
)

var (
	testLogger     Logger
	testLoggerOnce sync.Once
)

// NewTestLogger returns a logger for tests that only reports errors, on stderr.
// LOG_LEVEL raises the verbosity when a failing test needs more detail.
func NewTestLogger() Logger {
	testLoggerOnce.Do(func() {
		level := "error"
		if env := os.Getenv("LOG_LEVEL"); env != "" {
			level = env
		}
		testLogger, _ = NewLogger(Config{Level: level, Writer: os.Stderr, Component: "test", Version: "test"})
	})
	return testLogger
}

// LogCapture collects the text output of a capture logger.
type LogCapture struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (c *LogCapture) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buf.Write(p)
}

// Messages returns everything logged so far.
func (c *LogCapture) Messages() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buf.String()
}

// Contains reports whether substr was logged.
func (c *LogCapture) Contains(substr string) bool {
	return strings.Contains(c.Messages(), substr)
}

// NewCaptureLogger returns a debug level text logger recording into a LogCapture.
func NewCaptureLogger() (Logger, *LogCapture) {
	capture := &LogCapture{}
	log, _ := NewLogger(Config{Level: "debug", Format: "text", Writer: capture, Component: "test", Version: "test"})
	return log, capture
}
