package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"slices"
	"strings"
)

// Logger is the interface for structured logging.
// Fields travel in the context (see WithKind, WithOperation, WithErrorField)
// rather than on the logger, so one Logger serves every manifest.
type Logger interface {
	Debugf(ctx context.Context, format string, args ...interface{})
	Info(ctx context.Context, message string)
	Infof(ctx context.Context, format string, args ...interface{})
	Warnf(ctx context.Context, format string, args ...interface{})
	Errorf(ctx context.Context, format string, args ...interface{})
}

var (
	_ Logger = &logger{}
	_ Logger = nopLogger{}
)

// logger is the concrete implementation using log/slog
type logger struct {
	slog *slog.Logger
}

// Config holds logger configuration
type Config struct {
	// Level is the minimum log level: "debug", "info", "warn", "error"
	Level string
	// Format is the output format: "text" or "json"
	Format string
	// Output is the output destination: "stdout", "stderr", or empty (defaults to stdout)
	// Ignored if Writer is set.
	Output string
	// Writer is an optional custom io.Writer for log output.
	// If set, Output is ignored.
	Writer io.Writer
	// Component is the component name (e.g., "k8stag")
	Component string
	// Version is the component version
	Version string
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() Config {
	return Config{
		Level:     "info",
		Format:    "text",
		Output:    "stdout",
		Component: "k8stag",
		Version:   "unknown",
	}
}

// ConfigFromEnv creates a Config from environment variables with defaults
func ConfigFromEnv() Config {
	cfg := DefaultConfig()

	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.Level = strings.ToLower(level)
	}
	if format := os.Getenv("LOG_FORMAT"); format != "" {
		cfg.Format = strings.ToLower(format)
	}
	if output := os.Getenv("LOG_OUTPUT"); output != "" {
		cfg.Output = output
	}

	return cfg
}

// NewLogger creates a new Logger with the given configuration
// Returns error if output is invalid (must be "stdout", "stderr", or empty)
func NewLogger(cfg Config) (Logger, error) {
	writer := cfg.Writer
	if writer == nil {
		switch cfg.Output {
		case "stdout", "":
			writer = os.Stdout
		case "stderr":
			writer = os.Stderr
		default:
			return nil, fmt.Errorf("invalid log output %q: must be 'stdout', 'stderr', or empty", cfg.Output)
		}
	}

	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(writer, opts)
	} else {
		handler = slog.NewTextHandler(writer, opts)
	}

	handler = fieldsHandler{handler}.WithAttrs([]slog.Attr{
		slog.String("component", cfg.Component),
		slog.String("version", cfg.Version),
	})
	return &logger{slog: slog.New(handler)}, nil
}

// parseLevel converts string level to slog.Level
func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func (l *logger) log(ctx context.Context, level slog.Level, format string, args []interface{}) {
	if ctx == nil {
		ctx = context.Background()
	}
	if !l.slog.Enabled(ctx, level) {
		return
	}
	msg := format
	if args != nil {
		msg = fmt.Sprintf(format, args...)
	}
	l.slog.Log(ctx, level, msg)
}

func (l *logger) Debugf(ctx context.Context, format string, args ...interface{}) {
	l.log(ctx, slog.LevelDebug, format, args)
}

func (l *logger) Info(ctx context.Context, message string) {
	l.log(ctx, slog.LevelInfo, message, nil)
}

func (l *logger) Infof(ctx context.Context, format string, args ...interface{}) {
	l.log(ctx, slog.LevelInfo, format, args)
}

func (l *logger) Warnf(ctx context.Context, format string, args ...interface{}) {
	l.log(ctx, slog.LevelWarn, format, args)
}

func (l *logger) Errorf(ctx context.Context, format string, args ...interface{}) {
	l.log(ctx, slog.LevelError, format, args)
}

// manifestKeys are written first, in this order, so lines about one object line up
var manifestKeys = []string{
	string(KindKey),
	string(APIVersionKey),
	string(NamespaceKey),
	string(ResourceNameKey),
	string(OperationKey),
	string(TraceIDKey),
	string(SpanIDKey),
}

// fieldsHandler adds the log fields carried by the record's context
type fieldsHandler struct {
	slog.Handler
}

func (h fieldsHandler) Handle(ctx context.Context, r slog.Record) error {
	fields, _ := ctx.Value(LogFieldsKey).(LogFields)
	if len(fields) == 0 {
		return h.Handler.Handle(ctx, r)
	}

	attrs := make([]slog.Attr, 0, len(fields))
	for _, key := range manifestKeys {
		if v, ok := fields[key]; ok {
			attrs = append(attrs, slog.Any(key, v))
		}
	}
	rest := make([]string, 0, len(fields))
	for key := range fields {
		if !slices.Contains(manifestKeys, key) {
			rest = append(rest, key)
		}
	}
	slices.Sort(rest)
	for _, key := range rest {
		attrs = append(attrs, slog.Any(key, fields[key]))
	}

	r.AddAttrs(attrs...)
	return h.Handler.Handle(ctx, r)
}

func (h fieldsHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return fieldsHandler{h.Handler.WithAttrs(attrs)}
}

func (h fieldsHandler) WithGroup(name string) slog.Handler {
	return fieldsHandler{h.Handler.WithGroup(name)}
}

// stackTrace returns the caller's stack, skip frames above it omitted
func stackTrace(skip int) []string {
	var pcs [32]uintptr
	n := runtime.Callers(skip+2, pcs[:])
	frames := runtime.CallersFrames(pcs[:n])

	var stack []string
	for {
		frame, more := frames.Next()
		stack = append(stack, fmt.Sprintf("%s() %s:%d", frame.Function, frame.File, frame.Line))
		if !more {
			break
		}
	}
	return stack
}

type nopLogger struct{}

func (nopLogger) Debugf(context.Context, string, ...interface{}) {}
func (nopLogger) Info(context.Context, string)                   {}
func (nopLogger) Infof(context.Context, string, ...interface{})  {}
func (nopLogger) Warnf(context.Context, string, ...interface{})  {}
func (nopLogger) Errorf(context.Context, string, ...interface{}) {}

// NewNopLogger returns a logger that discards everything.
func NewNopLogger() Logger {
	return nopLogger{}
}
