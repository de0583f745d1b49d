// Package log provides structured logging with receiver context.
//
// Two logger variants are available:
//   - Logger: Non-sugared zap.Logger for the receiver runtime (structured fields)
//   - SugaredLogger: Printf-style logging for CLI surfaces
//
// Use Logger.Sugar() to obtain a SugaredLogger when needed.
package log

import (
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger provides structured logging with receiver context.
// Every entry carries receiver_id, and filename once a session is bound.
type Logger struct {
	zap *zap.Logger

	receiverID string
	level      zapcore.Level
	filename   string
	out        io.Writer
	nop        bool
}

// SugaredLogger provides printf-style logging for CLI surfaces.
type SugaredLogger struct {
	sugar *zap.SugaredLogger
}

// NewLogger creates a debug-level logger for receiverID writing to os.Stderr.
func NewLogger(receiverID string) *Logger {
	return build(receiverID, zapcore.DebugLevel, "", os.Stderr)
}

// NewLoggerWithLevel creates a logger writing entries at or above level to w.
// level is a zap level name such as "debug", "info" or "warn".
func NewLoggerWithLevel(receiverID, level string, w io.Writer) (*Logger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}
	return build(receiverID, lvl, "", w), nil
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{zap: zap.NewNop(), nop: true}
}

// ParseLevel parses a level name. Empty means "info".
func ParseLevel(level string) (zapcore.Level, error) {
	if level == "" {
		return zapcore.InfoLevel, nil
	}
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return zapcore.InvalidLevel, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	return lvl, nil
}

// WithOutput returns a new logger with the same context writing to w.
func (l *Logger) WithOutput(w io.Writer) *Logger {
	if l.nop {
		return l
	}
	return build(l.receiverID, l.level, l.filename, w)
}

// WithFilename returns a logger that tags entries with the session filename.
// An empty filename clears the tag.
func (l *Logger) WithFilename(filename string) *Logger {
	if l.nop {
		return l
	}
	return build(l.receiverID, l.level, filename, l.out)
}

func encoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:     "timestamp",
		LevelKey:    "level",
		MessageKey:  "message",
		EncodeTime:  zapcore.RFC3339NanoTimeEncoder,
		EncodeLevel: zapcore.LowercaseLevelEncoder,
	}
}

func newCore(level zapcore.Level, w io.Writer) zapcore.Core {
	return zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig()),
		zapcore.AddSync(w),
		level,
	)
}

func build(receiverID string, level zapcore.Level, filename string, w io.Writer) *Logger {
	contextFields := []zap.Field{zap.String("receiver_id", receiverID)}
	if filename != "" {
		contextFields = append(contextFields, zap.String("filename", filename))
	}
	return &Logger{
		zap:        zap.New(newCore(level, w)).With(contextFields...),
		receiverID: receiverID,
		level:      level,
		filename:   filename,
		out:        w,
	}
}

// Debug logs a debug message.
func (l *Logger) Debug(message string, fields map[string]any) {
	l.zap.Debug(message, zap.Any("fields", fields))
}

// Info logs an info message.
func (l *Logger) Info(message string, fields map[string]any) {
	l.zap.Info(message, zap.Any("fields", fields))
}

// Warn logs a warning message.
func (l *Logger) Warn(message string, fields map[string]any) {
	l.zap.Warn(message, zap.Any("fields", fields))
}

// Error logs an error message.
func (l *Logger) Error(message string, fields map[string]any) {
	l.zap.Error(message, zap.Any("fields", fields))
}

// Sync flushes buffered entries.
func (l *Logger) Sync() error {
	return l.zap.Sync()
}

// Sugar returns a SugaredLogger for printf-style logging.
func (l *Logger) Sugar() *SugaredLogger {
	return &SugaredLogger{sugar: l.zap.Sugar()}
}

// Debugf logs a debug message with printf-style formatting.
func (s *SugaredLogger) Debugf(template string, args ...any) {
	s.sugar.Debugf(template, args...)
}

// Infof logs an info message with printf-style formatting.
func (s *SugaredLogger) Infof(template string, args ...any) {
	s.sugar.Infof(template, args...)
}

// Warnf logs a warning message with printf-style formatting.
func (s *SugaredLogger) Warnf(template string, args ...any) {
	s.sugar.Warnf(template, args...)
}

// Errorf logs an error message with printf-style formatting.
func (s *SugaredLogger) Errorf(template string, args ...any) {
	s.sugar.Errorf(template, args...)
}

// With returns a SugaredLogger with additional context fields.
func (s *SugaredLogger) With(args ...any) *SugaredLogger {
	return &SugaredLogger{sugar: s.sugar.With(args...)}
}
