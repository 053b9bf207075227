package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configures the process-wide logger.
type Options struct {
	Level      string // debug, info, warn, error
	File       string // optional rotating log file, written alongside stdout
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	RedactPII  bool
}

// Logger writes structured JSON entries through zap with optional PII redaction.
type Logger struct {
	mu        sync.RWMutex
	z         *zap.Logger
	redactPII bool
}

var defaultLogger = &Logger{z: newCore(zapcore.InfoLevel, zapcore.AddSync(os.Stderr)), redactPII: true}

// Setup replaces the default logger according to opts.
func Setup(opts Options) error {
	level, err := zapcore.ParseLevel(opts.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	sink := zapcore.AddSync(os.Stdout)
	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0o755); err != nil {
			return fmt.Errorf("create log dir: %w", err)
		}
		rotating := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAgeDays,
			Compress:   true,
		}
		sink = zapcore.NewMultiWriteSyncer(zapcore.AddSync(rotating), sink)
	}

	Replace(newCore(level, sink), opts.RedactPII)
	return nil
}

// Replace swaps the underlying zap logger. Tests use it with an observer core.
func Replace(z *zap.Logger, redactPII bool) {
	defaultLogger.mu.Lock()
	defer defaultLogger.mu.Unlock()
	defaultLogger.z = z
	defaultLogger.redactPII = redactPII
}

// SetRedactPII enables or disables PII redaction for the default logger.
func SetRedactPII(r bool) {
	defaultLogger.mu.Lock()
	defaultLogger.redactPII = r
	defaultLogger.mu.Unlock()
}

// Sync flushes buffered entries. Call it before exit.
func Sync() { _ = defaultLogger.current().Sync() }

// Debug emits a DEBUG-level structured log entry.
func Debug(msg string, fields ...interface{}) { defaultLogger.log(zapcore.DebugLevel, msg, fields...) }

// Info emits an INFO-level structured log entry.
func Info(msg string, fields ...interface{}) { defaultLogger.log(zapcore.InfoLevel, msg, fields...) }

// Warn emits a WARN-level structured log entry.
func Warn(msg string, fields ...interface{}) { defaultLogger.log(zapcore.WarnLevel, msg, fields...) }

// Error emits an ERROR-level structured log entry.
func Error(msg string, fields ...interface{}) { defaultLogger.log(zapcore.ErrorLevel, msg, fields...) }

func newCore(level zapcore.Level, sink zapcore.WriteSyncer) *zap.Logger {
	enc := zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		MessageKey:     "msg",
		CallerKey:      "caller",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.MillisDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
	core := zapcore.NewCore(zapcore.NewJSONEncoder(enc), sink, level)
	return zap.New(core, zap.AddCaller(), zap.AddCallerSkip(2))
}

func (l *Logger) current() *zap.Logger {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.z
}

func (l *Logger) log(level zapcore.Level, msg string, fields ...interface{}) {
	l.mu.RLock()
	z, redact := l.z, l.redactPII
	l.mu.RUnlock()

	ce := z.Check(level, msg)
	if ce == nil {
		return
	}

	// Parse key-value pairs from fields
	zf := make([]zap.Field, 0, len(fields)/2)
	for i := 0; i < len(fields)-1; i += 2 {
		key := fmt.Sprintf("%v", fields[i])
		if err, ok := fields[i+1].(error); ok {
			val := err.Error()
			if redact {
				val = redactPIIValue(key, val)
			}
			zf = append(zf, zap.String(key, val))
			continue
		}
		switch v := fields[i+1].(type) {
		case string:
			if redact {
				v = redactPIIValue(key, v)
			}
			zf = append(zf, zap.String(key, v))
		default:
			zf = append(zf, zap.Any(key, v))
		}
	}
	ce.Write(zf...)
}

var emailRegex = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)

func redactPIIValue(key, val string) string {
	key = strings.ToLower(key)
	if strings.Contains(key, "email") || strings.Contains(key, "recipient") {
		return RedactEmail(val)
	}
	// Redact any embedded emails in generic fields
	return emailRegex.ReplaceAllStringFunc(val, RedactEmail)
}
