// Package logger is the application log: logrus lines in a daily file,
// optionally mirrored to stdout.
package logger

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
)

var levelNames = map[LogLevel]string{DEBUG: "DEBUG", INFO: "INFO", WARN: "WARN", ERROR: "ERROR"}

func (l LogLevel) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return "UNKNOWN"
}

// ParseLevel maps a config string to a LogLevel. Unknown values map to INFO.
func ParseLevel(s string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug", "trace":
		return DEBUG
	case "warn", "warning":
		return WARN
	case "error", "fatal", "panic":
		return ERROR
	default:
		return INFO
	}
}

func (l LogLevel) logrus() logrus.Level {
	switch l {
	case DEBUG:
		return logrus.DebugLevel
	case WARN:
		return logrus.WarnLevel
	case ERROR:
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

func fromLogrus(l logrus.Level) LogLevel {
	switch {
	case l >= logrus.DebugLevel:
		return DEBUG
	case l == logrus.InfoLevel:
		return INFO
	case l == logrus.WarnLevel:
		return WARN
	default:
		return ERROR
	}
}

// Config logger configuration
type Config struct {
	LogDir     string
	Level      LogLevel
	MaxDays    int // daily files kept, default 7
	ConsoleOut bool
}

// Logger writes leveled printf-style messages.
type Logger struct {
	level LogLevel
	file  *dailyFile
	entry *logrus.Logger
}

var (
	defaultLogger *Logger
	once          sync.Once
)

// Init sets up the default logger once.
func Init(cfg Config) error {
	var err error
	once.Do(func() {
		defaultLogger, err = NewLogger(cfg)
	})
	return err
}

func NewLogger(cfg Config) (*Logger, error) {
	return newLogger(cfg, time.Now)
}

func newLogger(cfg Config, now func() time.Time) (*Logger, error) {
	if cfg.MaxDays <= 0 {
		cfg.MaxDays = 7
	}
	file, err := openDailyFile(cfg.LogDir, cfg.MaxDays, now)
	if err != nil {
		return nil, err
	}

	entry := logrus.New()
	entry.SetFormatter(&lineFormatter{})
	entry.SetLevel(cfg.Level.logrus())
	entry.SetOutput(file)
	if cfg.ConsoleOut {
		entry.SetOutput(io.MultiWriter(file, os.Stdout))
	}

	return &Logger{level: cfg.Level, file: file, entry: entry}, nil
}

// lineFormatter renders "[ts] [LEVEL] msg key=value".
type lineFormatter struct{}

func (f *lineFormatter) Format(e *logrus.Entry) ([]byte, error) {
	var b bytes.Buffer
	fmt.Fprintf(&b, "[%s] [%s] %s", e.Time.Format("2006-01-02 15:04:05"), fromLogrus(e.Level), e.Message)

	keys := make([]string, 0, len(e.Data))
	for k := range e.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, e.Data[k])
	}
	b.WriteByte('\n')
	return b.Bytes(), nil
}

func (l *Logger) logf(level LogLevel, format string, args ...any) {
	l.entry.Logf(level.logrus(), format, args...)
}

func (l *Logger) Debug(format string, args ...any) { l.logf(DEBUG, format, args...) }
func (l *Logger) Info(format string, args ...any)  { l.logf(INFO, format, args...) }
func (l *Logger) Warn(format string, args ...any)  { l.logf(WARN, format, args...) }
func (l *Logger) Error(format string, args ...any) { l.logf(ERROR, format, args...) }

// WithFields returns a logrus entry carrying structured fields.
func (l *Logger) WithFields(fields map[string]any) *logrus.Entry {
	return l.entry.WithFields(logrus.Fields(fields))
}

func (l *Logger) Close() error {
	return l.file.Close()
}

// GetWriter adapts the logger to io.Writer, one message per Write.
// kratos' std logger writes through it.
func (l *Logger) GetWriter(level LogLevel) io.Writer {
	return writerFunc(func(p []byte) (int, error) {
		if msg := strings.TrimSpace(string(p)); msg != "" {
			l.logf(level, "%s", msg)
		}
		return len(p), nil
	})
}

type writerFunc func([]byte) (int, error)

func (f writerFunc) Write(p []byte) (int, error) { return f(p) }

func Debug(format string, args ...any) {
	if defaultLogger != nil {
		defaultLogger.Debug(format, args...)
	}
}

func Info(format string, args ...any) {
	if defaultLogger != nil {
		defaultLogger.Info(format, args...)
	}
}

func Warn(format string, args ...any) {
	if defaultLogger != nil {
		defaultLogger.Warn(format, args...)
	}
}

func Error(format string, args ...any) {
	if defaultLogger != nil {
		defaultLogger.Error(format, args...)
	}
}

// WithFields returns an entry on the default logger. Before Init the entry
// discards its output.
func WithFields(fields map[string]any) *logrus.Entry {
	if defaultLogger != nil {
		return defaultLogger.WithFields(fields)
	}
	return discard.WithFields(logrus.Fields(fields))
}

var discard = func() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}()

// Writer returns a writer on the default logger, or io.Discard before Init.
func Writer(level LogLevel) io.Writer {
	if defaultLogger != nil {
		return defaultLogger.GetWriter(level)
	}
	return io.Discard
}

func Close() error {
	if defaultLogger != nil {
		return defaultLogger.Close()
	}
	return nil
}

func GetDefault() *Logger {
	return defaultLogger
}
