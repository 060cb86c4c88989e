package logger

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Fields = logrus.Fields

// Logger wraps logrus with variadic key/value logging and a few
// domain-specific helpers used across the pipeline services.
type Logger struct {
	entry *logrus.Entry
}

type LogConfig struct {
	Level  string
	Format string // "json" or "text"
	Output string // "stdout", "stderr" or "file"

	FilePath   string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

func New(cfg LogConfig) (*Logger, error) {
	base := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}
	base.SetLevel(level)

	switch cfg.Format {
	case "text":
		base.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		base.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339})
	}

	var out io.Writer
	switch cfg.Output {
	case "stderr":
		out = os.Stderr
	case "file":
		if cfg.FilePath == "" {
			return nil, fmt.Errorf("log output is file but no file path configured")
		}
		out = &lumberjack.Logger{
			Filename:   cfg.FilePath,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   true,
		}
	default:
		out = os.Stdout
	}
	base.SetOutput(out)

	return &Logger{entry: logrus.NewEntry(base)}, nil
}

func (l *Logger) WithFields(fields Fields) *Logger {
	return &Logger{entry: l.entry.WithFields(fields)}
}

func (l *Logger) WithError(err error) *Logger {
	return &Logger{entry: l.entry.WithError(err)}
}

func (l *Logger) Debug(msg string, keyvals ...any) { l.entry.WithFields(pairs(keyvals)).Debug(msg) }
func (l *Logger) Info(msg string, keyvals ...any)  { l.entry.WithFields(pairs(keyvals)).Info(msg) }
func (l *Logger) Warn(msg string, keyvals ...any)  { l.entry.WithFields(pairs(keyvals)).Warn(msg) }
func (l *Logger) Error(msg string, keyvals ...any) { l.entry.WithFields(pairs(keyvals)).Error(msg) }

// LogService records one outbound call to a collaborator service.
func (l *Logger) LogService(service, operation string, duration time.Duration, fields map[string]any, err error) {
	entry := l.entry.WithFields(Fields{
		"service":     service,
		"operation":   operation,
		"duration_ms": duration.Milliseconds(),
	})
	if fields != nil {
		entry = entry.WithFields(fields)
	}
	if err != nil {
		entry.WithError(err).Error("service call failed")
		return
	}
	entry.Debug("service call completed")
}

// LogJob records a lifecycle event of a background analysis job.
func (l *Logger) LogJob(jobID, userID, event string, duration time.Duration, err error) {
	entry := l.entry.WithFields(Fields{
		"job_id":      jobID,
		"user_id":     userID,
		"event":       event,
		"duration_ms": duration.Milliseconds(),
	})
	if err != nil {
		entry.WithError(err).Error("job event")
		return
	}
	entry.Info("job event")
}

// LogStage records a pipeline stage transition for a job.
func (l *Logger) LogStage(jobID, stage string, duration time.Duration, fields map[string]any, err error) {
	entry := l.entry.WithFields(Fields{
		"job_id":      jobID,
		"stage":       stage,
		"duration_ms": duration.Milliseconds(),
	})
	if fields != nil {
		entry = entry.WithFields(fields)
	}
	if err != nil {
		entry.WithError(err).Error("stage failed")
		return
	}
	entry.Info("stage completed")
}

func pairs(keyvals []any) Fields {
	fields := Fields{}
	for i := 0; i+1 < len(keyvals); i += 2 {
		key, ok := keyvals[i].(string)
		if !ok {
			key = fmt.Sprint(keyvals[i])
		}
		fields[key] = keyvals[i+1]
	}
	return fields
}
