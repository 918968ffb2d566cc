// Package kidalog provides structured, leveled logging for the compiler,
// renderer, and cache layers, with optional file rotation.
package kidalog

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Level represents log severity.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

func ParseLevel(s string) Level {
	switch s {
	case "debug", "DEBUG":
		return LevelDebug
	case "info", "INFO":
		return LevelInfo
	case "warn", "WARN", "warning", "WARNING":
		return LevelWarn
	case "error", "ERROR":
		return LevelError
	default:
		return LevelInfo
	}
}

// Config controls logger construction.
type Config struct {
	Level      string `yaml:"level"`
	FilePath   string `yaml:"file_path"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
	AlsoStdout bool   `yaml:"also_stdout"`
}

// Logger is a structured JSON logger with optional lumberjack rotation.
type Logger struct {
	level  Level
	writer io.Writer
	mu     sync.Mutex

	lumberjack *lumberjack.Logger
}

var defaultLogger *Logger

// Init constructs and installs the package-level default logger.
func Init(cfg Config) error {
	logger, err := New(cfg)
	if err != nil {
		return err
	}
	defaultLogger = logger
	return nil
}

func New(cfg Config) (*Logger, error) {
	l := &Logger{level: ParseLevel(cfg.Level)}

	if cfg.MaxSizeMB == 0 {
		cfg.MaxSizeMB = 100
	}
	if cfg.MaxBackups == 0 {
		cfg.MaxBackups = 5
	}
	if cfg.MaxAgeDays == 0 {
		cfg.MaxAgeDays = 30
	}

	if cfg.FilePath != "" {
		dir := filepath.Dir(cfg.FilePath)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("kidalog: create log directory: %w", err)
		}

		l.lumberjack = &lumberjack.Logger{
			Filename:   cfg.FilePath,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   cfg.Compress,
			LocalTime:  true,
		}

		if cfg.AlsoStdout {
			l.writer = io.MultiWriter(os.Stdout, l.lumberjack)
		} else {
			l.writer = l.lumberjack
		}
	} else {
		l.writer = os.Stdout
	}

	return l, nil
}

func (l *Logger) Close() error {
	if l.lumberjack != nil {
		return l.lumberjack.Close()
	}
	return nil
}

func (l *Logger) SetLevel(level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

// Entry is one structured log line.
type Entry struct {
	Timestamp string         `json:"ts"`
	Level     string         `json:"level"`
	Message   string         `json:"msg"`
	Fields    map[string]any `json:"fields,omitempty"`

	RenderID     string `json:"render_id,omitempty"`
	TemplateName string `json:"template_name,omitempty"`
}

// NewRenderID returns a fresh correlation ID for one render call.
func NewRenderID() string {
	return uuid.NewString()
}

func (l *Logger) log(level Level, msg string, fields map[string]any) {
	if level < l.level {
		return
	}

	entry := Entry{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Level:     level.String(),
		Message:   msg,
		Fields:    fields,
	}

	if fields != nil {
		if rid, ok := fields["render_id"].(string); ok {
			entry.RenderID = rid
			delete(fields, "render_id")
		}
		if tn, ok := fields["template_name"].(string); ok {
			entry.TemplateName = tn
			delete(fields, "template_name")
		}
		if len(fields) == 0 {
			entry.Fields = nil
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	data, _ := json.Marshal(entry)
	l.writer.Write(append(data, '\n'))
}

func (l *Logger) Debug(msg string, fields map[string]any) { l.log(LevelDebug, msg, fields) }
func (l *Logger) Info(msg string, fields map[string]any)  { l.log(LevelInfo, msg, fields) }
func (l *Logger) Warn(msg string, fields map[string]any)  { l.log(LevelWarn, msg, fields) }
func (l *Logger) Error(msg string, fields map[string]any) { l.log(LevelError, msg, fields) }

func Debug(msg string, fields map[string]any) {
	if defaultLogger != nil {
		defaultLogger.Debug(msg, fields)
	}
}

func Info(msg string, fields map[string]any) {
	if defaultLogger != nil {
		defaultLogger.Info(msg, fields)
	}
}

func Warn(msg string, fields map[string]any) {
	if defaultLogger != nil {
		defaultLogger.Warn(msg, fields)
	}
}

func Error(msg string, fields map[string]any) {
	if defaultLogger != nil {
		defaultLogger.Error(msg, fields)
	}
}

func SetLevel(level Level) {
	if defaultLogger != nil {
		defaultLogger.SetLevel(level)
	}
}

func Close() error {
	if defaultLogger != nil {
		return defaultLogger.Close()
	}
	return nil
}
