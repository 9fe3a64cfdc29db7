// Package logger provides structured logging capabilities for the application.
// It wraps uber-go/zap for leveled logging with text or JSON output.
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/buffer"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Field keys shared by every component that logs about a document
const (
	FieldDocumentID   = "document_id"
	FieldDocumentKind = "document_kind"
	FieldRequestID    = "request_id"
)

var bufferpool = buffer.NewPool()

var (
	globalLogger *zap.Logger
	mu           sync.RWMutex
	once         sync.Once
)

// Config holds the logger configuration
type Config struct {
	// Level is the minimum log level (debug, info, warn, error)
	Level string `yaml:"level"`
	// Format is the output format (json, text)
	Format string `yaml:"format"`
	// File is the log file path (empty for stdout only)
	// When set, logs are written to both console and file
	File string `yaml:"file"`
	// MaxSize is the maximum size in megabytes of the log file before it gets rotated
	MaxSize int `yaml:"max_size"`
	// MaxAge is the maximum number of days to retain old log files
	MaxAge int `yaml:"max_age"`
	// MaxBackups is the maximum number of old log files to retain
	MaxBackups int `yaml:"max_backups"`
	// Compress determines if the rotated log files should be compressed using gzip
	Compress bool `yaml:"compress"`
	// AccessLog prints successful HTTP requests at info level
	AccessLog bool `yaml:"access_log"`

	// Output replaces stdout as the console destination. Not configurable from YAML.
	Output io.Writer `yaml:"-"`
}

// Init initializes the global logger with the given configuration.
// Only the first call takes effect.
func Init(cfg Config) error {
	once.Do(func() {
		set(New(cfg))
	})
	return nil
}

// New builds a logger without touching the global instance.
// An unparseable level falls back to info.
func New(cfg Config) *zap.Logger {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = 100
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = 7
	}
	if cfg.MaxBackups <= 0 {
		cfg.MaxBackups = 5
	}

	var console io.Writer = os.Stdout
	if cfg.Output != nil {
		console = cfg.Output
	}

	var consoleEnc, fileEnc zapcore.Encoder
	if cfg.Format == "text" {
		consoleEnc = newKVEncoder(textEncoderConfig(cfg.Output == nil))
		fileEnc = newKVEncoder(textEncoderConfig(false))
	} else {
		consoleEnc = zapcore.NewJSONEncoder(jsonEncoderConfig())
		fileEnc = zapcore.NewJSONEncoder(jsonEncoderConfig())
	}

	core := zapcore.NewCore(consoleEnc, zapcore.AddSync(console), level)
	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0755); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to create log directory: %v, using console only\n", err)
		} else {
			rotating := zapcore.AddSync(&lumberjack.Logger{
				Filename:   cfg.File,
				MaxSize:    cfg.MaxSize,
				MaxAge:     cfg.MaxAge,
				MaxBackups: cfg.MaxBackups,
				Compress:   cfg.Compress,
			})
			core = zapcore.NewTee(core, zapcore.NewCore(fileEnc, rotating, level))
		}
	}

	if cfg.Format == "text" {
		core = &fieldCore{Core: core}
	}
	return zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
}

func textEncoderConfig(color bool) zapcore.EncoderConfig {
	levelEncoder := bracketLevelEncoder
	if color {
		levelEncoder = bracketColorLevelEncoder
	}
	return zapcore.EncoderConfig{
		TimeKey:          "time",
		LevelKey:         "level",
		NameKey:          zapcore.OmitKey,
		CallerKey:        "caller",
		FunctionKey:      zapcore.OmitKey,
		MessageKey:       "msg",
		StacktraceKey:    "stacktrace",
		LineEnding:       zapcore.DefaultLineEnding,
		EncodeLevel:      levelEncoder,
		EncodeTime:       bracketTimeEncoder,
		EncodeDuration:   zapcore.StringDurationEncoder,
		EncodeCaller:     zapcore.ShortCallerEncoder,
		ConsoleSeparator: " ",
	}
}

func jsonEncoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:        "timestamp",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.SecondsDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
}

// bracketTimeEncoder formats time with brackets: [2006-01-02 15:04:05]
func bracketTimeEncoder(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString("[" + t.Format("2006-01-02 15:04:05") + "]")
}

// bracketLevelEncoder formats level with brackets: [INFO]
func bracketLevelEncoder(level zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString("[" + level.CapitalString() + "]")
}

// bracketColorLevelEncoder formats level with brackets and ANSI color
func bracketColorLevelEncoder(level zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	var color string
	switch level {
	case zapcore.DebugLevel:
		color = "\x1b[35m"
	case zapcore.InfoLevel:
		color = "\x1b[34m"
	case zapcore.WarnLevel:
		color = "\x1b[33m"
	default:
		color = "\x1b[31m"
	}
	enc.AppendString(color + "[" + level.CapitalString() + "]\x1b[0m")
}

func parseLevel(level string) (zapcore.Level, error) {
	var l zapcore.Level
	err := l.UnmarshalText([]byte(level))
	return l, err
}

func set(l *zap.Logger) {
	mu.Lock()
	globalLogger = l
	mu.Unlock()
}

// Get returns the global logger instance.
// If the logger hasn't been initialized, it returns a no-op logger.
func Get() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	if globalLogger == nil {
		return zap.NewNop()
	}
	return globalLogger
}

// Replace swaps the global logger and returns a function restoring the previous one.
// Intended for tests that assert on log output.
func Replace(l *zap.Logger) func() {
	prev := Get()
	set(l)
	return func() { set(prev) }
}

// Sugar returns the sugared global logger for more convenient logging.
func Sugar() *zap.SugaredLogger {
	return Get().Sugar()
}

// With creates a child logger with additional fields
func With(fields ...zap.Field) *zap.Logger {
	return Get().With(fields...)
}

// Named creates a child logger with the given name
func Named(name string) *zap.Logger {
	return Get().Named(name)
}

// WithDocument creates a child logger tagged with a document's kind and handle.
//
//	log := logger.WithDocument(consts.KindContract, doc.ID)
//	log.Info("Document opened", zap.String("sink", sink.Name()))
func WithDocument(kind, id string) *zap.Logger {
	return Get().With(zap.String(FieldDocumentKind, kind), zap.String(FieldDocumentID, id))
}

// Debug logs a debug message
func Debug(msg string, fields ...zap.Field) {
	Get().WithOptions(zap.AddCallerSkip(1)).Debug(msg, fields...)
}

// Info logs an info message
func Info(msg string, fields ...zap.Field) {
	Get().WithOptions(zap.AddCallerSkip(1)).Info(msg, fields...)
}

// Warn logs a warning message
func Warn(msg string, fields ...zap.Field) {
	Get().WithOptions(zap.AddCallerSkip(1)).Warn(msg, fields...)
}

// Error logs an error message
func Error(msg string, fields ...zap.Field) {
	Get().WithOptions(zap.AddCallerSkip(1)).Error(msg, fields...)
}

// Fatal logs a fatal message and exits
func Fatal(msg string, fields ...zap.Field) {
	Get().WithOptions(zap.AddCallerSkip(1)).Fatal(msg, fields...)
}

// Sync flushes any buffered log entries
func Sync() error {
	return Get().Sync()
}

// fieldCore keeps logger.With fields itself and hands them to the encoder
// with every entry, so kvEncoder sees context and call-site fields alike.
type fieldCore struct {
	zapcore.Core
	fields []zapcore.Field
}

func (c *fieldCore) With(fields []zapcore.Field) zapcore.Core {
	return &fieldCore{Core: c.Core, fields: append(append([]zapcore.Field(nil), c.fields...), fields...)}
}

func (c *fieldCore) Check(entry zapcore.Entry, checked *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(entry.Level) {
		return checked.AddCore(entry, c)
	}
	return checked
}

func (c *fieldCore) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	return c.Core.Write(entry, append(append([]zapcore.Field(nil), c.fields...), fields...))
}

// kvEncoder renders the entry header through the configured encoders and
// the structured fields as key=value pairs.
type kvEncoder struct {
	zapcore.Encoder
	cfg zapcore.EncoderConfig
}

func newKVEncoder(cfg zapcore.EncoderConfig) zapcore.Encoder {
	return &kvEncoder{Encoder: zapcore.NewConsoleEncoder(cfg), cfg: cfg}
}

func (e *kvEncoder) Clone() zapcore.Encoder {
	return &kvEncoder{Encoder: e.Encoder.Clone(), cfg: e.cfg}
}

func (e *kvEncoder) EncodeEntry(entry zapcore.Entry, fields []zapcore.Field) (*buffer.Buffer, error) {
	buf := bufferpool.Get()
	sep := e.cfg.ConsoleSeparator

	header := &stringArray{}
	if e.cfg.EncodeTime != nil {
		e.cfg.EncodeTime(entry.Time, header)
	}
	if e.cfg.EncodeLevel != nil {
		e.cfg.EncodeLevel(entry.Level, header)
	}
	if entry.Caller.Defined && e.cfg.EncodeCaller != nil {
		e.cfg.EncodeCaller(entry.Caller, header)
	}
	for _, s := range header.elems {
		buf.AppendString(s)
		buf.AppendString(sep)
	}
	buf.AppendString(entry.Message)

	if len(fields) > 0 {
		values := zapcore.NewMapObjectEncoder()
		for _, f := range fields {
			f.AddTo(values)
		}
		for _, f := range fields {
			buf.AppendString(sep)
			buf.AppendString(f.Key)
			buf.AppendByte('=')
			buf.AppendString(fmt.Sprint(values.Fields[f.Key]))
		}
	}

	if entry.Stack != "" && e.cfg.StacktraceKey != "" {
		buf.AppendString("\n")
		buf.AppendString(entry.Stack)
	}
	buf.AppendString(zapcore.DefaultLineEnding)
	return buf, nil
}

// stringArray collects the output of zap's primitive encoders.
type stringArray struct {
	elems []string
}

func (s *stringArray) AppendBool(v bool)              { s.elems = append(s.elems, fmt.Sprint(v)) }
func (s *stringArray) AppendByteString(v []byte)      { s.elems = append(s.elems, string(v)) }
func (s *stringArray) AppendComplex128(v complex128)  { s.elems = append(s.elems, fmt.Sprint(v)) }
func (s *stringArray) AppendComplex64(v complex64)    { s.elems = append(s.elems, fmt.Sprint(v)) }
func (s *stringArray) AppendFloat64(v float64)        { s.elems = append(s.elems, fmt.Sprint(v)) }
func (s *stringArray) AppendFloat32(v float32)        { s.elems = append(s.elems, fmt.Sprint(v)) }
func (s *stringArray) AppendInt(v int)                { s.elems = append(s.elems, fmt.Sprint(v)) }
func (s *stringArray) AppendInt64(v int64)            { s.elems = append(s.elems, fmt.Sprint(v)) }
func (s *stringArray) AppendInt32(v int32)            { s.elems = append(s.elems, fmt.Sprint(v)) }
func (s *stringArray) AppendInt16(v int16)            { s.elems = append(s.elems, fmt.Sprint(v)) }
func (s *stringArray) AppendInt8(v int8)              { s.elems = append(s.elems, fmt.Sprint(v)) }
func (s *stringArray) AppendString(v string)          { s.elems = append(s.elems, v) }
func (s *stringArray) AppendUint(v uint)              { s.elems = append(s.elems, fmt.Sprint(v)) }
func (s *stringArray) AppendUint64(v uint64)          { s.elems = append(s.elems, fmt.Sprint(v)) }
func (s *stringArray) AppendUint32(v uint32)          { s.elems = append(s.elems, fmt.Sprint(v)) }
func (s *stringArray) AppendUint16(v uint16)          { s.elems = append(s.elems, fmt.Sprint(v)) }
func (s *stringArray) AppendUint8(v uint8)            { s.elems = append(s.elems, fmt.Sprint(v)) }
func (s *stringArray) AppendUintptr(v uintptr)        { s.elems = append(s.elems, fmt.Sprint(v)) }
func (s *stringArray) AppendDuration(v time.Duration) { s.elems = append(s.elems, v.String()) }
func (s *stringArray) AppendTime(v time.Time)         { s.elems = append(s.elems, v.String()) }
