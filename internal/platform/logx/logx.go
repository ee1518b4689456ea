package logx

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Level representa el nivel de logging
type Level uint8

const (
	LevelError Level = iota
	LevelWarn
	LevelInfo
	LevelDebug
	LevelTrace
)

// Fields representa pares clave-valor para structured logging
type Fields map[string]any

// Config gestiona la configuración global del logger
type Config struct {
	mu        sync.RWMutex
	logger    zerolog.Logger
	console   io.Writer
	formatter *LogFormatter
}

var cfg = newConfig(os.Stderr)

func newConfig(w io.Writer) *Config {
	out := DetectOutput(w)
	console := consoleWriter(w, out.NoColor)
	return &Config{
		logger:    zerolog.New(console).With().Timestamp().Logger(),
		console:   console,
		formatter: NewLogFormatter(!out.NoColor),
	}
}

func consoleWriter(w io.Writer, noColor bool) zerolog.ConsoleWriter {
	return zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: "15:04:05",
		NoColor:    noColor,
	}
}

// SetVerbosity configura el nivel: 0=info, 1=info, 2=debug, 3=trace
func SetVerbosity(v int) {
	switch {
	case v <= 1:
		SetLevel(LevelInfo)
	case v == 2:
		SetLevel(LevelDebug)
	default:
		SetLevel(LevelTrace)
	}
}

// SetLevel cambia el nivel mínimo de logging
func SetLevel(l Level) {
	var zlevel zerolog.Level
	switch l {
	case LevelError:
		zlevel = zerolog.ErrorLevel
	case LevelWarn:
		zlevel = zerolog.WarnLevel
	case LevelInfo:
		zlevel = zerolog.InfoLevel
	case LevelDebug:
		zlevel = zerolog.DebugLevel
	case LevelTrace:
		zlevel = zerolog.TraceLevel
	default:
		zlevel = zerolog.InfoLevel
	}

	zerolog.SetGlobalLevel(zlevel)
}

// ParseLevel convierte string a Level
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "error", "err":
		return LevelError, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "info":
		return LevelInfo, nil
	case "debug":
		return LevelDebug, nil
	case "trace":
		return LevelTrace, nil
	default:
		return 0, fmt.Errorf("logx: nivel desconocido %q", s)
	}
}

// SetOutput redirige la salida del logger
func SetOutput(w io.Writer) {
	if w == nil {
		w = os.Stderr
	}
	next := newConfig(w)

	cfg.mu.Lock()
	cfg.logger = next.logger
	cfg.console = next.console
	cfg.formatter = next.formatter
	cfg.mu.Unlock()
}

// AddOutput añade un writer adicional (JSON por línea) junto a la consola.
func AddOutput(w io.Writer) {
	if w == nil {
		return
	}
	cfg.mu.Lock()
	defer cfg.mu.Unlock()

	multi := zerolog.MultiLevelWriter(cfg.console, w)
	cfg.logger = zerolog.New(multi).With().Timestamp().Logger()
}

// AddFile duplica el log en un archivo con rotación. El closer devuelto debe
// cerrarse al terminar la ejecución.
func AddFile(path string) (io.Closer, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("logx: ruta de log vacía")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("logx: crear directorio de log: %w", err)
	}
	fileWriter := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    50,
		MaxBackups: 5,
		MaxAge:     30,
		Compress:   true,
	}
	AddOutput(fileWriter)
	return fileWriter, nil
}

func current() zerolog.Logger {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()
	return cfg.logger
}

// Funciones con fields estructurados
func Error(msg string, fields Fields) {
	logger := current()
	withFields(logger.Error(), fields).Msg(msg)
}

func Warn(msg string, fields Fields) {
	logger := current()
	withFields(logger.Warn(), fields).Msg(msg)
}

func Info(msg string, fields Fields) {
	logger := current()
	withFields(logger.Info(), fields).Msg(msg)
}

func Debug(msg string, fields Fields) {
	logger := current()
	withFields(logger.Debug(), fields).Msg(msg)
}

func Trace(msg string, fields Fields) {
	logger := current()
	withFields(logger.Trace(), fields).Msg(msg)
}

func withFields(event *zerolog.Event, fields Fields) *zerolog.Event {
	for k, v := range fields {
		event = event.Interface(k, v)
	}
	return event
}

func logFields(lvl Level, msg string, fields Fields) {
	switch lvl {
	case LevelError:
		Error(msg, fields)
	case LevelWarn:
		Warn(msg, fields)
	case LevelInfo:
		Info(msg, fields)
	case LevelDebug:
		Debug(msg, fields)
	case LevelTrace:
		Trace(msg, fields)
	}
}

// GetFormatter retorna el formatter global (para uso en otros módulos)
func GetFormatter() *LogFormatter {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()
	return cfg.formatter
}
