package logger

import (
	"context"
	"log/slog"
	"os"
	"strings"

	slogzap "github.com/samber/slog-zap/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var globalLogger *slog.Logger

// ParseLevel maps a config level string onto slog levels, INFO by default.
func ParseLevel(levelStr string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(levelStr)) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO", "":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		slog.Warn("Invalid log level string, defaulting to INFO", "input", levelStr)
		return slog.LevelInfo
	}
}

// InitSlog initializes the global slog logger with a specified log level and JSON format.
func InitSlog(levelStr string) {
	opts := &slog.HandlerOptions{
		Level:     ParseLevel(levelStr),
		AddSource: false,
	}
	handler := slog.NewJSONHandler(os.Stdout, opts)
	SetLogger(slog.New(handler))
}

// NewZap builds the zap logger used by the application. Если указан файл,
// логи пишутся туда вместо stdout.
func NewZap(levelStr string, file string) (*zap.Logger, error) {
	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(toZapLevel(ParseLevel(levelStr)))
	if file != "" {
		zapCfg.OutputPaths = []string{file}
	}
	return zapCfg.Build()
}

// InitZapSlog routes the global slog logger through zapLogger using samber/slog-zap.
func InitZapSlog(zapLogger *zap.Logger, levelStr string) {
	handler := slogzap.Option{
		Level:  ParseLevel(levelStr),
		Logger: zapLogger,
	}.NewZapHandler()
	SetLogger(slog.New(handler))
}

// SetLogger replaces the global logger and installs it as slog default.
func SetLogger(l *slog.Logger) {
	globalLogger = l
	slog.SetDefault(l)
}

func toZapLevel(l slog.Level) zapcore.Level {
	switch {
	case l <= slog.LevelDebug:
		return zapcore.DebugLevel
	case l <= slog.LevelInfo:
		return zapcore.InfoLevel
	case l <= slog.LevelWarn:
		return zapcore.WarnLevel
	default:
		return zapcore.ErrorLevel
	}
}

// ensureInitialized проверяет, инициализирован ли логгер.
func ensureInitialized() {
	if globalLogger == nil {
		InitSlog("INFO")
	}
}

// Debug logs a message at DebugLevel.
func Debug(msg string, args ...any) {
	ensureInitialized()
	if globalLogger.Enabled(context.Background(), slog.LevelDebug) {
		globalLogger.Debug(msg, args...)
	}
}

// Info logs a message at InfoLevel.
func Info(msg string, args ...any) {
	ensureInitialized()
	if globalLogger.Enabled(context.Background(), slog.LevelInfo) {
		globalLogger.Info(msg, args...)
	}
}

// Warn logs a message at WarnLevel.
func Warn(msg string, args ...any) {
	ensureInitialized()
	if globalLogger.Enabled(context.Background(), slog.LevelWarn) {
		globalLogger.Warn(msg, args...)
	}
}

// Error logs a message at ErrorLevel.
func Error(msg string, args ...any) {
	ensureInitialized()
	if globalLogger.Enabled(context.Background(), slog.LevelError) {
		globalLogger.Error(msg, args...)
	}
}

// Fatal logs a message at ErrorLevel then exits.
func Fatal(msg string, args ...any) {
	ensureInitialized()
	// Логируем всегда перед выходом, независимо от Enabled, т.к. это Fatal
	globalLogger.Error(msg, args...)
	os.Exit(1)
}
