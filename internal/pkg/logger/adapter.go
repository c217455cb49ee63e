package logger

import "balance_aggregator/internal/app/port"

// slogAdapter реализует интерфейс port.Logger, используя глобальные функции пакета logger.
// Это позволяет передавать конкретную реализацию логгера в сервисы, ожидающие port.Logger.
type slogAdapter struct{}

// NewSlogAdapter создает новый экземпляр slogAdapter.
func NewSlogAdapter() port.Logger {
	return &slogAdapter{}
}

func (a *slogAdapter) Info(msg string, args ...any)  { Info(msg, args...) }
func (a *slogAdapter) Debug(msg string, args ...any) { Debug(msg, args...) }
func (a *slogAdapter) Warn(msg string, args ...any)  { Warn(msg, args...) }
func (a *slogAdapter) Error(msg string, args ...any) { Error(msg, args...) }

type nopLogger struct{}

// NewNop returns a port.Logger that discards everything.
func NewNop() port.Logger {
	return nopLogger{}
}

func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
