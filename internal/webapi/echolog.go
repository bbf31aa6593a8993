package webapi

import (
	"fmt"
	"io"
	"log/slog"

	gommonlog "github.com/labstack/gommon/log"
)

// echoLogger routes echo's own log calls, startup notices and recovered
// panics mostly, into the controller's slog logger so they land in the
// same stream as request logs. Output, prefix, and level are owned by
// the slog handler, so those setters are no-ops.
type echoLogger struct {
	log *slog.Logger
}

func newEchoLogger(log *slog.Logger) *echoLogger {
	return &echoLogger{log: log}
}

func (l *echoLogger) Output() io.Writer      { return io.Discard }
func (l *echoLogger) SetOutput(io.Writer)    {}
func (l *echoLogger) Prefix() string         { return "" }
func (l *echoLogger) SetPrefix(string)       {}
func (l *echoLogger) Level() gommonlog.Lvl   { return gommonlog.INFO }
func (l *echoLogger) SetLevel(gommonlog.Lvl) {}
func (l *echoLogger) SetHeader(string)       {}

func (l *echoLogger) Print(i ...any)                 { l.log.Info(fmt.Sprint(i...)) }
func (l *echoLogger) Printf(format string, a ...any) { l.log.Info(fmt.Sprintf(format, a...)) }
func (l *echoLogger) Printj(j gommonlog.JSON)        { l.log.Info("echo log", "data", j) }

func (l *echoLogger) Debug(i ...any)                 { l.log.Debug(fmt.Sprint(i...)) }
func (l *echoLogger) Debugf(format string, a ...any) { l.log.Debug(fmt.Sprintf(format, a...)) }
func (l *echoLogger) Debugj(j gommonlog.JSON)        { l.log.Debug("echo log", "data", j) }

func (l *echoLogger) Info(i ...any)                 { l.log.Info(fmt.Sprint(i...)) }
func (l *echoLogger) Infof(format string, a ...any) { l.log.Info(fmt.Sprintf(format, a...)) }
func (l *echoLogger) Infoj(j gommonlog.JSON)        { l.log.Info("echo log", "data", j) }

func (l *echoLogger) Warn(i ...any)                 { l.log.Warn(fmt.Sprint(i...)) }
func (l *echoLogger) Warnf(format string, a ...any) { l.log.Warn(fmt.Sprintf(format, a...)) }
func (l *echoLogger) Warnj(j gommonlog.JSON)        { l.log.Warn("echo log", "data", j) }

func (l *echoLogger) Error(i ...any)                 { l.log.Error(fmt.Sprint(i...)) }
func (l *echoLogger) Errorf(format string, a ...any) { l.log.Error(fmt.Sprintf(format, a...)) }
func (l *echoLogger) Errorj(j gommonlog.JSON)        { l.log.Error("echo log", "data", j) }

// Fatal panics instead of exiting so the engine's shutdown path still
// runs when a handler hits an unrecoverable state.
func (l *echoLogger) Fatal(i ...any) {
	msg := fmt.Sprint(i...)
	l.log.Error(msg)
	panic("echo fatal: " + msg)
}

func (l *echoLogger) Fatalf(format string, a ...any) {
	msg := fmt.Sprintf(format, a...)
	l.log.Error(msg)
	panic("echo fatal: " + msg)
}

func (l *echoLogger) Fatalj(j gommonlog.JSON) {
	l.log.Error("echo log", "data", j)
	panic(fmt.Sprintf("echo fatal: %v", j))
}

func (l *echoLogger) Panic(i ...any) {
	msg := fmt.Sprint(i...)
	l.log.Error(msg)
	panic(msg)
}

func (l *echoLogger) Panicf(format string, a ...any) {
	msg := fmt.Sprintf(format, a...)
	l.log.Error(msg)
	panic(msg)
}

func (l *echoLogger) Panicj(j gommonlog.JSON) {
	l.log.Error("echo log", "data", j)
	panic(fmt.Sprintf("%v", j))
}
