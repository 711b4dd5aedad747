package rtc

import (
	"github.com/pion/logging"

	"github.com/yok-tottii/EzCall/internal/logger"
)

// loggerFactory routes pion's scoped loggers into the application log.
type loggerFactory struct {
	log *logger.Logger
}

// NewLoggerFactory returns a pion LoggerFactory writing to log
func NewLoggerFactory(log *logger.Logger) logging.LoggerFactory {
	return &loggerFactory{log: log}
}

func (f *loggerFactory) NewLogger(scope string) logging.LeveledLogger {
	return &leveledLogger{log: f.log.Component("pion/" + scope)}
}

// leveledLogger maps pion levels onto logger levels; trace goes to debug.
type leveledLogger struct {
	log *logger.Logger
}

func (l *leveledLogger) Trace(msg string)                          { l.log.Debug("%s", msg) }
func (l *leveledLogger) Tracef(format string, args ...interface{}) { l.log.Debug(format, args...) }
func (l *leveledLogger) Debug(msg string)                          { l.log.Debug("%s", msg) }
func (l *leveledLogger) Debugf(format string, args ...interface{}) { l.log.Debug(format, args...) }
func (l *leveledLogger) Info(msg string)                           { l.log.Info("%s", msg) }
func (l *leveledLogger) Infof(format string, args ...interface{})  { l.log.Info(format, args...) }
func (l *leveledLogger) Warn(msg string)                           { l.log.Warn("%s", msg) }
func (l *leveledLogger) Warnf(format string, args ...interface{})  { l.log.Warn(format, args...) }
func (l *leveledLogger) Error(msg string)                          { l.log.Error("%s", msg) }
func (l *leveledLogger) Errorf(format string, args ...interface{}) { l.log.Error(format, args...) }
