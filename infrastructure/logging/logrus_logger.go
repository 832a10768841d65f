package logging

import (
	applicationrelay "tungo/application/relay"

	"github.com/sirupsen/logrus"
)

// LogrusLogger backs applicationrelay.Logger with logrus, matching the
// structured-logging style used elsewhere in this codebase's cryptography
// packages.
type LogrusLogger struct {
	entry *logrus.Entry
}

// NewLogrusLogger builds a Logger tagged with the given component name.
func NewLogrusLogger(component string) applicationrelay.Logger {
	return &LogrusLogger{
		entry: logrus.WithFields(logrus.Fields{"component": component}),
	}
}

func (l *LogrusLogger) Printf(format string, v ...any) {
	l.entry.Infof(format, v...)
}
