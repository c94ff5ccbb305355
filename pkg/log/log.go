// Package log provides the package-level logger used across the protocol
// core. Embedders choose the sink and formatter; the core never writes to
// a file or reads CLI flags (logging configuration is not part of this
// core, see spec Non-goals).
package log

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Fields is an alias for logrus.Fields, keeping call sites independent of
// the underlying logging library.
type Fields = logrus.Fields

var std = logrus.New()

func init() {
	std.SetOutput(os.Stdout)
	std.SetFormatter(&DaemonFormatter{})
	std.SetLevel(logrus.InfoLevel)
}

// SetOutput redirects where log lines are written.
func SetOutput(w io.Writer) {
	std.SetOutput(w)
}

// SetFormatter installs a custom logrus.Formatter, e.g. CliFormatter.
func SetFormatter(f logrus.Formatter) {
	std.SetFormatter(f)
}

// SetLevel parses level (e.g. "DEBUG", "trace") and applies it.
func SetLevel(level string) error {
	l, err := logrus.ParseLevel(level)
	if err != nil {
		return err
	}
	std.SetLevel(l)
	return nil
}

// IsLevelEnabled reports whether the standard logger would emit at l.
func IsLevelEnabled(l logrus.Level) bool {
	return std.IsLevelEnabled(l)
}

func WithFields(fields Fields) *logrus.Entry { return std.WithFields(fields) }

func Tracef(format string, args ...interface{}) { std.Tracef(format, args...) }
func Debugf(format string, args ...interface{}) { std.Debugf(format, args...) }
func Infof(format string, args ...interface{})  { std.Infof(format, args...) }
func Warnf(format string, args ...interface{})  { std.Warnf(format, args...) }
func Errorf(format string, args ...interface{}) { std.Errorf(format, args...) }
func Fatalf(format string, args ...interface{}) { std.Fatalf(format, args...) }
