package logger

import (
	"os"

	"github.com/sirupsen/logrus"
)

var log = logrus.New()

func init() {
	// JSON output so log collectors can index the fields.
	formatter := &logrus.JSONFormatter{
		TimestampFormat: "2006-01-02T15:04:05.999Z07:00",
	}

	log.SetFormatter(formatter)
	log.SetOutput(os.Stdout)
	log.SetLevel(logrus.InfoLevel)

	// The toolkit packages log through the logrus standard logger, so it
	// gets the same formatter as the wrapper instance.
	logrus.SetFormatter(formatter)
	logrus.SetOutput(os.Stdout)
}

// InitLogger sets the log level from its textual form ("debug", "info",
// "warn", "error"). The level applies to the wrapper and to the logrus
// standard logger used across the toolkit packages.
func InitLogger(level string) error {
	logLevel, err := logrus.ParseLevel(level)
	if err != nil {
		return err
	}
	log.SetLevel(logLevel)
	logrus.SetLevel(logLevel)
	return nil
}

func Debug(args ...interface{}) {
	log.Debug(args...)
}

func Info(args ...interface{}) {
	log.Info(args...)
}

func Warn(args ...interface{}) {
	log.Warn(args...)
}

func Error(args ...interface{}) {
	log.Error(args...)
}

func WithFields(fields logrus.Fields) *logrus.Entry {
	return log.WithFields(fields)
}
