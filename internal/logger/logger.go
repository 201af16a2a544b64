package logger

import (
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

var once sync.Once
var logger *logrus.Logger

// GetLogger returns the process logger. It is created on first use so the
// level can be changed once the configuration is loaded.
func GetLogger() *logrus.Logger {
	once.Do(func() {
		logger = logrus.New()

		logger.Out = os.Stdout
		logger.SetLevel(logrus.InfoLevel)

		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
			PadLevelText:  true,
		})
	})

	return logger
}

// SetLogLevel parses level and applies it, falling back to info on garbage.
func SetLogLevel(level string) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		GetLogger().WithField("level", level).Warn("unknown log level, using info")
		lvl = logrus.InfoLevel
	}
	GetLogger().SetLevel(lvl)
}
