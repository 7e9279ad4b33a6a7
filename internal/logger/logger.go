package logger

import (
	"os"

	"github.com/sirupsen/logrus"
)

var Logger *logrus.Logger

func init() {
	Logger = logrus.New()

	Logger.SetOutput(os.Stdout)
	Logger.SetFormatter(&logrus.JSONFormatter{})
	Logger.SetLevel(logrus.InfoLevel)

	// Mirror logs to a file when LOG_PATH is set
	if path := os.Getenv("LOG_PATH"); path != "" {
		logFile, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0666)
		if err != nil {
			Logger.Fatal(err)
		}
		Logger.SetOutput(logFile)
	}
}

// LogEvent logs structured events
func LogEvent(level logrus.Level, message string, fields logrus.Fields) {
	Logger.WithFields(fields).Log(level, message)
}
