package logger

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

var Logger *logrus.Logger

// InitLogger initializes the structured logger with proper configuration
func InitLogger(logLevel string, isDevelopment bool) *logrus.Logger {
	return initLogger(logLevel, isDevelopment, os.Stdout)
}

func initLogger(logLevel string, isDevelopment bool, out io.Writer) *logrus.Logger {
	log := logrus.New()

	// Override with environment if not provided
	if logLevel == "" {
		logLevel = os.Getenv("LOG_LEVEL")
		if logLevel == "" {
			if isDevelopment {
				logLevel = "debug"
			} else {
				logLevel = "info"
			}
		}
	}

	if level, err := logrus.ParseLevel(strings.ToLower(logLevel)); err == nil {
		log.SetLevel(level)
	} else {
		log.SetLevel(logrus.InfoLevel)
		log.WithField("invalid_level", logLevel).Warn("Invalid LOG_LEVEL, using INFO")
	}

	// Set formatter based on environment
	if !isDevelopment || strings.ToLower(os.Getenv("LOG_FORMAT")) == "json" {
		log.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
		})
	} else {
		log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
			ForceColors:     true,
		})
	}

	log.SetOutput(out)

	// Store global logger reference
	Logger = log

	return log
}

// GetLogger returns the global logger instance
func GetLogger() *logrus.Logger {
	if Logger == nil {
		return InitLogger("info", false)
	}
	return Logger
}

// WithSource creates a logger for one upstream source
func WithSource(source, url string) *logrus.Entry {
	fields := logrus.Fields{"source": source}
	if url != "" {
		fields["url"] = url
	}
	return GetLogger().WithFields(fields)
}

// WithLeagueContext creates a logger with fantasy league context
func WithLeagueContext(platform, leagueKey, teamKey string) *logrus.Entry {
	fields := logrus.Fields{
		"platform":   platform,
		"league_key": leagueKey,
	}
	if teamKey != "" {
		fields["team_key"] = teamKey
	}
	return GetLogger().WithFields(fields)
}
