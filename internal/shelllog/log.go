// Package shelllog constructs the shell's logger: a structured event log
// of job lifecycle events, kept off stdout. Entries go to stderr as text
// by default, or as JSON to a configured log file.
package shelllog

import (
	"os"

	"github.com/sirupsen/logrus"

	"github.com/mush-shell/mush/internal/shellconfig"
)

// New builds a logger from cfg. An empty File routes output to stderr at
// the configured level; a non-empty File appends JSON-formatted entries
// to that path instead, falling back to stderr if it cannot be opened.
func New(cfg shellconfig.Log) *logrus.Entry {
	log := logrus.New()
	log.SetLevel(parseLevel(cfg.Level))

	if cfg.File != "" {
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			log.Out = os.Stderr
			log.WithError(err).Warn("shelllog: could not open log file, writing to stderr")
		} else {
			log.Out = f
			log.Formatter = &logrus.JSONFormatter{}
		}
	} else {
		log.Out = os.Stderr
	}

	return log.WithField("component", "mush")
}

func parseLevel(s string) logrus.Level {
	if s == "" {
		return logrus.InfoLevel
	}
	level, err := logrus.ParseLevel(s)
	if err != nil {
		return logrus.InfoLevel
	}
	return level
}
