// Package logging builds the structured loggers used across the mirror's
// actors, matching the teacher's use of github.com/sirupsen/logrus with
// per-component WithFields scoping (see core/chain_fork_manager.go).
package logging

import (
	"os"

	"github.com/sirupsen/logrus"
)

// New builds a root logger writing JSON-formatted entries to stderr, the
// format the teacher reserves for long-running daemons (its CLI tools use
// the default text formatter; this is a daemon).
func New(level string) *logrus.Logger {
	lg := logrus.New()
	lg.SetOutput(os.Stderr)
	lg.SetFormatter(&logrus.JSONFormatter{})
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	lg.SetLevel(lvl)
	return lg
}

// Component returns an entry scoped to a named subsystem, the same
// `logrus.WithFields`-per-module idiom the teacher applies in
// core/blockchain_synchronization.go and core/chain_fork_manager.go.
func Component(lg *logrus.Logger, name string) *logrus.Entry {
	return lg.WithField("component", name)
}
