// Package logger hands out per-subsystem loggers on a shared backend.
package logger

import (
	"os"

	"github.com/btcsuite/btclog"
)

var backend = btclog.NewBackend(os.Stdout)

// New returns a logger tagged with the given subsystem. Unknown level
// strings fall back to info.
func New(subsystem, level string) btclog.Logger {
	log := backend.Logger(subsystem)
	lvl, ok := btclog.LevelFromString(level)
	if !ok {
		lvl = btclog.LevelInfo
	}
	log.SetLevel(lvl)
	return log
}

// Disabled is a logger that drops everything.
func Disabled() btclog.Logger {
	return btclog.Disabled
}
