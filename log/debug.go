package log

import (
	hclog "github.com/hashicorp/go-hclog"
)

// SetLevel parses a level name ("trace", "debug", "info", ...) and applies it
// to L. Unknown names leave the level alone and return false.
func SetLevel(name string) bool {
	lvl := hclog.LevelFromString(name)
	if lvl == hclog.NoLevel {
		return false
	}

	L.SetLevel(lvl)

	return true
}

func EnableDebug() {
	L.SetLevel(hclog.Trace)
}
