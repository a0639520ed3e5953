// Package apps holds the built-in user programs the kernel can run.
package apps

import (
	"sort"

	"github.com/evanphx/tutorkernel/kernel"
	"github.com/evanphx/tutorkernel/user"
)

type App struct {
	Name    string
	Program kernel.Program

	// ExpectExit is the exit code of a correct run.
	ExpectExit int
}

var registry = map[string]App{}

func register(name string, expect int, prog kernel.Program) {
	registry[name] = App{Name: name, Program: prog, ExpectExit: expect}
}

func Lookup(name string) (App, bool) {
	app, ok := registry[name]
	return app, ok
}

// All returns every app ordered by name.
func All() []App {
	out := make([]App, 0, len(registry))
	for _, app := range registry {
		out = append(out, app)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].Name < out[j].Name
	})

	return out
}

// check exits with code when cond does not hold.
func check(u *kernel.UserContext, cond bool, code int) {
	if !cond {
		user.Exit(u, code)
	}
}
