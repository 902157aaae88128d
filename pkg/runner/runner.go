// Package runner drives the process lifecycle: start hooks, wait for a stop
// signal, drain the live session, then stop hooks.
package runner

import (
	"bytes"
	"context"
	"io"

	"github.com/dimiro1/banner"
)

type State int

const (
	StateNew State = iota
	StateStarting
	StateRunning
	StateDraining
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateStopped:
		return "stopped"
	}
	return "unknown"
}

type Runner interface {
	Run(ctx context.Context) error
	Stop() error
	State() State
}

type Hooks struct {
	// OnStart runs before the runner reports Running. An error aborts Run.
	OnStart func(ctx context.Context) error
	OnStop  func()
}

type Drainer interface {
	Drain() error
}

// Version is set at build time with -ldflags "-X .../runner.Version=...".
var Version = "dev"

// PrintBanner writes the startup banner to w. Colors are only used for terminals.
func PrintBanner(w io.Writer, color bool) {
	tpl := "{{ .Title \"callscribe\" \"\" 0 }}\nVersion: " + Version + "\n{{ .Now \"2006-01-02 15:04:05\" }}\n\n"
	banner.Init(w, true, color, bytes.NewBufferString(tpl))
}
