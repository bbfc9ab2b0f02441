package unpacker

import (
	"fmt"
	"strings"

	"github.com/graphpack/pkg/bundle"
	"github.com/graphpack/pkg/identity"
	"github.com/graphpack/pkg/registry"
)

// State is the reconstruction state of one entity slot.
type State int

const (
	// Unseen is a slot whose bundle has not been read.
	Unseen State = iota
	// Parsed is a slot whose bundle passed structural and version checks.
	Parsed
	// Shell is a slot with a constructed instance awaiting completion.
	Shell
	// Finished is a slot whose instance is fully wired.
	Finished
)

var stateNames = [...]string{"unseen", "parsed", "shell", "finished"}

// String returns the state name.
func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// slot is one arena entry. wire is the id the bundle stream used; local is
// the id allocated for the reconstructed instance in this process.
type slot struct {
	wire      identity.InstanceID
	local     identity.InstanceID
	bundle    *bundle.Bundle
	factory   *registry.Factory
	state     State
	value     any
	completer registry.Completer
}

// StuckGraphError lists the entities that never finished. It is returned
// wrapped in a STUCK_GRAPH AppError; use errors.As to reach it.
type StuckGraphError struct {
	// Unfinished holds wire ids sorted by serial.
	Unfinished []identity.InstanceID
	// Types holds the type name of each unfinished entity, parallel to Unfinished.
	Types []string
	// Sweeps is the number of sweeps run before giving up.
	Sweeps int
	// CapReached is true when the configured sweep cap, not a sweep without
	// progress, ended the loop.
	CapReached bool
}

func (e *StuckGraphError) Error() string {
	parts := make([]string, len(e.Unfinished))
	for i, id := range e.Unfinished {
		parts[i] = e.Types[i] + "@" + id.String()
	}
	reason := "no progress"
	if e.CapReached {
		reason = "sweep cap reached"
	}
	return fmt.Sprintf("%d entities unfinished after %d sweeps (%s): %s",
		len(e.Unfinished), e.Sweeps, reason, strings.Join(parts, ", "))
}
