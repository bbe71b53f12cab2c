package engine

import (
	"context"
	"os"

	"korobok/internal/container/spec"
	"korobok/pkg/utils/logger"
)

// InitRequest is everything the container side needs to run.
type InitRequest struct {
	RunID  string        `json:"runId"`
	Spec   spec.RunSpec  `json:"spec"`
	Cmd    []string      `json:"cmd"`
	Logger logger.Config `json:"logger"`
}

// ContainerEnds are the container's halves of the two control pipes.
type ContainerEnds struct {
	// In carries frames from setup to the container.
	In *os.File
	// Out carries frames from the container to setup.
	Out *os.File
}

// Close closes both ends.
func (e ContainerEnds) Close() {
	if e.In != nil {
		_ = e.In.Close()
	}
	if e.Out != nil {
		_ = e.Out.Close()
	}
}

// Process is the launcher's handle on the container side.
type Process interface {
	Pid() int
	// Wait blocks until the container side has exited. A failure reported by
	// the container is returned as is.
	Wait() error
	// Kill tears the container side down.
	Kill() error
}

// Spawner creates the container side inside fresh namespaces described by
// flags. The container side runs the registered entry with req before any
// other code executes in the new namespaces. Spawn takes ownership of ends
// and closes the launcher's copies when they are no longer needed.
type Spawner interface {
	Spawn(ctx context.Context, flags uintptr, req InitRequest, ends ContainerEnds) (Process, error)
}
