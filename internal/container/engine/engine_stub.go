//go:build !linux

package engine

import (
	"context"
	"fmt"
	"syscall"

	"korobok/internal/container/spec"
)

// CloneFlags is meaningless off Linux.
func CloneFlags(spec.Namespaces) uintptr {
	return 0
}

type stubSpawner struct{}

func defaultSpawner() Spawner {
	return stubSpawner{}
}

func (stubSpawner) Spawn(context.Context, uintptr, InitRequest, ContainerEnds) (Process, error) {
	return nil, fmt.Errorf("containers are only supported on linux")
}

func entryProcAttr() *syscall.SysProcAttr {
	return nil
}
