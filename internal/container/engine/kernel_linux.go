//go:build linux

package engine

import (
	"fmt"
	"os"

	"korobok/internal/container/namespace"

	"golang.org/x/sys/unix"
)

// kernelDeps wires the container side to the real kernel.
func kernelDeps() ContainerDeps {
	return ContainerDeps{
		Mounter:      namespace.KernelMounter{},
		SwitchToRoot: switchToRoot,
		SetHostname: func(name string) error {
			return unix.Sethostname([]byte(name))
		},
		LoadSeccomp: loadSeccomp,
		Executor:    CommandExecutor{},
		Environ:     os.Environ,
	}
}

// switchToRoot drops to gid 0 first, since changing the group is no longer
// allowed once the uid is unprivileged.
func switchToRoot() error {
	if err := unix.Setgid(0); err != nil {
		return fmt.Errorf("setgid(0): %w", err)
	}
	if err := unix.Setuid(0); err != nil {
		return fmt.Errorf("setuid(0): %w", err)
	}
	return nil
}
