//go:build linux

package engine

import (
	"korobok/internal/container/spec"

	"golang.org/x/sys/unix"
)

// CloneFlags maps the enabled namespaces to clone(2) flags, one flag each.
func CloneFlags(ns spec.Namespaces) uintptr {
	var flags uintptr
	if ns.Mount {
		flags |= unix.CLONE_NEWNS
	}
	if ns.UTS {
		flags |= unix.CLONE_NEWUTS
	}
	if ns.User {
		flags |= unix.CLONE_NEWUSER
	}
	if ns.Net {
		flags |= unix.CLONE_NEWNET
	}
	if ns.IPC {
		flags |= unix.CLONE_NEWIPC
	}
	if ns.PID {
		flags |= unix.CLONE_NEWPID
	}
	return flags
}
