// Package spec defines the container run configuration and its validation rules.
package spec

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	appErr "korobok/pkg/errors"
)

// Namespaces selects which kernel namespaces are created for the container.
// Each flag maps to exactly one clone flag.
type Namespaces struct {
	Mount bool `json:"mount" yaml:"mount"`
	UTS   bool `json:"uts" yaml:"uts"`
	User  bool `json:"user" yaml:"user"`
	Net   bool `json:"net" yaml:"net"`
	IPC   bool `json:"ipc" yaml:"ipc"`
	PID   bool `json:"pid" yaml:"pid"`
}

// AllNamespaces isolates everything the engine supports.
func AllNamespaces() Namespaces {
	return Namespaces{Mount: true, UTS: true, User: true, Net: true, IPC: true, PID: true}
}

// Validate reports unsupported flag combinations.
//
// A private mount namespace requires a private pid namespace: the mount
// sequence mounts a fresh procfs, which the kernel refuses (EPERM) unless the
// caller's user namespace owns the current pid namespace, and which would
// otherwise show the host process table. Every other combination is valid.
func (n Namespaces) Validate() error {
	if n.Mount && !n.PID {
		return appErr.New(appErr.InvalidNamespaces).
			WithMessage("invalid configuration: mount isolation requires pid isolation").
			WithDetail("field", "namespaces")
	}
	return nil
}

// EnvVar is one explicit environment override.
type EnvVar struct {
	Name  string `json:"name" yaml:"name"`
	Value string `json:"value" yaml:"value"`
}

// String renders the override in NAME=VALUE form.
func (e EnvVar) String() string {
	return e.Name + "=" + e.Value
}

// RunSpec is the immutable policy for a single container run.
type RunSpec struct {
	// UIDMap and GIDMap hold raw kernel id-map lines ("inner outer length").
	UIDMap string `json:"uidMap"`
	GIDMap string `json:"gidMap"`
	// MountPoint becomes the container root when Namespaces.Mount is set.
	MountPoint string     `json:"mountPoint"`
	Namespaces Namespaces `json:"namespaces"`
	// UnsetEnv clears the inherited environment before Env is applied.
	UnsetEnv bool     `json:"unsetEnv"`
	Env      []EnvVar `json:"env"`
	// Detach captures the entry command's stdio instead of inheriting it.
	Detach bool `json:"detach"`

	Hostname       string `json:"hostname,omitempty"`
	SeccompProfile string `json:"seccompProfile,omitempty"`
	// RendezvousTimeout bounds the launcher's wait for the container to
	// finish. Zero blocks until the container reports or exits.
	RendezvousTimeout time.Duration `json:"rendezvousTimeout,omitempty"`
}

// Validate checks the invariants the engine relies on. It never touches
// kernel state beyond a stat of the mount point.
func (r RunSpec) Validate() error {
	if err := r.Namespaces.Validate(); err != nil {
		return err
	}
	if r.Namespaces.User {
		if _, err := ParseIDMap(r.UIDMap); err != nil {
			return appErr.Wrapf(err, appErr.InvalidIDMap, "invalid configuration: uid map").WithDetail("field", "uidMap")
		}
		if _, err := ParseIDMap(r.GIDMap); err != nil {
			return appErr.Wrapf(err, appErr.InvalidIDMap, "invalid configuration: gid map").WithDetail("field", "gidMap")
		}
	}
	if r.Namespaces.Mount {
		if r.MountPoint == "" {
			return appErr.ConfigError("mountPoint", "required when mount isolation is enabled")
		}
		info, err := os.Stat(r.MountPoint)
		if err != nil {
			return appErr.Wrapf(err, appErr.MountPointMissing, "invalid configuration: mount point %s", r.MountPoint).
				WithDetail("field", "mountPoint")
		}
		if !info.IsDir() {
			return appErr.ConfigError("mountPoint", fmt.Sprintf("%s is not a directory", r.MountPoint))
		}
	}
	if r.Hostname != "" && !r.Namespaces.UTS {
		return appErr.ConfigError("hostname", "requires uts isolation")
	}
	if r.RendezvousTimeout < 0 {
		return appErr.ConfigError("rendezvousTimeout", "must not be negative")
	}
	for _, kv := range r.Env {
		if kv.Name == "" || strings.ContainsAny(kv.Name, "=\x00") {
			return appErr.ConfigError("env", fmt.Sprintf("invalid variable name %q", kv.Name))
		}
	}
	return nil
}

// IDMapping is one parsed id-map line.
type IDMapping struct {
	Inner  uint32
	Outer  uint32
	Length uint32
}

// ParseIDMap parses raw id-map text. Lines are "inner outer length"
// separated by newlines; blank lines are skipped but at least one entry is
// required.
func ParseIDMap(raw string) ([]IDMapping, error) {
	var out []IDMapping
	for i, line := range strings.Split(raw, "\n") {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		if len(fields) != 3 {
			return nil, fmt.Errorf("line %d: expected 3 fields, got %d", i+1, len(fields))
		}
		var vals [3]uint32
		for j, f := range fields {
			v, err := strconv.ParseUint(f, 10, 32)
			if err != nil {
				return nil, fmt.Errorf("line %d: field %d: %w", i+1, j+1, err)
			}
			vals[j] = uint32(v)
		}
		if vals[2] == 0 {
			return nil, fmt.Errorf("line %d: length must be positive", i+1)
		}
		out = append(out, IDMapping{Inner: vals[0], Outer: vals[1], Length: vals[2]})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("empty id map")
	}
	return out, nil
}

// RootMapping returns the single-entry map that makes id appear as root
// inside the namespace.
func RootMapping(id int) string {
	return fmt.Sprintf("0 %d 1", id)
}
