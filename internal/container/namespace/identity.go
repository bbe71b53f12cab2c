// Package namespace prepares user and mount namespaces for a container.
package namespace

import (
	"os"
	"path/filepath"
	"strconv"

	appErr "korobok/pkg/errors"
)

const stageSetup = "setup"

// FileWriter writes data to an existing kernel control file in one call.
type FileWriter func(path string, data []byte) error

// IdentityMapper writes the uid/gid maps of a freshly created user namespace.
type IdentityMapper struct {
	procRoot string
	write    FileWriter
}

// MapperOption customizes an IdentityMapper.
type MapperOption func(*IdentityMapper)

// WithProcRoot points the mapper at an alternative proc tree.
func WithProcRoot(root string) MapperOption {
	return func(m *IdentityMapper) {
		m.procRoot = root
	}
}

// WithFileWriter replaces the writer used for the control files.
func WithFileWriter(w FileWriter) MapperOption {
	return func(m *IdentityMapper) {
		m.write = w
	}
}

// NewIdentityMapper returns a mapper writing under /proc.
func NewIdentityMapper(opts ...MapperOption) *IdentityMapper {
	m := &IdentityMapper{procRoot: "/proc", write: writeControlFile}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Map installs uidMap and gidMap for the process pid. The kernel accepts
// each map exactly once, from outside the namespace, and an unprivileged gid
// map only after setgroups has been denied, hence the fixed order.
func (m *IdentityMapper) Map(pid int, uidMap, gidMap string) error {
	steps := []struct {
		file string
		data string
	}{
		{"uid_map", uidMap},
		{"setgroups", "deny"},
		{"gid_map", gidMap},
	}
	dir := filepath.Join(m.procRoot, strconv.Itoa(pid))
	for _, s := range steps {
		if err := m.write(filepath.Join(dir, s.file), []byte(s.data)); err != nil {
			return appErr.Staged(err, appErr.IoFailure, stageSetup, s.file, "could not write to %s", s.file)
		}
	}
	return nil
}

func writeControlFile(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
