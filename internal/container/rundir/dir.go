// Package rundir manages ephemeral, uniquely named run directories.
package rundir

import (
	"encoding/hex"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	appErr "korobok/pkg/errors"

	"github.com/google/uuid"
)

const maxCreateAttempts = 64

// IDGenerator returns a fresh directory identifier.
type IDGenerator func() (string, error)

// RandomID returns 128 random bits as 32 lowercase hex characters.
func RandomID() (string, error) {
	u, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(u[:]), nil
}

// Option customizes Create.
type Option func(*options)

type options struct {
	gen  IDGenerator
	perm fs.FileMode
}

// WithIDGenerator overrides the identifier source.
func WithIDGenerator(gen IDGenerator) Option {
	return func(o *options) {
		o.gen = gen
	}
}

// WithPerm sets the permission bits of the created directory.
func WithPerm(perm fs.FileMode) Option {
	return func(o *options) {
		o.perm = perm
	}
}

// Dir is an exclusively owned directory under a caller-chosen root.
type Dir struct {
	ID string

	path             string
	destroyOnRelease bool
}

// Create makes <root>/<id> with a fresh identifier, drawing a new one
// whenever the candidate already exists.
func Create(root string, opts ...Option) (*Dir, error) {
	o := options{gen: RandomID, perm: 0o755}
	for _, opt := range opts {
		opt(&o)
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, appErr.Wrapf(err, appErr.IoFailure, "create run root %s", root)
	}
	for attempt := 0; attempt < maxCreateAttempts; attempt++ {
		id, err := o.gen()
		if err != nil {
			return nil, appErr.Wrapf(err, appErr.InternalError, "generate run id")
		}
		path := filepath.Join(root, id)
		if _, err := os.Lstat(path); err == nil {
			continue
		} else if !errors.Is(err, fs.ErrNotExist) {
			return nil, appErr.Wrapf(err, appErr.IoFailure, "stat %s", path)
		}
		if err := os.Mkdir(path, o.perm); err != nil {
			if errors.Is(err, fs.ErrExist) {
				continue
			}
			return nil, appErr.Wrapf(err, appErr.IoFailure, "create run dir %s", path)
		}
		return &Dir{ID: id, path: path}, nil
	}
	return nil, appErr.Newf(appErr.IoFailure, "no free run id under %s after %d attempts", root, maxCreateAttempts)
}

// Path returns the directory path, or "" once closed.
func (d *Dir) Path() string {
	return d.path
}

// Join returns a path inside the directory.
func (d *Dir) Join(elem ...string) string {
	return filepath.Join(append([]string{d.path}, elem...)...)
}

// SetDestroyOnRelease controls whether Release removes the directory.
func (d *Dir) SetDestroyOnRelease(flag bool) {
	d.destroyOnRelease = flag
}

// Close removes the directory tree. Closing twice is an InvalidInput error.
func (d *Dir) Close() error {
	if d.path == "" {
		return appErr.Newf(appErr.InvalidInput, "run dir %s is already closed", d.ID)
	}
	path := d.path
	d.path = ""
	if err := os.RemoveAll(path); err != nil {
		return appErr.Wrapf(err, appErr.IoFailure, "remove run dir %s", path)
	}
	return nil
}

// Release is meant for defer: when destroy-on-release is set it removes the
// tree and discards any error.
func (d *Dir) Release() {
	if !d.destroyOnRelease || d.path == "" {
		return
	}
	_ = os.RemoveAll(d.path)
	d.path = ""
}
