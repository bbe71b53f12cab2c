//go:build linux

// Package sys adapts raw kernel primitives into typed errors.
package sys

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

// Error is a failed system call with its raw error number.
type Error struct {
	Op   string
	Code int
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s failed: code %d: %v", e.Op, e.Code, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// PivotRoot moves the root mount to putOld and makes newRoot the new root.
// No retry is attempted.
func PivotRoot(newRoot, putOld string) error {
	if err := unix.PivotRoot(newRoot, putOld); err != nil {
		return wrap("pivot_root", err)
	}
	return nil
}

func wrap(op string, err error) error {
	var errno unix.Errno
	if errors.As(err, &errno) {
		return &Error{Op: op, Code: int(errno), Err: errno}
	}
	return &Error{Op: op, Code: -1, Err: err}
}
