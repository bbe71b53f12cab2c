//go:build linux

package sys_test

import (
	"errors"
	"path/filepath"
	"testing"

	"korobok/internal/container/sys"
)

func TestPivotRootReportsErrno(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing")
	err := sys.PivotRoot(missing, filepath.Join(missing, "put_old"))
	if err == nil {
		t.Fatalf("expected pivot_root to fail")
	}
	var sysErr *sys.Error
	if !errors.As(err, &sysErr) {
		t.Fatalf("expected *sys.Error, got %T", err)
	}
	if sysErr.Op != "pivot_root" || sysErr.Code == 0 {
		t.Fatalf("unexpected error: %+v", sysErr)
	}
}
