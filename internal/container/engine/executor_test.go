//go:build linux

package engine

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"testing"

	appErr "korobok/pkg/errors"
)

func TestCommandExecutorUsesExactEnv(t *testing.T) {
	out := filepath.Join(t.TempDir(), "env")
	argv := []string{"/bin/sh", "-c", "env > " + out}
	if err := (CommandExecutor{}).Execute(context.Background(), argv, []string{"ONLY=1"}, true); err != nil {
		t.Fatalf("execute: %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(data), "ONLY=1") || strings.Contains(string(data), "HOME=") {
		t.Fatalf("unexpected environment:\n%s", data)
	}
}

func TestCommandExecutorReportsExitStatus(t *testing.T) {
	err := (CommandExecutor{}).Execute(context.Background(), []string{"/bin/sh", "-c", "exit 3"}, nil, true)
	e := appErr.GetError(err)
	if e == nil || e.Code != appErr.CommandFailed {
		t.Fatalf("expected command failure, got %v", err)
	}
	if e.Details["exit_code"] != 3 {
		t.Fatalf("unexpected exit code detail: %v", e.Details)
	}
	if got := err.Error(); got != "entry command failed: exit status 3" {
		t.Fatalf("unexpected message %q", got)
	}
}

func TestEntryCommandDiesWithContainerSide(t *testing.T) {
	cmd := entryCommand(context.Background(), []string{"/bin/true"}, nil)
	if cmd.SysProcAttr == nil || cmd.SysProcAttr.Pdeathsig != syscall.SIGKILL {
		t.Fatalf("entry command must be killed with its parent: %+v", cmd.SysProcAttr)
	}
	if cmd.Env == nil || len(cmd.Env) != 0 {
		t.Fatalf("nil env must not inherit the caller's: %v", cmd.Env)
	}
}

func TestCommandExecutorMissingBinary(t *testing.T) {
	err := (CommandExecutor{}).Execute(context.Background(), []string{"/nonexistent/binary"}, nil, true)
	if appErr.GetCode(err) != appErr.IoFailure {
		t.Fatalf("expected io failure, got %v", err)
	}
}

func TestCaptureBufferBoundsRetainedOutput(t *testing.T) {
	c := &captureBuffer{limit: 4}
	for _, chunk := range []string{"ab", "cdef", "gh"} {
		n, err := c.Write([]byte(chunk))
		if err != nil || n != len(chunk) {
			t.Fatalf("write %q: n=%d err=%v", chunk, n, err)
		}
	}
	if c.String() != "abcd" || c.total != 8 {
		t.Fatalf("got %q total %d", c.String(), c.total)
	}
}
