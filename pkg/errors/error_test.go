package errors_test

import (
	stderrors "errors"
	"testing"

	appErr "korobok/pkg/errors"
)

func TestErrorRendersCauseChain(t *testing.T) {
	cause := stderrors.New("permission denied")
	err := appErr.Wrapf(cause, appErr.IoFailure, "could not write to uid_map")

	if got, want := err.Error(), "could not write to uid_map: permission denied"; got != want {
		t.Fatalf("unexpected message: got %q want %q", got, want)
	}
	if !stderrors.Is(err, cause) {
		t.Fatalf("expected cause to be reachable through Unwrap")
	}
}

func TestStagedRecordsStageAndStep(t *testing.T) {
	err := appErr.Staged(stderrors.New("EPERM"), appErr.SyscallFailure, "container", "pivot_root", "could not pivot root")

	if got, want := err.Error(), "[container] could not pivot root: EPERM"; got != want {
		t.Fatalf("unexpected message: got %q want %q", got, want)
	}
	if err.Stage() != "container" || err.Step() != "pivot_root" {
		t.Fatalf("unexpected stage/step: %q/%q", err.Stage(), err.Step())
	}
}

func TestGetCodeAndIs(t *testing.T) {
	inner := appErr.New(appErr.PeerClosed)
	outer := appErr.Staged(inner, appErr.IoFailure, "setup", "wait_finish", "could not read message from container")

	cases := []struct {
		name string
		err  error
		code appErr.ErrorCode
	}{
		{name: "nil", err: nil, code: appErr.Success},
		{name: "plain", err: stderrors.New("boom"), code: appErr.InternalError},
		{name: "outermost wins", err: outer, code: appErr.IoFailure},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := appErr.GetCode(tc.err); got != tc.code {
				t.Fatalf("got %d want %d", got, tc.code)
			}
		})
	}

	if !appErr.Is(outer, appErr.PeerClosed) {
		t.Fatalf("expected inner code to be found in the chain")
	}
	if appErr.Is(outer, appErr.Timeout) {
		t.Fatalf("unexpected code match")
	}
}

func TestConfigError(t *testing.T) {
	err := appErr.ConfigError("mountPoint", "required")
	if err.Code != appErr.ConfigurationError {
		t.Fatalf("unexpected code %d", err.Code)
	}
	if got, want := err.Error(), "invalid configuration: mountPoint: required"; got != want {
		t.Fatalf("got %q want %q", got, want)
	}
	if err.Details["field"] != "mountPoint" {
		t.Fatalf("missing field detail: %v", err.Details)
	}
}

func TestExitStatus(t *testing.T) {
	cases := []struct {
		code appErr.ErrorCode
		want int
	}{
		{appErr.Success, 0},
		{appErr.ConfigurationError, 2},
		{appErr.InvalidIDMap, 2},
		{appErr.InvalidInput, 2},
		{appErr.Timeout, 124},
		{appErr.CommandFailed, 126},
		{appErr.SyscallFailure, 1},
		{appErr.PeerClosed, 1},
	}
	for _, tc := range cases {
		if got := tc.code.ExitStatus(); got != tc.want {
			t.Fatalf("code %d: got %d want %d", tc.code, got, tc.want)
		}
	}
}
