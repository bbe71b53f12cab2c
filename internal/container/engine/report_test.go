package engine

import (
	"bytes"
	"errors"
	"testing"

	appErr "korobok/pkg/errors"
)

func TestReportCarriesStageAndCause(t *testing.T) {
	var buf bytes.Buffer
	src := appErr.Staged(errors.New("operation not permitted"), appErr.SyscallFailure, stageContainer, "pivot_root", "could not pivot root")
	if err := writeReport(&buf, src); err != nil {
		t.Fatalf("write: %v", err)
	}

	got, err := readReport(&buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got.Code != appErr.SyscallFailure || got.Stage() != stageContainer || got.Step() != "pivot_root" {
		t.Fatalf("unexpected report: %+v", got)
	}
	if got.Error() != src.Error() {
		t.Fatalf("message changed in transit: got %q want %q", got.Error(), src.Error())
	}
}

func TestReportKeepsInnerDetails(t *testing.T) {
	var buf bytes.Buffer
	inner := appErr.Wrapf(errors.New("exit status 3"), appErr.CommandFailed, "entry command failed").
		WithDetail("exit_code", 3)
	src := appErr.Staged(inner, appErr.CommandFailed, stageContainer, "exec", "could not run entry command")
	if err := writeReport(&buf, src); err != nil {
		t.Fatalf("write: %v", err)
	}

	got, err := readReport(&buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got.Step() != "exec" || got.Details["exit_code"] != float64(3) {
		t.Fatalf("unexpected details: %v", got.Details)
	}
}

func TestReportForPlainError(t *testing.T) {
	var buf bytes.Buffer
	if err := writeReport(&buf, errors.New("boom")); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := readReport(&buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got.Code != appErr.InternalError || got.Stage() != stageContainer || got.Error() != "boom" {
		t.Fatalf("unexpected report: %+v", got)
	}
}

func TestEmptyReportMeansSuccess(t *testing.T) {
	got, err := readReport(&bytes.Buffer{})
	if got != nil || err != nil {
		t.Fatalf("expected no report, got %v %v", got, err)
	}
}
