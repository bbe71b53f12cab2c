//go:build linux

package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"syscall"

	"korobok/internal/container/reexec"
	"korobok/pkg/utils/logger"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

// containerCaps survive the exec into the new user namespace. The exec runs
// before setup has written the id maps, so the unmapped process would
// otherwise start with no capabilities and could not re-root itself.
var containerCaps = []uintptr{
	unix.CAP_SYS_ADMIN,
	unix.CAP_SETUID,
	unix.CAP_SETGID,
	unix.CAP_DAC_OVERRIDE,
}

// ReexecSpawner starts the container side by re-executing the current binary
// under InitName with a single clone carrying every namespace flag.
type ReexecSpawner struct{}

func defaultSpawner() Spawner {
	return ReexecSpawner{}
}

func (ReexecSpawner) Spawn(ctx context.Context, flags uintptr, req InitRequest, ends ContainerEnds) (Process, error) {
	defer ends.Close()

	reqR, reqW, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("create request pipe: %w", err)
	}
	reportR, reportW, err := os.Pipe()
	if err != nil {
		_ = reqR.Close()
		_ = reqW.Close()
		return nil, fmt.Errorf("create report pipe: %w", err)
	}

	cmd := reexec.Command(InitName)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Env = os.Environ()
	// Order fixes the descriptor numbers seen by the container side.
	cmd.ExtraFiles = []*os.File{reqR, ends.In, ends.Out, reportW}
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Cloneflags: flags,
		Pdeathsig:  syscall.SIGKILL,
	}
	if flags&unix.CLONE_NEWUSER != 0 {
		cmd.SysProcAttr.AmbientCaps = containerCaps
	}
	startErr := cmd.Start()
	_ = reqR.Close()
	_ = reportW.Close()
	if startErr != nil {
		_ = reqW.Close()
		_ = reportR.Close()
		return nil, fmt.Errorf("start container process: %w", startErr)
	}

	go jsonToPipe(ctx, reqW, req)
	return &reexecProcess{cmd: cmd, report: reportR}, nil
}

func jsonToPipe(ctx context.Context, w *os.File, req InitRequest) {
	defer w.Close()
	if err := json.NewEncoder(w).Encode(req); err != nil {
		logger.Warn(ctx, "failed to send init request", zap.Error(err))
	}
}

type reexecProcess struct {
	cmd    *exec.Cmd
	report *os.File
}

func (p *reexecProcess) Pid() int {
	return p.cmd.Process.Pid
}

// Wait collects the failure report, if any, and reaps the process. The
// report pipe reaches EOF once the container side is gone.
func (p *reexecProcess) Wait() error {
	report, readErr := readReport(p.report)
	_ = p.report.Close()
	waitErr := p.cmd.Wait()
	if report != nil {
		return report
	}
	if waitErr != nil {
		return waitErr
	}
	return readErr
}

func (p *reexecProcess) Kill() error {
	if err := p.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}
	return nil
}
