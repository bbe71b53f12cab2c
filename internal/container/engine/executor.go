package engine

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"

	appErr "korobok/pkg/errors"
	"korobok/pkg/utils/logger"

	"go.uber.org/zap"
)

const defaultCaptureBytes = 64 * 1024

// CommandExecutor runs the entry command as a child process.
type CommandExecutor struct {
	// CaptureBytes bounds how much detached output is retained for logging.
	CaptureBytes int
}

// Execute runs argv with exactly env. Attached runs share the caller's
// stdio. Detached runs read EOF on stdin and have their output captured and
// dropped; it is not forwarded anywhere.
func (e CommandExecutor) Execute(ctx context.Context, argv []string, env []string, detach bool) error {
	cmd := entryCommand(ctx, argv, env)
	if !detach {
		cmd.Stdin = os.Stdin
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
		return commandErr(cmd.Run())
	}

	limit := e.CaptureBytes
	if limit <= 0 {
		limit = defaultCaptureBytes
	}
	stdout := &captureBuffer{limit: limit}
	stderr := &captureBuffer{limit: limit}
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	err := cmd.Run()
	logger.Debug(ctx, "detached command output discarded",
		zap.Int64("stdout_bytes", stdout.total), zap.Int64("stderr_bytes", stderr.total))
	return commandErr(err)
}

// entryCommand builds the entry command. It dies with the container side, so
// tearing that side down also stops the command when no pid namespace does.
func entryCommand(ctx context.Context, argv []string, env []string) *exec.Cmd {
	if env == nil {
		// A nil Env would inherit ours.
		env = []string{}
	}
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Env = env
	cmd.SysProcAttr = entryProcAttr()
	return cmd
}

func commandErr(err error) error {
	if err == nil {
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return appErr.Wrapf(err, appErr.CommandFailed, "entry command failed").
			WithDetail("exit_code", exitErr.ExitCode())
	}
	return appErr.Wrapf(err, appErr.IoFailure, "start entry command")
}

// captureBuffer keeps the first limit bytes and counts the rest.
type captureBuffer struct {
	buf   bytes.Buffer
	limit int
	total int64
}

func (c *captureBuffer) Write(p []byte) (int, error) {
	c.total += int64(len(p))
	if room := c.limit - c.buf.Len(); room > 0 {
		if len(p) > room {
			c.buf.Write(p[:room])
		} else {
			c.buf.Write(p)
		}
	}
	return len(p), nil
}

func (c *captureBuffer) String() string {
	return c.buf.String()
}
