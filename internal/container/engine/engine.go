// Package engine launches a command inside freshly created namespaces.
//
// A run has two sides. The setup side stays in the caller's namespaces,
// writes the identity maps of the new user namespace and then waits. The
// container side starts inside the new namespaces, waits until setup says
// "ready", re-roots and drops to root, runs the command and says "finish".
package engine

import (
	"context"
	"os"
	"sync/atomic"
	"time"

	"korobok/internal/container/channel"
	"korobok/internal/container/namespace"
	"korobok/internal/container/rundir"
	"korobok/internal/container/spec"
	appErr "korobok/pkg/errors"
	"korobok/pkg/utils/contextkey"
	"korobok/pkg/utils/logger"

	"go.uber.org/zap"
)

const (
	stageSetup     = "setup"
	stageContainer = "container"
)

// IdentityMapper writes the id maps of the container's user namespace.
type IdentityMapper interface {
	Map(pid int, uidMap, gidMap string) error
}

// Engine runs containers. It holds no per-run state and may be reused.
type Engine struct {
	spawner   Spawner
	mapper    IdentityMapper
	logConfig logger.Config
}

// Option customizes an Engine.
type Option func(*Engine)

// WithSpawner replaces the process spawner.
func WithSpawner(s Spawner) Option {
	return func(e *Engine) {
		e.spawner = s
	}
}

// WithIdentityMapper replaces the id-map writer.
func WithIdentityMapper(m IdentityMapper) Option {
	return func(e *Engine) {
		e.mapper = m
	}
}

// WithLoggerConfig sets the logger configuration handed to the container side.
func WithLoggerConfig(cfg logger.Config) Option {
	return func(e *Engine) {
		e.logConfig = cfg
	}
}

// New creates an engine that re-executes the current binary as the container side.
func New(opts ...Option) *Engine {
	e := &Engine{
		spawner: defaultSpawner(),
		mapper:  namespace.NewIdentityMapper(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run executes cmd in a container described by rs and returns once the
// container side has exited. The returned error names the deepest failing
// step: the container's own report when there is one, else the setup failure.
func (e *Engine) Run(ctx context.Context, rs spec.RunSpec, cmd []string) error {
	if len(cmd) == 0 || cmd[0] == "" {
		return appErr.New(appErr.ConfigurationError).WithMessage("invalid configuration: a command is required")
	}
	if err := rs.Validate(); err != nil {
		return err
	}

	runID, _ := ctx.Value(contextkey.RunID).(string)
	if runID == "" {
		id, err := rundir.RandomID()
		if err != nil {
			return appErr.Wrapf(err, appErr.InternalError, "generate run id")
		}
		runID = id
		ctx = contextkey.WithRunID(ctx, runID)
	}

	flags := CloneFlags(rs.Namespaces)
	toContainerR, toContainerW, err := os.Pipe()
	if err != nil {
		return appErr.Staged(err, appErr.IoFailure, stageSetup, "pipe", "could not create IPC pipe")
	}
	toSetupR, toSetupW, err := os.Pipe()
	if err != nil {
		_ = toContainerR.Close()
		_ = toContainerW.Close()
		return appErr.Staged(err, appErr.IoFailure, stageSetup, "pipe", "could not create IPC pipe")
	}
	ch := channel.New(toSetupR, toContainerW)
	defer ch.Close()

	req := InitRequest{RunID: runID, Spec: rs, Cmd: cmd, Logger: e.logConfig}
	proc, err := e.spawner.Spawn(ctx, flags, req, ContainerEnds{In: toContainerR, Out: toSetupW})
	if err != nil {
		return appErr.Staged(err, appErr.SpawnFailed, stageSetup, "spawn", "could not spawn container with these options")
	}

	setupCtx := contextkey.WithPID(contextkey.WithStage(ctx, stageSetup), proc.Pid())
	logger.Info(setupCtx, "container process started", zap.Uint64("clone_flags", uint64(flags)))

	var timedOut, cancelled atomic.Bool
	done := make(chan struct{})
	watched := make(chan struct{})
	go func() {
		defer close(watched)
		var expired <-chan time.Time
		if rs.RendezvousTimeout > 0 {
			timer := time.NewTimer(rs.RendezvousTimeout)
			defer timer.Stop()
			expired = timer.C
		}
		select {
		case <-ctx.Done():
			cancelled.Store(true)
			_ = proc.Kill()
		case <-expired:
			timedOut.Store(true)
			logger.Warn(setupCtx, "rendezvous timed out, tearing down container", zap.Duration("timeout", rs.RendezvousTimeout))
			_ = proc.Kill()
		case <-done:
		}
	}()

	setupErr := e.setup(setupCtx, rs, proc.Pid(), ch)
	if setupErr != nil {
		_ = proc.Kill()
	}
	waitErr := proc.Wait()
	close(done)
	<-watched

	// A finished rendezvous followed by a clean exit is a success even if the
	// deadline or a cancellation raced with the exit.
	if setupErr == nil && waitErr == nil {
		logger.Info(setupCtx, "container finished")
		return nil
	}
	switch {
	case timedOut.Load():
		return appErr.Staged(setupErr, appErr.Timeout, stageSetup, "wait_finish",
			"container did not finish within %s", rs.RendezvousTimeout)
	case cancelled.Load():
		return appErr.Staged(ctx.Err(), appErr.Timeout, stageSetup, "wait_finish", "run cancelled")
	}
	// A setup failure that did not come from the container going away is the
	// root cause; whatever the killed container reported is a consequence.
	if setupErr != nil && !appErr.Is(setupErr, appErr.PeerClosed) {
		logger.Error(setupCtx, "setup failed", zap.Error(setupErr))
		return setupErr
	}
	if report := appErr.GetError(waitErr); report != nil && report.Stage() == stageContainer {
		logger.Error(setupCtx, "container failed", zap.String("step", report.Step()), zap.Error(report))
		return report
	}
	if setupErr != nil {
		logger.Error(setupCtx, "setup failed", zap.Error(setupErr))
		return setupErr
	}
	return appErr.Staged(waitErr, appErr.SyscallFailure, stageContainer, "exit", "container process exited abnormally")
}

func (e *Engine) setup(ctx context.Context, rs spec.RunSpec, pid int, ch *channel.Channel) error {
	if rs.Namespaces.User {
		if err := e.mapper.Map(pid, rs.UIDMap, rs.GIDMap); err != nil {
			return err
		}
		logger.Debug(ctx, "identity maps written", zap.String("uid_map", rs.UIDMap), zap.String("gid_map", rs.GIDMap))
	}
	if err := ch.Send(channel.Ready); err != nil {
		return appErr.Staged(err, appErr.IoFailure, stageSetup, "send_ready", "could not send ready message to container")
	}
	err := ch.WaitFor(channel.Finish, func(tok channel.Token) {
		logger.Warn(ctx, "ignoring unexpected control token",
			zap.String("token", string(tok)), zap.Int("code", int(appErr.ProtocolDeviation)))
	})
	if err != nil {
		return appErr.Staged(err, appErr.GetCode(err), stageSetup, "wait_finish", "could not read message from container")
	}
	return nil
}
