package engine

import (
	"context"

	"korobok/internal/container/channel"
	"korobok/internal/container/namespace"
	appErr "korobok/pkg/errors"
	"korobok/pkg/utils/logger"

	"go.uber.org/zap"
)

// Executor runs the entry command.
type Executor interface {
	Execute(ctx context.Context, argv []string, env []string, detach bool) error
}

// ContainerDeps are the kernel-facing operations of the container side.
type ContainerDeps struct {
	Mounter namespace.Mounter
	// SwitchToRoot sets the real and effective uid/gid to 0.
	SwitchToRoot func() error
	SetHostname  func(name string) error
	LoadSeccomp  func(profilePath string) error
	Executor     Executor
	// Environ returns the inherited environment.
	Environ func() []string
}

// Container is the container side of a run.
type Container struct {
	deps ContainerDeps
}

// NewContainer builds the container side from its dependencies.
func NewContainer(deps ContainerDeps) *Container {
	return &Container{deps: deps}
}

// Run executes the container sequence. It blocks until setup sends "ready";
// the launcher bounds that wait by killing this side.
func (c *Container) Run(ctx context.Context, req InitRequest, ch *channel.Channel) error {
	rs := req.Spec
	err := ch.WaitFor(channel.Ready, func(tok channel.Token) {
		logger.Warn(ctx, "ignoring unexpected control token",
			zap.String("token", string(tok)), zap.Int("code", int(appErr.ProtocolDeviation)))
	})
	if err != nil {
		return appErr.Staged(err, appErr.GetCode(err), stageContainer, "wait_ready", "could not read message from setup")
	}

	if rs.Namespaces.Mount {
		if err := namespace.PrepareMount(c.deps.Mounter, rs.MountPoint); err != nil {
			return err
		}
		logger.Debug(ctx, "mount namespace prepared", zap.String("root", rs.MountPoint))
	}

	if rs.Namespaces.UTS && rs.Hostname != "" {
		if err := c.deps.SetHostname(rs.Hostname); err != nil {
			return appErr.Staged(err, appErr.SyscallFailure, stageContainer, "sethostname", "could not set hostname %q", rs.Hostname)
		}
	}

	if err := c.deps.SwitchToRoot(); err != nil {
		// Without a user namespace only a privileged caller can become root;
		// anyone else keeps their identity.
		if rs.Namespaces.User {
			return appErr.Staged(err, appErr.SyscallFailure, stageContainer, "switch_to_root", "could not become root in the container")
		}
		logger.Warn(ctx, "keeping caller identity", zap.Error(err))
	}

	if rs.SeccompProfile != "" {
		if err := c.deps.LoadSeccomp(rs.SeccompProfile); err != nil {
			return appErr.Staged(err, appErr.SyscallFailure, stageContainer, "seccomp", "could not load seccomp profile")
		}
	}

	// The entry command only runs when the network is isolated. Runs that
	// share the host network complete the rendezvous without executing it.
	if rs.Namespaces.Net {
		env := namespace.BuildEnv(c.deps.Environ(), rs.UnsetEnv, rs.Env)
		logger.Debug(ctx, "executing entry command", zap.Strings("cmd", req.Cmd), zap.Bool("detach", rs.Detach))
		if err := c.deps.Executor.Execute(ctx, req.Cmd, env, rs.Detach); err != nil {
			// A non-zero exit fails the run; "finish" is only sent after success.
			return appErr.Staged(err, appErr.GetCode(err), stageContainer, "exec", "could not run entry command")
		}
	} else {
		logger.Info(ctx, "network isolation disabled, entry command not executed", zap.Strings("cmd", req.Cmd))
	}

	if err := ch.Send(channel.Finish); err != nil {
		return appErr.Staged(err, appErr.IoFailure, stageContainer, "send_finish", "could not send finish message to setup")
	}
	return nil
}
