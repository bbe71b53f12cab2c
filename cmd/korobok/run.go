package main

import (
	"context"

	"korobok/internal/container/rundir"
	"korobok/internal/container/spec"
	appErr "korobok/pkg/errors"
	"korobok/pkg/utils/contextkey"
	"korobok/pkg/utils/logger"

	"go.uber.org/zap"
)

// containerRunner is the part of the engine the CLI drives.
type containerRunner interface {
	Run(ctx context.Context, rs spec.RunSpec, cmd []string) error
}

// executeRun runs the container under the filesystem policy and returns the
// run directory id for run-copy runs.
func executeRun(ctx context.Context, r containerRunner, rs spec.RunSpec, opts runOptions, runDir string) (string, error) {
	if len(opts.Cmd) == 0 || opts.Cmd[0] == "" {
		return "", appErr.New(appErr.ConfigurationError).WithMessage("invalid configuration: a command is required")
	}
	if opts.FS != fsRunCopy {
		return "", r.Run(ctx, rs, opts.Cmd)
	}

	dir, err := rundir.Create(runDir)
	if err != nil {
		return "", err
	}
	dir.SetDestroyOnRelease(true)
	defer dir.Release()

	ctx = contextkey.WithRunID(ctx, dir.ID)
	mountPoint, err := rundir.CopyTree(opts.Image, dir.Path())
	if err != nil {
		return "", appErr.Wrapf(err, appErr.IoFailure, "could not prepare container rootfs from %s", opts.Image)
	}
	logger.Debug(ctx, "container rootfs copied", zap.String("mount_point", mountPoint))
	rs.MountPoint = mountPoint

	if err := r.Run(ctx, rs, opts.Cmd); err != nil {
		return "", err
	}
	if err := dir.Close(); err != nil {
		logger.Warn(ctx, "could not remove run dir", zap.Error(err))
	}
	return dir.ID, nil
}
