//go:build linux

package engine_test

import (
	"context"
	"fmt"
	"os"

	"korobok/internal/container/engine"
	"korobok/internal/container/reexec"
	"korobok/internal/container/spec"
	appErr "korobok/pkg/errors"
	"korobok/pkg/utils/logger"

	"go.uber.org/zap"
)

// Programs embedding the engine must let the re-executed container side take
// over before anything else runs.
func Example() {
	if reexec.Init() {
		return
	}
	if err := logger.Init(logger.Config{Level: "info", Format: "console"}); err != nil {
		fmt.Fprintf(os.Stderr, "init logger failed: %v\n", err)
		return
	}
	defer func() {
		_ = logger.Sync()
	}()

	rs := spec.RunSpec{
		UIDMap:     spec.RootMapping(os.Geteuid()),
		GIDMap:     spec.RootMapping(os.Getegid()),
		MountPoint: "/srv/rootfs",
		Namespaces: spec.AllNamespaces(),
		UnsetEnv:   true,
		Env:        []spec.EnvVar{{Name: "PATH", Value: "/bin:/usr/bin"}},
	}

	ctx := context.Background()
	err := engine.New().Run(ctx, rs, []string{"/bin/sh", "-c", "id"})
	switch {
	case err == nil:
		logger.Info(ctx, "container finished")
	case appErr.Is(err, appErr.CommandFailed):
		logger.Warn(ctx, "entry command failed", zap.Error(err))
	default:
		fields := []zap.Field{zap.Int("code", int(appErr.GetCode(err))), zap.Error(err)}
		if e := appErr.GetError(err); e != nil {
			fields = append(fields, zap.String("stage", e.Stage()), zap.String("step", e.Step()))
		}
		logger.Error(ctx, "container run failed", fields...)
	}
}
