// Command korobok runs a command inside a minimal Linux container.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"korobok/internal/container/engine"
	"korobok/internal/container/reexec"
	appErr "korobok/pkg/errors"
	"korobok/pkg/utils/logger"

	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

const usage = `usage: korobok [--config FILE] [--run-dir DIR] [--log-level LEVEL] run [flags] [IMAGE] -- CMD [ARGS...]`

func main() {
	if reexec.Init() {
		return
	}
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	global := pflag.NewFlagSet("korobok", pflag.ContinueOnError)
	global.SetInterspersed(false)
	global.SetOutput(stderr)
	configPath := global.String("config", "", "Path to config file (default "+defaultConfigPath+" when present)")
	runDir := global.String("run-dir", "", "Where container rootfs copies are created")
	logLevel := global.String("log-level", "", "Override log level")
	if err := global.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		return appErr.InvalidInput.ExitStatus()
	}

	rest := global.Args()
	if len(rest) == 0 || rest[0] != "run" {
		fmt.Fprintln(stderr, usage)
		return appErr.InvalidInput.ExitStatus()
	}

	appCfg, err := loadAppConfig(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "load app config failed: %v\n", err)
		return appErr.ConfigurationError.ExitStatus()
	}
	if *runDir != "" {
		appCfg.Runtime.RunDir = *runDir
	}
	if *logLevel != "" {
		appCfg.Logger.Level = *logLevel
	}
	if err := logger.Init(appCfg.Logger); err != nil {
		fmt.Fprintf(stderr, "init logger failed: %v\n", err)
		return appErr.ConfigurationError.ExitStatus()
	}
	defer func() {
		_ = logger.Sync()
	}()

	opts, err := parseRunArgs(rest[1:])
	if err != nil {
		fmt.Fprintf(stderr, "korobok: %v\n%s\n", err, usage)
		return appErr.GetCode(err).ExitStatus()
	}
	rs, err := buildRunSpec(opts, appCfg, identity{UID: os.Geteuid(), GID: os.Getegid()})
	if err != nil {
		fmt.Fprintf(stderr, "korobok: %v\n", err)
		return appErr.GetCode(err).ExitStatus()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	eng := engine.New(engine.WithLoggerConfig(appCfg.Logger))
	id, err := executeRun(ctx, eng, rs, opts, appCfg.Runtime.RunDir)
	if err != nil {
		logger.Error(ctx, "run failed", zap.Error(err))
		fmt.Fprintf(stderr, "korobok: %v\n", err)
		return appErr.GetCode(err).ExitStatus()
	}
	if opts.NoDetach && id != "" {
		fmt.Fprintln(stdout, id)
	}
	return 0
}
