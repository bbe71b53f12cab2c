//go:build linux

package engine

import (
	"context"
	"encoding/json"
	"os"

	"korobok/internal/container/channel"
	"korobok/internal/container/reexec"
	appErr "korobok/pkg/errors"
	"korobok/pkg/utils/contextkey"
	"korobok/pkg/utils/logger"

	"golang.org/x/sys/unix"
)

// InitName selects the container side when the binary re-executes itself.
const InitName = "korobok-init"

// Descriptors handed to the container side, in ExtraFiles order.
const (
	requestFD    = 3
	controlInFD  = 4
	controlOutFD = 5
	reportFD     = 6
)

func init() {
	reexec.Register(InitName, containerMain)
}

func containerMain() {
	// None of these may leak into the entry command.
	for fd := requestFD; fd <= reportFD; fd++ {
		unix.CloseOnExec(fd)
	}
	report := os.NewFile(reportFD, "report")
	if err := runContainer(); err != nil {
		_ = writeReport(report, err)
		_ = report.Close()
		_ = logger.Sync()
		os.Exit(1)
	}
	_ = report.Close()
	_ = logger.Sync()
	os.Exit(0)
}

func runContainer() error {
	reqFile := os.NewFile(requestFD, "init-request")
	var req InitRequest
	err := json.NewDecoder(reqFile).Decode(&req)
	_ = reqFile.Close()
	if err != nil {
		return appErr.Staged(err, appErr.IoFailure, stageContainer, "read_request", "could not read init request")
	}

	logCfg := req.Logger
	if logCfg.OutputPath == "stdout" {
		logCfg.OutputPath = "stderr"
	}
	if err := logger.Init(logCfg); err != nil {
		return appErr.Staged(err, appErr.ConfigurationError, stageContainer, "init_logger", "could not initialize logger")
	}

	ctx := contextkey.WithStage(contextkey.WithRunID(context.Background(), req.RunID), stageContainer)
	ch := channel.New(os.NewFile(controlInFD, "control-in"), os.NewFile(controlOutFD, "control-out"))
	defer ch.Close()
	return NewContainer(kernelDeps()).Run(ctx, req, ch)
}
