//go:build linux

package engine_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"korobok/internal/container/engine"
	"korobok/internal/container/reexec"
	"korobok/internal/container/spec"
	appErr "korobok/pkg/errors"
)

// The test binary doubles as the container side when re-executed.
func TestMain(m *testing.M) {
	if reexec.Init() {
		return
	}
	os.Exit(m.Run())
}

func requireUserNamespaces(t *testing.T) {
	t.Helper()
	if readSysctl("/proc/sys/user/max_user_namespaces") == "0" {
		t.Skip("user namespaces are disabled")
	}
	if os.Geteuid() != 0 {
		if readSysctl("/proc/sys/kernel/unprivileged_userns_clone") == "0" {
			t.Skip("unprivileged user namespaces are disabled")
		}
		if readSysctl("/proc/sys/kernel/apparmor_restrict_unprivileged_userns") == "1" {
			t.Skip("unprivileged user namespaces are restricted")
		}
	}
}

func readSysctl(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// userNetSpec isolates users and network only, so nothing needs a rootfs and
// the host pid table stays shared.
func userNetSpec(out string) spec.RunSpec {
	return spec.RunSpec{
		UIDMap:     spec.RootMapping(os.Geteuid()),
		GIDMap:     spec.RootMapping(os.Getegid()),
		Namespaces: spec.Namespaces{User: true, Net: true, UTS: true},
		Hostname:   "korobok-test",
		UnsetEnv:   true,
		Env: []spec.EnvVar{
			{Name: "PATH", Value: "/usr/bin:/bin"},
			{Name: "OUT", Value: out},
		},
		Detach: true,
	}
}

func runReexec(t *testing.T, rs spec.RunSpec, cmd []string) error {
	t.Helper()
	err := engine.New().Run(context.Background(), rs, cmd)
	if e := appErr.GetError(err); e != nil {
		if e.Code == appErr.SpawnFailed {
			t.Skipf("cannot create namespaces here: %v", err)
		}
		switch e.Step() {
		case "uid_map", "setgroups", "gid_map":
			t.Skipf("cannot write identity maps here: %v", err)
		}
	}
	return err
}

func TestReexecRunsCommandInsideNamespaces(t *testing.T) {
	requireUserNamespaces(t)
	out := filepath.Join(t.TempDir(), "out")

	script := `printf '%s %s [%s]' "$(id -u)" "$(cat /proc/sys/kernel/hostname)" "$HOME" > "$OUT"`
	if err := runReexec(t, userNetSpec(out), []string{"/bin/sh", "-c", script}); err != nil {
		t.Fatalf("run: %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if got, want := string(data), "0 korobok-test []"; got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestReexecCarriesContainerReport(t *testing.T) {
	requireUserNamespaces(t)
	rs := userNetSpec(filepath.Join(t.TempDir(), "out"))

	err := runReexec(t, rs, []string{"/bin/sh", "-c", "exit 3"})
	e := appErr.GetError(err)
	if e == nil || e.Code != appErr.CommandFailed {
		t.Fatalf("expected command failure, got %v", err)
	}
	if e.Stage() != "container" || e.Step() != "exec" {
		t.Fatalf("unexpected stage/step: %q/%q", e.Stage(), e.Step())
	}
	if code, _ := e.Details["exit_code"].(float64); code != 3 {
		t.Fatalf("unexpected exit code detail: %v", e.Details)
	}
}

func TestReexecTimeoutKillsEntryCommand(t *testing.T) {
	requireUserNamespaces(t)
	out := filepath.Join(t.TempDir(), "pid")
	rs := userNetSpec(out)
	rs.RendezvousTimeout = 3 * time.Second

	err := runReexec(t, rs, []string{"/bin/sh", "-c", `echo $$ > "$OUT"; exec sleep 60`})
	if appErr.GetCode(err) != appErr.Timeout {
		t.Fatalf("expected timeout, got %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("entry command never started: %v", err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		t.Fatalf("parse pid %q: %v", data, err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for !processGone(pid) {
		if time.Now().After(deadline) {
			t.Fatalf("entry command %d outlived the container side", pid)
		}
		time.Sleep(20 * time.Millisecond)
	}
}

// processGone treats zombies as gone; reaping them is up to their new parent.
func processGone(pid int) bool {
	data, err := os.ReadFile(fmt.Sprintf("/proc/%d/stat", pid))
	if err != nil {
		return true
	}
	stat := string(data)
	i := strings.LastIndexByte(stat, ')')
	if i < 0 || i+2 >= len(stat) {
		return true
	}
	state := stat[i+2]
	return state == 'Z' || state == 'X'
}
