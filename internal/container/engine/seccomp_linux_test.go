//go:build linux

package engine

import (
	"os"
	"path/filepath"
	"testing"

	seccomp "github.com/seccomp/libseccomp-golang"
)

func TestParseSeccompAction(t *testing.T) {
	cases := []struct {
		raw     string
		want    seccomp.ScmpAction
		wantErr bool
	}{
		{raw: "SCMP_ACT_ALLOW", want: seccomp.ActAllow},
		{raw: "scmp_act_kill", want: seccomp.ActKillProcess},
		{raw: "SCMP_ACT_KILL_PROCESS", want: seccomp.ActKillProcess},
		{raw: "SCMP_ACT_TRAP", wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.raw, func(t *testing.T) {
			got, err := parseSeccompAction(tc.raw)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error")
				}
				return
			}
			if err != nil || got != tc.want {
				t.Fatalf("got %v %v", got, err)
			}
		})
	}
	errno, err := parseSeccompAction("SCMP_ACT_ERRNO")
	if err != nil || errno.GetAction() != seccomp.ActErrno {
		t.Fatalf("unexpected errno action %v %v", errno, err)
	}
}

func TestShippedProfileBuilds(t *testing.T) {
	cfg, err := readSeccompProfile(filepath.Join("..", "..", "..", "configs", "seccomp", "default.json"))
	if err != nil {
		t.Fatalf("read profile: %v", err)
	}
	filter, err := buildSeccompFilter(cfg)
	if err != nil {
		t.Fatalf("build filter: %v", err)
	}
	filter.Release()
}

func TestBuildRejectsUnknownSyscall(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	data := []byte(`{"defaultAction":"SCMP_ACT_ALLOW","syscalls":[{"names":["not_a_syscall"],"action":"SCMP_ACT_ERRNO"}]}`)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := readSeccompProfile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if _, err := buildSeccompFilter(cfg); err == nil {
		t.Fatalf("expected unknown syscall error")
	}
}
