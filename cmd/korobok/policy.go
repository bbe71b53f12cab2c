package main

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"korobok/internal/container/spec"
	appErr "korobok/pkg/errors"

	"github.com/google/shlex"
	"github.com/spf13/pflag"
)

const (
	policySandbox = "sandbox"
	policyHost    = "host"

	envClear    = "clear"
	envPreserve = "preserve"

	fsRunCopy = "run-copy"
	fsRun     = "run"
	fsHost    = "host"

	usrRoot = "root"
)

// runOptions are the parsed flags and arguments of "korobok run".
type runOptions struct {
	Env               string
	Net               string
	UTS               string
	IPC               string
	FS                string
	Usr               string
	UIDMap            string
	GIDMap            string
	Environment       []string
	NoDetach          bool
	Hostname          string
	Seccomp           string
	RendezvousTimeout time.Duration
	Command           string

	Image string
	Cmd   []string
}

func newRunFlagSet(opts *runOptions) *pflag.FlagSet {
	fs := pflag.NewFlagSet("run", pflag.ContinueOnError)
	fs.StringVar(&opts.Env, "env", envClear, "Environment policy: clear or preserve")
	fs.StringVar(&opts.Net, "net", policySandbox, "Network policy: sandbox or host")
	fs.StringVar(&opts.UTS, "uts", policySandbox, "Hostname policy: sandbox or host")
	fs.StringVar(&opts.IPC, "ipc", policySandbox, "IPC policy: sandbox or host")
	fs.StringVar(&opts.FS, "fs", fsRunCopy, "Filesystem policy: run-copy, run or host")
	fs.StringVar(&opts.Usr, "usr", usrRoot, "User policy: root maps the caller to root")
	fs.StringVar(&opts.UIDMap, "uid-map", "", "Raw uid_map passed to the container (overrides --usr)")
	fs.StringVar(&opts.GIDMap, "gid-map", "", "Raw gid_map passed to the container (overrides --usr)")
	fs.StringArrayVarP(&opts.Environment, "environment", "e", nil, "Set NAME:VALUE in the container (repeatable)")
	fs.BoolVar(&opts.NoDetach, "no-detach", false, "Attach the command to this terminal")
	fs.StringVar(&opts.Hostname, "hostname", "", "Hostname inside the container")
	fs.StringVar(&opts.Seccomp, "seccomp", "", "Path to a JSON seccomp profile")
	fs.DurationVar(&opts.RendezvousTimeout, "rendezvous-timeout", 0, "Kill the container if it has not finished after this long")
	fs.StringVar(&opts.Command, "command", "", "Command line to run, split with shell quoting rules")
	return fs
}

// parseRunArgs parses "run" flags. The first positional argument before "--"
// is the image; everything after "--" is the command.
func parseRunArgs(args []string) (runOptions, error) {
	var opts runOptions
	fs := newRunFlagSet(&opts)
	if err := fs.Parse(args); err != nil {
		return runOptions{}, appErr.Wrapf(err, appErr.InvalidInput, "parse run flags")
	}

	positional := fs.Args()
	var before, after []string
	if dash := fs.ArgsLenAtDash(); dash >= 0 {
		before, after = positional[:dash], positional[dash:]
	} else if len(positional) > 0 {
		before, after = positional[:1], positional[1:]
	}
	switch len(before) {
	case 0:
	case 1:
		opts.Image = before[0]
	default:
		return runOptions{}, appErr.Newf(appErr.InvalidInput, "unexpected arguments before --: %v", before[1:])
	}

	if opts.Command != "" {
		if len(after) > 0 {
			return runOptions{}, appErr.Newf(appErr.InvalidInput, "use either --command or arguments after --, not both")
		}
		words, err := shlex.Split(opts.Command)
		if err != nil {
			return runOptions{}, appErr.Wrapf(err, appErr.InvalidInput, "split --command")
		}
		after = words
	}
	opts.Cmd = after
	return opts, nil
}

// identity is the caller's effective uid and gid.
type identity struct {
	UID int
	GID int
}

// buildRunSpec translates flags and config defaults into the engine policy.
// The run-copy mount point is filled in later, once the copy exists.
func buildRunSpec(opts runOptions, cfg *AppConfig, id identity) (spec.RunSpec, error) {
	rs := spec.RunSpec{
		Namespaces:        spec.AllNamespaces(),
		Detach:            !opts.NoDetach,
		RendezvousTimeout: cfg.Runtime.RendezvousTimeout,
	}

	switch opts.Env {
	case envClear:
		rs.UnsetEnv = true
	case envPreserve:
	default:
		return spec.RunSpec{}, appErr.ConfigError("env", fmt.Sprintf("unknown policy %q", opts.Env))
	}

	var err error
	if rs.Namespaces.Net, err = isolated("net", opts.Net); err != nil {
		return spec.RunSpec{}, err
	}
	if rs.Namespaces.UTS, err = isolated("uts", opts.UTS); err != nil {
		return spec.RunSpec{}, err
	}
	if rs.Namespaces.IPC, err = isolated("ipc", opts.IPC); err != nil {
		return spec.RunSpec{}, err
	}

	switch opts.Usr {
	case usrRoot:
		rs.UIDMap = spec.RootMapping(id.UID)
		rs.GIDMap = spec.RootMapping(id.GID)
	default:
		return spec.RunSpec{}, appErr.ConfigError("usr", fmt.Sprintf("unknown policy %q", opts.Usr))
	}
	if opts.UIDMap != "" {
		rs.UIDMap = opts.UIDMap
	}
	if opts.GIDMap != "" {
		rs.GIDMap = opts.GIDMap
	}

	switch opts.FS {
	case fsHost:
		// Re-rooting is what needs the private pid namespace; without it the
		// host pid table stays visible like the host filesystem.
		rs.Namespaces.Mount = false
		rs.Namespaces.PID = false
	case fsRun:
		if opts.Image == "" {
			return spec.RunSpec{}, appErr.ConfigError("image", "--fs=run requires an image directory")
		}
		if rs.MountPoint, err = filepath.Abs(opts.Image); err != nil {
			return spec.RunSpec{}, appErr.Wrapf(err, appErr.ConfigurationError, "resolve image path")
		}
	case fsRunCopy:
		if opts.Image == "" {
			return spec.RunSpec{}, appErr.ConfigError("image", "--fs=run-copy requires an image directory")
		}
	default:
		return spec.RunSpec{}, appErr.ConfigError("fs", fmt.Sprintf("unknown policy %q", opts.FS))
	}

	for _, raw := range append(append([]string(nil), cfg.Defaults.Env...), opts.Environment...) {
		kv, err := parseEnvArg(raw)
		if err != nil {
			return spec.RunSpec{}, err
		}
		rs.Env = append(rs.Env, kv)
	}

	rs.Hostname = opts.Hostname
	if rs.Hostname == "" && rs.Namespaces.UTS {
		rs.Hostname = cfg.Defaults.Hostname
	}
	rs.SeccompProfile = opts.Seccomp
	if rs.SeccompProfile == "" {
		rs.SeccompProfile = cfg.Defaults.SeccompProfile
	}
	if opts.RendezvousTimeout != 0 {
		rs.RendezvousTimeout = opts.RendezvousTimeout
	}
	return rs, nil
}

func isolated(name, policy string) (bool, error) {
	switch policy {
	case policySandbox:
		return true, nil
	case policyHost:
		return false, nil
	default:
		return false, appErr.ConfigError(name, fmt.Sprintf("unknown policy %q", policy))
	}
}

// parseEnvArg splits NAME:VALUE at the first colon, so values such as PATH
// lists keep theirs.
func parseEnvArg(raw string) (spec.EnvVar, error) {
	name, value, ok := strings.Cut(raw, ":")
	if !ok || name == "" {
		return spec.EnvVar{}, appErr.ConfigError("environment", fmt.Sprintf("invalid env arg %q, want NAME:VALUE", raw))
	}
	return spec.EnvVar{Name: name, Value: value}, nil
}
