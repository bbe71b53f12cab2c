package namespace

import (
	"errors"
	"io/fs"

	appErr "korobok/pkg/errors"
)

const (
	stageContainer = "container"

	// PutOld is the directory, relative to the new root, that receives the old root.
	PutOld = "put_old"
	// ProcDir is where a fresh procfs is mounted inside the new root.
	ProcDir = "/proc"
)

// Mounter is the set of kernel operations the mount sequence needs.
type Mounter interface {
	MakePrivate(target string) error
	BindMount(source, target string) error
	Chdir(dir string) error
	Mkdir(path string, perm fs.FileMode) error
	PivotRoot(newRoot, putOld string) error
	MountProc(target string) error
	DetachUnmount(target string) error
}

// PrepareMount re-roots the calling process at mountPoint. It must run
// inside a private mount namespace. A failure aborts the sequence with no
// rollback of mounts already made.
func PrepareMount(m Mounter, mountPoint string) error {
	if err := m.MakePrivate("/"); err != nil {
		return stepErr(err, appErr.SyscallFailure, "make_private", "could not make mounts private")
	}
	if err := m.BindMount(mountPoint, mountPoint); err != nil {
		return stepErr(err, appErr.SyscallFailure, "bind_mount", "could not mount container root fs")
	}
	if err := m.Chdir(mountPoint); err != nil {
		return stepErr(err, appErr.IoFailure, "chdir_mount_point", "could not change directory to mount point")
	}
	if err := mkdirTolerant(m, PutOld, 0o777); err != nil {
		return stepErr(err, appErr.IoFailure, "mkdir_put_old", "could not create `%s`", PutOld)
	}
	if err := m.PivotRoot(".", PutOld); err != nil {
		return stepErr(err, appErr.SyscallFailure, "pivot_root", "could not pivot root")
	}
	if err := m.Chdir("/"); err != nil {
		return stepErr(err, appErr.IoFailure, "chdir_root", "could not change directory to container root")
	}
	if err := mkdirTolerant(m, ProcDir, 0o555); err != nil {
		return stepErr(err, appErr.IoFailure, "mkdir_proc", "could not create %s", ProcDir)
	}
	if err := m.MountProc(ProcDir); err != nil {
		return stepErr(err, appErr.SyscallFailure, "mount_proc", "could not mount %s", ProcDir)
	}
	if err := m.DetachUnmount(PutOld); err != nil {
		return stepErr(err, appErr.SyscallFailure, "unmount_put_old", "could not unmount `%s`", PutOld)
	}
	return nil
}

func mkdirTolerant(m Mounter, path string, perm fs.FileMode) error {
	if err := m.Mkdir(path, perm); err != nil && !errors.Is(err, fs.ErrExist) {
		return err
	}
	return nil
}

func stepErr(err error, code appErr.ErrorCode, step, format string, args ...interface{}) error {
	return appErr.Staged(err, code, stageContainer, step, format, args...)
}
