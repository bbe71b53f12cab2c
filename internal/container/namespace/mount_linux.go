//go:build linux

package namespace

import (
	"io/fs"
	"os"

	"korobok/internal/container/sys"

	"golang.org/x/sys/unix"
)

// KernelMounter performs the mount sequence against the running kernel.
type KernelMounter struct{}

func (KernelMounter) MakePrivate(target string) error {
	return unix.Mount("", target, "", unix.MS_REC|unix.MS_PRIVATE, "")
}

func (KernelMounter) BindMount(source, target string) error {
	return unix.Mount(source, target, "", unix.MS_BIND|unix.MS_REC, "")
}

func (KernelMounter) Chdir(dir string) error {
	return os.Chdir(dir)
}

// Mkdir applies perm exactly, ignoring the process umask.
func (KernelMounter) Mkdir(path string, perm fs.FileMode) error {
	if err := os.Mkdir(path, perm); err != nil {
		return err
	}
	return os.Chmod(path, perm)
}

func (KernelMounter) PivotRoot(newRoot, putOld string) error {
	return sys.PivotRoot(newRoot, putOld)
}

func (KernelMounter) MountProc(target string) error {
	return unix.Mount("proc", target, "proc", unix.MS_NOSUID|unix.MS_NODEV|unix.MS_NOEXEC, "")
}

func (KernelMounter) DetachUnmount(target string) error {
	return unix.Unmount(target, unix.MNT_DETACH)
}
