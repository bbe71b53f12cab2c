package rundir

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// CopyTree copies src into dst/<base(src)> and returns the copied root.
// Regular files, directories and symlinks are copied with their permission
// bits; other file types are skipped.
func CopyTree(src, dst string) (string, error) {
	src = filepath.Clean(src)
	target := filepath.Join(dst, filepath.Base(src))
	type dirMode struct {
		path string
		perm fs.FileMode
	}
	// directory modes are applied last so read-only directories can be filled
	var dirs []dirMode
	err := filepath.WalkDir(src, func(path string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		out := filepath.Join(target, rel)
		info, err := entry.Info()
		if err != nil {
			return err
		}
		switch mode := info.Mode(); {
		case mode.IsDir():
			dirs = append(dirs, dirMode{path: out, perm: mode.Perm()})
			return os.MkdirAll(out, mode.Perm()|0o700)
		case mode&fs.ModeSymlink != 0:
			link, err := os.Readlink(path)
			if err != nil {
				return err
			}
			return os.Symlink(link, out)
		case mode.IsRegular():
			return copyFile(path, out, mode.Perm())
		default:
			return nil
		}
	})
	if err != nil {
		return "", fmt.Errorf("copy %s to %s: %w", src, dst, err)
	}
	for i := len(dirs) - 1; i >= 0; i-- {
		if err := os.Chmod(dirs[i].path, dirs[i].perm); err != nil {
			return "", fmt.Errorf("chmod %s: %w", dirs[i].path, err)
		}
	}
	return target, nil
}

func copyFile(src, dst string, perm fs.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
