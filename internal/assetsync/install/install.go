// Package install copies cached assets into their target locations.
package install

import (
	"errors"
	"io"
	"os"
	"path/filepath"

	securejoin "github.com/cyphar/filepath-securejoin"

	"github.com/open-edge-platform/asset-sync/internal/assetsync/errdefs"
)

var errEmptyTarget = errors.New("empty target path")

// Installer places files below a fixed root directory.
type Installer struct {
	root string
}

// NewInstaller returns an installer rooted at root.
func NewInstaller(root string) *Installer {
	return &Installer{root: root}
}

// Root returns the install root.
func (i *Installer) Root() string {
	return i.root
}

// Resolve maps a target path onto the install root. Absolute paths, ".."
// segments and symlinks cannot escape the root.
func (i *Installer) Resolve(targetPath string) (string, error) {
	if targetPath == "" {
		return "", &errdefs.IOError{Op: "resolve target", Path: targetPath, Err: errEmptyTarget}
	}
	p, err := securejoin.SecureJoin(i.root, filepath.FromSlash(targetPath))
	if err != nil {
		return "", &errdefs.IOError{Op: "resolve target", Path: targetPath, Err: err}
	}
	return p, nil
}

// Install copies cachedPath to targetPath under the root, creating missing
// parent directories and replacing whatever is there. The copy is written
// next to the target and renamed into place, so the target is never left
// half written. It returns the path written.
func (i *Installer) Install(cachedPath, targetPath string) (string, error) {
	dest, err := i.Resolve(targetPath)
	if err != nil {
		return "", err
	}

	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return dest, &errdefs.IOError{Op: "create target directory", Path: dir, Err: err}
	}

	if err := copyAtomic(cachedPath, dest); err != nil {
		return dest, err
	}
	return dest, nil
}

func copyAtomic(src, dest string) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return &errdefs.IOError{Op: "open cached file", Path: src, Err: err}
	}
	defer in.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dest), "."+filepath.Base(dest)+".tmp-*")
	if err != nil {
		return &errdefs.IOError{Op: "create temp file", Path: dest, Err: err}
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			os.Remove(tmpName)
		}
	}()

	if _, err = io.Copy(tmp, in); err != nil {
		tmp.Close()
		return &errdefs.IOError{Op: "write target", Path: dest, Err: err}
	}
	if err = tmp.Close(); err != nil {
		return &errdefs.IOError{Op: "write target", Path: dest, Err: err}
	}
	if err = os.Chmod(tmpName, 0644); err != nil {
		return &errdefs.IOError{Op: "chmod target", Path: dest, Err: err}
	}
	if err = os.Rename(tmpName, dest); err != nil {
		return &errdefs.IOError{Op: "replace target", Path: dest, Err: err}
	}
	return nil
}
