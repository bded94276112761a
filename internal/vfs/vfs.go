// Package vfs defines the narrow filesystem seam used by the registry, the
// status channel, and the transfer worker. Production code passes an OS-rooted
// filesystem; tests pass an in-memory one.
package vfs

import (
	"os"

	forgefs "github.com/input-output-hk/catalyst-forge-libs/fs"
	"github.com/input-output-hk/catalyst-forge-libs/fs/billy"
)

// Filesystem is the set of file operations the uploader needs. *billy.FS
// implements it, so billy.NewOSFS and billy.NewInMemoryFS both satisfy it.
type Filesystem interface {
	Create(name string) (forgefs.File, error)
	Exists(path string) (bool, error)
	MkdirAll(path string, perm os.FileMode) error
	Open(name string) (forgefs.File, error)
	OpenFile(name string, flag int, perm os.FileMode) (forgefs.File, error)
	ReadDir(dirname string) ([]os.FileInfo, error)
	ReadFile(path string) ([]byte, error)
	Remove(name string) error
	Stat(name string) (os.FileInfo, error)
	WriteFile(filename string, data []byte, perm os.FileMode) error
}

var _ Filesystem = (*billy.FS)(nil)

// NewOS returns a filesystem rooted at the given path.
func NewOS(root string) Filesystem {
	return billy.NewOSFS(root)
}

// NewMemory returns an in-memory filesystem for tests.
func NewMemory() Filesystem {
	return billy.NewInMemoryFS()
}
