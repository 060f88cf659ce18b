package keystore

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"testing/fstest"
	"time"
)

const writePermissions fs.FileMode = 0644

// Filesystem is a read-only fs.FS plus what the key store needs on top:
// modification times and writing artifacts such as signatures.
type Filesystem interface {
	FS() fs.FS
	WriteFile(name string, content []byte) error
	Stat(name string) (fs.FileInfo, error)
}

// memFs keeps everything in a map, for tests.
type memFs fstest.MapFS

func (m memFs) FS() fs.FS {
	return fstest.MapFS(m)
}

func (m memFs) Stat(name string) (fs.FileInfo, error) {
	return fstest.MapFS(m).Stat(name)
}

func (m memFs) WriteFile(name string, content []byte) error {
	if !fs.ValidPath(name) {
		return &fs.PathError{Op: "write", Path: name, Err: fs.ErrInvalid}
	}
	m[name] = &fstest.MapFile{
		Data:    append([]byte(nil), content...),
		Mode:    writePermissions,
		ModTime: time.Now(),
	}
	return nil
}

// NewMapFs returns a [Filesystem] on top of m, which may be nil. The
// root directory "." is added if missing.
func NewMapFs(m fstest.MapFS) Filesystem {
	if m == nil {
		m = fstest.MapFS{}
	}
	if _, ok := m["."]; !ok {
		m["."] = &fstest.MapFile{Mode: 0777 | fs.ModeDir}
	}
	return memFs(m)
}

// dirFs is a directory of the native filesystem. Names are slash
// separated and may not leave the directory.
type dirFs struct {
	root string
	fsys fs.FS
}

func (d dirFs) FS() fs.FS {
	return d.fsys
}

func (d dirFs) resolve(op, name string) (string, error) {
	if !fs.ValidPath(name) {
		return "", &fs.PathError{Op: op, Path: name,
			Err: fmt.Errorf("%w: not a path inside the key directory", fs.ErrInvalid)}
	}
	return filepath.Join(d.root, filepath.FromSlash(name)), nil
}

func (d dirFs) Stat(name string) (fs.FileInfo, error) {
	p, err := d.resolve("stat", name)
	if err != nil {
		return nil, err
	}
	return os.Stat(p)
}

func (d dirFs) WriteFile(name string, content []byte) error {
	p, err := d.resolve("write", name)
	if err != nil {
		return err
	}
	return os.WriteFile(p, content, writePermissions)
}

// NewNativeFs returns a [Filesystem] for the directory at path, read
// through [os.DirFS].
func NewNativeFs(path string) Filesystem {
	return dirFs{root: path, fsys: os.DirFS(path)}
}
