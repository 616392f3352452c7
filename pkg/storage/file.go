package storage

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/brimdata/zframe/zqe"
)

// FileSystem serves file URIs.  Segment and index objects are written
// beneath directories created on demand, so a scratch or save location
// need not exist before its first object is stored.
type FileSystem struct {
	perm os.FileMode

	mu   sync.Mutex
	dirs map[string]bool // directories known to exist
}

var (
	_ Engine   = (*FileSystem)(nil)
	_ DirMaker = (*FileSystem)(nil)
	_ Stater   = (*FileSystem)(nil)
)

func NewFileSystem() *FileSystem {
	return &FileSystem{perm: 0666, dirs: make(map[string]bool)}
}

func (f *FileSystem) Get(_ context.Context, u *URI) (Reader, error) {
	file, err := os.Open(u.Filepath())
	if err != nil {
		return nil, fileError(u, err)
	}
	return &fileObject{File: file, uri: u}, nil
}

func (f *FileSystem) Put(_ context.Context, u *URI) (io.WriteCloser, error) {
	file, err := f.create(u, os.O_RDWR|os.O_TRUNC)
	if err != nil {
		return nil, err
	}
	return file, nil
}

// PutIfNotExists writes b to a new object.  Array and frame writers
// claim a directory this way, so an object that is already present
// yields a zqe.Exists error.
func (f *FileSystem) PutIfNotExists(_ context.Context, u *URI, b []byte) error {
	file, err := f.create(u, os.O_WRONLY|os.O_EXCL)
	if err != nil {
		return err
	}
	if _, err := file.Write(b); err != nil {
		file.Close()
		os.Remove(file.Name())
		return err
	}
	return file.Close()
}

func (f *FileSystem) create(u *URI, flags int) (*os.File, error) {
	path := u.Filepath()
	if err := f.mkdir(filepath.Dir(path)); err != nil {
		return nil, fileError(u, err)
	}
	file, err := os.OpenFile(path, flags|os.O_CREATE, f.perm)
	if err != nil {
		return nil, fileError(u, err)
	}
	return file, nil
}

func (f *FileSystem) Delete(_ context.Context, u *URI) error {
	return fileError(u, os.Remove(u.Filepath()))
}

// DeleteByPrefix removes a whole scratch or saved directory.
func (f *FileSystem) DeleteByPrefix(_ context.Context, u *URI) error {
	f.mu.Lock()
	clear(f.dirs)
	f.mu.Unlock()
	return os.RemoveAll(u.Filepath())
}

func (f *FileSystem) Size(ctx context.Context, u *URI) (int64, error) {
	info, err := f.Stat(ctx, u)
	return info.Size, err
}

func (f *FileSystem) Exists(ctx context.Context, u *URI) (bool, error) {
	_, err := f.Stat(ctx, u)
	if zqe.IsNotFound(err) {
		return false, nil
	}
	return err == nil, err
}

func (f *FileSystem) Stat(_ context.Context, u *URI) (Info, error) {
	info, err := os.Stat(u.Filepath())
	if err != nil {
		return Info{}, fileError(u, err)
	}
	return Info{Name: info.Name(), Size: info.Size(), IsDir: info.IsDir()}, nil
}

func (f *FileSystem) List(_ context.Context, u *URI) ([]Info, error) {
	entries, err := os.ReadDir(u.Filepath())
	if err != nil {
		return nil, fileError(u, err)
	}
	infos := make([]Info, 0, len(entries))
	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil {
			return nil, err
		}
		infos = append(infos, Info{Name: entry.Name(), Size: info.Size(), IsDir: entry.IsDir()})
	}
	return infos, nil
}

func (f *FileSystem) MkdirAll(_ context.Context, u *URI) error {
	return fileError(u, f.mkdir(u.Filepath()))
}

func (f *FileSystem) mkdir(dir string) error {
	if dir == "." {
		return nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.dirs[dir] {
		return nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil && !errors.Is(err, fs.ErrExist) {
		return err
	}
	f.dirs[dir] = true
	return nil
}

// fileError maps missing and existing paths onto the zqe kinds callers
// test for.
func fileError(u *URI, err error) error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return zqe.E(zqe.NotFound, u.String())
	case errors.Is(err, fs.ErrExist):
		return zqe.E(zqe.Exists, u.String())
	}
	return err
}

type fileObject struct {
	*os.File
	uri *URI
}

func (f *fileObject) Size() (int64, error) {
	info, err := f.File.Stat()
	if err != nil {
		return 0, fileError(f.uri, err)
	}
	return info.Size(), nil
}
