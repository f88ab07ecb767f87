// Package testing provides test doubles for the sync package.
package testing

import (
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"sync"
	"time"

	ksync "github.com/korasi/korasi/internal/sync"
)

// FakeRemote is an in-memory RemoteFS. It behaves like an SFTP server:
// creating an existing directory fails with a generic error, and parent
// directories must exist.
type FakeRemote struct {
	mu sync.Mutex

	// Home is what RealPath(".") resolves to.
	Home string

	// StatErrors and OpenErrors inject failures for specific paths.
	StatErrors map[string]error
	OpenErrors map[string]error
	// SyncErr is returned by every file's Sync.
	SyncErr error

	dirs   map[string]bool
	files  map[string][]byte
	ops    []string
	closed bool
}

// NewFakeRemote creates a remote holding only the directories leading to
// /home/tester.
func NewFakeRemote() *FakeRemote {
	f := &FakeRemote{
		Home:       "/home/tester",
		StatErrors: make(map[string]error),
		OpenErrors: make(map[string]error),
		dirs:       map[string]bool{"/": true},
		files:      make(map[string][]byte),
	}
	f.addDirAll(f.Home)
	return f
}

// AddDir creates p and its parents without recording an operation.
func (f *FakeRemote) AddDir(p string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.addDirAll(f.abs(p))
}

// AddFile creates a file (and its parent directories) without recording
// an operation.
func (f *FakeRemote) AddFile(p string, data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p = f.abs(p)
	f.addDirAll(path.Dir(p))
	f.files[p] = append([]byte(nil), data...)
}

// File returns the content stored at p.
func (f *FakeRemote) File(p string) ([]byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.files[f.abs(p)]
	return data, ok
}

// IsDir reports whether p is a directory.
func (f *FakeRemote) IsDir(p string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dirs[f.abs(p)]
}

// Files returns every file path, sorted.
func (f *FakeRemote) Files() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.files))
	for p := range f.files {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Ops returns every mutating operation in order, like "mkdir /a".
func (f *FakeRemote) Ops() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.ops...)
}

// Closed reports whether Close was called.
func (f *FakeRemote) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *FakeRemote) Stat(p string) (fs.FileInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.StatErrors[p]; ok {
		return nil, err
	}
	p = f.abs(p)
	if f.dirs[p] {
		return fakeInfo{name: path.Base(p), dir: true}, nil
	}
	if data, ok := f.files[p]; ok {
		return fakeInfo{name: path.Base(p), size: int64(len(data))}, nil
	}
	return nil, &fs.PathError{Op: "stat", Path: p, Err: fs.ErrNotExist}
}

func (f *FakeRemote) RealPath(p string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.abs(p), nil
}

func (f *FakeRemote) Mkdir(p string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p = f.abs(p)
	f.ops = append(f.ops, "mkdir "+p)
	if f.dirs[p] || f.files[p] != nil {
		return errors.New("sftp: \"Failure\" (SSH_FX_FAILURE)")
	}
	if !f.dirs[path.Dir(p)] {
		return &fs.PathError{Op: "mkdir", Path: p, Err: fs.ErrNotExist}
	}
	f.dirs[p] = true
	return nil
}

func (f *FakeRemote) MkdirAll(p string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p = f.abs(p)
	f.ops = append(f.ops, "mkdirall "+p)
	for q := p; q != "/"; q = path.Dir(q) {
		if _, ok := f.files[q]; ok {
			return fmt.Errorf("%s is a file", q)
		}
	}
	f.addDirAll(p)
	return nil
}

func (f *FakeRemote) OpenFile(p string, flags int) (ksync.RemoteFile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ops = append(f.ops, "open "+f.abs(p))
	if err, ok := f.OpenErrors[p]; ok {
		return nil, err
	}
	p = f.abs(p)
	if f.dirs[p] {
		return nil, &fs.PathError{Op: "open", Path: p, Err: errors.New("is a directory")}
	}
	if !f.dirs[path.Dir(p)] {
		return nil, &fs.PathError{Op: "open", Path: p, Err: fs.ErrNotExist}
	}
	f.files[p] = nil
	return &fakeFile{remote: f, path: p}, nil
}

func (f *FakeRemote) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *FakeRemote) abs(p string) string {
	if path.IsAbs(p) {
		return path.Clean(p)
	}
	return path.Join(f.Home, p)
}

func (f *FakeRemote) addDirAll(p string) {
	for q := p; ; q = path.Dir(q) {
		f.dirs[q] = true
		if q == "/" || q == "." {
			return
		}
	}
}

type fakeFile struct {
	remote *FakeRemote
	path   string
}

func (ff *fakeFile) Write(b []byte) (int, error) {
	ff.remote.mu.Lock()
	defer ff.remote.mu.Unlock()
	ff.remote.files[ff.path] = append(ff.remote.files[ff.path], b...)
	return len(b), nil
}

func (ff *fakeFile) Sync() error {
	return ff.remote.SyncErr
}

func (ff *fakeFile) Close() error {
	return nil
}

type fakeInfo struct {
	name string
	size int64
	dir  bool
}

func (i fakeInfo) Name() string       { return i.name }
func (i fakeInfo) Size() int64        { return i.size }
func (i fakeInfo) ModTime() time.Time { return time.Time{} }
func (i fakeInfo) IsDir() bool        { return i.dir }
func (i fakeInfo) Sys() any           { return nil }

func (i fakeInfo) Mode() fs.FileMode {
	if i.dir {
		return fs.ModeDir | 0755
	}
	return 0644
}

var _ ksync.RemoteFS = (*FakeRemote)(nil)
