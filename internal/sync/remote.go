package sync

import (
	"io"
	"io/fs"

	"github.com/pkg/sftp"
)

// RemoteFS is the subset of a file transfer channel a sync session needs.
// Paths are slash-separated remote paths.
type RemoteFS interface {
	Stat(p string) (fs.FileInfo, error)
	// RealPath resolves p to the remote's canonical absolute form.
	RealPath(p string) (string, error)
	Mkdir(p string) error
	MkdirAll(p string) error
	OpenFile(p string, flags int) (RemoteFile, error)
	Close() error
}

// RemoteFile is an open remote file.
type RemoteFile interface {
	io.Writer
	// Sync flushes the file to stable storage on the remote side. Servers
	// without the fsync extension return an error.
	Sync() error
	Close() error
}

// NewSFTPRemote adapts an SFTP client. Closing the RemoteFS closes the
// client and its channel.
func NewSFTPRemote(c *sftp.Client) RemoteFS {
	return &sftpRemote{c: c}
}

type sftpRemote struct {
	c *sftp.Client
}

func (r *sftpRemote) Stat(p string) (fs.FileInfo, error) { return r.c.Stat(p) }
func (r *sftpRemote) RealPath(p string) (string, error)  { return r.c.RealPath(p) }
func (r *sftpRemote) Mkdir(p string) error               { return r.c.Mkdir(p) }
func (r *sftpRemote) MkdirAll(p string) error            { return r.c.MkdirAll(p) }
func (r *sftpRemote) Close() error                       { return r.c.Close() }

func (r *sftpRemote) OpenFile(p string, flags int) (RemoteFile, error) {
	f, err := r.c.OpenFile(p, flags)
	if err != nil {
		return nil, err
	}
	return f, nil
}
