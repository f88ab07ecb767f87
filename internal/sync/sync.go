// Package sync mirrors a local directory tree onto a remote directory over
// a file transfer channel.
package sync

import (
	stderrors "errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/korasi/korasi/internal/errors"
	"github.com/korasi/korasi/internal/logger"
)

// Options configure a Session.
type Options struct {
	Walk WalkOptions
	// DryRun logs what would be uploaded without touching the remote.
	DryRun bool
	// Progress, if set, is called after every uploaded file.
	Progress func(Progress)
}

// Progress is a running tally handed to Options.Progress.
type Progress struct {
	Current string
	Files   int
	Bytes   int64
}

// EntryFailure records one entry that could not be mirrored.
type EntryFailure struct {
	Local  string
	Remote string
	Op     string
	Err    error
}

func (f EntryFailure) String() string {
	if f.Remote == "" {
		return fmt.Sprintf("%s %s: %v", f.Op, f.Local, f.Err)
	}
	return fmt.Sprintf("%s %s -> %s: %v", f.Op, f.Local, f.Remote, f.Err)
}

// Result summarizes a finished session.
type Result struct {
	Source   string
	Dest     string
	Dirs     int
	Files    int
	Bytes    int64
	Skipped  int
	Failures []EntryFailure
	Duration time.Duration
}

// Session uploads one local tree per Run over a RemoteFS.
type Session struct {
	remote RemoteFS
	log    logger.Logger
	opts   Options
}

// New creates a session. The session owns remote and closes it when Run
// returns.
func New(remote RemoteFS, log logger.Logger, opts Options) *Session {
	if log == nil {
		log = logger.NewEnvLogger("[sync]")
	}
	return &Session{remote: remote, log: log, opts: opts}
}

// Run mirrors source (default ".") into dest (default: the remote login
// directory). Every local path P under source lands at
// dest/(P relative to source's parent), so the source directory's own name
// is kept. Per-entry failures are logged and collected in the result; only
// problems with source or dest themselves fail the run.
func (s *Session) Run(source, dest string) (*Result, error) {
	defer func() {
		if err := s.remote.Close(); err != nil {
			s.log.Debug("closing transfer channel: %v", err)
		}
	}()
	start := time.Now()

	if source == "" {
		source = "."
	}
	src, err := canonicalize(source)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrSource,
			fmt.Sprintf("Can't resolve upload source %s", source),
			"Check the path exists and is readable.")
	}

	destRoot, err := s.prepareDest(dest)
	if err != nil {
		return nil, err
	}

	res := &Result{Source: src, Dest: destRoot}
	mapper := NewMapper(src, destRoot)
	s.log.Debug("uploading %s to %s (dry run: %v)", src, destRoot, s.opts.DryRun)

	for entry, werr := range NewWalker(src, s.opts.Walk).Walk() {
		if werr != nil {
			s.fail(res, EntryFailure{Local: entry.Path, Op: "read", Err: werr})
			continue
		}

		target, err := mapper.Map(entry.Path)
		if err != nil {
			s.fail(res, EntryFailure{Local: entry.Path, Op: "map", Err: err})
			continue
		}

		switch {
		case entry.IsDir && entry.IsSymlink():
			s.log.Warn("skipping %s: symlink to a directory", entry.Path)
			res.Skipped++
		case entry.IsDir:
			s.makeDir(res, entry.Path, target)
		default:
			s.uploadFile(res, entry.Path, target)
		}
	}

	res.Duration = time.Since(start)
	return res, nil
}

// prepareDest makes sure dest exists as a directory and returns its
// canonical remote form.
func (s *Session) prepareDest(dest string) (string, error) {
	if dest != "" {
		info, err := s.remote.Stat(dest)
		switch {
		case err == nil:
			if !info.IsDir() {
				return "", errors.New(errors.ErrDestination,
					fmt.Sprintf("Remote destination %s is not a directory", dest),
					"Pick a directory (or a path that doesn't exist yet) as the destination.")
			}
		case stderrors.Is(err, fs.ErrNotExist):
			if s.opts.DryRun {
				s.log.Info("would create %s", dest)
				return s.resolveMissing(dest)
			}
			if err := s.remote.MkdirAll(dest); err != nil {
				return "", errors.WrapWithCode(err, errors.ErrRemoteIO,
					fmt.Sprintf("Can't create remote destination %s", dest),
					"Check the login user may write there.")
			}
		default:
			return "", errors.WrapWithCode(err, errors.ErrRemoteIO,
				fmt.Sprintf("Can't inspect remote destination %s", dest), "")
		}
	}

	p := dest
	if p == "" {
		p = "."
	}
	resolved, err := s.remote.RealPath(p)
	if err != nil {
		return "", errors.WrapWithCode(err, errors.ErrRemoteIO,
			fmt.Sprintf("Can't resolve remote destination %s", p), "")
	}
	return resolved, nil
}

// resolveMissing computes the absolute form of a destination that doesn't
// exist yet, for dry runs.
func (s *Session) resolveMissing(dest string) (string, error) {
	if path.IsAbs(dest) {
		return path.Clean(dest), nil
	}
	home, err := s.remote.RealPath(".")
	if err != nil {
		return "", errors.WrapWithCode(err, errors.ErrRemoteIO, "Can't resolve the remote login directory", "")
	}
	return path.Join(home, dest), nil
}

func (s *Session) makeDir(res *Result, local, target string) {
	if s.opts.DryRun {
		s.log.Info("mkdir %s", target)
		res.Dirs++
		return
	}

	if err := s.remote.Mkdir(target); err != nil {
		// Servers report an existing directory as a generic failure, so
		// look before treating it as one.
		if info, serr := s.remote.Stat(target); serr == nil && info.IsDir() {
			res.Dirs++
			return
		}
		s.fail(res, EntryFailure{Local: local, Remote: target, Op: "mkdir", Err: err})
		return
	}
	res.Dirs++
}

func (s *Session) uploadFile(res *Result, local, target string) {
	data, err := os.ReadFile(local)
	if err != nil {
		s.fail(res, EntryFailure{Local: local, Remote: target, Op: "read", Err: err})
		return
	}

	if s.opts.DryRun {
		s.log.Info("upload %s -> %s (%d bytes)", local, target, len(data))
		s.uploaded(res, target, int64(len(data)))
		return
	}

	f, err := s.remote.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC)
	if err != nil {
		s.fail(res, EntryFailure{Local: local, Remote: target, Op: "open", Err: err})
		return
	}

	n, err := f.Write(data)
	if err != nil {
		f.Close()
		s.fail(res, EntryFailure{Local: local, Remote: target, Op: "write", Err: err})
		return
	}
	if err := f.Sync(); err != nil {
		s.log.Debug("fsync %s: %v", target, err)
	}
	if err := f.Close(); err != nil {
		s.fail(res, EntryFailure{Local: local, Remote: target, Op: "close", Err: err})
		return
	}

	s.log.Debug("uploaded %s (%d bytes)", target, n)
	s.uploaded(res, target, int64(n))
}

func (s *Session) uploaded(res *Result, target string, n int64) {
	res.Files++
	res.Bytes += n
	if s.opts.Progress != nil {
		s.opts.Progress(Progress{Current: target, Files: res.Files, Bytes: res.Bytes})
	}
}

func (s *Session) fail(res *Result, f EntryFailure) {
	s.log.Warn("%s", f)
	res.Failures = append(res.Failures, f)
}

// canonicalize returns the absolute, symlink-free form of a local path.
func canonicalize(p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", err
	}
	return filepath.EvalSymlinks(abs)
}
