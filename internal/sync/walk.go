package sync

import (
	"bufio"
	"errors"
	"io/fs"
	"iter"
	"os"
	"path"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-git/v5/plumbing/format/gitignore"
)

// Entry is one item produced by a walk.
type Entry struct {
	// Path is the absolute local path.
	Path string
	// Rel holds the path components below the walk root; empty for the root.
	Rel []string
	// IsDir is true for directories and for symlinks pointing at one.
	IsDir bool
	Mode  fs.FileMode
}

// IsSymlink reports whether the entry itself is a symbolic link.
func (e Entry) IsSymlink() bool {
	return e.Mode&fs.ModeSymlink != 0
}

// WalkOptions control which entries a walk yields.
type WalkOptions struct {
	// Exclude holds gitignore-style patterns anchored at the walk root.
	Exclude []string
	// Hidden includes dot-files and dot-directories.
	Hidden bool
	// IgnoreFiles are read in every directory, in order, and in the
	// root's ancestors. Later files and deeper directories take precedence.
	IgnoreFiles []string
}

// Walker enumerates a local tree in pre-order with deterministic order.
type Walker struct {
	root string
	fs   billy.Filesystem
	opts WalkOptions
	// base holds the root's components below the outermost ancestor whose
	// ignore files were read.
	base []string
}

// NewWalker creates a walker over the local directory (or file) root.
func NewWalker(root string, opts WalkOptions) *Walker {
	return &Walker{
		root: filepath.Clean(root),
		fs:   osfs.New(root),
		opts: opts,
	}
}

// Walk yields every included entry, starting with the root itself.
// Directory contents are sorted by name. A failure on one entry is yielded
// with that entry and the walk carries on. Symlinked directories are
// reported but not descended into.
//
// Ignore files in the root's ancestors apply too, up to the enclosing git
// work tree or the filesystem root. Ancestor rules that would exclude the
// root itself are dropped: an explicitly chosen root is always walked.
func (w *Walker) Walk() iter.Seq2[Entry, error] {
	return func(yield func(Entry, error) bool) {
		info, err := os.Stat(w.root)
		if err != nil {
			yield(Entry{Path: w.root}, err)
			return
		}
		if !info.IsDir() {
			yield(Entry{Path: w.root, Mode: info.Mode()}, nil)
			return
		}
		if !yield(Entry{Path: w.root, IsDir: true, Mode: info.Mode()}, nil) {
			return
		}

		patterns, ok := w.ancestorPatterns(yield)
		if !ok {
			return
		}
		for _, p := range w.opts.Exclude {
			if pattern, ok := parseLine(p, w.base); ok {
				patterns = append(patterns, pattern)
			}
		}
		w.walkDir(nil, patterns, yield)
	}
}

// ancestorPatterns reads the ignore files of every directory above the
// root, outermost first, and sets w.base to the root's components below
// the outermost directory read. It reports false when the consumer
// stopped the walk.
func (w *Walker) ancestorPatterns(yield func(Entry, error) bool) ([]gitignore.Pattern, bool) {
	w.base = nil
	if len(w.opts.IgnoreFiles) == 0 {
		return nil, true
	}
	abs, err := filepath.Abs(w.root)
	if err != nil || isGitRoot(abs) || filepath.Dir(abs) == abs {
		return nil, true
	}

	var dirs []string
	for dir := filepath.Dir(abs); ; dir = filepath.Dir(dir) {
		dirs = append(dirs, dir)
		if isGitRoot(dir) || filepath.Dir(dir) == dir {
			break
		}
	}
	top := dirs[len(dirs)-1]
	rel, err := filepath.Rel(top, abs)
	if err != nil {
		return nil, true
	}
	w.base = strings.Split(filepath.ToSlash(rel), "/")

	var patterns []gitignore.Pattern
	for i := len(dirs) - 1; i >= 0; i-- {
		var domain []string
		if i < len(dirs)-1 {
			domain = w.base[:len(dirs)-1-i]
		}
		found, failures := readIgnoreFiles(osfs.New(dirs[i]), ".", domain, w.opts.IgnoreFiles)
		for _, f := range failures {
			if !yield(Entry{Path: filepath.Join(dirs[i], f.name)}, f.err) {
				return nil, false
			}
		}
		for _, p := range found {
			if !w.excludesRoot(p) {
				patterns = append(patterns, p)
			}
		}
	}
	return patterns, true
}

// excludesRoot reports whether p matches the root or one of the
// directories between it and the outermost ancestor read.
func (w *Walker) excludesRoot(p gitignore.Pattern) bool {
	for i := 1; i <= len(w.base); i++ {
		if p.Match(w.base[:i], true) != gitignore.NoMatch {
			return true
		}
	}
	return false
}

func isGitRoot(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, ".git"))
	return err == nil
}

func (w *Walker) walkDir(rel []string, inherited []gitignore.Pattern, yield func(Entry, error) bool) bool {
	dir := w.fsPath(rel)

	found, failures := readIgnoreFiles(w.fs, dir, w.matchPath(rel), w.opts.IgnoreFiles)
	for _, f := range failures {
		failed := append(slices.Clone(rel), f.name)
		if !yield(Entry{Path: w.localPath(failed), Rel: failed}, f.err) {
			return false
		}
	}
	patterns := inherited
	if len(found) > 0 {
		patterns = append(slices.Clip(inherited), found...)
	}
	matcher := gitignore.NewMatcher(patterns)

	infos, err := w.fs.ReadDir(dir)
	if err != nil {
		return yield(Entry{Path: w.localPath(rel), Rel: rel, IsDir: true}, err)
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name() < infos[j].Name() })

	for _, fi := range infos {
		name := fi.Name()
		if name == ".git" {
			continue
		}
		if !w.opts.Hidden && strings.HasPrefix(name, ".") {
			continue
		}

		childRel := append(slices.Clone(rel), name)
		entry := Entry{
			Path:  w.localPath(childRel),
			Rel:   childRel,
			IsDir: fi.IsDir(),
			Mode:  fi.Mode(),
		}

		if entry.IsSymlink() {
			target, err := w.fs.Stat(w.fsPath(childRel))
			if err != nil {
				if !yield(entry, err) {
					return false
				}
				continue
			}
			entry.IsDir = target.IsDir()
		}

		if matcher.Match(w.matchPath(childRel), entry.IsDir) {
			continue
		}

		if !yield(entry, nil) {
			return false
		}
		if entry.IsDir && !entry.IsSymlink() {
			if !w.walkDir(childRel, patterns, yield) {
				return false
			}
		}
	}
	return true
}

// ignoreFileFailure is an ignore file that exists but could not be read.
type ignoreFileFailure struct {
	name string
	err  error
}

// readIgnoreFiles parses the named ignore files present in dir, in order.
// Missing files are skipped; unreadable ones are returned as failures.
func readIgnoreFiles(fsys billy.Filesystem, dir string, domain []string, names []string) ([]gitignore.Pattern, []ignoreFileFailure) {
	var patterns []gitignore.Pattern
	var failures []ignoreFileFailure

	for _, name := range names {
		f, err := fsys.Open(path.Join(dir, name))
		if err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				failures = append(failures, ignoreFileFailure{name: name, err: err})
			}
			continue
		}

		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			if p, ok := parseLine(scanner.Text(), domain); ok {
				patterns = append(patterns, p)
			}
		}
		if err := scanner.Err(); err != nil {
			failures = append(failures, ignoreFileFailure{name: name, err: err})
		}
		f.Close()
	}
	return patterns, failures
}

func parseLine(line string, domain []string) (gitignore.Pattern, bool) {
	if strings.HasPrefix(line, "#") || strings.TrimSpace(line) == "" {
		return nil, false
	}
	return gitignore.ParsePattern(line, domain), true
}

func (w *Walker) fsPath(rel []string) string {
	if len(rel) == 0 {
		return "."
	}
	return path.Join(rel...)
}

// matchPath is rel as seen by ignore patterns, prefixed with the root's
// position below the outermost ancestor read.
func (w *Walker) matchPath(rel []string) []string {
	if len(w.base) == 0 {
		return rel
	}
	return append(slices.Clone(w.base), rel...)
}

func (w *Walker) localPath(rel []string) string {
	if len(rel) == 0 {
		return w.root
	}
	return filepath.Join(append([]string{w.root}, rel...)...)
}
