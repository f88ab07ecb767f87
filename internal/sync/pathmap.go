package sync

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"
)

// SourcePrefix returns the part of a canonical source root that is
// stripped from every local path: the root's parent directory. It is
// empty when root is the filesystem root, in which case local paths keep
// all of their components.
func SourcePrefix(root string) string {
	root = filepath.Clean(root)
	parent := filepath.Dir(root)
	if parent == root {
		return ""
	}
	return parent
}

// Mapper turns local paths under a source root into remote paths under a
// destination directory, keeping the source root's own name:
//
//	/home/u/proj/a/b.txt -> <dest>/proj/a/b.txt
//
// Distinct local paths always map to distinct remote paths.
type Mapper struct {
	root   string
	prefix string
	dest   string
}

// NewMapper creates a Mapper for a canonical local source root and a remote
// (slash-separated) destination directory.
func NewMapper(sourceRoot, destRoot string) *Mapper {
	root := filepath.Clean(sourceRoot)
	return &Mapper{
		root:   root,
		prefix: SourcePrefix(root),
		dest:   path.Clean(destRoot),
	}
}

// Map returns the remote path for local. Paths outside the source root are
// rejected.
func (m *Mapper) Map(local string) (string, error) {
	local = filepath.Clean(local)

	if !within(m.root, local) {
		return "", fmt.Errorf("%s is outside the source %s", local, m.root)
	}

	base := m.prefix
	if base == "" {
		base = filepath.VolumeName(m.root) + string(filepath.Separator)
	}
	rel, err := filepath.Rel(base, local)
	if err != nil {
		return "", fmt.Errorf("can't map %s: %w", local, err)
	}
	if rel == "." {
		return m.dest, nil
	}
	return path.Join(m.dest, filepath.ToSlash(rel)), nil
}

// within reports whether p is root or lies beneath it.
func within(root, p string) bool {
	rel, err := filepath.Rel(root, p)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel)
}
