package config

import (
	"os"
	"path/filepath"
	"strings"
)

// ExpandTilde resolves a leading ~ against the local home directory.
// Only local paths go through here; ~user is left alone, as is any path
// when the home directory cannot be determined.
func ExpandTilde(p string) string {
	rest, ok := strings.CutPrefix(p, "~")
	if !ok || (rest != "" && rest[0] != '/') {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, rest)
}

// expandLocalPaths applies ExpandTilde to the config's local file fields.
func expandLocalPaths(cfg *Config) {
	for _, field := range []*string{
		&cfg.SSH.IdentityFile,
		&cfg.SSH.KnownHostsFile,
		&cfg.Instance.SetupScript,
	} {
		*field = ExpandTilde(*field)
	}
}
