package sshutil

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/kevinburke/ssh_config"
	"github.com/korasi/korasi/internal/logger"
)

// HostOverrides are the settings ~/.ssh/config holds for a host. Empty
// fields mean the config says nothing about them.
type HostOverrides struct {
	Hostname     string
	User         string
	Port         int
	IdentityFile string
}

// Empty reports whether the config had nothing for the host.
func (o HostOverrides) Empty() bool {
	return o == HostOverrides{}
}

// matchWarningOnce ensures the SSH config Match directive warning is only shown once per process.
var matchWarningOnce sync.Once

// DefaultSSHConfigPath returns ~/.ssh/config.
func DefaultSSHConfigPath() string {
	return filepath.Join(homeDir(), ".ssh", "config")
}

// LookupSSHConfig returns what the SSH config at configPath says about host.
// A missing config file is not an error.
func LookupSSHConfig(configPath, host string, log logger.Logger) (HostOverrides, error) {
	var o HostOverrides

	// kevinburke/ssh_config doesn't support Match, so only the content
	// before the first Match block is parsed.
	content, matchLine, err := preprocessSSHConfig(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return o, nil
		}
		return o, err
	}

	cfg, err := ssh_config.Decode(bytes.NewReader(content))
	if err != nil {
		return o, fmt.Errorf("failed to parse %s: %w", configPath, err)
	}

	if hostname, _ := cfg.Get(host, "HostName"); hostname != "" {
		o.Hostname = hostname
	}
	if user, _ := cfg.Get(host, "User"); user != "" {
		o.User = user
	}
	if port, _ := cfg.Get(host, "Port"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return o, fmt.Errorf("invalid Port %q for %s in %s", port, host, configPath)
		}
		o.Port = p
	}
	if identity, _ := cfg.Get(host, "IdentityFile"); identity != "" {
		o.IdentityFile = expandPath(identity)
	}

	// Only warn about Match block if host wasn't found - it might be defined after the Match
	if matchLine > 0 && o.Empty() && log != nil {
		matchWarningOnce.Do(func() {
			log.Warn("Host '%s' not found in SSH config (config has a Match block at line %d that may hide later entries)",
				host, matchLine)
		})
	}

	return o, nil
}

// preprocessSSHConfig reads the SSH config and returns content up to the first Match directive.
// Returns the original content if no Match directive is found.
// Also returns the line number where Match was found (0 if not found).
func preprocessSSHConfig(configPath string) ([]byte, int, error) {
	content, err := os.ReadFile(configPath)
	if err != nil {
		return nil, 0, err
	}

	lines := strings.Split(string(content), "\n")
	var result []string
	matchLine := 0

	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(strings.ToLower(trimmed), "match ") {
			matchLine = i + 1
			break
		}
		result = append(result, line)
	}

	return []byte(strings.Join(result, "\n")), matchLine, nil
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return os.Getenv("HOME")
	}
	return home
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(homeDir(), path[2:])
	}
	return path
}
