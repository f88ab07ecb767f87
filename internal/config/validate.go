package config

import (
	"fmt"
	"strings"

	"github.com/korasi/korasi/internal/errors"
)

// Validate checks the config for errors and returns structured error messages.
func Validate(cfg *Config) error {
	if cfg.Version > CurrentConfigVersion {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("This config is from the future (version %d, but korasi only knows up to %d)", cfg.Version, CurrentConfigVersion),
			"Upgrade korasi or lower the version field.")
	}

	switch cfg.Provider {
	case ProviderEC2:
		if cfg.Region == "" {
			return errors.New(errors.ErrConfig,
				"No region configured for the ec2 provider",
				"Set 'region' in .korasi.yaml or pass --region.")
		}
	case ProviderStatic:
		if err := validateStaticHosts(cfg.Hosts); err != nil {
			return err
		}
	default:
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("Unknown provider '%s'", cfg.Provider),
			"Use 'ec2' or 'static'.")
	}

	if err := validateSSH(cfg.SSH); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig, err.Error(), "Check the 'ssh' section in your .korasi.yaml.")
	}

	if cfg.Exec.PTY && cfg.Exec.Term == "" {
		return errors.New(errors.ErrConfig,
			"exec.term is empty but exec.pty is enabled",
			"Set exec.term, for example 'xterm-256color'.")
	}

	if cfg.Instance.WaitTimeout < 0 {
		return errors.New(errors.ErrConfig,
			"instance.wait_timeout can't be negative",
			"Use a duration like '3m'.")
	}

	return nil
}

func validateSSH(s SSHConfig) error {
	if strings.TrimSpace(s.User) == "" {
		return fmt.Errorf("ssh.user is empty")
	}
	if s.Port < 1 || s.Port > 65535 {
		return fmt.Errorf("ssh.port %d is out of range (1-65535)", s.Port)
	}
	if s.ConnectTimeout <= 0 {
		return fmt.Errorf("ssh.connect_timeout must be positive, got %s", s.ConnectTimeout)
	}
	switch s.HostKeyPolicy {
	case HostKeyAcceptAny:
	case HostKeyTOFU, HostKeyKnownHosts:
		if s.KnownHostsFile == "" {
			return fmt.Errorf("ssh.host_key_policy '%s' needs ssh.known_hosts_file", s.HostKeyPolicy)
		}
	default:
		return fmt.Errorf("ssh.host_key_policy '%s' is not one of accept-any, tofu, known-hosts", s.HostKeyPolicy)
	}
	return nil
}

func validateStaticHosts(hosts map[string]StaticHost) error {
	if len(hosts) == 0 {
		return errors.New(errors.ErrConfig,
			"The static provider has no hosts",
			"Add entries under 'hosts' with at least an address.")
	}
	for name, h := range hosts {
		if strings.TrimSpace(h.Address) == "" {
			return errors.New(errors.ErrConfig,
				fmt.Sprintf("Host '%s' has no address", name),
				"Set hosts."+name+".address to a hostname or IP.")
		}
		if strings.Contains(h.Address, "@") {
			return errors.New(errors.ErrConfig,
				fmt.Sprintf("Host '%s' address '%s' looks like user@host", name, h.Address),
				"Put the login user in ssh.user and keep just the host here.")
		}
	}
	return nil
}
