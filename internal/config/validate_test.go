package config

import (
	"testing"
	"time"

	"github.com/korasi/korasi/internal/errors"
	"github.com/stretchr/testify/assert"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "defaults are valid",
			mutate: func(c *Config) {},
		},
		{
			name:    "future version",
			mutate:  func(c *Config) { c.Version = CurrentConfigVersion + 1 },
			wantErr: "from the future",
		},
		{
			name:    "unknown provider",
			mutate:  func(c *Config) { c.Provider = "gcp" },
			wantErr: "Unknown provider",
		},
		{
			name:    "ec2 without region",
			mutate:  func(c *Config) { c.Region = "" },
			wantErr: "No region",
		},
		{
			name:    "static without hosts",
			mutate:  func(c *Config) { c.Provider = ProviderStatic },
			wantErr: "no hosts",
		},
		{
			name: "static host without address",
			mutate: func(c *Config) {
				c.Provider = ProviderStatic
				c.Hosts["dev"] = StaticHost{}
			},
			wantErr: "has no address",
		},
		{
			name: "static host with user in address",
			mutate: func(c *Config) {
				c.Provider = ProviderStatic
				c.Hosts["dev"] = StaticHost{Address: "ubuntu@10.0.0.1"}
			},
			wantErr: "looks like user@host",
		},
		{
			name:    "empty user",
			mutate:  func(c *Config) { c.SSH.User = " " },
			wantErr: "ssh.user is empty",
		},
		{
			name:    "port out of range",
			mutate:  func(c *Config) { c.SSH.Port = 70000 },
			wantErr: "out of range",
		},
		{
			name:    "zero port",
			mutate:  func(c *Config) { c.SSH.Port = 0 },
			wantErr: "out of range",
		},
		{
			name:    "non-positive connect timeout",
			mutate:  func(c *Config) { c.SSH.ConnectTimeout = 0 },
			wantErr: "connect_timeout",
		},
		{
			name:    "unknown host key policy",
			mutate:  func(c *Config) { c.SSH.HostKeyPolicy = "yolo" },
			wantErr: "not one of",
		},
		{
			name: "known-hosts policy needs a file",
			mutate: func(c *Config) {
				c.SSH.HostKeyPolicy = HostKeyKnownHosts
				c.SSH.KnownHostsFile = ""
			},
			wantErr: "needs ssh.known_hosts_file",
		},
		{
			name:    "pty without term",
			mutate:  func(c *Config) { c.Exec.Term = "" },
			wantErr: "exec.term",
		},
		{
			name: "term may be empty without pty",
			mutate: func(c *Config) {
				c.Exec.PTY = false
				c.Exec.Term = ""
			},
		},
		{
			name:    "negative wait timeout",
			mutate:  func(c *Config) { c.Instance.WaitTimeout = -time.Second },
			wantErr: "wait_timeout",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)

			err := Validate(cfg)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			if assert.Error(t, err) {
				assert.Contains(t, err.Error(), tt.wantErr)
				assert.True(t, errors.IsCode(err, errors.ErrConfig))
			}
		})
	}
}
