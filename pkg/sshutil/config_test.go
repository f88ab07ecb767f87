package sshutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/korasi/korasi/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSSHConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLookupSSHConfig(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	path := writeSSHConfig(t, `
Host 10.0.0.5
    HostName bastion.internal
    User admin
    Port 2222
    IdentityFile ~/.ssh/id_lab

Host 10.0.0.*
    User labuser
`)

	o, err := LookupSSHConfig(path, "10.0.0.5", logger.Noop())
	require.NoError(t, err)
	assert.Equal(t, HostOverrides{
		Hostname:     "bastion.internal",
		User:         "admin",
		Port:         2222,
		IdentityFile: filepath.Join(home, ".ssh", "id_lab"),
	}, o)

	o, err = LookupSSHConfig(path, "10.0.0.9", logger.Noop())
	require.NoError(t, err)
	assert.Equal(t, HostOverrides{User: "labuser"}, o)

	o, err = LookupSSHConfig(path, "192.168.1.1", logger.Noop())
	require.NoError(t, err)
	assert.True(t, o.Empty())
}

func TestLookupSSHConfig_MissingFile(t *testing.T) {
	o, err := LookupSSHConfig(filepath.Join(t.TempDir(), "nope"), "host", logger.Noop())
	require.NoError(t, err)
	assert.True(t, o.Empty())
}

func TestLookupSSHConfig_InvalidPort(t *testing.T) {
	path := writeSSHConfig(t, "Host box\n    Port twenty-two\n")

	_, err := LookupSSHConfig(path, "box", logger.Noop())
	assert.Error(t, err)
}

func TestLookupSSHConfig_MatchBlock(t *testing.T) {
	path := writeSSHConfig(t, `
Host before
    User early

Match host after
    User hidden

Host after
    User late
`)
	log := logger.NewBufferLogger()

	o, err := LookupSSHConfig(path, "before", log)
	require.NoError(t, err)
	assert.Equal(t, "early", o.User)

	o, err = LookupSSHConfig(path, "after", log)
	require.NoError(t, err)
	assert.True(t, o.Empty(), "entries after a Match block are not parsed")
}

func TestPreprocessSSHConfig(t *testing.T) {
	path := writeSSHConfig(t, "Host a\n  User x\nMatch all\n  User y\n")

	content, matchLine, err := preprocessSSHConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 3, matchLine)
	assert.NotContains(t, string(content), "Match")
}

func TestEndpointWithOverrides(t *testing.T) {
	ep := Endpoint{Host: "1.2.3.4", Port: 22, User: "ubuntu"}

	assert.Equal(t, ep, ep.WithOverrides(HostOverrides{}))
	assert.Equal(t,
		Endpoint{Host: "jump", Port: 2200, User: "ops"},
		ep.WithOverrides(HostOverrides{Hostname: "jump", Port: 2200, User: "ops", IdentityFile: "/k"}))
}
