package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", ConfigFileName)

	require.NoError(t, WriteDefault(path, DefaultConfig(), false))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().SSH.Port, cfg.SSH.Port)
	assert.Equal(t, DefaultConfig().SSH.ConnectTimeout, cfg.SSH.ConnectTimeout)
	assert.Equal(t, DefaultConfig().Instance.KeyName, cfg.Instance.KeyName)

	err = WriteDefault(path, DefaultConfig(), false)
	assert.Error(t, err, "existing file is not overwritten without force")
	assert.NoError(t, WriteDefault(path, DefaultConfig(), true))
}

func TestSetValue(t *testing.T) {
	tests := []struct {
		name         string
		initialYAML  string
		key          string
		value        string
		wantContains []string
		wantErr      bool
	}{
		{
			name: "replace existing scalar and keep comments",
			initialYAML: `# korasi settings
ssh:
  user: ubuntu # login user
  port: 22
`,
			key:          "ssh.user",
			value:        "admin",
			wantContains: []string{"# korasi settings", "user: admin", "port: 22"},
		},
		{
			name:         "create missing section",
			initialYAML:  "region: eu-west-1\n",
			key:          "exec.term",
			value:        "screen",
			wantContains: []string{"region: eu-west-1", "exec:", "term: screen"},
		},
		{
			name:         "top-level key",
			initialYAML:  "region: eu-west-1\n",
			key:          "region",
			value:        "us-east-1",
			wantContains: []string{"region: us-east-1"},
		},
		{
			name:         "empty file",
			initialYAML:  "",
			key:          "tag",
			value:        "lab",
			wantContains: []string{"tag: lab"},
		},
		{
			name:        "path through a scalar",
			initialYAML: "ssh: plain\n",
			key:         "ssh.user",
			value:       "x",
			wantErr:     true,
		},
		{
			name:        "replacing a section with a scalar",
			initialYAML: "ssh:\n  user: ubuntu\n",
			key:         "ssh",
			value:       "x",
			wantErr:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), ConfigFileName)
			require.NoError(t, os.WriteFile(path, []byte(tt.initialYAML), 0644))

			err := SetValue(path, tt.key, tt.value)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)

			data, err := os.ReadFile(path)
			require.NoError(t, err)
			for _, want := range tt.wantContains {
				assert.Contains(t, string(data), want)
			}
		})
	}
}

func TestSetValue_RoundTripsThroughLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), ConfigFileName)
	require.NoError(t, WriteDefault(path, DefaultConfig(), false))

	require.NoError(t, SetValue(path, "ssh.port", "2222"))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2222, cfg.SSH.Port)
}

func TestSetValue_MissingFile(t *testing.T) {
	err := SetValue(filepath.Join(t.TempDir(), "missing.yaml"), "tag", "x")
	assert.Error(t, err)
}
