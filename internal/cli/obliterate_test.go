package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/korasi/korasi/internal/cloud"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObliterateCommand(t *testing.T) {
	useConfig(t, ec2Config)
	fake := fleet()
	useDirectory(t, fake)

	var out bytes.Buffer
	require.NoError(t, obliterateCommand(context.Background(), true, &out))

	assert.Contains(t, fake.Calls, "obliterate")
	for _, inst := range fake.Instances() {
		assert.Equal(t, cloud.StateTerminated, inst.State, inst.ID)
	}
	assert.Contains(t, out.String(), "Obliterated")
	assert.Contains(t, out.String(), "i-1, i-2")
	assert.Contains(t, out.String(), "/tmp/korasi-test-key.pem")
}

func TestObliterateCommand_JSON(t *testing.T) {
	useConfig(t, ec2Config)
	useDirectory(t, fleet())
	useMachineMode(t)

	var out bytes.Buffer
	require.NoError(t, obliterateCommand(context.Background(), true, &out))

	var env struct {
		Success bool                   `json:"success"`
		Data    cloud.ObliterateReport `json:"data"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &env))
	assert.True(t, env.Success)
	assert.Equal(t, []string{"i-1", "i-2"}, env.Data.Instances)
	assert.Equal(t, "/tmp/korasi-test-key.pem", env.Data.KeyFile)
}

func TestPrintObliterateReport_Empty(t *testing.T) {
	var out bytes.Buffer
	printObliterateReport(&out, &cloud.ObliterateReport{})

	assert.Contains(t, out.String(), "security group  (none)")
	assert.Contains(t, out.String(), "key file        (none)")
}
