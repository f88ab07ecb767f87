package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/korasi/korasi/internal/cloud"
	cloudtest "github.com/korasi/korasi/internal/cloud/testing"
	"github.com/korasi/korasi/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fleet() *cloudtest.FakeProvisioner {
	return cloudtest.NewFakeProvisioner(
		cloud.Instance{Name: "web", ID: "i-1", Type: "t3.micro", State: cloud.StateRunning, PublicAddress: "1.2.3.4"},
		cloud.Instance{Name: "batch", ID: "i-2", Type: "c7i.large", State: cloud.StateStopped},
		cloud.Instance{Name: "old", ID: "i-3", Type: "t3.micro", State: cloud.StateTerminated},
	)
}

func TestListCommand_Table(t *testing.T) {
	useConfig(t, ec2Config)
	useDirectory(t, fleet())

	var out bytes.Buffer
	require.NoError(t, listCommand(context.Background(), false, &out))

	assert.Contains(t, out.String(), "web")
	assert.Contains(t, out.String(), "1.2.3.4")
	assert.Contains(t, out.String(), "batch")
	assert.NotContains(t, out.String(), "i-3", "terminated instances are hidden by default")
}

func TestListCommand_All(t *testing.T) {
	useConfig(t, ec2Config)
	useDirectory(t, fleet())

	var out bytes.Buffer
	require.NoError(t, listCommand(context.Background(), true, &out))
	assert.Contains(t, out.String(), "i-3")
}

func TestListCommand_Empty(t *testing.T) {
	useConfig(t, ec2Config)
	useDirectory(t, cloudtest.NewFakeProvisioner())

	var out bytes.Buffer
	require.NoError(t, listCommand(context.Background(), false, &out))
	assert.Contains(t, out.String(), "No instances found")
}

func TestListCommand_JSON(t *testing.T) {
	useConfig(t, ec2Config)
	useDirectory(t, fleet())
	useMachineMode(t)

	var out bytes.Buffer
	require.NoError(t, listCommand(context.Background(), false, &out))

	var env struct {
		Success bool           `json:"success"`
		Data    []InstanceJSON `json:"data"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &env))
	assert.True(t, env.Success)
	require.Len(t, env.Data, 2)
	assert.Equal(t, InstanceJSON{Name: "web", ID: "i-1", Type: "t3.micro", State: "running", Address: "1.2.3.4"}, env.Data[0])
	assert.Equal(t, "stopped", env.Data[1].State)
}

func TestChangeStateCommand(t *testing.T) {
	tests := []struct {
		name     string
		change   stateChange
		wantCall string
		wantOut  string
		wantID   string
		want     cloud.State
	}{
		{
			name:     "start the stopped instance",
			change:   startChange,
			wantCall: "start [i-2]",
			wantOut:  "Started 1 instance",
			wantID:   "i-2",
			want:     cloud.StateRunning,
		},
		{
			name:     "stop the running instance and wait",
			change:   stopChange(true),
			wantCall: "stop wait=true [i-1]",
			wantOut:  "Stopped 1 instance",
			wantID:   "i-1",
			want:     cloud.StateStopped,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			useConfig(t, ec2Config)
			fake := fleet()
			useDirectory(t, fake)

			var out bytes.Buffer
			require.NoError(t, changeStateCommand(context.Background(), tt.change, &out))

			assert.Contains(t, fake.Calls, tt.wantCall)
			assert.Contains(t, out.String(), tt.wantOut)
			for _, inst := range fake.Instances() {
				if inst.ID == tt.wantID {
					assert.Equal(t, tt.want, inst.State)
				}
			}
		})
	}
}

func TestChangeStateCommand_NoCandidates(t *testing.T) {
	useConfig(t, ec2Config)
	fake := cloudtest.NewFakeProvisioner(
		cloud.Instance{Name: "web", ID: "i-1", State: cloud.StateRunning},
	)
	useDirectory(t, fake)

	var out bytes.Buffer
	err := changeStateCommand(context.Background(), startChange, &out)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCloud))
	assert.Equal(t, []string{"list"}, fake.Calls)
}

func TestChangeStateCommand_ApplyFails(t *testing.T) {
	useConfig(t, ec2Config)
	fake := cloudtest.NewFakeProvisioner(
		cloud.Instance{Name: "web", ID: "i-1", State: cloud.StateRunning},
	)
	useDirectory(t, fake)

	boom := errors.New(errors.ErrCloud, "UnauthorizedOperation", "")
	change := deleteChange(false)
	change.apply = func(context.Context, cloud.Directory, []string) error { return boom }

	var out bytes.Buffer
	err := changeStateCommand(context.Background(), change, &out)
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, out.String())
}
