package ec2

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/netip"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/korasi/korasi/internal/cloud"
	"github.com/korasi/korasi/internal/config"
	"github.com/korasi/korasi/internal/errors"
	"github.com/korasi/korasi/internal/logger"
)

func newTestDirectory(api *fakeAPI) *Directory {
	return NewWithAPI(api, Options{
		Tag:           "korasi",
		KeyName:       "korasi-ssh-key",
		SecurityGroup: "korasi-ssh",
		SSHPort:       22,
		PublicIP:      fixedIP("203.0.113.7"),
		Logger:        logger.Noop(),
	})
}

func TestOptionsFromConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Tag = "team-a"
	cfg.SSH.Port = 2222

	opts := OptionsFromConfig(cfg)
	assert.Equal(t, "team-a", opts.Tag)
	assert.Equal(t, "korasi-ssh-key", opts.KeyName)
	assert.Equal(t, "korasi-ssh", opts.SecurityGroup)
	assert.Equal(t, 2222, opts.SSHPort)
	assert.Equal(t, cfg.Instance.WaitTimeout, opts.WaitTimeout)
}

func TestList(t *testing.T) {
	api := newFakeAPI()
	api.addInstance("i-1", "alpha", "korasi", types.InstanceStateNameRunning)
	api.addInstance("i-2", "beta", "korasi", types.InstanceStateNameStopped)
	api.addInstance("i-3", "gone", "korasi", types.InstanceStateNameTerminated)
	api.addInstance("i-4", "other-team", "someone-else", types.InstanceStateNameRunning)
	api.addInstance("i-5", "gamma", "korasi", types.InstanceStateNamePending)
	api.instances[0].PublicDnsName = aws.String("ec2-1-2-3-4.compute.amazonaws.com")
	api.instances[1].PublicIpAddress = aws.String("5.6.7.8")
	d := newTestDirectory(api)

	all, err := d.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"i-1", "i-2", "i-5"}, cloud.IDs(all), "active tagged instances across pages")
	assert.GreaterOrEqual(t, api.callCount("DescribeInstances"), 2)

	assert.Equal(t, cloud.Instance{
		Name:          "alpha",
		ID:            "i-1",
		State:         cloud.StateRunning,
		Type:          "t3.micro",
		PublicAddress: "ec2-1-2-3-4.compute.amazonaws.com",
	}, all[0])
	assert.Equal(t, "5.6.7.8", all[1].PublicAddress, "falls back to the public IP")

	running, err := d.List(context.Background(), cloud.StateRunning)
	require.NoError(t, err)
	assert.Equal(t, []string{"i-1"}, cloud.IDs(running))
}

func TestList_APIError(t *testing.T) {
	api := newFakeAPI()
	api.errs["DescribeInstances"] = apiErr("AuthFailure")

	_, err := newTestDirectory(api).List(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCloud))
	assert.Contains(t, err.Error(), "AuthFailure")
	assert.Contains(t, err.Error(), "EC2 permissions")
}

func TestStartStop(t *testing.T) {
	api := newFakeAPI()
	api.addInstance("i-1", "a", "korasi", types.InstanceStateNameStopped)
	api.addInstance("i-2", "b", "korasi", types.InstanceStateNameStopped)
	d := newTestDirectory(api)
	ctx := context.Background()

	require.NoError(t, d.Start(ctx, "i-1", "i-2"))
	assert.Equal(t, types.InstanceStateNameRunning, api.state("i-1"))
	assert.Equal(t, types.InstanceStateNameRunning, api.state("i-2"))

	require.NoError(t, d.Stop(ctx, false, "i-1"))
	assert.Equal(t, types.InstanceStateNameStopped, api.state("i-1"))

	require.NoError(t, d.Stop(ctx, true, "i-2"))
	assert.Equal(t, types.InstanceStateNameStopped, api.state("i-2"))
}

func TestStartStop_NoIDs(t *testing.T) {
	api := newFakeAPI()
	d := newTestDirectory(api)

	require.NoError(t, d.Start(context.Background()))
	require.NoError(t, d.Stop(context.Background(), true))
	require.NoError(t, d.Delete(context.Background(), true))
	assert.Empty(t, api.calls)
}

func TestStart_UnknownInstance(t *testing.T) {
	err := newTestDirectory(newFakeAPI()).Start(context.Background(), "i-nope")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCloud))
	assert.Contains(t, err.Error(), "korasi list")
}

func TestDelete(t *testing.T) {
	for _, wait := range []bool{false, true} {
		t.Run(fmt.Sprintf("wait=%v", wait), func(t *testing.T) {
			api := newFakeAPI()
			api.addInstance("i-1", "a", "korasi", types.InstanceStateNameRunning)

			require.NoError(t, newTestDirectory(api).Delete(context.Background(), wait, "i-1"))
			assert.Equal(t, types.InstanceStateNameTerminated, api.state("i-1"))
			assert.Equal(t, 1, api.callCount("StopInstances"), "stopped before termination")
			assert.Equal(t, 1, api.callCount("TerminateInstances"))
		})
	}
}

func TestCreate(t *testing.T) {
	api := newFakeAPI()
	d := newTestDirectory(api)
	keyPath := filepath.Join(t.TempDir(), ".ssh", "korasi-ssh-key.pem")

	id, err := d.Create(context.Background(), cloud.CreateRequest{
		ImageID:      "ami-0abc",
		InstanceType: "t3.micro",
		Name:         "korasi-test",
		UserData:     []byte("#!/bin/sh\necho hi\n"),
		KeyPath:      keyPath,
	})
	require.NoError(t, err)
	assert.Equal(t, "i-0001", id)

	// Key pair material saved read-only.
	info, err := os.Stat(keyPath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0400), info.Mode().Perm())
	data, err := os.ReadFile(keyPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "OPENSSH PRIVATE KEY")
	assert.Equal(t, types.KeyTypeEd25519, api.keyPairs[0].KeyType)

	// Security group created with the caller's address allowed on SSH.
	require.Len(t, api.groups, 1)
	assert.Equal(t, "korasi", tagValue(api.groups[0].Tags, tagKey))
	perms := api.ingress["sg-0001"]
	require.Len(t, perms, 1)
	assert.Equal(t, "203.0.113.7/32", aws.ToString(perms[0].IpRanges[0].CidrIp))
	assert.Equal(t, int32(22), aws.ToInt32(perms[0].FromPort))
	assert.Equal(t, "tcp", aws.ToString(perms[0].IpProtocol))

	// Launch request.
	require.Len(t, api.runInputs, 1)
	in := api.runInputs[0]
	assert.Equal(t, "ami-0abc", aws.ToString(in.ImageId))
	assert.Equal(t, types.InstanceType("t3.micro"), in.InstanceType)
	assert.Equal(t, "korasi-ssh-key", aws.ToString(in.KeyName))
	assert.Equal(t, []string{"sg-0001"}, in.SecurityGroupIds)
	assert.Equal(t, int32(1), aws.ToInt32(in.MinCount))
	assert.Equal(t, int32(1), aws.ToInt32(in.MaxCount))
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("#!/bin/sh\necho hi\n")), aws.ToString(in.UserData))

	listed, err := d.List(context.Background())
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, "korasi-test", listed[0].Name)
}

func TestCreate_GeneratesName(t *testing.T) {
	api := newFakeAPI()
	_, err := newTestDirectory(api).Create(context.Background(), cloud.CreateRequest{
		ImageID: "ami-0abc", InstanceType: "t3.micro", KeyPath: filepath.Join(t.TempDir(), "k.pem"),
	})
	require.NoError(t, err)

	name := tagValue(api.runInputs[0].TagSpecifications[0].Tags, "Name")
	assert.Regexp(t, `^korasi-[0-9a-f]{8}$`, name)
	assert.Nil(t, api.runInputs[0].UserData, "no setup script, no user data")
}

func TestCreate_ReusesExistingResources(t *testing.T) {
	api := newFakeAPI()
	d := newTestDirectory(api)
	keyPath := filepath.Join(t.TempDir(), "k.pem")
	req := cloud.CreateRequest{ImageID: "ami-0abc", InstanceType: "t3.micro", KeyPath: keyPath}

	_, err := d.Create(context.Background(), req)
	require.NoError(t, err)
	_, err = d.Create(context.Background(), req)
	require.NoError(t, err, "duplicate key pair and ingress rule are reused")

	assert.Len(t, api.keyPairs, 1)
	assert.Len(t, api.groups, 1)
	assert.Len(t, api.ingress["sg-0001"], 1)
	assert.Len(t, api.runInputs, 2)
	assert.Equal(t, 1, api.callCount("CreateSecurityGroup"))
}

func TestCreate_Errors(t *testing.T) {
	tests := []struct {
		name     string
		req      cloud.CreateRequest
		setup    func(*fakeAPI, *Directory)
		wantCode string
		contains string
	}{
		{
			name:     "missing image",
			req:      cloud.CreateRequest{InstanceType: "t3.micro"},
			wantCode: errors.ErrConfig,
		},
		{
			name: "key pair creation fails with nothing to reuse",
			req:  cloud.CreateRequest{ImageID: "ami-1", InstanceType: "t3.micro"},
			setup: func(api *fakeAPI, _ *Directory) {
				api.errs["CreateKeyPair"] = apiErr("UnauthorizedOperation")
			},
			wantCode: errors.ErrCloud,
			contains: "UnauthorizedOperation",
		},
		{
			name: "public address lookup fails",
			req:  cloud.CreateRequest{ImageID: "ami-1", InstanceType: "t3.micro"},
			setup: func(_ *fakeAPI, d *Directory) {
				d.opts.PublicIP = func(context.Context) (netip.Addr, error) {
					return netip.Addr{}, fmt.Errorf("no network")
				}
			},
			wantCode: errors.ErrCloud,
			contains: "public IP",
		},
		{
			name: "launch rejected",
			req:  cloud.CreateRequest{ImageID: "ami-bad", InstanceType: "t3.micro"},
			setup: func(api *fakeAPI, _ *Directory) {
				api.errs["RunInstances"] = apiErr("InvalidAMIID.NotFound")
			},
			wantCode: errors.ErrCloud,
			contains: "region specific",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := newFakeAPI()
			d := newTestDirectory(api)
			if tt.setup != nil {
				tt.setup(api, d)
			}
			tt.req.KeyPath = filepath.Join(t.TempDir(), "k.pem")

			_, err := d.Create(context.Background(), tt.req)
			require.Error(t, err)
			assert.True(t, errors.IsCode(err, tt.wantCode), "got %v", err)
			if tt.contains != "" {
				assert.Contains(t, err.Error(), tt.contains)
			}
		})
	}
}

func TestAllowSSH(t *testing.T) {
	api := newFakeAPI()
	d := newTestDirectory(api)
	ctx := context.Background()

	require.NoError(t, d.AllowSSH(ctx))
	require.NoError(t, d.AllowSSH(ctx), "an existing rule is fine")

	d.opts.PublicIP = fixedIP("198.51.100.20")
	require.NoError(t, d.AllowSSH(ctx))

	var cidrs []string
	for _, p := range api.ingress["sg-0001"] {
		cidrs = append(cidrs, aws.ToString(p.IpRanges[0].CidrIp))
	}
	assert.Equal(t, []string{"203.0.113.7/32", "198.51.100.20/32"}, cidrs)
}

func TestAllowSSH_CustomPort(t *testing.T) {
	api := newFakeAPI()
	d := NewWithAPI(api, Options{Tag: "korasi", SecurityGroup: "sg", SSHPort: 2222, PublicIP: fixedIP("203.0.113.7"), Logger: logger.Noop()})

	require.NoError(t, d.AllowSSH(context.Background()))
	perm := api.ingress["sg-0001"][0]
	assert.Equal(t, int32(2222), aws.ToInt32(perm.FromPort))
	assert.Equal(t, int32(2222), aws.ToInt32(perm.ToPort))
}

func TestObliterate(t *testing.T) {
	api := newFakeAPI()
	d := newTestDirectory(api)
	ctx := context.Background()
	keyPath := filepath.Join(t.TempDir(), "k.pem")

	id, err := d.Create(ctx, cloud.CreateRequest{ImageID: "ami-1", InstanceType: "t3.micro", KeyPath: keyPath})
	require.NoError(t, err)
	api.addInstance("i-old", "old", "korasi", types.InstanceStateNameStopped)

	report, err := d.Obliterate(ctx, keyPath)
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{id, "i-old"}, report.Instances)
	assert.Equal(t, "sg-0001", report.SecurityGroup)
	assert.Equal(t, []string{"key-0001"}, report.KeyPairs)
	assert.Equal(t, keyPath, report.KeyFile)

	assert.Equal(t, types.InstanceStateNameTerminated, api.state(id))
	assert.Empty(t, api.groups)
	assert.Empty(t, api.keyPairs)
	_, err = os.Stat(keyPath)
	assert.True(t, os.IsNotExist(err))

	// Nothing left: a second run is a no-op.
	again, err := d.Obliterate(ctx, keyPath)
	require.NoError(t, err)
	assert.Equal(t, &cloud.ObliterateReport{}, again)
}

func TestApiError_WithoutServiceCode(t *testing.T) {
	err := apiError(fmt.Errorf("dial tcp: no such host"), "Can't list instances")
	assert.True(t, errors.IsCode(err, errors.ErrCloud))
	assert.Contains(t, err.Error(), "credentials")
	assert.Equal(t, "", errorCode(fmt.Errorf("plain")))
}
