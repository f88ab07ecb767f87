package ec2

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsec2 "github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/korasi/korasi/internal/cloud"
	"github.com/korasi/korasi/internal/errors"
	"github.com/korasi/korasi/internal/setup"
)

// Create launches one instance. It first makes sure the key pair exists
// (saving the private key to req.KeyPath when it is new) and that the
// security group admits SSH from the caller's address.
func (d *Directory) Create(ctx context.Context, req cloud.CreateRequest) (string, error) {
	if req.ImageID == "" {
		return "", errors.New(errors.ErrConfig, "No image ID given", "Pass an AMI ID, e.g. korasi create ami-0abc123.")
	}

	keyName, err := d.ensureKeyPair(ctx, req.KeyPath)
	if err != nil {
		return "", err
	}
	groupID, err := d.ensureSecurityGroup(ctx)
	if err != nil {
		return "", err
	}
	if err := d.authorize(ctx, groupID); err != nil {
		return "", err
	}

	name := req.Name
	if name == "" {
		name = cloud.NewName()
	}
	input := &awsec2.RunInstancesInput{
		ImageId:          aws.String(req.ImageID),
		InstanceType:     types.InstanceType(req.InstanceType),
		KeyName:          aws.String(keyName),
		SecurityGroupIds: []string{groupID},
		MinCount:         aws.Int32(1),
		MaxCount:         aws.Int32(1),
		TagSpecifications: []types.TagSpecification{
			d.tagSpec(types.ResourceTypeInstance, types.Tag{Key: aws.String("Name"), Value: aws.String(name)}),
		},
	}
	if len(req.UserData) > 0 {
		input.UserData = aws.String(base64.StdEncoding.EncodeToString(req.UserData))
	}

	out, err := d.api.RunInstances(ctx, input)
	if err != nil {
		return "", apiError(err, fmt.Sprintf("Can't launch %s from %s", req.InstanceType, req.ImageID))
	}
	if len(out.Instances) == 0 {
		return "", errors.New(errors.ErrCloud, "EC2 accepted the launch but returned no instance", "Run 'korasi list' to check.")
	}

	id := aws.ToString(out.Instances[0].InstanceId)
	d.log.Info("created %s as %s", name, id)
	return id, nil
}

// AllowSSH opens the SSH port to the caller's current public address.
// Addresses change between networks, so this runs before every connect.
func (d *Directory) AllowSSH(ctx context.Context) error {
	groupID, err := d.ensureSecurityGroup(ctx)
	if err != nil {
		return err
	}
	return d.authorize(ctx, groupID)
}

// Obliterate removes every tagged instance (waiting for termination), the
// security group, the key pairs and the local private key.
func (d *Directory) Obliterate(ctx context.Context, keyPath string) (*cloud.ObliterateReport, error) {
	report := &cloud.ObliterateReport{}

	instances, err := d.List(ctx)
	if err != nil {
		return report, err
	}
	if ids := cloud.IDs(instances); len(ids) > 0 {
		if err := d.Delete(ctx, true, ids...); err != nil {
			return report, err
		}
		report.Instances = ids
	}

	groupID, found, err := d.findSecurityGroup(ctx)
	if err != nil {
		return report, err
	}
	if found {
		d.log.Info("deleting security group %s", groupID)
		if _, err := d.api.DeleteSecurityGroup(ctx, &awsec2.DeleteSecurityGroupInput{GroupId: aws.String(groupID)}); err != nil {
			return report, apiError(err, fmt.Sprintf("Can't delete security group %s", groupID))
		}
		report.SecurityGroup = groupID
	}

	keys, err := d.findKeyPairs(ctx)
	if err != nil {
		return report, err
	}
	for _, k := range keys {
		id := aws.ToString(k.KeyPairId)
		d.log.Info("deleting key pair %s", id)
		if _, err := d.api.DeleteKeyPair(ctx, &awsec2.DeleteKeyPairInput{KeyPairId: k.KeyPairId}); err != nil {
			return report, apiError(err, fmt.Sprintf("Can't delete key pair %s", id))
		}
		report.KeyPairs = append(report.KeyPairs, id)
	}

	// The private key is useless once its key pair is gone.
	if keyPath != "" {
		removed, err := setup.RemoveKey(keyPath)
		if err != nil {
			return report, err
		}
		if removed {
			report.KeyFile = keyPath
		}
	}
	return report, nil
}

// ensureKeyPair creates the ed25519 key pair and saves its private key, or
// reuses an existing pair of the same name.
func (d *Directory) ensureKeyPair(ctx context.Context, keyPath string) (string, error) {
	name := d.opts.KeyName
	out, err := d.api.CreateKeyPair(ctx, &awsec2.CreateKeyPairInput{
		KeyName:           aws.String(name),
		KeyType:           types.KeyTypeEd25519,
		KeyFormat:         types.KeyFormatPem,
		TagSpecifications: []types.TagSpecification{d.tagSpec(types.ResourceTypeKeyPair)},
	})
	if err == nil {
		if keyPath == "" {
			return "", errors.New(errors.ErrConfig, "Nowhere to save the new private key", "Set ssh.identity_file or pass --ssh-key.")
		}
		material := []byte(aws.ToString(out.KeyMaterial))
		defer clear(material)
		if err := setup.WriteSecure(keyPath, material, setup.PrivateKeyMode); err != nil {
			return "", err
		}
		d.log.Info("created key pair %s, private key saved to %s", name, keyPath)
		return name, nil
	}

	// Most likely the pair already exists; its private key should already
	// be on disk from when it was created.
	d.log.Debug("create key pair %s: %v", name, err)
	existing, lerr := d.findKeyPairs(ctx)
	if lerr != nil {
		return "", lerr
	}
	if len(existing) == 0 {
		return "", apiError(err, fmt.Sprintf("Can't create key pair %s", name))
	}
	if keyPath != "" && !setup.KeyExists(keyPath) {
		d.log.Warn("reusing key pair %s but %s doesn't exist; you won't be able to log in", name, keyPath)
	}
	d.log.Info("reusing key pair %s", aws.ToString(existing[0].KeyName))
	return aws.ToString(existing[0].KeyName), nil
}

func (d *Directory) findKeyPairs(ctx context.Context) ([]types.KeyPairInfo, error) {
	out, err := d.api.DescribeKeyPairs(ctx, &awsec2.DescribeKeyPairsInput{
		Filters: []types.Filter{
			{Name: aws.String("key-name"), Values: []string{d.opts.KeyName}},
			d.tagFilter(),
		},
	})
	if err != nil {
		return nil, apiError(err, fmt.Sprintf("Can't look up key pair %s", d.opts.KeyName))
	}
	return out.KeyPairs, nil
}

// ensureSecurityGroup returns the ID of korasi's security group, creating
// it if needed.
func (d *Directory) ensureSecurityGroup(ctx context.Context) (string, error) {
	id, found, err := d.findSecurityGroup(ctx)
	if err != nil || found {
		return id, err
	}

	d.log.Info("creating security group %s", d.opts.SecurityGroup)
	out, err := d.api.CreateSecurityGroup(ctx, &awsec2.CreateSecurityGroupInput{
		GroupName:         aws.String(d.opts.SecurityGroup),
		Description:       aws.String("Enables ssh into instance from your IP."),
		TagSpecifications: []types.TagSpecification{d.tagSpec(types.ResourceTypeSecurityGroup)},
	})
	if err != nil {
		return "", apiError(err, fmt.Sprintf("Can't create security group %s", d.opts.SecurityGroup))
	}
	return aws.ToString(out.GroupId), nil
}

func (d *Directory) findSecurityGroup(ctx context.Context) (string, bool, error) {
	out, err := d.api.DescribeSecurityGroups(ctx, &awsec2.DescribeSecurityGroupsInput{
		Filters: []types.Filter{
			{Name: aws.String("group-name"), Values: []string{d.opts.SecurityGroup}},
			d.tagFilter(),
		},
	})
	if err != nil {
		return "", false, apiError(err, fmt.Sprintf("Can't look up security group %s", d.opts.SecurityGroup))
	}
	switch len(out.SecurityGroups) {
	case 0:
		return "", false, nil
	case 1:
		return aws.ToString(out.SecurityGroups[0].GroupId), true, nil
	default:
		return "", false, errors.New(errors.ErrCloud,
			fmt.Sprintf("Found %d security groups named %s", len(out.SecurityGroups), d.opts.SecurityGroup),
			"Delete the extras in the EC2 console.")
	}
}

// authorize adds an ingress rule for the caller's address. A rule that
// already exists is fine.
func (d *Directory) authorize(ctx context.Context, groupID string) error {
	ip, err := d.opts.PublicIP(ctx)
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrCloud, "Can't determine your public IP address",
			"Check your internet connection.")
	}
	d.log.Debug("authorizing %s on port %d in %s", ip, d.opts.SSHPort, groupID)

	port := int32(d.opts.SSHPort)
	_, err = d.api.AuthorizeSecurityGroupIngress(ctx, &awsec2.AuthorizeSecurityGroupIngressInput{
		GroupId: aws.String(groupID),
		IpPermissions: []types.IpPermission{{
			IpProtocol: aws.String("tcp"),
			FromPort:   aws.Int32(port),
			ToPort:     aws.Int32(port),
			IpRanges:   []types.IpRange{{CidrIp: aws.String(ip.String() + "/32")}},
		}},
	})
	if err != nil {
		if errorCode(err) == "InvalidPermission.Duplicate" {
			d.log.Debug("%s is already allowed", ip)
			return nil
		}
		return apiError(err, fmt.Sprintf("Can't allow SSH from %s", ip))
	}
	return nil
}
