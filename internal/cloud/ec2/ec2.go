// Package ec2 implements cloud.Provisioner on Amazon EC2. Every resource
// korasi creates carries the tag application=<tag>, and only tagged
// resources are listed or touched.
package ec2

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsec2 "github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/smithy-go"

	"github.com/korasi/korasi/internal/cloud"
	"github.com/korasi/korasi/internal/config"
	"github.com/korasi/korasi/internal/errors"
	"github.com/korasi/korasi/internal/logger"
)

// tagKey is the tag every korasi resource carries.
const tagKey = "application"

// DefaultWaitTimeout bounds waits for instances to stop or terminate.
const DefaultWaitTimeout = 3 * time.Minute

// Options configure a Directory.
type Options struct {
	// Tag is the application tag value.
	Tag           string
	KeyName       string
	SecurityGroup string
	// SSHPort is opened to the caller's address by AllowSSH.
	SSHPort     int
	WaitTimeout time.Duration
	// PublicIP returns the caller's public IPv4 address.
	PublicIP IPResolver
	Logger   logger.Logger
}

// OptionsFromConfig derives options from the loaded configuration.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Tag:           cfg.Tag,
		KeyName:       cfg.Instance.KeyName,
		SecurityGroup: cfg.Instance.SecurityGroup,
		SSHPort:       cfg.SSH.Port,
		WaitTimeout:   cfg.Instance.WaitTimeout,
	}
}

// Directory is an EC2-backed cloud.Provisioner.
type Directory struct {
	api  API
	opts Options
	log  logger.Logger
}

// New loads AWS credentials for cfg's profile and region and returns a
// Directory using them.
func New(ctx context.Context, cfg *config.Config, log logger.Logger) (*Directory, error) {
	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.Profile != "" && cfg.Profile != "default" {
		loadOpts = append(loadOpts, awsconfig.WithSharedConfigProfile(cfg.Profile))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrCloud,
			fmt.Sprintf("Can't load AWS credentials for profile '%s'", cfg.Profile),
			"Check ~/.aws/credentials or pass --profile.")
	}

	opts := OptionsFromConfig(cfg)
	opts.Logger = log
	return NewWithAPI(awsec2.NewFromConfig(awsCfg), opts), nil
}

// NewWithAPI returns a Directory over an existing client.
func NewWithAPI(api API, opts Options) *Directory {
	if opts.Logger == nil {
		opts.Logger = logger.NewEnvLogger("[cloud]")
	}
	if opts.PublicIP == nil {
		opts.PublicIP = CheckIP(CheckIPURL)
	}
	if opts.WaitTimeout <= 0 {
		opts.WaitTimeout = DefaultWaitTimeout
	}
	if opts.SSHPort == 0 {
		opts.SSHPort = 22
	}
	return &Directory{api: api, opts: opts, log: opts.Logger}
}

// List returns tagged instances in any of states (ActiveStates by default).
func (d *Directory) List(ctx context.Context, states ...cloud.State) ([]cloud.Instance, error) {
	if len(states) == 0 {
		states = cloud.ActiveStates
	}
	names := make([]string, len(states))
	for i, s := range states {
		names[i] = string(s)
	}

	input := &awsec2.DescribeInstancesInput{
		Filters: []types.Filter{
			d.tagFilter(),
			{Name: aws.String("instance-state-name"), Values: names},
		},
	}

	var out []cloud.Instance
	pages := awsec2.NewDescribeInstancesPaginator(d.api, input)
	for pages.HasMorePages() {
		page, err := pages.NextPage(ctx)
		if err != nil {
			return nil, apiError(err, "Can't list instances")
		}
		for _, r := range page.Reservations {
			for _, inst := range r.Instances {
				out = append(out, toInstance(inst))
			}
		}
	}
	return out, nil
}

// Start starts stopped instances.
func (d *Directory) Start(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	d.log.Info("starting %v", ids)
	if _, err := d.api.StartInstances(ctx, &awsec2.StartInstancesInput{InstanceIds: ids}); err != nil {
		return apiError(err, "Can't start instances")
	}
	return nil
}

// Stop stops instances and, with wait, blocks until they report stopped.
func (d *Directory) Stop(ctx context.Context, wait bool, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	d.log.Info("stopping %v", ids)
	if _, err := d.api.StopInstances(ctx, &awsec2.StopInstancesInput{InstanceIds: ids}); err != nil {
		return apiError(err, "Can't stop instances")
	}
	if !wait {
		return nil
	}

	w := awsec2.NewInstanceStoppedWaiter(d.api)
	if err := w.Wait(ctx, &awsec2.DescribeInstancesInput{InstanceIds: ids}, d.opts.WaitTimeout); err != nil {
		return errors.WrapWithCode(err, errors.ErrCloud, "Instances didn't stop in time",
			fmt.Sprintf("They may still be stopping. Raise instance.wait_timeout (now %s).", d.opts.WaitTimeout))
	}
	return nil
}

// Delete stops and then terminates instances. With wait, it blocks until
// they are terminated.
func (d *Directory) Delete(ctx context.Context, wait bool, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := d.Stop(ctx, wait, ids...); err != nil {
		return err
	}

	d.log.Info("terminating %v", ids)
	if _, err := d.api.TerminateInstances(ctx, &awsec2.TerminateInstancesInput{InstanceIds: ids}); err != nil {
		return apiError(err, "Can't terminate instances")
	}
	if !wait {
		return nil
	}

	w := awsec2.NewInstanceTerminatedWaiter(d.api)
	if err := w.Wait(ctx, &awsec2.DescribeInstancesInput{InstanceIds: ids}, d.opts.WaitTimeout); err != nil {
		return errors.WrapWithCode(err, errors.ErrCloud, "Instances didn't terminate in time", "")
	}
	return nil
}

func (d *Directory) tagFilter() types.Filter {
	return types.Filter{Name: aws.String("tag:" + tagKey), Values: []string{d.opts.Tag}}
}

func (d *Directory) tagSpec(rt types.ResourceType, extra ...types.Tag) types.TagSpecification {
	tags := append([]types.Tag{{Key: aws.String(tagKey), Value: aws.String(d.opts.Tag)}}, extra...)
	return types.TagSpecification{ResourceType: rt, Tags: tags}
}

func toInstance(inst types.Instance) cloud.Instance {
	out := cloud.Instance{
		ID:   aws.ToString(inst.InstanceId),
		Type: string(inst.InstanceType),
	}
	if inst.State != nil {
		out.State = cloud.State(inst.State.Name)
	}
	out.PublicAddress = aws.ToString(inst.PublicDnsName)
	if out.PublicAddress == "" {
		out.PublicAddress = aws.ToString(inst.PublicIpAddress)
	}
	for _, t := range inst.Tags {
		if aws.ToString(t.Key) == "Name" {
			out.Name = aws.ToString(t.Value)
		}
	}
	return out
}

// apiError wraps an SDK error as a CLOUD error, surfacing the service's
// error code when there is one.
func apiError(err error, message string) error {
	var apiErr smithy.APIError
	if stderrors.As(err, &apiErr) {
		return errors.WrapWithCode(err, errors.ErrCloud,
			fmt.Sprintf("%s (%s)", message, apiErr.ErrorCode()),
			suggestionFor(apiErr.ErrorCode()))
	}
	return errors.WrapWithCode(err, errors.ErrCloud, message,
		"Check your network and that AWS credentials are set for this profile.")
}

func suggestionFor(code string) string {
	switch code {
	case "AuthFailure", "UnauthorizedOperation", "InvalidClientTokenId":
		return "Check the credentials for this profile have EC2 permissions."
	case "InvalidAMIID.NotFound", "InvalidAMIID.Malformed":
		return "AMI IDs are region specific. Check the ID exists in this region."
	case "InvalidInstanceID.NotFound":
		return "The instance may already be gone. Run 'korasi list' to refresh."
	case "DependencyViolation":
		return "Something still uses this resource. Wait for instances to terminate and try again."
	default:
		return ""
	}
}

// errorCode returns the service error code of err, if any.
func errorCode(err error) string {
	var apiErr smithy.APIError
	if stderrors.As(err, &apiErr) {
		return apiErr.ErrorCode()
	}
	return ""
}

var _ cloud.Provisioner = (*Directory)(nil)
