package config

import "time"

// CurrentConfigVersion is the schema version for the config file.
// Increment when making breaking changes to the config structure.
const CurrentConfigVersion = 1

// Provider names accepted in the provider field.
const (
	ProviderEC2    = "ec2"
	ProviderStatic = "static"
)

// Host key policies accepted in ssh.host_key_policy.
const (
	HostKeyAcceptAny  = "accept-any"
	HostKeyTOFU       = "tofu"
	HostKeyKnownHosts = "known-hosts"
)

// Config represents the complete .korasi.yaml configuration file.
type Config struct {
	Version int `yaml:"version" mapstructure:"version"`

	// Profile is the AWS shared-config profile used for cloud calls.
	Profile string `yaml:"profile" mapstructure:"profile"`

	// Region is the cloud region instances live in.
	Region string `yaml:"region" mapstructure:"region"`

	// Tag is the value of the instance tag korasi filters on. Only
	// instances carrying it are listed or touched.
	Tag string `yaml:"tag" mapstructure:"tag"`

	// Provider selects the instance directory: "ec2" or "static".
	Provider string `yaml:"provider" mapstructure:"provider"`

	SSH      SSHConfig             `yaml:"ssh" mapstructure:"ssh"`
	Exec     ExecConfig            `yaml:"exec" mapstructure:"exec"`
	Sync     SyncConfig            `yaml:"sync" mapstructure:"sync"`
	Instance InstanceConfig        `yaml:"instance" mapstructure:"instance"`
	Hosts    map[string]StaticHost `yaml:"hosts,omitempty" mapstructure:"hosts"`
}

// SSHConfig controls how secure channels to instances are established.
type SSHConfig struct {
	// User is the login user on the instance.
	User string `yaml:"user" mapstructure:"user"`

	// Port is the SSH port on the instance.
	Port int `yaml:"port" mapstructure:"port"`

	// IdentityFile is the private key used for public-key auth.
	IdentityFile string `yaml:"identity_file" mapstructure:"identity_file"`

	// ConnectTimeout bounds the TCP dial and the SSH handshake.
	ConnectTimeout time.Duration `yaml:"connect_timeout" mapstructure:"connect_timeout"`

	// HostKeyPolicy is one of accept-any, tofu or known-hosts.
	HostKeyPolicy string `yaml:"host_key_policy" mapstructure:"host_key_policy"`

	// KnownHostsFile is used by the tofu and known-hosts policies.
	KnownHostsFile string `yaml:"known_hosts_file" mapstructure:"known_hosts_file"`

	// UseSSHConfig lets ~/.ssh/config override user, port and identity
	// for a matching instance address.
	UseSSHConfig bool `yaml:"use_ssh_config" mapstructure:"use_ssh_config"`
}

// ExecConfig controls remote command execution.
type ExecConfig struct {
	// PTY requests a pseudo-terminal when stdin is a terminal.
	PTY bool `yaml:"pty" mapstructure:"pty"`

	// Term is the TERM value sent with the PTY request.
	Term string `yaml:"term" mapstructure:"term"`
}

// SyncConfig controls the upload walk.
type SyncConfig struct {
	// Exclude holds gitignore-style patterns applied at the source root.
	Exclude []string `yaml:"exclude" mapstructure:"exclude"`

	// Hidden uploads dot-files and dot-directories too.
	Hidden bool `yaml:"hidden" mapstructure:"hidden"`

	// IgnoreFiles are the per-directory ignore files honored by the walk.
	IgnoreFiles []string `yaml:"ignore_files" mapstructure:"ignore_files"`
}

// InstanceConfig holds provisioning settings used by create and obliterate.
type InstanceConfig struct {
	KeyName       string        `yaml:"key_name" mapstructure:"key_name"`
	SecurityGroup string        `yaml:"security_group" mapstructure:"security_group"`
	SetupScript   string        `yaml:"setup_script" mapstructure:"setup_script"`
	Type          string        `yaml:"type" mapstructure:"type"`
	WaitTimeout   time.Duration `yaml:"wait_timeout" mapstructure:"wait_timeout"`
}

// StaticHost is an inventory entry for the static provider.
type StaticHost struct {
	Address string `yaml:"address" mapstructure:"address"`
	State   string `yaml:"state,omitempty" mapstructure:"state"`
	Type    string `yaml:"type,omitempty" mapstructure:"type"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Version:  CurrentConfigVersion,
		Profile:  "default",
		Region:   "ap-southeast-1",
		Tag:      "korasi",
		Provider: ProviderEC2,
		SSH: SSHConfig{
			User:           "ubuntu",
			Port:           22,
			IdentityFile:   "~/.ssh/korasi-ssh-key.pem",
			ConnectTimeout: 10 * time.Second,
			HostKeyPolicy:  HostKeyAcceptAny,
			KnownHostsFile: "~/.ssh/known_hosts",
			UseSSHConfig:   true,
		},
		Exec: ExecConfig{
			PTY:  true,
			Term: "xterm-256color",
		},
		Sync: SyncConfig{
			Exclude:     []string{},
			IgnoreFiles: []string{".gitignore", ".ignore"},
		},
		Instance: InstanceConfig{
			KeyName:       "korasi-ssh-key",
			SecurityGroup: "korasi-ssh",
			SetupScript:   "start_up.sh",
			Type:          "t3.micro",
			WaitTimeout:   3 * time.Minute,
		},
		Hosts: make(map[string]StaticHost),
	}
}

// Overrides are values supplied on the command line. Empty fields leave
// the loaded config untouched.
type Overrides struct {
	Profile      string
	Region       string
	Tag          string
	IdentityFile string
	User         string
}

// Apply copies every non-empty override into cfg.
func (o Overrides) Apply(cfg *Config) {
	if o.Profile != "" {
		cfg.Profile = o.Profile
	}
	if o.Region != "" {
		cfg.Region = o.Region
	}
	if o.Tag != "" {
		cfg.Tag = o.Tag
	}
	if o.IdentityFile != "" {
		cfg.SSH.IdentityFile = ExpandTilde(o.IdentityFile)
	}
	if o.User != "" {
		cfg.SSH.User = o.User
	}
}
