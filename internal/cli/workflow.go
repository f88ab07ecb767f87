package cli

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"

	"github.com/korasi/korasi/internal/cloud"
	"github.com/korasi/korasi/internal/cloud/ec2"
	"github.com/korasi/korasi/internal/cloud/static"
	"github.com/korasi/korasi/internal/config"
	"github.com/korasi/korasi/internal/errors"
	"github.com/korasi/korasi/internal/host"
	"github.com/korasi/korasi/internal/logger"
	"github.com/korasi/korasi/internal/ui"
	"github.com/korasi/korasi/pkg/sshutil"
	"golang.org/x/term"
)

// Workflow holds what every instance command needs: the effective config
// and the instance directory it points at.
type Workflow struct {
	Config     *config.Config
	ConfigPath string
	Directory  cloud.Directory

	log logger.Logger
}

// newDirectory builds the instance directory for cfg.Provider. Tests
// replace it with an in-memory fake.
var newDirectory = func(ctx context.Context, cfg *config.Config) (cloud.Directory, error) {
	switch cfg.Provider {
	case config.ProviderStatic:
		dir, err := static.New(cfg.Hosts)
		if err != nil {
			return nil, err
		}
		return dir, nil
	default:
		dir, err := ec2.New(ctx, cfg, logger.NewEnvLogger("[cloud]"))
		if err != nil {
			return nil, err
		}
		return dir, nil
	}
}

// loadConfig finds and loads the config, then applies the global flags.
func loadConfig() (*config.Config, string, error) {
	cfg, path, err := config.LoadOrDefault(cfgFile)
	if err != nil {
		return nil, "", err
	}

	config.Overrides{
		Profile:      profileFlag,
		Region:       regionFlag,
		Tag:          tagFlag,
		IdentityFile: sshKeyFlag,
	}.Apply(cfg)

	if err := config.Validate(cfg); err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

// SetupWorkflow loads config and opens the instance directory.
func SetupWorkflow(ctx context.Context) (*Workflow, error) {
	cfg, path, err := loadConfig()
	if err != nil {
		return nil, err
	}

	log := logger.NewEnvLogger("[korasi]")
	if path != "" {
		log.Debug("config: %s", path)
	}

	dir, err := newDirectory(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &Workflow{Config: cfg, ConfigPath: path, Directory: dir, log: log}, nil
}

// Provisioner returns the directory as a Provisioner, or an error when
// the provider can only list and control instances.
func (w *Workflow) Provisioner() (cloud.Provisioner, error) {
	p, ok := w.Directory.(cloud.Provisioner)
	if !ok {
		return nil, errors.New(errors.ErrCloud,
			fmt.Sprintf("The %s provider can't create or destroy resources", w.Config.Provider),
			"Set provider: ec2 in .korasi.yaml to provision instances.")
	}
	return p, nil
}

// SelectRunning lists running instances and lets the user pick one.
func (w *Workflow) SelectRunning(ctx context.Context, title string) (cloud.Instance, error) {
	running, err := w.Directory.List(ctx, cloud.StateRunning)
	if err != nil {
		return cloud.Instance{}, err
	}
	if len(running) == 0 {
		return cloud.Instance{}, errors.New(errors.ErrCloud,
			"No running instances",
			"Start one with 'korasi start', or launch one with 'korasi create <ami-id>'.")
	}
	return ui.SelectInstance(title, running)
}

// Connect opens an authenticated SSH connection to inst. It refreshes the
// SSH ingress rule for the caller's address, waits until sshd answers and
// then authenticates as user (the configured user when empty).
func (w *Workflow) Connect(ctx context.Context, inst cloud.Instance, user string) (*sshutil.Client, error) {
	cfg := w.Config
	if inst.PublicAddress == "" {
		return nil, errors.New(errors.ErrCloud,
			fmt.Sprintf("%s has no public address", inst.ID),
			"Wait until the instance is running, then try again.")
	}

	if p, ok := w.Directory.(cloud.Provisioner); ok {
		if err := p.AllowSSH(ctx); err != nil {
			w.log.Warn("couldn't update SSH ingress: %v", err)
		}
	}

	ep := sshutil.Endpoint{Host: inst.PublicAddress, Port: cfg.SSH.Port, User: cfg.SSH.User}
	if user != "" {
		ep.User = user
	}
	keyPath := config.ExpandTilde(cfg.SSH.IdentityFile)

	if cfg.SSH.UseSSHConfig {
		o, err := sshutil.LookupSSHConfig(sshutil.DefaultSSHConfigPath(), inst.PublicAddress, w.log)
		if err != nil {
			w.log.Warn("ignoring ~/.ssh/config: %v", err)
		} else if !o.Empty() {
			if user != "" {
				o.User = ""
			}
			ep = ep.WithOverrides(o)
			if o.IdentityFile != "" && sshKeyFlag == "" {
				keyPath = config.ExpandTilde(o.IdentityFile)
			}
		}
	}

	id, err := loadIdentity(keyPath)
	if err != nil {
		return nil, err
	}
	policy, err := sshutil.PolicyByName(cfg.SSH.HostKeyPolicy, config.ExpandTilde(cfg.SSH.KnownHostsFile))
	if err != nil {
		return nil, err
	}

	label := inst.Name
	if label == "" {
		label = inst.ID
	}
	err = ui.Track(fmt.Sprintf("Waiting for SSH on %s", label), func() error {
		_, err := host.WaitForSSH(ctx, ep.Address(), host.WaitOptions{
			Timeout: cfg.Instance.WaitTimeout,
			Logger:  w.log,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	return sshutil.Connect(ctx, ep, id, sshutil.ConnectOptions{
		Timeout:  cfg.SSH.ConnectTimeout,
		HostKeys: policy,
		Logger:   logger.NewEnvLogger("[ssh]"),
	})
}

// readPassphrase prompts on the terminal. Tests replace it.
var readPassphrase = func(prompt string) ([]byte, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return nil, stderrors.New("stdin is not a terminal")
	}
	fmt.Fprint(os.Stderr, prompt)
	defer fmt.Fprintln(os.Stderr)
	return term.ReadPassword(fd)
}

// loadIdentity loads the key at path, asking for a passphrase once if
// the key is encrypted.
func loadIdentity(path string) (*sshutil.Identity, error) {
	id, err := sshutil.LoadIdentity(path, nil)
	var encErr *sshutil.EncryptedKeyError
	if !stderrors.As(err, &encErr) {
		return id, err
	}

	pass, perr := readPassphrase(fmt.Sprintf("Passphrase for %s: ", path))
	if perr != nil {
		return nil, errors.WrapWithCode(encErr, errors.ErrAuth,
			"The SSH key is encrypted and no passphrase was given",
			"Run korasi from a terminal to enter it, or point --ssh-key at an unencrypted key.")
	}
	defer clear(pass)
	return sshutil.LoadIdentity(path, pass)
}
