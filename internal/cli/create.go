package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/korasi/korasi/internal/cloud"
	"github.com/korasi/korasi/internal/config"
	"github.com/korasi/korasi/internal/errors"
	"github.com/korasi/korasi/internal/ui"
)

// CreateOptions configures the create command.
type CreateOptions struct {
	Type string
	Name string
	// Setup is a script run on first boot. SetupExplicit marks it as
	// given on the command line, where a missing file is an error.
	Setup         string
	SetupExplicit bool
}

// createCommand launches one instance from image.
func createCommand(ctx context.Context, image string, opts CreateOptions, out io.Writer) error {
	w, err := SetupWorkflow(ctx)
	if err != nil {
		return err
	}
	p, err := w.Provisioner()
	if err != nil {
		return err
	}

	instanceType := opts.Type
	if instanceType == "" {
		instanceType = w.Config.Instance.Type
	}
	setup := opts.Setup
	if setup == "" {
		setup = w.Config.Instance.SetupScript
	}
	userData, err := readSetupScript(setup, opts.SetupExplicit)
	if err != nil {
		return err
	}
	if userData == nil {
		w.log.Debug("no setup script at %s; launching without user data", setup)
	}

	var id string
	err = ui.Track(fmt.Sprintf("Launching %s from %s", instanceType, image), func() error {
		var err error
		id, err = p.Create(ctx, cloud.CreateRequest{
			ImageID:      image,
			InstanceType: instanceType,
			Name:         opts.Name,
			UserData:     userData,
			KeyPath:      config.ExpandTilde(w.Config.SSH.IdentityFile),
		})
		return err
	})
	if err != nil {
		return err
	}

	if machineMode {
		return WriteJSONSuccess(out, map[string]string{"id": id})
	}
	fmt.Fprintf(out, "%s Created %s\n", ui.SuccessStyle().Render(ui.SymbolSuccess), id)
	fmt.Fprintln(out, ui.InfoStyle().Render("  It takes a minute to boot. Then try: korasi shell"))
	return nil
}

// readSetupScript returns the script at path. A missing default script
// yields nil; a missing explicit one is an error.
func readSetupScript(path string, explicit bool) ([]byte, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(config.ExpandTilde(path))
	if err == nil {
		return data, nil
	}
	if os.IsNotExist(err) && !explicit {
		return nil, nil
	}
	return nil, errors.WrapWithCode(err, errors.ErrConfig,
		fmt.Sprintf("Can't read setup script %s", path),
		"Check the path passed to --setup.")
}
