package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/korasi/korasi/internal/cloud"
	"github.com/korasi/korasi/internal/config"
	"github.com/korasi/korasi/internal/ui"
	"github.com/korasi/korasi/internal/util"
)

// obliterateCommand removes everything korasi created: instances, the
// security group, the key pairs and the local private key.
func obliterateCommand(ctx context.Context, yes bool, out io.Writer) error {
	w, err := SetupWorkflow(ctx)
	if err != nil {
		return err
	}
	p, err := w.Provisioner()
	if err != nil {
		return err
	}
	keyPath := config.ExpandTilde(w.Config.SSH.IdentityFile)

	if !yes {
		ok, err := ui.Confirm(fmt.Sprintf(
			"Delete every instance tagged %q, security group %q, key pair %q and %s?",
			w.Config.Tag, w.Config.Instance.SecurityGroup, w.Config.Instance.KeyName, keyPath))
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(out, ui.MutedStyle().Render("Nothing deleted"))
			return nil
		}
	}

	var report *cloud.ObliterateReport
	err = ui.Track("Obliterating", func() error {
		var err error
		report, err = p.Obliterate(ctx, keyPath)
		return err
	})
	if err != nil {
		return err
	}

	if machineMode {
		return WriteJSONSuccess(out, report)
	}
	printObliterateReport(out, report)
	return nil
}

func printObliterateReport(out io.Writer, r *cloud.ObliterateReport) {
	line := func(label, value string) {
		fmt.Fprintf(out, "  %-15s %s\n", label, value)
	}
	fmt.Fprintf(out, "%s Obliterated\n", ui.SuccessStyle().Render(ui.SymbolSuccess))
	line("instances", util.JoinOrNone(r.Instances...))
	line("security group", util.JoinOrNone(r.SecurityGroup))
	line("key pairs", util.JoinOrNone(r.KeyPairs...))
	line("key file", util.JoinOrNone(r.KeyFile))
}
