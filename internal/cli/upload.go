package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/korasi/korasi/internal/logger"
	"github.com/korasi/korasi/internal/sync"
	"github.com/korasi/korasi/internal/ui"
	"github.com/korasi/korasi/internal/util"
)

// UploadOptions configures the upload command.
type UploadOptions struct {
	User   string
	DryRun bool
}

// UploadJSON is the --json form of an upload result.
type UploadJSON struct {
	Instance string   `json:"instance"`
	Source   string   `json:"source"`
	Dest     string   `json:"dest"`
	Dirs     int      `json:"dirs"`
	Files    int      `json:"files"`
	Bytes    int64    `json:"bytes"`
	Skipped  int      `json:"skipped"`
	Failures []string `json:"failures,omitempty"`
	DryRun   bool     `json:"dry_run,omitempty"`
}

// uploadCommand mirrors a local tree (default ".") into a remote
// directory (default: the login directory) on a running instance.
// Entries that fail are reported and skipped; only failures that stop
// the whole upload are returned.
func uploadCommand(ctx context.Context, args []string, opts UploadOptions, out io.Writer) error {
	source, dest := ".", ""
	if len(args) > 0 {
		source = args[0]
	}
	if len(args) > 1 {
		dest = args[1]
	}

	w, err := SetupWorkflow(ctx)
	if err != nil {
		return err
	}

	inst, err := w.SelectRunning(ctx, "Upload to which instance?")
	if err != nil {
		return err
	}

	client, err := w.Connect(ctx, inst, opts.User)
	if err != nil {
		return err
	}
	defer client.Close()

	transfer, err := client.OpenTransfer()
	if err != nil {
		return err
	}

	label := "Uploading"
	if opts.DryRun {
		label = "Checking"
	}
	progress := ui.NewUploadProgress(label)

	session := sync.New(sync.NewSFTPRemote(transfer), logger.NewEnvLogger("[sync]"), sync.Options{
		Walk: sync.WalkOptions{
			Exclude:     w.Config.Sync.Exclude,
			Hidden:      w.Config.Sync.Hidden,
			IgnoreFiles: w.Config.Sync.IgnoreFiles,
		},
		DryRun: opts.DryRun,
		Progress: func(p sync.Progress) {
			progress.Update(p.Files, p.Bytes, p.Current)
		},
	})

	progress.Start()
	res, err := session.Run(source, dest)
	progress.Finish(err != nil || (res != nil && len(res.Failures) > 0))
	if err != nil {
		return err
	}

	if machineMode {
		return WriteJSONSuccess(out, uploadToJSON(inst.ID, res, opts.DryRun))
	}
	printUploadResult(out, inst.ID, res, opts.DryRun)
	return nil
}

func uploadToJSON(instance string, res *sync.Result, dryRun bool) UploadJSON {
	u := UploadJSON{
		Instance: instance,
		Source:   res.Source,
		Dest:     res.Dest,
		Dirs:     res.Dirs,
		Files:    res.Files,
		Bytes:    res.Bytes,
		Skipped:  res.Skipped,
		DryRun:   dryRun,
	}
	for _, f := range res.Failures {
		u.Failures = append(u.Failures, f.String())
	}
	return u
}

func printUploadResult(out io.Writer, instance string, res *sync.Result, dryRun bool) {
	verb := "Uploaded"
	if dryRun {
		verb = "Would upload"
	}
	fmt.Fprintf(out, "%s %s %s (%s) to %s on %s\n",
		ui.SuccessStyle().Render(ui.SymbolSuccess),
		verb,
		util.CountNoun(res.Files, "file", "files"),
		ui.FormatBytes(res.Bytes),
		res.Dest,
		instance,
	)
	if res.Skipped > 0 {
		fmt.Fprintln(out, ui.MutedStyle().Render("  skipped "+
			util.CountNoun(res.Skipped, "symlink", "symlinks")))
	}
	if n := len(res.Failures); n > 0 {
		fmt.Fprintf(out, "%s %s couldn't be uploaded:\n",
			ui.WarningStyle().Render(ui.SymbolWarning), util.CountNoun(n, "entry", "entries"))
		for _, f := range res.Failures {
			fmt.Fprintf(out, "  %s\n", f)
		}
	}
}
