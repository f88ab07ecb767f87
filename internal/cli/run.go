package cli

import (
	"context"

	"github.com/korasi/korasi/internal/config"
	"github.com/korasi/korasi/internal/errors"
	"github.com/korasi/korasi/internal/logger"
	"github.com/korasi/korasi/internal/util"
	"github.com/korasi/korasi/pkg/sshutil"
)

// RunOptions configures run and shell.
type RunOptions struct {
	User  string
	NoPTY bool
}

// runCommand runs argv on a running instance. Each argument is quoted for
// the remote shell, so `korasi run ls "my dir"` lists one directory.
func runCommand(ctx context.Context, argv []string, opts RunOptions, std stdio) error {
	return runOnInstance(ctx, util.JoinArgs(argv), "Run on which instance?", opts, std)
}

// shellCommand opens an interactive login shell.
func shellCommand(ctx context.Context, opts RunOptions, std stdio) error {
	return runOnInstance(ctx, "bash -l", "Open a shell on which instance?", opts, std)
}

func runOnInstance(ctx context.Context, command, title string, opts RunOptions, std stdio) error {
	w, err := SetupWorkflow(ctx)
	if err != nil {
		return err
	}

	inst, err := w.SelectRunning(ctx, title)
	if err != nil {
		return err
	}

	client, err := w.Connect(ctx, inst, opts.User)
	if err != nil {
		return err
	}
	defer client.Close()

	return execRemote(client, command, w.Config.Exec, !opts.NoPTY, std)
}

// execRemote runs command over a new exec channel. When stdin is a
// terminal and a PTY is allowed, the remote side gets a PTY sized like the
// local terminal and the local terminal switches to raw mode for the
// duration. A non-zero remote exit comes back as an ExitError.
func execRemote(client *sshutil.Client, command string, ec config.ExecConfig, allowPTY bool, std stdio) error {
	log := logger.NewEnvLogger("[exec]")

	sess, err := client.OpenExec()
	if err != nil {
		return err
	}
	defer sess.Close()

	var resize <-chan sshutil.WindowSize
	inFd, inTTY := terminalFd(std.Stdin)
	if allowPTY && ec.PTY && inTTY {
		sizeFd := inFd
		if outFd, ok := terminalFd(std.Stdout); ok {
			sizeFd = outFd
		}
		size := terminalSize(sizeFd)

		err := sess.RequestPTY(sshutil.PTYRequest{Term: ec.Term, Columns: size.Columns, Rows: size.Rows})
		if err != nil {
			log.Warn("%v; continuing without a terminal", err)
		} else {
			restore, err := makeRaw(inFd)
			if err != nil {
				log.Warn("can't switch the terminal to raw mode: %v", err)
			} else {
				defer restore()
			}
			sizes, stop := watchResize(sizeFd)
			defer stop()
			resize = sizes
		}
	}

	code, err := sess.Run(command, sshutil.ExecIO{
		Stdin:  std.Stdin,
		Stdout: std.Stdout,
		Stderr: std.Stderr,
		Resize: resize,
	})
	if err != nil {
		return err
	}
	if code != 0 {
		log.Debug("%s exited with %d", command, code)
		return errors.NewExitError(code)
	}
	return nil
}
