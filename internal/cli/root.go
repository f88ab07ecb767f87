package cli

import (
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/korasi/korasi/internal/errors"
	"github.com/korasi/korasi/internal/logger"
	"github.com/korasi/korasi/internal/ui"
	"github.com/spf13/cobra"
)

// Global flags
var (
	cfgFile     string
	profileFlag string
	regionFlag  string
	tagFlag     string
	sshKeyFlag  string
	debugFlag   bool
	noColorFlag bool
)

var rootCmd = &cobra.Command{
	Use:   "korasi",
	Short: "Launch cloud instances and work on them over SSH",
	Long: `korasi provisions and controls remote compute instances, runs commands
on them with a full interactive terminal and mirrors local trees onto them
over SFTP.

Instances are found by tag, so several projects can share one account:
only instances tagged with the configured tag are listed or touched.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger.SetDebug(debugFlag)
		if noColorFlag || os.Getenv("NO_COLOR") != "" {
			ui.DisableColors()
		}
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default: .korasi.yaml, then ~/.config/korasi/config.yaml)")
	flags.StringVar(&profileFlag, "profile", "", "AWS shared-config profile")
	flags.StringVar(&regionFlag, "region", "", "cloud region")
	flags.StringVar(&tagFlag, "tag", "", "only act on instances with this tag value")
	flags.StringVar(&sshKeyFlag, "ssh-key", "", "private key used for SSH")
	flags.BoolVar(&debugFlag, "debug", false, "print debug logs")
	flags.BoolVar(&noColorFlag, "no-color", false, "disable colored output")
	flags.BoolVar(&machineMode, "json", false, "machine-readable JSON output where supported")
}

// Execute runs the root command and exits with the right status.
func Execute() {
	err := rootCmd.Execute()
	os.Exit(exitStatus(err, os.Stdout, os.Stderr))
}

// exitStatus reports err and returns the process exit status. A remote
// command's exit code passes through untouched.
func exitStatus(err error, stdout, stderr io.Writer) int {
	if err == nil {
		return 0
	}
	if code, ok := errors.GetExitCode(err); ok {
		return code
	}
	if stderrors.Is(err, ui.ErrCancelled) {
		fmt.Fprintln(stderr, ui.MutedStyle().Render("Cancelled"))
		return 1
	}

	if machineMode {
		_ = WriteJSONFromError(stdout, err)
		return 1
	}

	if isUnknownCommandError(err) {
		fmt.Fprintf(stderr, "%s %s\n", ui.ErrorStyle().Render(ui.SymbolFail), err)
		if name := extractUnknownCommand(err); name != "" {
			fmt.Fprintf(stderr, "\n  '%s' isn't a korasi command. Run 'korasi --help' for the list.\n", name)
		}
		return 1
	}

	var kErr *errors.Error
	if stderrors.As(err, &kErr) {
		fmt.Fprint(stderr, ui.ErrorStyle().Render(kErr.Error()))
		return 1
	}
	fmt.Fprintf(stderr, "%s %v\n", ui.ErrorStyle().Render(ui.SymbolFail), err)
	return 1
}

// isUnknownCommandError checks if the error is a cobra unknown command or flag error.
func isUnknownCommandError(err error) bool {
	msg := err.Error()
	return strings.HasPrefix(msg, "unknown command") ||
		strings.HasPrefix(msg, "unknown flag") ||
		strings.HasPrefix(msg, "unknown shorthand flag")
}

// extractUnknownCommand pulls the command name out of cobra's
// `unknown command "foo" for "korasi"` message.
func extractUnknownCommand(err error) string {
	msg := err.Error()
	start := strings.Index(msg, `"`)
	if start < 0 {
		return ""
	}
	end := strings.Index(msg[start+1:], `"`)
	if end < 0 {
		return ""
	}
	return msg[start+1 : start+1+end]
}
