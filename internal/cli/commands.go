package cli

import (
	"github.com/korasi/korasi/internal/errors"
	"github.com/spf13/cobra"
)

// Command-specific flags
var (
	createTypeFlag  string
	createNameFlag  string
	createSetupFlag string
	listAll         bool
	stopWait        bool
	deleteWait      bool
	runUserFlag     string
	runNoPTY        bool
	shellUserFlag   string
	uploadUserFlag  string
	uploadDryRun    bool
	obliterateYes   bool
	configForce     bool
	configGlobal    bool
	versionShort    bool
)

// createCmd launches a new instance
var createCmd = &cobra.Command{
	Use:   "create <image-id>",
	Short: "Launch a new instance",
	Long: `Launch one instance from a machine image.

The instance gets the configured tag, key pair and security group. The key
pair and security group are created the first time they are needed, and the
new private key is saved to the configured identity file.

Examples:
  korasi create ami-0abcdef1234567890
  korasi create ami-0abcdef1234567890 --type c7i.2xlarge --name build
  korasi create ami-0abcdef1234567890 --setup ./bootstrap.sh`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return createCommand(cmd.Context(), args[0], CreateOptions{
			Type:          createTypeFlag,
			Name:          createNameFlag,
			Setup:         createSetupFlag,
			SetupExplicit: cmd.Flags().Changed("setup"),
		}, cmd.OutOrStdout())
	},
}

// listCmd shows the tagged instances
var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List instances",
	Long: `List the instances carrying the configured tag.

Terminated instances are hidden unless --all is given.

Examples:
  korasi list
  korasi list --all --json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return listCommand(cmd.Context(), listAll, cmd.OutOrStdout())
	},
}

// startCmd starts stopped instances
var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start stopped instances",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return changeStateCommand(cmd.Context(), startChange, cmd.OutOrStdout())
	},
}

// stopCmd stops running instances
var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop running instances",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return changeStateCommand(cmd.Context(), stopChange(stopWait), cmd.OutOrStdout())
	},
}

// deleteCmd terminates instances
var deleteCmd = &cobra.Command{
	Use:     "delete",
	Aliases: []string{"rm"},
	Short:   "Terminate instances",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return changeStateCommand(cmd.Context(), deleteChange(deleteWait), cmd.OutOrStdout())
	},
}

// runCmd executes a command on an instance
var runCmd = &cobra.Command{
	Use:   "run <command> [args...]",
	Short: "Run a command on an instance",
	Long: `Run a command on a running instance and stream its output.

Arguments are joined into one remote command line. When stdin is a
terminal the command gets a pseudo-terminal, so interactive programs
work. The remote exit code becomes korasi's exit code.

Examples:
  korasi run uname -a
  korasi run -- make -j8 test
  korasi run --no-pty "cat /var/log/cloud-init-output.log"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCommand(cmd.Context(), args, RunOptions{
			User:  runUserFlag,
			NoPTY: runNoPTY,
		}, osStdio())
	},
}

// shellCmd opens an interactive login shell
var shellCmd = &cobra.Command{
	Use:     "shell",
	Aliases: []string{"ssh"},
	Short:   "Open a shell on an instance",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return shellCommand(cmd.Context(), RunOptions{User: shellUserFlag}, osStdio())
	},
}

// uploadCmd mirrors a local tree onto an instance
var uploadCmd = &cobra.Command{
	Use:   "upload [source] [destination]",
	Short: "Upload a file or directory over SFTP",
	Long: `Copy a local file or directory tree onto a running instance.

The source defaults to the current directory and the destination to the
remote home directory. Files listed in .gitignore, hidden files and the
configured exclude patterns are skipped.

Examples:
  korasi upload
  korasi upload ./src project/src
  korasi upload --dry-run . work`,
	Args: cobra.MaximumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return uploadCommand(cmd.Context(), args, UploadOptions{
			User:   uploadUserFlag,
			DryRun: uploadDryRun,
		}, cmd.OutOrStdout())
	},
}

// obliterateCmd removes everything korasi created
var obliterateCmd = &cobra.Command{
	Use:   "obliterate",
	Short: "Delete all tagged instances and korasi's cloud resources",
	Long: `Terminate every tagged instance, then delete the security group, the
key pair and the local private key.

Examples:
  korasi obliterate
  korasi obliterate --yes`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return obliterateCommand(cmd.Context(), obliterateYes, cmd.OutOrStdout())
	},
}

// configCmd groups the config subcommands
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage korasi configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default config file",
	Long: `Write a config file filled with defaults.

The file goes to --config when given, ~/.config/korasi/config.yaml with
--global, and .korasi.yaml in the current directory otherwise.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return configInitCommand(configForce, configGlobal, cmd.OutOrStdout())
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set one config value",
	Long: `Set a dotted key in the config file in use.

Examples:
  korasi config set region eu-west-1
  korasi config set instance.type t3.large
  korasi config set ssh.host_key_policy known-hosts`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return configSetCommand(args[0], args[1], cmd.OutOrStdout())
	},
}

// versionCmd prints build information
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		printVersion(cmd.OutOrStdout(), versionShort)
	},
}

// completionCmd generates shell completion scripts
var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish|powershell]",
	Short: "Generate shell completion script",
	Long: `Generate shell completion scripts for korasi.

Examples:
  # Bash
  korasi completion bash > /etc/bash_completion.d/korasi

  # Zsh
  korasi completion zsh > "${fpath[1]}/_korasi"

  # Fish
  korasi completion fish > ~/.config/fish/completions/korasi.fish`,
	ValidArgs: []string{"bash", "zsh", "fish", "powershell"},
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		switch args[0] {
		case "bash":
			return rootCmd.GenBashCompletion(out)
		case "zsh":
			return rootCmd.GenZshCompletion(out)
		case "fish":
			return rootCmd.GenFishCompletion(out, true)
		case "powershell":
			return rootCmd.GenPowerShellCompletion(out)
		default:
			return errors.New(errors.ErrConfig,
				"Unknown shell: "+args[0],
				"Supported shells: bash, zsh, fish, powershell")
		}
	},
}

func init() {
	// create command flags
	createCmd.Flags().StringVar(&createTypeFlag, "type", "", "instance type (default from config)")
	createCmd.Flags().StringVar(&createNameFlag, "name", "", "value for the Name tag")
	createCmd.Flags().StringVar(&createSetupFlag, "setup", "", "script run on first boot (default from config)")

	listCmd.Flags().BoolVarP(&listAll, "all", "a", false, "include terminated instances")
	stopCmd.Flags().BoolVar(&stopWait, "wait", false, "wait until the instances have stopped")
	deleteCmd.Flags().BoolVar(&deleteWait, "wait", false, "wait until the instances are terminated")

	// run command flags; everything after the command belongs to it
	runCmd.Flags().StringVarP(&runUserFlag, "user", "u", "", "remote user (default from config)")
	runCmd.Flags().BoolVar(&runNoPTY, "no-pty", false, "never request a pseudo-terminal")
	runCmd.Flags().SetInterspersed(false)

	shellCmd.Flags().StringVarP(&shellUserFlag, "user", "u", "", "remote user (default from config)")

	uploadCmd.Flags().StringVarP(&uploadUserFlag, "user", "u", "", "remote user (default from config)")
	uploadCmd.Flags().BoolVar(&uploadDryRun, "dry-run", false, "show what would be uploaded without writing")

	obliterateCmd.Flags().BoolVarP(&obliterateYes, "yes", "y", false, "skip the confirmation prompt")

	configInitCmd.Flags().BoolVarP(&configForce, "force", "f", false, "overwrite an existing file")
	configInitCmd.Flags().BoolVar(&configGlobal, "global", false, "write ~/.config/korasi/config.yaml")
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configSetCmd)

	versionCmd.Flags().BoolVar(&versionShort, "short", false, "print only the version number")

	// Register all commands
	rootCmd.AddCommand(createCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(shellCmd)
	rootCmd.AddCommand(uploadCmd)
	rootCmd.AddCommand(obliterateCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(completionCmd)
}
