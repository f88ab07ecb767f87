// Package cli implements the korasi command-line interface.
//
// Each Cobra command delegates to a plain function that takes its options
// and an output writer, so commands can be driven from tests without
// going through flag parsing.
//
// # Command Structure
//
//	korasi create <image-id>   - Launch an instance
//	korasi list                - List tagged instances
//	korasi start|stop|delete   - Change instance state
//	korasi run <command...>    - Run a command over SSH
//	korasi shell               - Interactive login shell
//	korasi upload [src] [dst]  - Mirror a local tree over SFTP
//	korasi obliterate          - Remove everything korasi created
//	korasi config init|set     - Manage the config file
//
// # Workflow
//
// SetupWorkflow loads the config, applies the global flags and opens the
// instance directory for the configured provider. Commands that talk to
// an instance then pick a running one and call Workflow.Connect, which
// refreshes the SSH ingress rule, waits for sshd and authenticates.
//
// # Exit Status
//
// A remote command's exit code becomes korasi's exit code. Every other
// failure exits 1 after printing the structured error, or a JSON envelope
// when --json is set.
package cli
