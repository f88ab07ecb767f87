// Package ui renders korasi's terminal output: status lines for waits,
// the instance table, huh pickers and the upload progress view.
//
// Colors are plain ANSI indices so they follow the terminal theme.
// DisableColors turns every style into plain text for --no-color and
// NO_COLOR.
//
// SelectInstance and MultiSelectInstances return without prompting when
// exactly one instance matches, so scripts against a single instance
// never block:
//
//	inst, err := ui.SelectInstance("Run on which instance?", running)
//
// Blocking waits go through Track, which animates on a terminal and
// prints only the outcome line otherwise:
//
//	err := ui.Track("Waiting for SSH", func() error {
//		_, err := host.WaitForSSH(ctx, addr, opts)
//		return err
//	})
package ui
