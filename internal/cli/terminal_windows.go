//go:build windows

package cli

import "github.com/korasi/korasi/pkg/sshutil"

// watchResize is a no-op: Windows consoles have no SIGWINCH.
func watchResize(int) (<-chan sshutil.WindowSize, func()) {
	return nil, func() {}
}
