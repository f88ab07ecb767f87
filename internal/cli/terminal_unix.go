//go:build !windows

package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/korasi/korasi/pkg/sshutil"
)

// watchResize delivers the terminal size on every SIGWINCH until stop is
// called.
func watchResize(fd int) (<-chan sshutil.WindowSize, func()) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGWINCH)

	sizes := make(chan sshutil.WindowSize, 1)
	done := make(chan struct{})
	go func() {
		defer close(sizes)
		for {
			select {
			case <-done:
				return
			case <-sigs:
				select {
				case sizes <- terminalSize(fd):
				case <-done:
					return
				}
			}
		}
	}()

	return sizes, func() {
		signal.Stop(sigs)
		close(done)
	}
}
