package cli

import (
	"io"
	"os"

	"github.com/korasi/korasi/pkg/sshutil"
	"golang.org/x/term"
)

// Fallback size when the terminal can't report one.
const (
	defaultColumns = 80
	defaultRows    = 24
)

// terminalFd returns the descriptor behind v when v is a terminal.
func terminalFd(v any) (int, bool) {
	f, ok := v.(*os.File)
	if !ok || f == nil {
		return -1, false
	}
	fd := int(f.Fd())
	return fd, term.IsTerminal(fd)
}

func terminalSize(fd int) sshutil.WindowSize {
	cols, rows, err := term.GetSize(fd)
	if err != nil || cols <= 0 || rows <= 0 {
		return sshutil.WindowSize{Columns: defaultColumns, Rows: defaultRows}
	}
	return sshutil.WindowSize{Columns: cols, Rows: rows}
}

// makeRaw puts the terminal into raw mode and returns the function that
// restores it.
func makeRaw(fd int) (func(), error) {
	state, err := term.MakeRaw(fd)
	if err != nil {
		return nil, err
	}
	return func() { _ = term.Restore(fd, state) }, nil
}

// stdio is the local side of a remote command.
type stdio struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

func osStdio() stdio {
	return stdio{Stdin: os.Stdin, Stdout: os.Stdout, Stderr: os.Stderr}
}
