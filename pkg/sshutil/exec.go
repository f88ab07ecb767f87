package sshutil

import (
	"encoding/binary"
	stderrors "errors"
	"fmt"
	"io"
	"sort"

	"github.com/korasi/korasi/internal/errors"
	"github.com/korasi/korasi/internal/logger"
	"golang.org/x/crypto/ssh"
)

// SessionState tracks where an exec session is in its lifecycle.
type SessionState int

const (
	StateOpened SessionState = iota
	StatePtyRequested
	StateExecuting
	StateDraining
	StateExited
)

func (s SessionState) String() string {
	switch s {
	case StateOpened:
		return "opened"
	case StatePtyRequested:
		return "pty-requested"
	case StateExecuting:
		return "executing"
	case StateDraining:
		return "draining"
	case StateExited:
		return "exited"
	}
	return "unknown"
}

// PTYRequest describes the pseudo-terminal asked for before exec.
type PTYRequest struct {
	Term    string
	Columns int
	Rows    int
	// Width and Height are in pixels and usually zero.
	Width  int
	Height int
	Modes  ssh.TerminalModes
}

// DefaultModes are the terminal modes sent when a PTYRequest has none.
var DefaultModes = ssh.TerminalModes{
	ssh.ECHO:          1,
	ssh.TTY_OP_ISPEED: 14400,
	ssh.TTY_OP_OSPEED: 14400,
}

// WindowSize is a terminal size in character cells.
type WindowSize struct {
	Columns int
	Rows    int
}

// ExecIO wires the local side of an exec session. Nil writers discard.
// A nil Stdin sends EOF to the remote command right away.
type ExecIO struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
	// Resize, when set, delivers local terminal size changes.
	Resize <-chan WindowSize
}

// ExecSession is one session channel bound to one remote command.
type ExecSession struct {
	ch    ssh.Channel
	reqs  <-chan *ssh.Request
	log   logger.Logger
	state SessionState

	stdinClosed bool
}

func newExecSession(ch ssh.Channel, reqs <-chan *ssh.Request, log logger.Logger) *ExecSession {
	return &ExecSession{ch: ch, reqs: reqs, log: log, state: StateOpened}
}

// State returns the current lifecycle state.
func (s *ExecSession) State() SessionState {
	return s.state
}

// RequestPTY asks the remote side for a pseudo-terminal. It is only valid
// before Run. A refusal is returned to the caller, who may carry on
// without a terminal.
func (s *ExecSession) RequestPTY(req PTYRequest) error {
	if s.state != StateOpened {
		return errors.New(errors.ErrChannel,
			fmt.Sprintf("Can't request a PTY in state %s", s.state),
			"Request the PTY before running the command.")
	}
	if req.Modes == nil {
		req.Modes = DefaultModes
	}

	msg := ptyRequestMsg{
		Term:     req.Term,
		Columns:  uint32(req.Columns),
		Rows:     uint32(req.Rows),
		Width:    uint32(req.Width),
		Height:   uint32(req.Height),
		Modelist: string(encodeModes(req.Modes)),
	}
	ok, err := s.ch.SendRequest("pty-req", true, ssh.Marshal(&msg))
	if err == nil && !ok {
		err = stderrors.New("pty-req denied")
	}
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrChannel,
			"The remote host didn't allocate a PTY", "")
	}

	s.state = StatePtyRequested
	s.log.Debug("pty granted: %s %dx%d", req.Term, req.Columns, req.Rows)
	return nil
}

// Run starts command on the remote side and pumps I/O until the command
// exits and its output is drained. A non-zero exit is returned as the
// code, not as an error. The command string is passed to the remote shell
// as is, so callers escape arguments first.
//
// A goroutine blocked reading sio.Stdin can't be interrupted; it exits
// after its next read returns.
func (s *ExecSession) Run(command string, sio ExecIO) (int, error) {
	if s.state != StateOpened && s.state != StatePtyRequested {
		return -1, errors.New(errors.ErrExec,
			fmt.Sprintf("Can't run a command in state %s", s.state),
			"Open a new exec session for each command.")
	}

	ok, err := s.ch.SendRequest("exec", true, ssh.Marshal(&execRequestMsg{Command: command}))
	if err == nil && !ok {
		err = stderrors.New("exec request denied")
	}
	if err != nil {
		return s.abort(err, "The remote host refused to run the command")
	}

	s.state = StateExecuting
	s.log.Debug("exec: %s", command)
	return s.loop(sio)
}

// Close releases the channel without running anything.
func (s *ExecSession) Close() error {
	s.state = StateExited
	return s.ch.Close()
}

// loop is the only place that writes to the channel or the local
// descriptors. Everything else feeds it messages.
func (s *ExecSession) loop(sio ExecIO) (int, error) {
	stdout := orDiscard(sio.Stdout)
	stderr := orDiscard(sio.Stderr)

	msgs := make(chan ChannelMsg)
	done := make(chan struct{})
	defer close(done)

	emit := func(m ChannelMsg) bool {
		select {
		case msgs <- m:
			return true
		case <-done:
			return false
		}
	}

	go pump(s.ch, StreamStdout, emit)
	go pump(s.ch.Stderr(), StreamStderr, emit)
	go watchRequests(s.reqs, emit)
	if sio.Resize != nil {
		go watchResize(sio.Resize, emit, done)
	}
	if sio.Stdin != nil {
		go pump(sio.Stdin, StreamStdin, emit)
	} else if err := s.closeStdin(); err != nil {
		return s.abort(err, "Failed to send EOF to the remote command")
	}

	var (
		stdoutEOF, stderrEOF bool
		exited               bool
		code                 int
	)

	for !exited || !stdoutEOF || !stderrEOF {
		switch m := (<-msgs).(type) {
		case DataMsg:
			switch m.Stream {
			case StreamStdin:
				if exited || s.stdinClosed {
					continue
				}
				if _, err := s.ch.Write(m.Data); err != nil {
					return s.abort(err, "Failed to forward input to the remote command")
				}
			default:
				if _, err := stdout.Write(m.Data); err != nil {
					return s.abort(err, "Failed to write remote output")
				}
			}

		case ExtendedDataMsg:
			if _, err := stderr.Write(m.Data); err != nil {
				return s.abort(err, "Failed to write remote error output")
			}

		case EOFMsg:
			switch m.Stream {
			case StreamStdin:
				if err := s.closeStdin(); err != nil && !exited {
					return s.abort(err, "Failed to send EOF to the remote command")
				}
			case StreamStdout:
				stdoutEOF = true
			case StreamStderr:
				stderrEOF = true
			}

		case ExitStatusMsg:
			if !exited {
				exited, code = true, int(m.Status)
				s.state = StateDraining
				s.log.Debug("exit-status %d", code)
			}

		case ExitSignalMsg:
			if !exited {
				exited, code = true, m.ExitCode()
				s.state = StateDraining
				s.log.Debug("exit-signal %s (core dumped: %v) %s", m.Signal, m.CoreDumped, m.Message)
			}

		case ClosedMsg:
			if !exited {
				return s.abort(stderrors.New("channel closed"), "The remote command exited without status")
			}

		case ReadErrorMsg:
			return s.abort(m.Err, fmt.Sprintf("Failed to read %s", m.Stream))

		case WindowChangeMsg:
			if exited {
				continue
			}
			payload := ssh.Marshal(&windowChangeMsg{Columns: uint32(m.Size.Columns), Rows: uint32(m.Size.Rows)})
			if _, err := s.ch.SendRequest("window-change", false, payload); err != nil {
				s.log.Debug("window-change not sent: %v", err)
			}

		case RequestMsg:
			if m.Req.WantReply {
				_ = m.Req.Reply(false, nil)
			}
		}
	}

	s.state = StateExited
	s.ch.Close()
	return code, nil
}

// closeStdin sends EOF on the channel exactly once.
func (s *ExecSession) closeStdin() error {
	if s.stdinClosed {
		return nil
	}
	s.stdinClosed = true
	if s.state == StateExecuting {
		s.state = StateDraining
	}
	return s.ch.CloseWrite()
}

func (s *ExecSession) abort(err error, message string) (int, error) {
	s.state = StateExited
	s.ch.Close()
	return -1, errors.WrapWithCode(err, errors.ErrExec, message, "")
}

// pump reads r until EOF or error and reports what it read.
func pump(r io.Reader, stream Stream, emit func(ChannelMsg) bool) {
	buf := make([]byte, 32*1024)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			data := make([]byte, n)
			copy(data, buf[:n])
			var m ChannelMsg = DataMsg{Stream: stream, Data: data}
			if stream == StreamStderr {
				m = ExtendedDataMsg{Code: 1, Data: data}
			}
			if !emit(m) {
				return
			}
		}
		if err == io.EOF {
			emit(EOFMsg{Stream: stream})
			return
		}
		if err != nil {
			emit(ReadErrorMsg{Stream: stream, Err: err})
			return
		}
	}
}

func watchRequests(reqs <-chan *ssh.Request, emit func(ChannelMsg) bool) {
	for req := range reqs {
		if !emit(parseRequest(req)) {
			// Drain so the connection isn't blocked on an unread request.
			go ssh.DiscardRequests(reqs)
			return
		}
	}
	emit(ClosedMsg{})
}

func watchResize(sizes <-chan WindowSize, emit func(ChannelMsg) bool, done <-chan struct{}) {
	for {
		select {
		case size, ok := <-sizes:
			if !ok || !emit(WindowChangeMsg{Size: size}) {
				return
			}
		case <-done:
			return
		}
	}
}

func orDiscard(w io.Writer) io.Writer {
	if w == nil {
		return io.Discard
	}
	return w
}

type ptyRequestMsg struct {
	Term     string
	Columns  uint32
	Rows     uint32
	Width    uint32
	Height   uint32
	Modelist string
}

type execRequestMsg struct {
	Command string
}

type windowChangeMsg struct {
	Columns uint32
	Rows    uint32
	Width   uint32
	Height  uint32
}

// encodeModes serializes terminal modes as opcode byte + uint32 pairs in
// opcode order, terminated by TTY_OP_END (RFC 4254 section 8).
func encodeModes(modes ssh.TerminalModes) []byte {
	opcodes := make([]int, 0, len(modes))
	for op := range modes {
		opcodes = append(opcodes, int(op))
	}
	sort.Ints(opcodes)

	out := make([]byte, 0, len(modes)*5+1)
	for _, op := range opcodes {
		out = append(out, byte(op))
		out = binary.BigEndian.AppendUint32(out, modes[uint8(op)])
	}
	return append(out, 0)
}
