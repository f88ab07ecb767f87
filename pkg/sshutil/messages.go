package sshutil

import "golang.org/x/crypto/ssh"

// Stream names one byte stream of an exec session.
type Stream int

const (
	StreamStdin Stream = iota
	StreamStdout
	StreamStderr
)

func (s Stream) String() string {
	switch s {
	case StreamStdin:
		return "stdin"
	case StreamStdout:
		return "stdout"
	case StreamStderr:
		return "stderr"
	}
	return "unknown"
}

// ChannelMsg is everything the exec event loop reacts to. The set of
// implementations is closed: only types in this file satisfy it.
type ChannelMsg interface {
	channelMsg()
}

// DataMsg carries bytes read from local stdin or remote stdout.
type DataMsg struct {
	Stream Stream
	Data   []byte
}

// ExtendedDataMsg carries bytes from the remote extended data stream.
// Code 1 is stderr.
type ExtendedDataMsg struct {
	Code uint32
	Data []byte
}

// EOFMsg reports that a stream has no more data.
type EOFMsg struct {
	Stream Stream
}

// ExitStatusMsg is the remote exit-status request.
type ExitStatusMsg struct {
	Status uint32
}

// ExitSignalMsg is the remote exit-signal request.
type ExitSignalMsg struct {
	Signal     string
	CoreDumped bool
	Message    string
}

// ExitCode maps the signal to the shell convention 128+signal number.
// Unknown signal names map to 255.
func (m ExitSignalMsg) ExitCode() int {
	if n, ok := signalNumbers[m.Signal]; ok {
		return 128 + n
	}
	return 255
}

// ClosedMsg reports that the remote side closed the channel.
type ClosedMsg struct{}

// ReadErrorMsg reports a failed read on a stream.
type ReadErrorMsg struct {
	Stream Stream
	Err    error
}

// WindowChangeMsg asks the loop to forward a new local terminal size.
type WindowChangeMsg struct {
	Size WindowSize
}

// RequestMsg is a channel request the loop doesn't act on. It is declined
// if the remote wants a reply.
type RequestMsg struct {
	Req *ssh.Request
}

func (DataMsg) channelMsg()         {}
func (ExtendedDataMsg) channelMsg() {}
func (EOFMsg) channelMsg()          {}
func (ExitStatusMsg) channelMsg()   {}
func (ExitSignalMsg) channelMsg()   {}
func (ClosedMsg) channelMsg()       {}
func (ReadErrorMsg) channelMsg()    {}
func (WindowChangeMsg) channelMsg() {}
func (RequestMsg) channelMsg()      {}

// Signal names as sent in exit-signal (RFC 4254 section 6.10).
var signalNumbers = map[string]int{
	"HUP":  1,
	"INT":  2,
	"QUIT": 3,
	"ILL":  4,
	"ABRT": 6,
	"FPE":  8,
	"KILL": 9,
	"USR1": 10,
	"SEGV": 11,
	"USR2": 12,
	"PIPE": 13,
	"ALRM": 14,
	"TERM": 15,
}

// parseRequest turns a channel request into the message the loop sees.
func parseRequest(req *ssh.Request) ChannelMsg {
	switch req.Type {
	case "exit-status":
		var msg struct{ Status uint32 }
		if err := ssh.Unmarshal(req.Payload, &msg); err == nil {
			return ExitStatusMsg{Status: msg.Status}
		}
	case "exit-signal":
		var msg struct {
			Signal     string
			CoreDumped bool
			Error      string
			Lang       string
		}
		if err := ssh.Unmarshal(req.Payload, &msg); err == nil {
			return ExitSignalMsg{Signal: msg.Signal, CoreDumped: msg.CoreDumped, Message: msg.Error}
		}
	}
	return RequestMsg{Req: req}
}
