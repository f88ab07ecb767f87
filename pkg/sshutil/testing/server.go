// Package testing provides an in-process SSH server with an SFTP
// subsystem for exercising sshutil and sync against a real protocol peer.
package testing

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gliderlabs/ssh"
	"github.com/pkg/sftp"
	gossh "golang.org/x/crypto/ssh"
)

// PtyInfo records a PTY the server granted.
type PtyInfo struct {
	Term    string
	Columns int
	Rows    int
}

// Server is a loopback SSH server. Commands are interpreted by the handler
// (DefaultHandler unless overridden) and "sftp" is served from the local
// filesystem.
type Server struct {
	Host string
	Port int
	// HostSigner is the server's host key.
	HostSigner gossh.Signer

	srv *ssh.Server

	mu       sync.Mutex
	commands []string
	ptys     []PtyInfo
	windows  []PtyInfo
}

// Option configures a Server.
type Option func(*config)

type config struct {
	authorized []gossh.PublicKey
	handler    ssh.Handler
	hostSigner gossh.Signer
	noSFTP     bool
}

// WithAuthorizedKey allows public-key auth with key. Without any
// authorized key every key is rejected.
func WithAuthorizedKey(key gossh.PublicKey) Option {
	return func(c *config) { c.authorized = append(c.authorized, key) }
}

// WithHandler replaces DefaultHandler.
func WithHandler(h ssh.Handler) Option {
	return func(c *config) { c.handler = h }
}

// WithHostSigner fixes the server host key.
func WithHostSigner(s gossh.Signer) Option {
	return func(c *config) { c.hostSigner = s }
}

// WithoutSFTP disables the sftp subsystem.
func WithoutSFTP() Option {
	return func(c *config) { c.noSFTP = true }
}

// NewServer starts a server on 127.0.0.1 and stops it when the test ends.
func NewServer(t testing.TB, opts ...Option) *Server {
	t.Helper()

	cfg := &config{}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.hostSigner == nil {
		cfg.hostSigner = NewSigner(t)
	}

	s := &Server{HostSigner: cfg.hostSigner}
	handler := cfg.handler
	if handler == nil {
		handler = s.DefaultHandler
	}

	s.srv = &ssh.Server{
		Handler: func(sess ssh.Session) {
			s.record(sess)
			handler(sess)
		},
		PublicKeyHandler: func(ctx ssh.Context, key ssh.PublicKey) bool {
			for _, k := range cfg.authorized {
				if ssh.KeysEqual(key, k) {
					return true
				}
			}
			return false
		},
	}
	if !cfg.noSFTP {
		s.srv.SubsystemHandlers = map[string]ssh.SubsystemHandler{
			"sftp": serveSFTP,
		}
	}
	s.srv.AddHostKey(cfg.hostSigner)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().(*net.TCPAddr)
	s.Host = addr.IP.String()
	s.Port = addr.Port

	go func() { _ = s.srv.Serve(ln) }()
	t.Cleanup(func() { _ = s.srv.Close() })
	return s
}

// Address returns host:port.
func (s *Server) Address() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// Commands returns every exec command received, in order.
func (s *Server) Commands() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.commands...)
}

// Ptys returns every PTY the server granted.
func (s *Server) Ptys() []PtyInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]PtyInfo(nil), s.ptys...)
}

// Windows returns window-change sizes seen by the winch command.
func (s *Server) Windows() []PtyInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]PtyInfo(nil), s.windows...)
}

func (s *Server) record(sess ssh.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commands = append(s.commands, strings.Join(sess.Command(), " "))
	if pty, _, ok := sess.Pty(); ok {
		s.ptys = append(s.ptys, PtyInfo{Term: pty.Term, Columns: pty.Window.Width, Rows: pty.Window.Height})
	}
}

// DefaultHandler understands a handful of commands:
//
//	echo ARGS...     print ARGS joined by spaces
//	cat              copy stdin to stdout until EOF
//	count-stdin      read stdin to EOF, then print the byte count
//	stderr ARGS...   print ARGS to stderr
//	exit N           exit with status N
//	flood N          print N numbered lines, then exit 3
//	pty              print the granted term and size
//	winch N          print the next N window sizes
//	signal NAME      end with exit-signal NAME
//	vanish           close the channel without an exit status
//
// Anything else prints to stderr and exits 127.
func (s *Server) DefaultHandler(sess ssh.Session) {
	args := sess.Command()
	if len(args) == 0 {
		_ = sess.Exit(0)
		return
	}

	switch args[0] {
	case "echo":
		fmt.Fprintln(sess, strings.Join(args[1:], " "))
		_ = sess.Exit(0)
	case "cat":
		_, _ = io.Copy(sess, sess)
		_ = sess.Exit(0)
	case "count-stdin":
		n, _ := io.Copy(io.Discard, sess)
		fmt.Fprintf(sess, "%d\n", n)
		_ = sess.Exit(0)
	case "stderr":
		fmt.Fprintln(sess.Stderr(), strings.Join(args[1:], " "))
		_ = sess.Exit(0)
	case "exit":
		code, _ := strconv.Atoi(argOr(args, 1, "0"))
		_ = sess.Exit(code)
	case "flood":
		n, _ := strconv.Atoi(argOr(args, 1, "1000"))
		for i := 0; i < n; i++ {
			fmt.Fprintf(sess, "line %d\n", i)
		}
		_ = sess.Exit(3)
	case "pty":
		pty, _, ok := sess.Pty()
		if !ok {
			fmt.Fprintln(sess, "no pty")
		} else {
			fmt.Fprintf(sess, "term=%s cols=%d rows=%d\n", pty.Term, pty.Window.Width, pty.Window.Height)
		}
		_ = sess.Exit(0)
	case "winch":
		s.winch(sess, args)
	case "signal":
		payload := gossh.Marshal(&struct {
			Signal     string
			CoreDumped bool
			Error      string
			Lang       string
		}{Signal: argOr(args, 1, "KILL")})
		_, _ = sess.SendRequest("exit-signal", false, payload)
		_ = sess.Close()
	case "vanish":
		fmt.Fprintln(sess, "bye")
		_ = sess.Close()
	default:
		fmt.Fprintf(sess.Stderr(), "%s: command not found\n", args[0])
		_ = sess.Exit(127)
	}
}

func (s *Server) winch(sess ssh.Session, args []string) {
	n, _ := strconv.Atoi(argOr(args, 1, "1"))
	_, windows, ok := sess.Pty()
	if !ok {
		fmt.Fprintln(sess.Stderr(), "winch needs a pty")
		_ = sess.Exit(1)
		return
	}

	// The first value on the channel is the size from the PTY request.
	<-windows
	timeout := time.After(5 * time.Second)
	for i := 0; i < n; i++ {
		select {
		case w := <-windows:
			s.mu.Lock()
			s.windows = append(s.windows, PtyInfo{Columns: w.Width, Rows: w.Height})
			s.mu.Unlock()
			fmt.Fprintf(sess, "%dx%d\n", w.Width, w.Height)
		case <-timeout:
			_ = sess.Exit(2)
			return
		}
	}
	_ = sess.Exit(0)
}

func argOr(args []string, i int, def string) string {
	if i < len(args) {
		return args[i]
	}
	return def
}

func serveSFTP(sess ssh.Session) {
	server, err := sftp.NewServer(sess)
	if err != nil {
		return
	}
	if err := server.Serve(); err == io.EOF {
		_ = server.Close()
	}
}

// NewSigner generates an ed25519 signer.
func NewSigner(t testing.TB) gossh.Signer {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	signer, err := gossh.NewSignerFromKey(priv)
	if err != nil {
		t.Fatalf("signer: %v", err)
	}
	return signer
}

// WriteKey generates an ed25519 key, writes it in OpenSSH PEM form to dir
// and returns its path and signer. A non-empty passphrase encrypts it.
func WriteKey(t testing.TB, dir, passphrase string) (string, gossh.Signer) {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	var block *pem.Block
	if passphrase == "" {
		block, err = gossh.MarshalPrivateKey(priv, "")
	} else {
		block, err = gossh.MarshalPrivateKeyWithPassphrase(priv, "", []byte(passphrase))
	}
	if err != nil {
		t.Fatalf("marshal key: %v", err)
	}

	path := filepath.Join(dir, "id_ed25519")
	if err := os.WriteFile(path, pem.EncodeToMemory(block), 0600); err != nil {
		t.Fatalf("write key: %v", err)
	}

	signer, err := gossh.NewSignerFromKey(priv)
	if err != nil {
		t.Fatalf("signer: %v", err)
	}
	return path, signer
}
