// Package sshutil establishes authenticated SSH connections to instances
// and opens the exec and transfer sub-channels korasi works over.
package sshutil

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/korasi/korasi/internal/errors"
	"github.com/korasi/korasi/internal/logger"
	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
)

// DefaultTimeout bounds dialing and the handshake when ConnectOptions
// leaves Timeout unset.
const DefaultTimeout = 10 * time.Second

// ConnectOptions tune Connect.
type ConnectOptions struct {
	// Timeout bounds the TCP dial and the SSH handshake together.
	Timeout time.Duration

	// HostKeys decides which server keys are trusted. Required.
	HostKeys HostKeyPolicy

	// Logger receives debug output. Defaults to an env logger.
	Logger logger.Logger
}

// Client is one authenticated SSH connection. Authentication finishes
// inside Connect, so every *Client handed out is ready to open channels.
type Client struct {
	conn     *ssh.Client
	endpoint Endpoint
	log      logger.Logger

	mu     sync.Mutex
	closed bool
}

// Connect dials ep, verifies the host key with opts.HostKeys and
// authenticates with id.
func Connect(ctx context.Context, ep Endpoint, id *Identity, opts ConnectOptions) (*Client, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewEnvLogger("[ssh]")
	}
	if opts.HostKeys == nil {
		return nil, errors.New(errors.ErrHostKey,
			"No host key policy configured",
			"Set ssh.host_key_policy to accept-any, tofu or known-hosts.")
	}
	if id == nil || id.Signer == nil {
		return nil, errors.New(errors.ErrAuth,
			"No SSH identity loaded",
			"Point --ssh-key or ssh.identity_file at a private key.")
	}

	policyCallback, err := opts.HostKeys.HostKeyCallback()
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrHostKey,
			fmt.Sprintf("Couldn't set up the %s host key policy", opts.HostKeys.Name()),
			"Check ssh.known_hosts_file exists and is readable.")
	}

	// The policy verdict is captured here because the handshake error
	// only carries its text.
	var hostKeyErr error
	config := &ssh.ClientConfig{
		User: ep.User,
		Auth: []ssh.AuthMethod{ssh.PublicKeys(id.Signer)},
		HostKeyCallback: func(hostname string, remote net.Addr, key ssh.PublicKey) error {
			hostKeyErr = policyCallback(hostname, remote, key)
			return hostKeyErr
		},
		Timeout: opts.Timeout,
	}

	address := ep.Address()
	opts.Logger.Debug("dialing %s (timeout %s, host keys %s)", ep, opts.Timeout, opts.HostKeys.Name())

	dialer := &net.Dialer{Timeout: opts.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrTransport,
			fmt.Sprintf("Can't reach %s", address),
			suggestionForDialError(err))
	}

	// The handshake shares the dial deadline and is abandoned if ctx ends.
	_ = conn.SetDeadline(time.Now().Add(opts.Timeout))
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	sshConn, chans, reqs, err := ssh.NewClientConn(conn, address, config)
	stop()
	if ctx.Err() != nil {
		if err == nil {
			sshConn.Close()
		}
		conn.Close()
		return nil, errors.WrapWithCode(ctx.Err(), errors.ErrTransport,
			fmt.Sprintf("Connecting to %s was cancelled", address), "")
	}
	if err != nil {
		conn.Close()
		return nil, classifyHandshakeError(err, hostKeyErr, ep, id)
	}
	_ = conn.SetDeadline(time.Time{})

	opts.Logger.Debug("authenticated to %s as %s", address, ep.User)
	return &Client{
		conn:     ssh.NewClient(sshConn, chans, reqs),
		endpoint: ep,
		log:      opts.Logger,
	}, nil
}

// Endpoint returns where the client is connected.
func (c *Client) Endpoint() Endpoint {
	return c.endpoint
}

// OpenExec opens a fresh session channel for running one command.
func (c *Client) OpenExec() (*ExecSession, error) {
	ch, reqs, err := c.openSession("exec")
	if err != nil {
		return nil, err
	}
	return newExecSession(ch, reqs, c.log), nil
}

// OpenTransfer opens a fresh session channel, starts the sftp subsystem on
// it and returns a client speaking SFTP over it. Closing the returned
// client closes the channel.
func (c *Client) OpenTransfer() (*sftp.Client, error) {
	ch, reqs, err := c.openSession("transfer")
	if err != nil {
		return nil, err
	}
	go ssh.DiscardRequests(reqs)

	ok, err := ch.SendRequest("subsystem", true, ssh.Marshal(&subsystemRequestMsg{Subsystem: "sftp"}))
	if err == nil && !ok {
		err = stderrors.New("sftp subsystem request denied")
	}
	if err != nil {
		ch.Close()
		return nil, errors.WrapWithCode(err, errors.ErrChannel,
			fmt.Sprintf("Couldn't start SFTP on %s", c.endpoint.Address()),
			"Check the instance's sshd has the sftp subsystem enabled.")
	}

	client, err := sftp.NewClientPipe(ch, ch)
	if err != nil {
		ch.Close()
		return nil, errors.WrapWithCode(err, errors.ErrChannel,
			"SFTP handshake failed",
			"Check the instance's sshd has the sftp subsystem enabled.")
	}
	return client, nil
}

func (c *Client) openSession(purpose string) (ssh.Channel, <-chan *ssh.Request, error) {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return nil, nil, errors.New(errors.ErrChannel,
			fmt.Sprintf("Can't open %s channel: connection to %s is closed", purpose, c.endpoint.Address()),
			"Reconnect before opening another channel.")
	}

	ch, reqs, err := c.conn.OpenChannel("session", nil)
	if err != nil {
		return nil, nil, errors.WrapWithCode(err, errors.ErrChannel,
			fmt.Sprintf("Can't open %s channel on %s", purpose, c.endpoint.Address()),
			"The connection may have dropped. Try again.")
	}
	c.log.Debug("opened %s channel on %s", purpose, c.endpoint.Address())
	return ch, reqs, nil
}

// Close shuts the connection down. Calling it more than once is harmless.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	if err := c.conn.Close(); err != nil && !stderrors.Is(err, net.ErrClosed) {
		return err
	}
	return nil
}

type subsystemRequestMsg struct {
	Subsystem string
}

func classifyHandshakeError(err, hostKeyErr error, ep Endpoint, id *Identity) error {
	if hostKeyErr != nil {
		var mismatch *HostKeyMismatchError
		if stderrors.As(hostKeyErr, &mismatch) {
			return errors.WrapWithCode(hostKeyErr, errors.ErrHostKey, mismatch.Error(), mismatch.Suggestion())
		}
		var unknown *UnknownHostError
		if stderrors.As(hostKeyErr, &unknown) {
			return errors.WrapWithCode(hostKeyErr, errors.ErrHostKey,
				fmt.Sprintf("Host %s isn't in known_hosts", ep.Address()), unknown.Suggestion())
		}
		return errors.WrapWithCode(hostKeyErr, errors.ErrHostKey,
			fmt.Sprintf("Host key for %s was rejected", ep.Address()),
			"Check ssh.host_key_policy and ssh.known_hosts_file.")
	}

	errStr := err.Error()
	if strings.Contains(errStr, "unable to authenticate") || strings.Contains(errStr, "no supported methods") {
		return errors.WrapWithCode(err, errors.ErrAuth,
			fmt.Sprintf("%s rejected key %s for user %s", ep.Address(), id.Path, ep.User),
			"Check the key matches the instance's key pair and the login user is right (--user).")
	}

	return errors.WrapWithCode(err, errors.ErrTransport,
		fmt.Sprintf("SSH handshake with %s didn't go through", ep.Address()),
		suggestionForDialError(err))
}

func suggestionForDialError(err error) string {
	errStr := err.Error()
	if strings.Contains(errStr, "connection refused") {
		return "Is sshd running yet? Freshly started instances take a moment."
	}
	if strings.Contains(errStr, "no route to host") || strings.Contains(errStr, "network is unreachable") {
		return "Can't route to the host. Check your network connection."
	}
	if strings.Contains(errStr, "timeout") || strings.Contains(errStr, "i/o timeout") {
		return "Connection timed out. The security group may not allow SSH from your address."
	}
	return "Make sure the instance is running and reachable."
}
