package sshutil

import (
	stderrors "errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// HostKeyPolicy decides whether a server's host key is trusted. Callers
// pick one explicitly; there is no implicit default.
type HostKeyPolicy interface {
	// Name identifies the policy in logs and config ("accept-any", ...).
	Name() string
	// HostKeyCallback builds the callback used during the handshake.
	HostKeyCallback() (ssh.HostKeyCallback, error)
}

// AcceptAnyHostKey trusts whatever key the server presents. It exists for
// ephemeral instances whose host keys are generated at boot and can't be
// known in advance.
func AcceptAnyHostKey() HostKeyPolicy {
	return acceptAny{}
}

type acceptAny struct{}

func (acceptAny) Name() string { return "accept-any" }

func (acceptAny) HostKeyCallback() (ssh.HostKeyCallback, error) {
	return ssh.InsecureIgnoreHostKey(), nil //nolint:gosec // opt-in policy for ephemeral hosts
}

// TrustOnFirstUse records unknown hosts in the known_hosts file at path and
// rejects a host whose key later changes.
func TrustOnFirstUse(path string) HostKeyPolicy {
	return &tofu{path: path}
}

type tofu struct {
	path string
	mu   sync.Mutex
}

func (p *tofu) Name() string { return "tofu" }

func (p *tofu) HostKeyCallback() (ssh.HostKeyCallback, error) {
	if err := ensureKnownHosts(p.path); err != nil {
		return nil, err
	}
	callback, err := knownhosts.New(p.path)
	if err != nil {
		return nil, fmt.Errorf("failed to load known_hosts: %w", err)
	}

	return func(hostname string, remote net.Addr, key ssh.PublicKey) error {
		err := callback(hostname, remote, key)
		if err == nil {
			return nil
		}
		var keyErr *knownhosts.KeyError
		if !stderrors.As(err, &keyErr) {
			return err
		}
		if len(keyErr.Want) > 0 {
			return &HostKeyMismatchError{
				Hostname:     hostname,
				ReceivedType: key.Type(),
				KnownHosts:   p.path,
				Want:         keyErr.Want,
			}
		}
		return p.record(hostname, key)
	}, nil
}

func (p *tofu) record(hostname string, key ssh.PublicKey) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	f, err := os.OpenFile(p.path, os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("failed to record host key: %w", err)
	}
	defer f.Close()

	_, err = fmt.Fprintln(f, knownhosts.Line([]string{hostname}, key))
	return err
}

// KnownHosts verifies host keys strictly against the known_hosts file at
// path. Unknown hosts are rejected.
func KnownHosts(path string) HostKeyPolicy {
	return knownHostsPolicy{path: path}
}

type knownHostsPolicy struct {
	path string
}

func (p knownHostsPolicy) Name() string { return "known-hosts" }

func (p knownHostsPolicy) HostKeyCallback() (ssh.HostKeyCallback, error) {
	callback, err := knownhosts.New(p.path)
	if err != nil {
		return nil, fmt.Errorf("failed to load known_hosts: %w", err)
	}

	return func(hostname string, remote net.Addr, key ssh.PublicKey) error {
		err := callback(hostname, remote, key)
		var keyErr *knownhosts.KeyError
		if err != nil && stderrors.As(err, &keyErr) {
			if len(keyErr.Want) > 0 {
				return &HostKeyMismatchError{
					Hostname:     hostname,
					ReceivedType: key.Type(),
					KnownHosts:   p.path,
					Want:         keyErr.Want,
				}
			}
			return &UnknownHostError{Hostname: hostname, Fingerprint: ssh.FingerprintSHA256(key), KnownHosts: p.path}
		}
		return err
	}, nil
}

// PolicyByName maps a config value to a policy.
func PolicyByName(name, knownHostsPath string) (HostKeyPolicy, error) {
	switch name {
	case "accept-any":
		return AcceptAnyHostKey(), nil
	case "tofu":
		return TrustOnFirstUse(knownHostsPath), nil
	case "known-hosts":
		return KnownHosts(knownHostsPath), nil
	}
	return nil, fmt.Errorf("unknown host key policy %q", name)
}

func ensureKnownHosts(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
			return fmt.Errorf("failed to create known_hosts directory: %w", err)
		}
		if err := os.WriteFile(path, []byte{}, 0600); err != nil {
			return fmt.Errorf("failed to create known_hosts: %w", err)
		}
	}
	return nil
}

// HostKeyMismatchError provides helpful context when known_hosts verification fails.
type HostKeyMismatchError struct {
	Hostname     string
	ReceivedType string
	KnownHosts   string
	Want         []knownhosts.KnownKey
}

func (e *HostKeyMismatchError) Error() string {
	return fmt.Sprintf("host key mismatch for %s: server sent %s key", e.Hostname, e.ReceivedType)
}

// Suggestion returns actionable steps to fix the host key mismatch.
func (e *HostKeyMismatchError) Suggestion() string {
	host := e.Hostname
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}

	var wantTypes []string
	for _, k := range e.Want {
		wantTypes = append(wantTypes, k.Key.Type())
	}
	wantStr := "unknown"
	if len(wantTypes) > 0 {
		wantStr = strings.Join(wantTypes, ", ")
	}

	return fmt.Sprintf(
		"The server's host key doesn't match what's in known_hosts.\n"+
			"  Known types: %s\n"+
			"  Server sent: %s\n\n"+
			"  If the instance was recreated, remove the old entry:\n"+
			"    ssh-keygen -R %s -f %s",
		wantStr, e.ReceivedType, host, e.KnownHosts)
}

// UnknownHostError is returned by the strict policy for hosts missing from
// known_hosts.
type UnknownHostError struct {
	Hostname    string
	Fingerprint string
	KnownHosts  string
}

func (e *UnknownHostError) Error() string {
	return fmt.Sprintf("host %s (%s) is not in %s", e.Hostname, e.Fingerprint, e.KnownHosts)
}

// Suggestion explains how to trust the host.
func (e *UnknownHostError) Suggestion() string {
	return "Verify the fingerprint, then add the host with ssh-keyscan or switch ssh.host_key_policy to tofu."
}
