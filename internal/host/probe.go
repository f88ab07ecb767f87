// Package host checks whether an instance is ready to accept SSH
// connections. A freshly started instance reports "running" well before
// sshd is listening, so connecting right away usually fails.
package host

import (
	"bufio"
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/korasi/korasi/internal/errors"
	"github.com/korasi/korasi/internal/logger"
)

// ProbeError represents a failed probe with categorized failure reason.
type ProbeError struct {
	Address string
	Reason  ProbeFailReason
	Cause   error
}

// ProbeFailReason categorizes why a probe failed.
type ProbeFailReason int

const (
	ProbeFailUnknown ProbeFailReason = iota
	ProbeFailTimeout
	ProbeFailRefused
	ProbeFailUnreachable
	ProbeFailNoBanner
)

// String returns a human-readable description of the failure reason.
func (r ProbeFailReason) String() string {
	switch r {
	case ProbeFailTimeout:
		return "connection timed out"
	case ProbeFailRefused:
		return "connection refused"
	case ProbeFailUnreachable:
		return "host unreachable"
	case ProbeFailNoBanner:
		return "no SSH banner"
	default:
		return "unknown error"
	}
}

func (e *ProbeError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("probe %s failed: %s (%v)", e.Address, e.Reason, e.Cause)
	}
	return fmt.Sprintf("probe %s failed: %s", e.Address, e.Reason)
}

func (e *ProbeError) Unwrap() error {
	return e.Cause
}

// ProbeSSH connects to address and reads the server's identification
// line. It succeeds only when an SSH server answers, and returns how long
// that took.
func ProbeSSH(ctx context.Context, address string, timeout time.Duration) (time.Duration, error) {
	start := time.Now()

	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return 0, categorizeProbeError(address, err)
	}
	defer conn.Close()

	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return 0, categorizeProbeError(address, err)
	}
	// Servers may send other lines before the version line (RFC 4253 4.2).
	r := bufio.NewReader(conn)
	for i := 0; i < 16; i++ {
		line, err := r.ReadString('\n')
		if strings.HasPrefix(line, "SSH-") {
			return time.Since(start), nil
		}
		if err != nil {
			probeErr := categorizeProbeError(address, err)
			if probeErr.Reason == ProbeFailUnknown {
				probeErr.Reason = ProbeFailNoBanner
			}
			return 0, probeErr
		}
	}
	return 0, &ProbeError{Address: address, Reason: ProbeFailNoBanner}
}

// WaitOptions control WaitForSSH.
type WaitOptions struct {
	// Timeout bounds the whole wait.
	Timeout time.Duration
	// Interval is the pause between probes.
	Interval time.Duration
	// ProbeTimeout bounds each probe.
	ProbeTimeout time.Duration
	Logger       logger.Logger
}

// DefaultWaitOptions waits up to two minutes, probing every two seconds.
func DefaultWaitOptions() WaitOptions {
	return WaitOptions{
		Timeout:      2 * time.Minute,
		Interval:     2 * time.Second,
		ProbeTimeout: 5 * time.Second,
	}
}

// WaitForSSH probes address until an SSH server answers, the timeout
// passes or ctx is done.
func WaitForSSH(ctx context.Context, address string, opts WaitOptions) (time.Duration, error) {
	defaults := DefaultWaitOptions()
	if opts.Timeout <= 0 {
		opts.Timeout = defaults.Timeout
	}
	if opts.Interval <= 0 {
		opts.Interval = defaults.Interval
	}
	if opts.ProbeTimeout <= 0 {
		opts.ProbeTimeout = defaults.ProbeTimeout
	}
	log := opts.Logger
	if log == nil {
		log = logger.Noop()
	}

	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()
	start := time.Now()

	for attempt := 1; ; attempt++ {
		_, err := ProbeSSH(ctx, address, opts.ProbeTimeout)
		if err == nil {
			return time.Since(start), nil
		}
		log.Debug("probe %d of %s: %v", attempt, address, err)

		select {
		case <-ctx.Done():
			return 0, errors.WrapWithCode(err, errors.ErrTransport,
				fmt.Sprintf("SSH on %s didn't come up within %s", address, opts.Timeout),
				"The instance may still be booting. Try again in a minute, or check its security group.")
		case <-time.After(opts.Interval):
		}
	}
}

// categorizeProbeError converts a generic error into a ProbeError with
// a categorized failure reason.
func categorizeProbeError(address string, err error) *ProbeError {
	if err == nil {
		return nil
	}

	probeErr := &ProbeError{
		Address: address,
		Reason:  ProbeFailUnknown,
		Cause:   err,
	}

	var netErr net.Error
	if stderrors.As(err, &netErr) && netErr.Timeout() {
		probeErr.Reason = ProbeFailTimeout
		return probeErr
	}

	errStr := strings.ToLower(err.Error())

	switch {
	case strings.Contains(errStr, "timeout") || strings.Contains(errStr, "deadline exceeded"):
		probeErr.Reason = ProbeFailTimeout
	case strings.Contains(errStr, "connection refused"):
		probeErr.Reason = ProbeFailRefused
	case strings.Contains(errStr, "no route to host"),
		strings.Contains(errStr, "network is unreachable"),
		strings.Contains(errStr, "host is down"):
		probeErr.Reason = ProbeFailUnreachable
	}
	return probeErr
}
