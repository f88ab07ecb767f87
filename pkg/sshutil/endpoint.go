package sshutil

import (
	"fmt"
	"net"
	"strconv"
)

// Endpoint is where a secure channel connects to: an instance address, the
// port sshd listens on and the login user. Endpoints are built per
// selected instance and never persisted.
type Endpoint struct {
	Host string
	Port int
	User string
}

// Address returns the host:port string for dialing.
func (e Endpoint) Address() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

func (e Endpoint) String() string {
	return fmt.Sprintf("%s@%s", e.User, e.Address())
}

// WithOverrides returns a copy of e with every non-empty override applied.
func (e Endpoint) WithOverrides(o HostOverrides) Endpoint {
	if o.Hostname != "" {
		e.Host = o.Hostname
	}
	if o.Port != 0 {
		e.Port = o.Port
	}
	if o.User != "" {
		e.User = o.User
	}
	return e
}
