// File: client/client.go
// Package client implements the outbound half of the transport: one
// non-blocking TCP connection with deadline-bounded connect, send and
// receive.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package client

import (
	"net"
	"net/netip"
	"time"

	"github.com/lni/dragonboat/v4/logger"
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-tcp/api"
	"github.com/momentics/hioload-tcp/poll"
	"github.com/momentics/hioload-tcp/transport"
)

var plog = logger.GetLogger("client")

// State tracks the connection lifecycle.
type State int32

const (
	StateUnconnected State = iota
	StateConnecting
	StateConnected
	StateClosed
)

var stateNames = [...]string{"unconnected", "connecting", "connected", "closed"}

func (s State) String() string {
	if s < StateUnconnected || s > StateClosed {
		return "invalid"
	}
	return stateNames[s]
}

// Client owns one outbound connection.
//
// A Client is not safe for concurrent use by multiple goroutines; it is
// the per-connection handle of a single caller.
type Client struct {
	state State
	ep    *transport.Endpoint
	addr  netip.AddrPort
}

// New returns an unconnected client.
func New() *Client {
	return &Client{state: StateUnconnected}
}

// State reports the lifecycle position.
func (c *Client) State() State { return c.state }

// RemoteAddr reports the resolved peer address once connected.
func (c *Client) RemoteAddr() netip.AddrPort { return c.addr }

// Endpoint exposes the connected endpoint for the record helpers in
// package transport. It is nil unless the client is Connected.
func (c *Client) Endpoint() *transport.Endpoint {
	if c.state != StateConnected {
		return nil
	}
	return c.ep
}

// Connect resolves host to an IPv4 address, creates a non-blocking
// socket and establishes the connection within timeout.
//
// A connect that cannot finish in time fails with api.ErrTimedOut; the
// half-built socket is released and the client returns to Unconnected,
// so a later Connect starts from scratch. Resolution failures and
// nonzero pending socket errors are fatal and not retried.
func (c *Client) Connect(host string, port uint16, timeout time.Duration) error {
	switch c.state {
	case StateConnected:
		return errors.Errorf("connect %s:%d: already connected to %s", host, port, c.addr)
	case StateClosed:
		return errors.Errorf("connect %s:%d: client is closed", host, port)
	}

	addr, err := resolveIPv4(host)
	if err != nil {
		return err
	}
	fd, err := transport.NewINETStreamSocket()
	if err != nil {
		return err
	}

	c.state = StateConnecting
	sa := &unix.SockaddrInet4{Port: int(port), Addr: addr.As4()}
	err = unix.Connect(fd, sa)
	switch {
	case err == nil:
		// Settled synchronously, typically on loopback.
	case err == unix.EINPROGRESS:
		if werr := awaitConnect(fd, host, port, timeout); werr != nil {
			c.state = StateUnconnected
			_ = unix.Close(fd)
			return werr
		}
	default:
		c.state = StateUnconnected
		_ = unix.Close(fd)
		return errors.Wrapf(err, "connect %s:%d", host, port)
	}

	c.ep = transport.NewEndpoint(fd)
	c.addr = netip.AddrPortFrom(addr, port)
	c.state = StateConnected
	plog.Infof("connected to %s", c.addr)
	return nil
}

// awaitConnect waits for an in-progress connect to settle on write or
// exceptional readiness, then checks the socket's pending error code.
func awaitConnect(fd int, host string, port uint16, timeout time.Duration) error {
	if err := poll.WaitReady(fd, api.DirWrite|api.DirExcept, timeout); err != nil {
		return errors.Wrapf(err, "connect %s:%d", host, port)
	}
	code, err := unix.GetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_ERROR)
	if err != nil {
		return errors.Wrapf(err, "connect %s:%d: pending error lookup", host, port)
	}
	if code != 0 {
		return errors.Wrapf(unix.Errno(code), "connect %s:%d", host, port)
	}
	return nil
}

// resolveIPv4 picks the first IPv4 address of host. A host without one
// is a hard failure, never retried.
func resolveIPv4(host string) (netip.Addr, error) {
	ips, err := net.LookupIP(host)
	if err != nil {
		return netip.Addr{}, errors.Wrapf(err, "resolve %s", host)
	}
	for _, ip := range ips {
		if v4 := ip.To4(); v4 != nil {
			addr, ok := netip.AddrFromSlice(v4)
			if ok {
				return addr, nil
			}
		}
	}
	return netip.Addr{}, errors.Errorf("resolve %s: no IPv4 address", host)
}

// Send writes buf fully under transport.Endpoint.SendAll semantics.
// The client must be Connected.
func (c *Client) Send(buf []byte, timeout time.Duration) error {
	if c.state != StateConnected {
		return errors.Wrapf(api.ErrNotConnected, "send in state %s", c.state)
	}
	return c.ep.SendAll(buf, timeout)
}

// Recv fills buf fully under transport.Endpoint.RecvAll semantics.
// The client must be Connected.
func (c *Client) Recv(buf []byte, timeout time.Duration) error {
	if c.state != StateConnected {
		return errors.Wrapf(api.ErrNotConnected, "recv in state %s", c.state)
	}
	return c.ep.RecvAll(buf, timeout)
}

// Close tears the connection down. Teardown always completes: problems
// are logged by the endpoint, never returned, and calling Close on a
// closed client is a no-op.
func (c *Client) Close() error {
	if c.state == StateClosed {
		return nil
	}
	if c.ep != nil {
		_ = c.ep.Close()
		c.ep = nil
	}
	if c.addr.IsValid() {
		plog.Infof("closed connection to %s", c.addr)
	}
	c.state = StateClosed
	return nil
}
