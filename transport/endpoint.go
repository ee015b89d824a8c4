// File: transport/endpoint.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package transport

import (
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-tcp/api"
	"github.com/momentics/hioload-tcp/poll"
)

var plog = logger.GetLogger("transport")

var (
	sentBytes = metrics.GetOrCreateCounter("hioload_tcp_sent_bytes_total")
	recvBytes = metrics.GetOrCreateCounter("hioload_tcp_recv_bytes_total")
)

// Endpoint owns one connected stream descriptor. The descriptor is
// non-blocking; operations suspend in poll.WaitReady, never in the
// syscall itself.
//
// An Endpoint is not safe for concurrent use by multiple goroutines.
type Endpoint struct {
	fd        int
	connected bool
}

// NewEndpoint wraps an already connected descriptor.
func NewEndpoint(fd int) *Endpoint {
	return &Endpoint{fd: fd, connected: true}
}

// Connected reports whether the endpoint still owns a live connection.
func (e *Endpoint) Connected() bool { return e != nil && e.connected }

// RawFD exposes the underlying descriptor, -1 once closed.
func (e *Endpoint) RawFD() int {
	if e == nil {
		return -1
	}
	return e.fd
}

// SendAll writes every byte of buf, retrying partial writes until the
// buffer drains. Whenever the descriptor cannot take more bytes the
// call waits up to timeout for writability; the timeout re-arms in full
// on every wait, so total wall clock across many partial writes may
// exceed it. A timeout mid-buffer fails the whole call with no partial
// count reported.
func (e *Endpoint) SendAll(buf []byte, timeout time.Duration) error {
	if !e.Connected() {
		return errors.Wrap(api.ErrNotConnected, "send")
	}
	for off := 0; off < len(buf); {
		n, err := unix.Write(e.fd, buf[off:])
		switch {
		case err == nil:
			off += n
			sentBytes.Add(n)
			if off == len(buf) {
				return nil
			}
		case err != unix.EAGAIN && err != unix.EWOULDBLOCK:
			return errors.Wrapf(err, "send at offset %d of %d", off, len(buf))
		}
		if werr := poll.WaitReady(e.fd, api.DirWrite, timeout); werr != nil {
			return errors.Wrapf(werr, "send at offset %d of %d", off, len(buf))
		}
	}
	return nil
}

// RecvAll fills every byte of buf from the descriptor. A read of zero
// bytes means the peer shut down its sending side in good order and
// comes back as api.ErrPeerClosed, distinct from a timeout. The timeout
// re-arms in full on every wait, as in SendAll.
func (e *Endpoint) RecvAll(buf []byte, timeout time.Duration) error {
	if !e.Connected() {
		return errors.Wrap(api.ErrNotConnected, "recv")
	}
	for off := 0; off < len(buf); {
		n, err := unix.Read(e.fd, buf[off:])
		switch {
		case err == nil && n == 0:
			return errors.Wrapf(api.ErrPeerClosed, "recv at offset %d of %d", off, len(buf))
		case err == nil:
			off += n
			recvBytes.Add(n)
			if off == len(buf) {
				return nil
			}
		case err != unix.EAGAIN && err != unix.EWOULDBLOCK:
			return errors.Wrapf(err, "recv at offset %d of %d", off, len(buf))
		}
		if werr := poll.WaitReady(e.fd, api.DirRead, timeout); werr != nil {
			return errors.Wrapf(werr, "recv at offset %d of %d", off, len(buf))
		}
	}
	return nil
}

// Close shuts down both directions and releases the descriptor.
// Teardown must always complete, so problems are logged at warning
// level and never returned; calling Close again is a no-op.
func (e *Endpoint) Close() error {
	if e == nil || e.fd < 0 {
		return nil
	}
	if err := unix.Shutdown(e.fd, unix.SHUT_RDWR); err != nil {
		plog.Warningf("shutdown fd %d: %v", e.fd, err)
	}
	if err := unix.Close(e.fd); err != nil {
		plog.Warningf("close fd %d: %v", e.fd, err)
	}
	e.fd = -1
	e.connected = false
	return nil
}
