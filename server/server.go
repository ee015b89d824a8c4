// File: server/server.go
// Package server implements the listening half of the transport: a
// non-blocking listener, a background accept goroutine bounded by a
// client cap, and broadcast send/receive across every accepted peer.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import (
	"net/netip"
	"sync"
	"sync/atomic"

	"github.com/VictoriaMetrics/metrics"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-tcp/api"
	"github.com/momentics/hioload-tcp/poll"
	"github.com/momentics/hioload-tcp/transport"
)

var plog = logger.GetLogger("server")

var acceptedTotal = metrics.GetOrCreateCounter("hioload_tcp_accepted_total")

// Server owns a listening descriptor and the peers its accept goroutine
// has admitted. Send, Receive and Close run on the owning goroutine
// while the accept goroutine appends peers, so the peer list lives
// behind a mutex and the accepting flag is atomic.
type Server struct {
	cfg *Config

	listenFD  int
	port      uint16
	accepting atomic.Bool
	wg        sync.WaitGroup

	mu        sync.Mutex
	peers     []*transport.Endpoint
	peerAddrs []netip.AddrPort
	acceptErr error
}

// New builds an unbound server.
func New(opts ...Option) *Server {
	s := &Server{cfg: DefaultConfig(), listenFD: -1}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Listen binds the wildcard address on port, starts listening and
// spawns the accept goroutine. Port 0 asks the kernel for a free port;
// Port() reports the one chosen.
func (s *Server) Listen(port uint16) error {
	if s.listenFD >= 0 {
		return errors.Errorf("listen :%d: already listening on :%d", port, s.port)
	}
	fd, err := transport.NewINETStreamSocket()
	if err != nil {
		return err
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		_ = unix.Close(fd)
		return errors.Wrapf(err, "listen :%d: set SO_REUSEADDR", port)
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEPORT, 1); err != nil {
		_ = unix.Close(fd)
		return errors.Wrapf(err, "listen :%d: set SO_REUSEPORT", port)
	}
	if err := unix.Bind(fd, &unix.SockaddrInet4{Port: int(port)}); err != nil {
		_ = unix.Close(fd)
		return errors.Wrapf(err, "bind :%d", port)
	}
	if err := unix.Listen(fd, s.cfg.Backlog); err != nil {
		_ = unix.Close(fd)
		return errors.Wrapf(err, "listen :%d", port)
	}
	if port == 0 {
		if lsa, err := unix.Getsockname(fd); err == nil {
			if in4, ok := lsa.(*unix.SockaddrInet4); ok {
				port = uint16(in4.Port)
			}
		}
	}

	s.listenFD = fd
	s.port = port
	s.mu.Lock()
	s.acceptErr = nil
	s.mu.Unlock()
	s.accepting.Store(true)
	s.wg.Add(1)
	go s.acceptLoop()
	plog.Infof("listening on :%d, accepting up to %d clients", port, s.cfg.MaxClients)
	return nil
}

// acceptLoop admits peers until the cap is reached or accepting is
// cleared by Close. Failures are recorded for AcceptErr and stop the
// loop; they never crash the process.
func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for s.accepting.Load() {
		if err := poll.WaitReady(s.listenFD, api.DirRead|api.DirExcept, poll.Forever); err != nil {
			s.failAccept(errors.Wrap(err, "accept wait"))
			return
		}
		if !s.accepting.Load() {
			return // woken by Close
		}
		nfd, sa, err := unix.Accept4(s.listenFD, unix.SOCK_NONBLOCK)
		if err == unix.EINTR || err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			continue
		}
		if err != nil {
			if !s.accepting.Load() {
				return // listener shut down under us
			}
			s.failAccept(errors.Wrap(err, "accept"))
			return
		}

		addr := peerAddr(sa)
		s.mu.Lock()
		s.peers = append(s.peers, transport.NewEndpoint(nfd))
		s.peerAddrs = append(s.peerAddrs, addr)
		count := len(s.peers)
		s.mu.Unlock()
		acceptedTotal.Inc()
		plog.Infof("accepted %s (%d/%d)", addr, count, s.cfg.MaxClients)

		if count >= s.cfg.MaxClients {
			s.accepting.Store(false)
			plog.Warningf("client cap %d reached, accepting no more", s.cfg.MaxClients)
			return
		}
	}
}

// failAccept records the failure that stopped the accept goroutine.
func (s *Server) failAccept(err error) {
	s.mu.Lock()
	s.acceptErr = err
	s.mu.Unlock()
	s.accepting.Store(false)
	plog.Errorf("accept loop stopped: %v", err)
}

// peerAddr converts a kernel sockaddr into a printable address.
func peerAddr(sa unix.Sockaddr) netip.AddrPort {
	if in4, ok := sa.(*unix.SockaddrInet4); ok {
		return netip.AddrPortFrom(netip.AddrFrom4(in4.Addr), uint16(in4.Port))
	}
	return netip.AddrPort{}
}

// Accepting reports whether the accept goroutine still admits peers.
func (s *Server) Accepting() bool { return s.accepting.Load() }

// AcceptErr returns the failure that stopped the accept goroutine, or
// nil when it ended normally (cap reached or Close).
func (s *Server) AcceptErr() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.acceptErr
}

// Port reports the bound port.
func (s *Server) Port() uint16 { return s.port }

// ClientCount reports how many peers are currently held.
func (s *Server) ClientCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.peers)
}

// GetClients returns a snapshot of the connected peer addresses in
// accept order.
func (s *Server) GetClients() []netip.AddrPort {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]netip.AddrPort, len(s.peerAddrs))
	copy(out, s.peerAddrs)
	return out
}

// Close stops the accept goroutine, closes every peer and the listening
// descriptor, and empties the peer list. Teardown always completes:
// problems are logged as warnings, never returned, and a second Close
// is a no-op.
func (s *Server) Close() error {
	if s.listenFD < 0 {
		return nil
	}
	s.accepting.Store(false)
	// Shutting the listener down kicks the accept goroutine out of its
	// indefinite readiness wait.
	if err := unix.Shutdown(s.listenFD, unix.SHUT_RDWR); err != nil && err != unix.ENOTCONN && err != unix.EINVAL {
		plog.Warningf("shutdown listener fd %d: %v", s.listenFD, err)
	}
	s.wg.Wait()

	s.mu.Lock()
	peers := s.peers
	s.peers = nil
	s.peerAddrs = nil
	s.mu.Unlock()
	for _, ep := range peers {
		_ = ep.Close()
	}
	if err := unix.Close(s.listenFD); err != nil {
		plog.Warningf("close listener fd %d: %v", s.listenFD, err)
	}
	s.listenFD = -1
	plog.Infof("listener on :%d closed, %d peers released", s.port, len(peers))
	return nil
}
