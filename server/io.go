// File: server/io.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import (
	"time"

	"github.com/pkg/errors"

	"github.com/momentics/hioload-tcp/api"
	"github.com/momentics/hioload-tcp/transport"
)

// snapshotPeers copies the peer slice so I/O never holds the lock and
// never blocks the accept goroutine. A peer admitted while a broadcast
// runs joins the next call.
func (s *Server) snapshotPeers() []*transport.Endpoint {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*transport.Endpoint, len(s.peers))
	copy(out, s.peers)
	return out
}

// Send broadcasts buf to every connected peer in accept order. Sending
// before Listen, or after Close, is a usage error. On a listening
// server with no peers connected it logs a warning and does nothing;
// receiving is the strict side of that contract, see Receive. The first
// failing peer aborts the remainder of the broadcast.
func (s *Server) Send(buf []byte, timeout time.Duration) error {
	if s.listenFD < 0 {
		return errors.Wrap(api.ErrNotConnected, "broadcast before listen")
	}
	peers := s.snapshotPeers()
	if len(peers) == 0 {
		plog.Warningf("broadcast of %d bytes with no connected peers", len(buf))
		return nil
	}
	for i, ep := range peers {
		if err := ep.SendAll(buf, timeout); err != nil {
			return errors.Wrapf(err, "broadcast to peer %d of %d", i+1, len(peers))
		}
	}
	return nil
}

// RecvEach reads one size-byte record from every connected peer in
// accept order. The server must be listening with at least one peer
// connected; the first failing peer aborts the collection.
func (s *Server) RecvEach(size int, timeout time.Duration) ([][]byte, error) {
	if s.listenFD < 0 {
		return nil, errors.Wrap(api.ErrNotConnected, "recv before listen")
	}
	peers := s.snapshotPeers()
	if len(peers) == 0 {
		return nil, errors.Wrap(api.ErrNoPeers, "recv")
	}
	out := make([][]byte, 0, len(peers))
	for i, ep := range peers {
		rec := make([]byte, size)
		if err := ep.RecvAll(rec, timeout); err != nil {
			return nil, errors.Wrapf(err, "recv from peer %d of %d", i+1, len(peers))
		}
		out = append(out, rec)
	}
	return out, nil
}

// Receive reads one fixed-size record of type T from every connected
// peer in accept order, one record per peer. The server must be
// listening with at least one peer connected.
func Receive[T any](s *Server, timeout time.Duration) ([]T, error) {
	if s.listenFD < 0 {
		return nil, errors.Wrap(api.ErrNotConnected, "recv before listen")
	}
	peers := s.snapshotPeers()
	if len(peers) == 0 {
		return nil, errors.Wrap(api.ErrNoPeers, "recv")
	}
	out := make([]T, len(peers))
	for i, ep := range peers {
		if err := ep.RecvAll(transport.AsBytes(&out[i]), timeout); err != nil {
			return nil, errors.Wrapf(err, "recv from peer %d of %d", i+1, len(peers))
		}
	}
	return out, nil
}
