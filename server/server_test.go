package server

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"testing"
	"time"

	"github.com/momentics/hioload-tcp/api"
	"github.com/momentics/hioload-tcp/transport"
)

// waitUntil polls cond until it holds or the deadline passes.
func waitUntil(t *testing.T, d time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

func dial(t *testing.T, s *Server) net.Conn {
	t.Helper()
	conn, err := net.Dial("tcp4", fmt.Sprintf("127.0.0.1:%d", s.Port()))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestListenAcceptBroadcast(t *testing.T) {
	s := New(WithMaxClients(2))
	if err := s.Listen(0); err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer s.Close()

	first := dial(t, s)
	if !waitUntil(t, 2*time.Second, func() bool { return s.ClientCount() == 1 }) {
		t.Fatalf("first client not accepted, count=%d", s.ClientCount())
	}
	second := dial(t, s)
	if !waitUntil(t, 2*time.Second, func() bool { return s.ClientCount() == 2 }) {
		t.Fatalf("second client not accepted, count=%d", s.ClientCount())
	}

	clients := s.GetClients()
	if len(clients) != 2 {
		t.Fatalf("GetClients returned %d addresses, want 2", len(clients))
	}
	for _, addr := range clients {
		if !addr.IsValid() {
			t.Fatalf("invalid peer address in %v", clients)
		}
	}

	payload := []byte("broadcast record")
	if err := s.Send(payload, 2*time.Second); err != nil {
		t.Fatalf("broadcast: %v", err)
	}
	for i, conn := range []net.Conn{first, second} {
		got := make([]byte, len(payload))
		if _, err := io.ReadFull(conn, got); err != nil {
			t.Fatalf("peer %d read: %v", i+1, err)
		}
		if !bytes.Equal(got, payload) {
			t.Fatalf("peer %d received different bytes", i+1)
		}
	}
}

func TestListenReusePort(t *testing.T) {
	first := New()
	if err := first.Listen(0); err != nil {
		t.Fatalf("first listen: %v", err)
	}
	defer first.Close()

	// The reuse options let a second listener bind the exact port while
	// the first is still live.
	second := New()
	if err := second.Listen(first.Port()); err != nil {
		t.Fatalf("second listener on shared port %d: %v", first.Port(), err)
	}
	defer second.Close()
}

func TestMaxClientsStopsAccepting(t *testing.T) {
	s := New(WithMaxClients(2))
	if err := s.Listen(0); err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer s.Close()

	dial(t, s)
	if !waitUntil(t, 2*time.Second, func() bool { return s.ClientCount() == 1 }) {
		t.Fatal("first client not accepted")
	}
	dial(t, s)
	if !waitUntil(t, 2*time.Second, func() bool { return s.ClientCount() == 2 }) {
		t.Fatal("second client not accepted")
	}
	if !waitUntil(t, 2*time.Second, func() bool { return !s.Accepting() }) {
		t.Fatal("accepting flag still set after reaching the cap")
	}

	// A third attempt may complete its handshake in the kernel backlog
	// but must never be admitted to the peer list.
	net.Dial("tcp4", fmt.Sprintf("127.0.0.1:%d", s.Port()))
	time.Sleep(300 * time.Millisecond)
	if got := s.ClientCount(); got != 2 {
		t.Fatalf("client count after cap = %d, want 2", got)
	}
	if got := len(s.GetClients()); got != 2 {
		t.Fatalf("GetClients after cap = %d addresses, want 2", got)
	}
	if err := s.AcceptErr(); err != nil {
		t.Fatalf("cap exit recorded as failure: %v", err)
	}
}

func TestReceiveOneRecordPerPeer(t *testing.T) {
	type mark struct {
		ID  uint32
		Val uint32
	}

	s := New(WithMaxClients(2))
	if err := s.Listen(0); err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer s.Close()

	first := dial(t, s)
	if !waitUntil(t, 2*time.Second, func() bool { return s.ClientCount() == 1 }) {
		t.Fatal("first client not accepted")
	}
	second := dial(t, s)
	if !waitUntil(t, 2*time.Second, func() bool { return s.ClientCount() == 2 }) {
		t.Fatal("second client not accepted")
	}

	m1 := mark{ID: 1, Val: 10}
	m2 := mark{ID: 2, Val: 20}
	if _, err := first.Write(transport.AsBytes(&m1)); err != nil {
		t.Fatalf("peer 1 write: %v", err)
	}
	if _, err := second.Write(transport.AsBytes(&m2)); err != nil {
		t.Fatalf("peer 2 write: %v", err)
	}

	recs, err := Receive[mark](s, 2*time.Second)
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("got %d records, want one per peer", len(recs))
	}
	// Records arrive in accept order, which the staggered dials pinned.
	if recs[0] != m1 || recs[1] != m2 {
		t.Fatalf("records out of order or corrupt: %+v", recs)
	}
}

func TestZeroPeerAsymmetry(t *testing.T) {
	s := New()
	if err := s.Listen(0); err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer s.Close()

	// Broadcast with no peers is a logged no-op.
	if err := s.Send([]byte("nobody home"), time.Second); err != nil {
		t.Fatalf("zero-peer send must succeed, got %v", err)
	}
	// Receiving requires at least one peer.
	if _, err := s.RecvEach(4, time.Second); !errors.Is(err, api.ErrNoPeers) {
		t.Fatalf("zero-peer recv: want ErrNoPeers, got %v", err)
	}
	if _, err := Receive[uint32](s, time.Second); !errors.Is(err, api.ErrNoPeers) {
		t.Fatalf("zero-peer generic recv: want ErrNoPeers, got %v", err)
	}
}

func TestIOBeforeListen(t *testing.T) {
	s := New()
	if err := s.Send([]byte("too early"), time.Second); !errors.Is(err, api.ErrNotConnected) {
		t.Fatalf("send before listen: want ErrNotConnected, got %v", err)
	}
	if _, err := s.RecvEach(4, time.Second); !errors.Is(err, api.ErrNotConnected) {
		t.Fatalf("recv before listen: want ErrNotConnected, got %v", err)
	}
	_, err := Receive[uint32](s, time.Second)
	if !errors.Is(err, api.ErrNotConnected) {
		t.Fatalf("generic recv before listen: want ErrNotConnected, got %v", err)
	}
	// Before listen is a usage error, not the zero-peer condition.
	if errors.Is(err, api.ErrNoPeers) {
		t.Fatalf("pre-listen recv reported as a zero-peer failure: %v", err)
	}
}

func TestIOAfterClose(t *testing.T) {
	s := New()
	if err := s.Listen(0); err != nil {
		t.Fatalf("listen: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := s.Send([]byte("too late"), time.Second); !errors.Is(err, api.ErrNotConnected) {
		t.Fatalf("send after close: want ErrNotConnected, got %v", err)
	}
	if _, err := s.RecvEach(4, time.Second); !errors.Is(err, api.ErrNotConnected) {
		t.Fatalf("recv after close: want ErrNotConnected, got %v", err)
	}
}

func TestRecvPeerClosed(t *testing.T) {
	s := New()
	if err := s.Listen(0); err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer s.Close()

	conn := dial(t, s)
	if !waitUntil(t, 2*time.Second, func() bool { return s.ClientCount() == 1 }) {
		t.Fatal("client not accepted")
	}
	if _, err := conn.Write([]byte{1, 2}); err != nil {
		t.Fatalf("partial write: %v", err)
	}
	conn.Close()

	_, err := s.RecvEach(8, 2*time.Second)
	if !errors.Is(err, api.ErrPeerClosed) {
		t.Fatalf("want ErrPeerClosed mid-record, got %v", err)
	}
}

func TestCloseZeroPeersAndTwice(t *testing.T) {
	s := New()
	if err := s.Listen(0); err != nil {
		t.Fatalf("listen: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close with zero peers: %v", err)
	}
	if got := s.ClientCount(); got != 0 {
		t.Fatalf("peer list not empty after close: %d", got)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if s.Accepting() {
		t.Fatal("still accepting after close")
	}
}

func TestCloseReleasesPeers(t *testing.T) {
	s := New()
	if err := s.Listen(0); err != nil {
		t.Fatalf("listen: %v", err)
	}
	conn := dial(t, s)
	if !waitUntil(t, 2*time.Second, func() bool { return s.ClientCount() == 1 }) {
		t.Fatal("client not accepted")
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if got := s.ClientCount(); got != 0 {
		t.Fatalf("peer list not cleared: %d", got)
	}
	// The peer observes the shutdown as EOF.
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, err := conn.Read(make([]byte, 1)); err != io.EOF {
		t.Fatalf("peer read after server close: want EOF, got %v", err)
	}
}
