// File: server/types.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

// DefaultMaxClients caps how many connections one listener accepts over
// its lifetime.
const DefaultMaxClients = 12

// DefaultBacklog bounds the kernel listen queue.
const DefaultBacklog = 12

// Config holds the listener-side parameters.
type Config struct {
	MaxClients int // accept cap; reaching it stops the accept loop
	Backlog    int // listen(2) backlog
}

// DefaultConfig returns the defaults used by New.
func DefaultConfig() *Config {
	return &Config{
		MaxClients: DefaultMaxClients,
		Backlog:    DefaultBacklog,
	}
}

// Option adjusts a Server at construction time.
type Option func(*Server)

// WithMaxClients overrides the accept cap.
func WithMaxClients(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.cfg.MaxClients = n
		}
	}
}

// WithBacklog overrides the listen backlog.
func WithBacklog(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.cfg.Backlog = n
		}
	}
}
