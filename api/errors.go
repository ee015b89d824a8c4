// Package api
// Author: momentics <momentics@gmail.com>
//
// Common error kinds and the severity-tagged error type for hioload-tcp.

package api

import (
	"errors"
	"fmt"
)

// Common errors used across the library. Call sites wrap these with
// operation context; match with errors.Is.
var (
	ErrTimedOut     = errors.New("operation timed out")
	ErrPeerClosed   = errors.New("peer closed connection")
	ErrNotConnected = errors.New("endpoint not connected")
	ErrNoPeers      = errors.New("no connected peers")
)

// Error attaches a Severity to an underlying failure so callers can log
// it at the level the condition deserves rather than a flat "error".
type Error struct {
	Sev Severity
	Op  string
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Op == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Unwrap exposes the underlying error to errors.Is and errors.As.
func (e *Error) Unwrap() error { return e.Err }

// E builds a severity-tagged error.
func E(sev Severity, op string, err error) error {
	return &Error{Sev: sev, Op: op, Err: err}
}

// SeverityOf reports the severity attached to err, walking the wrap
// chain. Errors without a tag default to SevErr.
func SeverityOf(err error) Severity {
	var e *Error
	if errors.As(err, &e) {
		return e.Sev
	}
	return SevErr
}
