// File: api/direction.go
// Package api defines the shared contracts of hioload-tcp.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package api

import "strings"

// Direction selects which readiness conditions a wait observes. Values
// combine as a bitmask.
type Direction uint32

const (
	DirRead Direction = 1 << iota
	DirWrite
	// DirExcept watches the exceptional conditions select(2) reports,
	// pending socket errors and TCP urgent data among them. Connect and
	// accept waits combine it with write or read; data-path waits do not.
	DirExcept
)

// CanRead reports whether the mask includes read readiness.
func (d Direction) CanRead() bool { return d&DirRead != 0 }

// CanWrite reports whether the mask includes write readiness.
func (d Direction) CanWrite() bool { return d&DirWrite != 0 }

// CanExcept reports whether the mask includes the exceptional set.
func (d Direction) CanExcept() bool { return d&DirExcept != 0 }

func (d Direction) String() string {
	parts := make([]string, 0, 3)
	if d.CanRead() {
		parts = append(parts, "read")
	}
	if d.CanWrite() {
		parts = append(parts, "write")
	}
	if d.CanExcept() {
		parts = append(parts, "except")
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}
