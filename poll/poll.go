// File: poll/poll.go
// Package poll provides the single-descriptor readiness wait that every
// blocking transport operation in hioload-tcp suspends on.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package poll

import (
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-tcp/api"
)

// Forever makes WaitReady block with no timeout.
const Forever = time.Duration(-1)

// fdSetLimit is select(2)'s FD_SETSIZE; unix.FdSet cannot hold
// descriptors at or above it.
const fdSetLimit = 1024

// WaitReady blocks the calling goroutine until fd is ready in the
// requested direction(s), the timeout elapses, or the wait call itself
// fails.
//
// The timeout converts to whole seconds plus a microsecond remainder. A
// zero timeout probes once and reports api.ErrTimedOut immediately when
// the descriptor is not already ready; a negative timeout blocks
// indefinitely. Each readiness set is built only for the directions the
// mask requests; exceptional readiness (api.DirExcept) returns nil so
// the next syscall on the descriptor surfaces the actual condition.
// Descriptors that select cannot hold (negative, or at and above the
// 1024-entry set limit) fail with the matching errno before any wait.
//
// Timeouts come back as api.ErrTimedOut and are the caller's to recover
// from; a failing select is not retried except for EINTR, which re-arms
// the full original timeout.
func WaitReady(fd int, dir api.Direction, timeout time.Duration) error {
	if fd < 0 {
		return errors.Wrapf(unix.EBADF, "wait %s", dir)
	}
	if fd >= fdSetLimit {
		return errors.Wrapf(unix.EINVAL, "wait %s on fd %d past the select limit %d", dir, fd, fdSetLimit)
	}
	var tv *unix.Timeval
	if timeout >= 0 {
		t := unix.NsecToTimeval(timeout.Nanoseconds())
		tv = &t
	}
	for {
		// Select mutates both the sets and the timeval, so everything is
		// rebuilt per attempt. Unrequested sets pass as nil.
		var readSet, writeSet, exceptSet unix.FdSet
		var rs, ws, es *unix.FdSet
		if dir.CanRead() {
			readSet.Set(fd)
			rs = &readSet
		}
		if dir.CanWrite() {
			writeSet.Set(fd)
			ws = &writeSet
		}
		if dir.CanExcept() {
			exceptSet.Set(fd)
			es = &exceptSet
		}

		n, err := unix.Select(fd+1, rs, ws, es, tv)
		if err == unix.EINTR {
			if tv != nil {
				t := unix.NsecToTimeval(timeout.Nanoseconds())
				tv = &t
			}
			continue
		}
		if err != nil {
			return errors.Wrapf(err, "wait %s on fd %d", dir, fd)
		}
		if n == 0 {
			return errors.Wrapf(api.ErrTimedOut, "wait %s on fd %d for %v", dir, fd, timeout)
		}
		return nil
	}
}
