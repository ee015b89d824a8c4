// File: transport/socket.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package transport

import (
	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-tcp/api"
	"github.com/momentics/hioload-tcp/logging"
)

// NewINETStreamSocket creates the non-blocking IPv4 stream socket used
// by both the client and the server listener.
//
// Creation failures carry a severity tag: address-family and protocol
// mismatches rank as a notice (the host simply lacks the capability),
// anything else as an error. The failure is logged here at that level
// and returned tagged for the caller.
func NewINETStreamSocket() (int, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM|unix.SOCK_NONBLOCK, unix.IPPROTO_TCP)
	if err != nil {
		sev := creationSeverity(err)
		logging.Sev(plog, sev, "create stream socket: %v", err)
		return -1, api.E(sev, "create stream socket", err)
	}
	return fd, nil
}

func creationSeverity(err error) api.Severity {
	switch err {
	case unix.EACCES, unix.EAFNOSUPPORT, unix.EINVAL, unix.EPROTONOSUPPORT:
		return api.SevNotice
	}
	return api.SevErr
}
