// File: api/severity.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package api

// Severity classifies failures on the syslog scale, from most verbose
// to most urgent.
type Severity int

const (
	SevTrace Severity = iota
	SevDebug
	SevInfo
	SevNotice
	SevWarning
	SevErr
	SevCrit
	SevAlert
	SevEmerg
)

var severityNames = [...]string{
	"trace", "debug", "info", "notice", "warning", "err", "crit", "alert", "emerg",
}

// String returns the syslog-style name of the severity.
func (s Severity) String() string {
	if s < SevTrace || s > SevEmerg {
		return "unknown"
	}
	return severityNames[s]
}
