// File: logging/logging.go
// Package logging wires the dragonboat logger facade used by every
// hioload-tcp package to a plain-text sink on stderr.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package logging

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/lni/dragonboat/v4/logger"
	"github.com/pkg/errors"

	"github.com/momentics/hioload-tcp/api"
)

// subsystems lists every logger name handed out in this module.
var subsystems = []string{"poll", "transport", "client", "server", "waitqueue", "cli"}

// textLogger implements logger.ILogger with one line per message:
// timestamp, level, subsystem, text.
type textLogger struct {
	name  string
	level logger.LogLevel
	out   *log.Logger
}

func (l *textLogger) SetLevel(level logger.LogLevel) {
	l.level = level
}

func (l *textLogger) Debugf(format string, args ...interface{}) {
	if l.level >= logger.DEBUG {
		l.log("DEBUG", format, args...)
	}
}

func (l *textLogger) Infof(format string, args ...interface{}) {
	if l.level >= logger.INFO {
		l.log("INFO", format, args...)
	}
}

func (l *textLogger) Warningf(format string, args ...interface{}) {
	if l.level >= logger.WARNING {
		l.log("WARN", format, args...)
	}
}

func (l *textLogger) Errorf(format string, args ...interface{}) {
	if l.level >= logger.ERROR {
		l.log("ERROR", format, args...)
	}
}

func (l *textLogger) Panicf(format string, args ...interface{}) {
	l.log("CRIT", format, args...)
	panic(fmt.Sprintf(format, args...))
}

func (l *textLogger) log(levelStr string, format string, args ...interface{}) {
	l.out.Printf("%-5s | %-10s | %s", levelStr, l.name, fmt.Sprintf(format, args...))
}

// CreateLogger implements the facade's factory contract.
func CreateLogger(pkgName string) logger.ILogger {
	return &textLogger{
		name:  pkgName,
		level: logger.INFO,
		out:   log.New(os.Stderr, "", log.Ldate|log.Ltime|log.Lmicroseconds),
	}
}

// Setup installs the factory and applies level to every subsystem
// logger. Safe to call again to change the level at runtime.
func Setup(level string) error {
	lv, err := ParseLevel(level)
	if err != nil {
		return err
	}
	logger.SetLoggerFactory(CreateLogger)
	for _, name := range subsystems {
		logger.GetLogger(name).SetLevel(lv)
	}
	return nil
}

// ParseLevel converts a textual level to the facade's scale.
func ParseLevel(level string) (logger.LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug", "trace":
		return logger.DEBUG, nil
	case "info", "":
		return logger.INFO, nil
	case "warning", "warn", "notice":
		return logger.WARNING, nil
	case "error", "err":
		return logger.ERROR, nil
	case "critical", "crit":
		return logger.CRITICAL, nil
	}
	return logger.INFO, errors.Errorf("invalid log level %q: must be one of debug, info, warn, error, critical", level)
}

// Sev routes a message to the facade method closest to the syslog-style
// severity carried by transport errors.
func Sev(lg logger.ILogger, sev api.Severity, format string, args ...interface{}) {
	switch {
	case sev >= api.SevErr:
		lg.Errorf(format, args...)
	case sev >= api.SevNotice:
		lg.Warningf(format, args...)
	case sev == api.SevInfo:
		lg.Infof(format, args...)
	default:
		lg.Debugf(format, args...)
	}
}
