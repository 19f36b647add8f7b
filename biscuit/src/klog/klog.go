// Package klog is the kernel's structured logger: a single
// package-level *logrus.Logger, configured once at boot from the boot
// configuration, with a handful of subsystem-tagged helpers so call
// sites read like simple printf-style trace points without losing
// structured fields.
package klog

import (
	"os"

	"github.com/sirupsen/logrus"
)

var std = logrus.New()

func init() {
	std.SetOutput(os.Stderr)
	std.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	std.SetLevel(logrus.InfoLevel)
}

/// SetLevel adjusts the minimum logged severity, typically from the
/// boot configuration's log_level field.
func SetLevel(level string) error {
	l, err := logrus.ParseLevel(level)
	if err != nil {
		return err
	}
	std.SetLevel(l)
	return nil
}

/// Logger returns the shared logger, for callers that want to attach
/// their own fields with WithField/WithFields.
func Logger() *logrus.Logger { return std }

func sub(system string) *logrus.Entry {
	return std.WithField("subsystem", system)
}

/// VM logs a vm-subsystem event (region/address-space bookkeeping).
func VM(format string, args ...interface{}) {
	sub("vm").Infof(format, args...)
}

/// Fault logs a page-fault-resolution event. Kept separate from VM
/// since fault traces are by far the highest-volume subsystem log and
/// the two are filtered independently in practice.
func Fault(format string, args ...interface{}) {
	sub("fault").Debugf(format, args...)
}

/// IPC logs a ports/connections/messages event.
func IPC(format string, args ...interface{}) {
	sub("ipc").Infof(format, args...)
}

/// Security logs a token/ACL decision, always at Warn or above since
/// access-control denials are the events an operator most wants to see
/// without raising the global level.
func Security(format string, args ...interface{}) {
	sub("security").Warnf(format, args...)
}

/// Fatal logs at Fatal level and exits, for invariant violations the
/// kernel cannot recover from that callers have chosen not to panic on
/// directly.
func Fatal(format string, args ...interface{}) {
	sub("kernel").Fatalf(format, args...)
}
