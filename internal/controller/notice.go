package controller

import (
	"errors"
	"time"

	"github.com/chaz8081/btdeck/internal/device"
	"github.com/chaz8081/btdeck/internal/source"
)

// Severity says how long a notice stays visible.
type Severity int

const (
	// SeverityInfo reports a successful action.
	SeverityInfo Severity = iota
	// SeverityDismissible reports a recoverable failure.
	SeverityDismissible
	// SeverityPersistent reports a failure that lasts for the session. It
	// cannot be dismissed.
	SeverityPersistent
)

func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityDismissible:
		return "error"
	case SeverityPersistent:
		return "fatal"
	}
	return "unknown"
}

// Kind classifies what a notice is about.
type Kind string

const (
	KindInfo              Kind = "info"
	KindInitialization    Kind = "initialization"
	KindSourceUnavailable Kind = "source_unavailable"
	KindConnection        Kind = "connection"
	KindUnknownDevice     Kind = "unknown_device"
)

// Notice is a user-visible message produced by an intent.
type Notice struct {
	ID        string
	Kind      Kind
	Severity  Severity
	Title     string
	Message   string
	DeviceID  string
	Err       error
	CreatedAt time.Time
}

// maxNotices bounds the notice list; the oldest dismissible notices go first.
const maxNotices = 50

// kindOf maps a source or directory error to a notice kind and severity.
func kindOf(err error) (Kind, Severity) {
	switch {
	case errors.Is(err, source.ErrInitialization):
		return KindInitialization, SeverityPersistent
	case errors.Is(err, source.ErrConnection):
		return KindConnection, SeverityDismissible
	case errors.Is(err, device.ErrUnknownDevice):
		return KindUnknownDevice, SeverityDismissible
	default:
		return KindSourceUnavailable, SeverityDismissible
	}
}
