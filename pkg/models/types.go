package models

import (
	"fmt"
	"time"
)

// LogEntry is a single line of the FRITZ!Box device log: the moment the
// router recorded it and the message text.
type LogEntry struct {
	Timestamp time.Time
	Message   string
}

// String renders the entry the way it is persisted in the local logfile:
// RFC 3339 timestamp in the local timezone, one space, the raw message.
func (e LogEntry) String() string {
	return fmt.Sprintf("%s %s", e.Timestamp.Local().Format(time.RFC3339), e.Message)
}

// EventKind classifies a log entry that the analyzer recognized.
type EventKind string

const (
	EventConnect     EventKind = "connect"
	EventDisconnect  EventKind = "disconnect"
	EventDSLSync     EventKind = "dsl-sync"
	EventAuthFailure EventKind = "auth-failure"
)

// ConnectionEvent is a log entry matched by an analyzer rule.
type ConnectionEvent struct {
	Kind  EventKind
	Entry LogEntry
}

// Outage is the window between an internet disconnect and the reconnect
// that followed it. Open is true when no reconnect has been seen yet; an
// open outage has a zero End and Duration.
type Outage struct {
	Start    time.Time
	End      time.Time
	Duration time.Duration
	Open     bool
}

// ScanResult is the outcome of scanning one router. Every publisher
// receives this struct as-is.
type ScanResult struct {
	RunID         string
	RouterAddress string
	RouterModel   string

	// NewEntries holds the device log entries that were not yet present
	// in the local store, sorted ascending by timestamp.
	NewEntries []LogEntry

	// KnownEntries is how many entries the local store held before the
	// scan; DeviceEntries is how many lines the device log contained.
	KnownEntries  int
	DeviceEntries int

	Events  []ConnectionEvent
	Outages []Outage

	ScannedAt    time.Time
	ScanDuration time.Duration
}
