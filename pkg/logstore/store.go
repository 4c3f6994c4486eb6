package logstore

import (
	"context"

	"github.com/paketb0te/fritz-isp-toolkit/pkg/models"
)

// Store persists the device log entries already seen, keyed by router
// address, so repeated scans only report what is genuinely new.
type Store interface {
	// Load returns every stored entry for the router, sorted ascending
	// by timestamp. A router never seen before yields an empty slice.
	Load(ctx context.Context, address string) ([]models.LogEntry, error)

	// Append persists the given entries for the router in timestamp order.
	Append(ctx context.Context, address string, entries []models.LogEntry) error

	Close() error
}

// NewEntries returns the device entries not yet present in the known
// list. Both slices must be sorted ascending by timestamp. An empty
// known list means everything on the device is new; an entry stamped
// exactly at the last known timestamp counts as already seen, so only
// strictly newer entries are returned.
func NewEntries(device, known []models.LogEntry) []models.LogEntry {
	if len(known) == 0 {
		return device
	}
	if len(device) == 0 {
		return nil
	}

	lastKnown := known[len(known)-1].Timestamp
	i := len(device)
	for i > 0 && device[i-1].Timestamp.After(lastKnown) {
		i--
	}
	return device[i:]
}
