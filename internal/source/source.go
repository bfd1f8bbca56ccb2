// Package source defines the contract every device source satisfies: the
// simulated in-memory source and the real Bluetooth Low Energy source both
// implement Source and are chosen at composition time.
package source

//go:generate mockgen -source=source.go -destination=mock_source.go -package=source

import (
	"context"
	"time"

	"github.com/chaz8081/btdeck/internal/device"
)

// DefaultScanWindow is how long a single scan listens for advertisements.
const DefaultScanWindow = 5 * time.Second

// Observation is one sighting of a device reported by a Source.
type Observation = device.Observation

// Source supplies device discovery, connection toggling and battery reads.
// Implementations must be safe for concurrent use.
type Source interface {
	// Initialize prepares the underlying transport. It fails with
	// ErrInitialization when the platform capability is unavailable.
	Initialize(ctx context.Context) error

	// ListConnected returns the source's current snapshot of known devices.
	// It fails with ErrSourceUnavailable on transport failure.
	ListConnected(ctx context.Context) ([]Observation, error)

	// Scan listens for advertisements for one scan window, or until ctx is
	// done, calling onFound once per device discovered during this scan.
	// It may be called while an earlier scan is still winding down.
	Scan(ctx context.Context, onFound func(Observation)) error

	// ToggleConnection flips the connection state of a device and returns
	// the new state. On failure it returns ErrConnection and the state is
	// left unchanged.
	ToggleConnection(ctx context.Context, id string) (bool, error)

	// ReadBatteryLevel returns the battery percentage of a device, or nil
	// when it cannot be read. Only infrastructure failures return an error.
	ReadBatteryLevel(ctx context.Context, id string) (*int, error)
}

// Renamer is implemented by sources that store display names themselves.
// Sources without it leave renaming to the caller.
type Renamer interface {
	Rename(ctx context.Context, id, name string) error
}
