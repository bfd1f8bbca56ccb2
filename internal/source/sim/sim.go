// Package sim implements a simulated device source backed by an in-memory
// store, with artificial per-operation latency and battery drain.
package sim

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/chaz8081/btdeck/internal/device"
	"github.com/chaz8081/btdeck/internal/source"
)

// Latency is the artificial delay applied to each operation.
type Latency struct {
	List      time.Duration
	Toggle    time.Duration
	Rename    time.Duration
	Battery   time.Duration
	Discovery time.Duration // gap between two scan discoveries
}

// DefaultLatency returns delays representative of a real adapter.
func DefaultLatency() Latency {
	return Latency{
		List:      time.Second,
		Toggle:    500 * time.Millisecond,
		Rename:    300 * time.Millisecond,
		Battery:   700 * time.Millisecond,
		Discovery: 400 * time.Millisecond,
	}
}

// maxDrain is the exclusive upper bound of one battery drain step.
const maxDrain = 5

// Options configures a simulated Source.
type Options struct {
	Latency    Latency
	ScanWindow time.Duration // defaults to source.DefaultScanWindow
	// Rand drives battery drain and discovery order. Defaults to a
	// time-seeded generator.
	Rand *rand.Rand
	// Unavailable makes Initialize fail, as on a host without Bluetooth.
	Unavailable bool
	Now         func() time.Time
}

// Source is a simulated device source.
type Source struct {
	store *Store
	opts  Options

	// randMu guards opts.Rand, which is not safe for concurrent use.
	randMu sync.Mutex
}

var (
	_ source.Source  = (*Source)(nil)
	_ source.Renamer = (*Source)(nil)
)

// New creates a simulated source over store.
func New(store *Store, opts Options) *Source {
	if opts.ScanWindow <= 0 {
		opts.ScanWindow = source.DefaultScanWindow
	}
	if opts.Rand == nil {
		seed := uint64(time.Now().UnixNano())
		opts.Rand = rand.New(rand.NewPCG(seed, seed>>32))
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Source{store: store, opts: opts}
}

func (s *Source) Initialize(ctx context.Context) error {
	if s.opts.Unavailable {
		return &source.Error{Op: "initialize", Kind: source.ErrInitialization}
	}
	return ctx.Err()
}

func (s *Source) ListConnected(ctx context.Context) ([]source.Observation, error) {
	if err := wait(ctx, s.opts.Latency.List); err != nil {
		return nil, source.Wrap("list", "", source.ErrSourceUnavailable, err)
	}

	s.store.mu.Lock()
	records := s.store.snapshot()
	s.store.mu.Unlock()

	now := s.opts.Now()
	out := make([]source.Observation, 0, len(records))
	for _, r := range records {
		connected := r.Connected
		out = append(out, source.Observation{
			ID:           r.ID,
			Name:         r.Name,
			Type:         r.Type,
			SeenAt:       now,
			Connected:    &connected,
			BatteryLevel: r.BatteryLevel,
		})
	}
	slog.Debug("[SIM] listed devices", "count", len(out))
	return out, nil
}

// Scan announces every device the store can see, in random order and one
// discovery latency apart. It returns once all have been announced or the
// scan window closes, whichever comes first.
func (s *Source) Scan(ctx context.Context, onFound func(source.Observation)) error {
	window, cancel := context.WithTimeout(ctx, s.opts.ScanWindow)
	defer cancel()

	s.store.mu.Lock()
	records := s.store.discoverable()
	s.store.mu.Unlock()

	s.randMu.Lock()
	s.opts.Rand.Shuffle(len(records), func(i, j int) {
		records[i], records[j] = records[j], records[i]
	})
	s.randMu.Unlock()

	seen := make(map[string]bool, len(records))
	for _, r := range records {
		if err := wait(window, s.opts.Latency.Discovery); err != nil {
			// nil when only the window closed
			return ctx.Err()
		}
		if seen[r.ID] {
			continue
		}
		seen[r.ID] = true
		name := r.Name
		if name == device.UnknownName {
			name = ""
		}
		onFound(source.Observation{ID: r.ID, Name: name, SeenAt: s.opts.Now()})
	}
	slog.Debug("[SIM] scan finished", "found", len(seen))
	return nil
}

func (s *Source) ToggleConnection(ctx context.Context, id string) (bool, error) {
	if err := wait(ctx, s.opts.Latency.Toggle); err != nil {
		return false, source.Wrap("toggle", id, source.ErrConnection, err)
	}

	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	r, ok := s.store.byID[id]
	if !ok {
		return false, source.Errorf("toggle", id, source.ErrConnection, "unknown device")
	}
	r.Connected = !r.Connected
	slog.Debug("[SIM] toggled connection", "id", id, "connected", r.Connected)
	return r.Connected, nil
}

// ReadBatteryLevel drains a connected device's battery by a random 0-4
// points (never below zero) and returns the new level. Unknown devices and
// devices without a battery reading return nil.
func (s *Source) ReadBatteryLevel(ctx context.Context, id string) (*int, error) {
	if err := wait(ctx, s.opts.Latency.Battery); err != nil {
		return nil, source.Wrap("battery", id, source.ErrSourceUnavailable, err)
	}

	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	r, ok := s.store.byID[id]
	if !ok || r.BatteryLevel == nil {
		return nil, nil
	}
	if r.Connected {
		r.BatteryLevel = device.Level(*r.BatteryLevel - s.drain())
	}
	return device.Level(*r.BatteryLevel), nil
}

// Rename stores a display name for a device. A blank name clears it.
func (s *Source) Rename(ctx context.Context, id, name string) error {
	if err := wait(ctx, s.opts.Latency.Rename); err != nil {
		return source.Wrap("rename", id, source.ErrSourceUnavailable, err)
	}

	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	r, ok := s.store.byID[id]
	if !ok {
		return source.Errorf("rename", id, source.ErrConnection, "unknown device")
	}
	r.CustomName = strings.TrimSpace(name)
	return nil
}

func (s *Source) drain() int {
	s.randMu.Lock()
	defer s.randMu.Unlock()
	return s.opts.Rand.IntN(maxDrain)
}

// wait sleeps for d or until ctx is done.
func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
