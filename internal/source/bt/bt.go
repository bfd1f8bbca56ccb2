// Package bt implements a device source over a real Bluetooth Low Energy
// adapter.
package bt

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/chaz8081/btdeck/internal/ble"
	"github.com/chaz8081/btdeck/internal/source"
)

// Options configures a BLE Source.
type Options struct {
	ScanWindow time.Duration // defaults to source.DefaultScanWindow
	// ServiceFilter limits scans to advertisers of this service UUID.
	// Empty reports every advertiser.
	ServiceFilter string
	Now           func() time.Time
}

// peripheral is what the source knows about one device.
type peripheral struct {
	dev      ble.Device
	seen     time.Time
	conn     ble.Connection     // nil when disconnected
	battery  ble.Characteristic // cached after first discovery
	toggling bool
}

// Source is a device source backed by a ble.Adapter.
type Source struct {
	adapter ble.Adapter
	opts    Options

	mu      sync.Mutex
	enabled bool
	known   map[string]*peripheral
	order   []string
}

var _ source.Source = (*Source)(nil)

// New creates a source over adapter.
func New(adapter ble.Adapter, opts Options) *Source {
	if opts.ScanWindow <= 0 {
		opts.ScanWindow = source.DefaultScanWindow
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Source{
		adapter: adapter,
		opts:    opts,
		known:   make(map[string]*peripheral),
	}
}

func (s *Source) Initialize(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.enabled {
		return nil
	}
	if err := s.adapter.Enable(); err != nil {
		return source.Wrap("initialize", "", source.ErrInitialization, err)
	}
	s.enabled = true
	slog.Info("[BLE] adapter enabled")
	return nil
}

// ListConnected returns every peripheral seen so far with its current
// connection state. Battery levels are not included; read them separately.
func (s *Source) ListConnected(ctx context.Context) ([]source.Observation, error) {
	if err := ctx.Err(); err != nil {
		return nil, source.Wrap("list", "", source.ErrSourceUnavailable, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.enabled {
		return nil, source.Errorf("list", "", source.ErrSourceUnavailable, "adapter not enabled")
	}

	out := make([]source.Observation, 0, len(s.order))
	for _, id := range s.order {
		p := s.known[id]
		connected := p.conn != nil
		out = append(out, source.Observation{
			ID:        id,
			Name:      p.dev.Name,
			SeenAt:    p.seen,
			Connected: &connected,
		})
	}
	return out, nil
}

func (s *Source) Scan(ctx context.Context, onFound func(source.Observation)) error {
	s.mu.Lock()
	enabled := s.enabled
	s.mu.Unlock()
	if !enabled {
		return source.Errorf("scan", "", source.ErrSourceUnavailable, "adapter not enabled")
	}

	window, cancel := context.WithTimeout(ctx, s.opts.ScanWindow)
	defer cancel()

	err := s.adapter.Scan(window, s.opts.ServiceFilter, func(d ble.Device) {
		now := s.opts.Now()
		s.remember(d, now)
		onFound(source.Observation{ID: d.Address, Name: d.Name, SeenAt: now})
	})
	if err != nil {
		return source.Wrap("scan", "", source.ErrSourceUnavailable, err)
	}
	return ctx.Err()
}

func (s *Source) remember(d ble.Device, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.known[d.Address]
	if !ok {
		p = &peripheral{dev: d}
		s.known[d.Address] = p
		s.order = append(s.order, d.Address)
	} else if d.Name != "" {
		p.dev.Name = d.Name
	}
	p.dev.RSSI = d.RSSI
	p.seen = now
}

// ToggleConnection connects to a disconnected peripheral or disconnects a
// connected one. Only peripherals found by a scan can be toggled.
func (s *Source) ToggleConnection(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	p, ok := s.known[id]
	switch {
	case !s.enabled:
		s.mu.Unlock()
		return false, source.Errorf("toggle", id, source.ErrConnection, "adapter not enabled")
	case !ok:
		s.mu.Unlock()
		return false, source.Errorf("toggle", id, source.ErrConnection, "unknown device")
	case p.toggling:
		s.mu.Unlock()
		return false, source.Errorf("toggle", id, source.ErrConnection, "connection change already in progress")
	}
	p.toggling = true
	conn := p.conn
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		p.toggling = false
		s.mu.Unlock()
	}()

	if conn != nil {
		if err := conn.Disconnect(); err != nil {
			return true, source.Wrap("toggle", id, source.ErrConnection, err)
		}
		s.mu.Lock()
		p.conn, p.battery = nil, nil
		s.mu.Unlock()
		slog.Info("[BLE] disconnected", "id", id)
		return false, nil
	}

	conn, err := s.adapter.Connect(ctx, id)
	if err != nil {
		return false, source.Wrap("toggle", id, source.ErrConnection, err)
	}
	conn.OnDisconnect(func() {
		slog.Warn("[BLE] peripheral dropped connection", "id", id)
		s.mu.Lock()
		if p.conn == conn {
			p.conn, p.battery = nil, nil
		}
		s.mu.Unlock()
	})

	s.mu.Lock()
	p.conn = conn
	p.seen = s.opts.Now()
	s.mu.Unlock()
	slog.Info("[BLE] connected", "id", id)
	return true, nil
}

// ReadBatteryLevel reads the standard Battery Level characteristic. It
// returns nil for disconnected peripherals and peripherals without one.
func (s *Source) ReadBatteryLevel(ctx context.Context, id string) (*int, error) {
	if err := ctx.Err(); err != nil {
		return nil, source.Wrap("battery", id, source.ErrSourceUnavailable, err)
	}

	s.mu.Lock()
	p, ok := s.known[id]
	if !ok || p.conn == nil {
		s.mu.Unlock()
		return nil, nil
	}
	conn, char := p.conn, p.battery
	s.mu.Unlock()

	if char == nil {
		var err error
		char, err = ble.DiscoverBattery(conn)
		if err != nil {
			slog.Debug("[BLE] no battery characteristic", "id", id, "error", err)
			return nil, nil
		}
		s.mu.Lock()
		if p.conn == conn {
			p.battery = char
		}
		s.mu.Unlock()
	}

	level, err := ble.ReadBattery(char)
	switch {
	case errors.Is(err, ble.ErrBatteryUnavailable):
		return nil, nil
	case err != nil:
		return nil, source.Wrap("battery", id, source.ErrSourceUnavailable, err)
	}
	return &level, nil
}

// Close disconnects every connected peripheral.
func (s *Source) Close() error {
	s.mu.Lock()
	var conns []ble.Connection
	for _, p := range s.known {
		if p.conn != nil {
			conns = append(conns, p.conn)
			p.conn, p.battery = nil, nil
		}
	}
	s.mu.Unlock()

	var errs []error
	for _, c := range conns {
		errs = append(errs, c.Disconnect())
	}
	return errors.Join(errs...)
}
