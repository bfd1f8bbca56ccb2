package sim

import (
	"sync"

	"github.com/chaz8081/btdeck/internal/device"
)

// Store is the simulator's in-memory dataset. Known devices are returned by
// ListConnected; nearby devices only become known once a scan finds them.
// A Store belongs to one Source and is discarded with it.
type Store struct {
	mu     sync.Mutex
	known  []*device.Record
	byID   map[string]*device.Record
	nearby []*device.Record
}

// NewStore creates a store from the given records. The records are copied.
func NewStore(known, nearby []device.Record) *Store {
	s := &Store{byID: make(map[string]*device.Record)}
	for _, r := range known {
		if _, dup := s.byID[r.ID]; dup {
			continue
		}
		s.addKnown(copyRecord(r))
	}
	seen := make(map[string]bool)
	for _, r := range nearby {
		if _, dup := s.byID[r.ID]; dup || seen[r.ID] {
			continue
		}
		seen[r.ID] = true
		s.nearby = append(s.nearby, copyRecord(r))
	}
	return s
}

// DefaultStore returns a store seeded with a handful of typical peripherals.
func DefaultStore() *Store {
	return NewStore([]device.Record{
		{ID: "3C:22:FB:1A:0B:01", Name: "AirPods Pro", Connected: true, BatteryLevel: device.Level(82), Type: device.TypeHeadphones},
		{ID: "D4:9D:C0:2B:44:02", Name: "Logitech MX Keys Keyboard", Connected: true, BatteryLevel: device.Level(64), Type: device.TypeKeyboard},
		{ID: "E8:11:32:5C:7D:03", Name: "MX Master 3 Mouse", Connected: false, BatteryLevel: device.Level(45), Type: device.TypeMouse},
		{ID: "00:1A:7D:DA:71:04", Name: "JBL Flip 5 Speaker", Connected: false, Type: device.TypeSpeaker},
		{ID: "98:7B:F3:60:A2:05", Name: "Xbox Wireless Controller", Connected: true, BatteryLevel: device.Level(10), Type: device.TypeGamepad},
	}, []device.Record{
		{ID: "64:03:7F:8E:21:06", Name: "Galaxy Buds2", BatteryLevel: device.Level(71)},
		{ID: "04:52:C7:19:C3:07", Name: "Bose SoundLink Speaker"},
		{ID: "F0:99:B6:4D:10:08"},
	})
}

func (s *Store) addKnown(r *device.Record) {
	if r.Name == "" {
		r.Name = device.UnknownName
	}
	if r.Type == device.TypeUnknown {
		r.Type = device.InferType(r.Name)
	}
	s.known = append(s.known, r)
	s.byID[r.ID] = r
}

// snapshot returns copies of the known devices. Caller holds mu.
func (s *Store) snapshot() []device.Record {
	out := make([]device.Record, 0, len(s.known))
	for _, r := range s.known {
		out = append(out, *copyRecord(*r))
	}
	return out
}

// discoverable returns every device a scan may report, moving nearby
// devices into the known set. Caller holds mu.
func (s *Store) discoverable() []device.Record {
	for _, r := range s.nearby {
		s.addKnown(r)
	}
	s.nearby = nil
	return s.snapshot()
}

func copyRecord(r device.Record) *device.Record {
	if r.BatteryLevel != nil {
		r.BatteryLevel = device.Level(*r.BatteryLevel)
	}
	return &r
}
