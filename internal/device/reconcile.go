package device

import (
	"strings"
	"time"
)

// Observation is one sighting of a peripheral as reported by a device source.
// Connected and BatteryLevel are the source's reported state, if any; scan
// results leave them nil.
type Observation struct {
	ID           string
	Name         string
	Type         Type
	SeenAt       time.Time
	Connected    *bool
	BatteryLevel *int
}

// MergeScan folds a scan or list observation into the directory.
//
// A new id is inserted disconnected with an unknown battery level. For a
// known id only LastSeen is refreshed, plus Name and Type while they are
// still unknown. A type guessed while the name was the placeholder counts as
// unknown, so it is re-inferred once a real name arrives. CustomName,
// Connected and BatteryLevel are never touched.
func MergeScan(d *Directory, obs Observation, now time.Time) Record {
	seen := obs.SeenAt
	if seen.IsZero() {
		seen = now
	}
	name := strings.TrimSpace(obs.Name)

	return d.applyExisting(obs.ID, func(r *Record, existed bool) {
		unclassified := !existed || (r.Name == UnknownName && r.Type == TypeOther)
		r.LastSeen = seen
		if name != "" && r.Name == UnknownName {
			r.Name = name
		}
		if unclassified {
			switch {
			case obs.Type.Valid():
				r.Type = obs.Type
			case r.Name != UnknownName:
				r.Type = InferType(r.Name)
			default:
				r.Type = TypeOther
			}
		}
	})
}

// MergeConnection records the outcome of a connection toggle. Only
// Connected and LastSeen change.
func MergeConnection(d *Directory, id string, connected bool, now time.Time) Record {
	return d.Upsert(Patch{ID: id, Connected: &connected, LastSeen: &now})
}

// MergeBattery records a battery read. A nil level marks the battery as
// unreadable. Only BatteryLevel changes.
func MergeBattery(d *Directory, id string, level *int) Record {
	return d.Upsert(Patch{ID: id, BatteryLevel: level, ClearBattery: level == nil})
}

// MergeRename sets the user's display name override. The name is trimmed;
// a blank name clears the override. Only CustomName changes.
func MergeRename(d *Directory, id string, name string) Record {
	name = strings.TrimSpace(name)
	return d.Upsert(Patch{ID: id, CustomName: &name})
}
