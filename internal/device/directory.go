package device

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

var (
	// ErrUnknownDevice is returned when an operation names an id the
	// directory has never seen.
	ErrUnknownDevice = errors.New("device: unknown device")
	// ErrFieldType is returned by UpdateField when the value does not fit the field.
	ErrFieldType = errors.New("device: wrong value type for field")
	// ErrNameImmutable is returned when a reported name would replace
	// another reported name. Use the custom name to relabel a device.
	ErrNameImmutable = errors.New("device: reported name already set")
)

// Field names one mutable attribute of a Record.
type Field int

const (
	FieldName Field = iota
	FieldCustomName
	FieldConnected
	FieldBatteryLevel
	FieldLastSeen
	FieldType
)

func (f Field) String() string {
	switch f {
	case FieldName:
		return "name"
	case FieldCustomName:
		return "custom_name"
	case FieldConnected:
		return "connected"
	case FieldBatteryLevel:
		return "battery_level"
	case FieldLastSeen:
		return "last_seen"
	case FieldType:
		return "type"
	}
	return fmt.Sprintf("field(%d)", int(f))
}

// Patch is a partial Record. Nil fields are left untouched on merge.
type Patch struct {
	ID           string
	Name         *string
	CustomName   *string
	Connected    *bool
	BatteryLevel *int // clamped on apply
	ClearBattery bool // marks the battery unreadable; wins over BatteryLevel
	LastSeen     *time.Time
	Type         *Type
}

// Directory is the ordered set of known devices, keyed by id.
// It is safe for concurrent use. Every mutation touches only the fields it
// names, so concurrent updates to different fields of one record never
// lose each other; updates to the same field are last-write-wins.
type Directory struct {
	mu      sync.RWMutex
	order   []string
	records map[string]*Record
}

// NewDirectory returns an empty directory.
func NewDirectory() *Directory {
	return &Directory{records: make(map[string]*Record)}
}

// Get returns a copy of the record with the given id.
func (d *Directory) Get(id string) (Record, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	r, ok := d.records[id]
	if !ok {
		return Record{}, false
	}
	return r.clone(), true
}

// List returns copies of all records in insertion order.
func (d *Directory) List() []Record {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]Record, 0, len(d.order))
	for _, id := range d.order {
		out = append(out, d.records[id].clone())
	}
	return out
}

// Len returns the number of known devices.
func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.order)
}

// Upsert inserts a record for p.ID if it is unknown, otherwise applies the
// non-nil fields of p to the existing record. A reported name only replaces
// the placeholder. It returns the resulting record.
func (d *Directory) Upsert(p Patch) Record {
	return d.apply(p.ID, func(r *Record) {
		if p.Name != nil {
			// ErrNameImmutable is the only possible error here: drop the name.
			_ = setField(r, FieldName, *p.Name)
		}
		if p.CustomName != nil {
			_ = setField(r, FieldCustomName, *p.CustomName)
		}
		if p.Connected != nil {
			_ = setField(r, FieldConnected, *p.Connected)
		}
		switch {
		case p.ClearBattery:
			_ = setField(r, FieldBatteryLevel, nil)
		case p.BatteryLevel != nil:
			_ = setField(r, FieldBatteryLevel, *p.BatteryLevel)
		}
		if p.LastSeen != nil {
			_ = setField(r, FieldLastSeen, *p.LastSeen)
		}
		if p.Type != nil {
			_ = setField(r, FieldType, *p.Type)
		}
	})
}

// UpdateField sets a single field of an existing record.
//
// Accepted value types: string for FieldName and FieldCustomName, bool for
// FieldConnected, int, *int or nil for FieldBatteryLevel, time.Time for
// FieldLastSeen and Type for FieldType. FieldName fails with
// ErrNameImmutable once a real name has been recorded.
func (d *Directory) UpdateField(id string, field Field, value any) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	r, ok := d.records[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownDevice, id)
	}
	return setField(r, field, value)
}

func setField(r *Record, field Field, value any) error {
	switch field {
	case FieldName:
		s, ok := value.(string)
		if !ok {
			return fieldTypeError(field, value)
		}
		if s == "" || s == r.Name {
			return nil
		}
		if r.Name != UnknownName {
			return fmt.Errorf("%w: %s is %q", ErrNameImmutable, r.ID, r.Name)
		}
		r.Name = s
	case FieldCustomName:
		s, ok := value.(string)
		if !ok {
			return fieldTypeError(field, value)
		}
		r.CustomName = s
	case FieldConnected:
		b, ok := value.(bool)
		if !ok {
			return fieldTypeError(field, value)
		}
		r.Connected = b
	case FieldBatteryLevel:
		switch v := value.(type) {
		case nil:
			r.BatteryLevel = nil
		case int:
			r.BatteryLevel = Level(v)
		case *int:
			if v == nil {
				r.BatteryLevel = nil
			} else {
				r.BatteryLevel = Level(*v)
			}
		default:
			return fieldTypeError(field, value)
		}
	case FieldLastSeen:
		t, ok := value.(time.Time)
		if !ok {
			return fieldTypeError(field, value)
		}
		r.LastSeen = t
	case FieldType:
		t, ok := value.(Type)
		if !ok || !t.Valid() {
			return fieldTypeError(field, value)
		}
		r.Type = t
	default:
		return fmt.Errorf("device: unknown field %v", field)
	}
	return nil
}

func fieldTypeError(field Field, value any) error {
	return fmt.Errorf("%w: %s cannot hold %T(%v)", ErrFieldType, field, value, value)
}

// apply runs mutate on the record for id under the write lock, inserting a
// fresh record first if the id is new. New records start disconnected with
// an unknown battery level, the placeholder name and TypeOther.
func (d *Directory) apply(id string, mutate func(r *Record)) Record {
	return d.applyExisting(id, func(r *Record, _ bool) { mutate(r) })
}

// applyExisting is like apply but tells mutate whether the record existed
// before this call.
func (d *Directory) applyExisting(id string, mutate func(r *Record, existed bool)) Record {
	d.mu.Lock()
	defer d.mu.Unlock()

	r, existed := d.records[id]
	if !existed {
		r = &Record{ID: id, Name: UnknownName, Type: TypeOther}
		d.records[id] = r
		d.order = append(d.order, id)
	}
	mutate(r, existed)
	return r.clone()
}
