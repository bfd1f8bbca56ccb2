// Package device holds the canonical in-memory model of known Bluetooth
// peripherals: the Record type, the Directory that owns them, and the
// field-scoped merge functions that fold new observations into it.
package device

import (
	"strings"
	"time"
)

// UnknownName is reported when a peripheral does not advertise a name.
const UnknownName = "Unknown Device"

// Type is a coarse classification of a peripheral.
type Type string

// Device types. TypeUnknown is the zero value a source leaves when it
// reports no type; records in a Directory always hold a classified type.
const (
	TypeUnknown    Type = ""
	TypeHeadphones Type = "headphones"
	TypeSpeaker    Type = "speaker"
	TypeKeyboard   Type = "keyboard"
	TypeMouse      Type = "mouse"
	TypeGamepad    Type = "gamepad"
	TypeOther      Type = "other"
)

// Valid reports whether t is one of the classified types.
func (t Type) Valid() bool {
	switch t {
	case TypeHeadphones, TypeSpeaker, TypeKeyboard, TypeMouse, TypeGamepad, TypeOther:
		return true
	}
	return false
}

// typeKeywords is checked in order; the first rule with a matching keyword wins.
// Add new rules here, more specific ones first.
var typeKeywords = []struct {
	typ      Type
	keywords []string
}{
	{TypeHeadphones, []string{"headphone", "airpod", "earbud", "buds"}},
	{TypeSpeaker, []string{"speaker"}},
	{TypeKeyboard, []string{"keyboard"}},
	{TypeMouse, []string{"mouse"}},
	{TypeGamepad, []string{"controller", "gamepad"}},
}

// InferType guesses a device type from its advertised name.
// Matching is case-insensitive; names that match nothing are TypeOther.
func InferType(name string) Type {
	lower := strings.ToLower(name)
	for _, rule := range typeKeywords {
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				return rule.typ
			}
		}
	}
	return TypeOther
}

// Record is the known state of one peripheral.
type Record struct {
	ID           string
	Name         string
	CustomName   string // empty means no override
	Connected    bool
	BatteryLevel *int // nil when unknown
	LastSeen     time.Time
	Type         Type
}

// DisplayName returns the user's override if set, otherwise the reported name.
func (r Record) DisplayName() string {
	if r.CustomName != "" {
		return r.CustomName
	}
	return r.Name
}

// clone returns a copy that shares no memory with r.
func (r Record) clone() Record {
	if r.BatteryLevel != nil {
		lvl := *r.BatteryLevel
		r.BatteryLevel = &lvl
	}
	return r
}

// ClampBattery limits a battery percentage to [0, 100].
func ClampBattery(level int) int {
	switch {
	case level < 0:
		return 0
	case level > 100:
		return 100
	}
	return level
}

// Level returns a pointer to a clamped copy of level, for use in
// Record.BatteryLevel and Patch.BatteryLevel.
func Level(level int) *int {
	l := ClampBattery(level)
	return &l
}
