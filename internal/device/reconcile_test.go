package device

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	t0 = time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)
	t1 = t0.Add(time.Minute)
)

func TestMergeScanInsertsNewDevice(t *testing.T) {
	d := NewDirectory()
	r := MergeScan(d, Observation{
		ID:           "A1",
		Name:         "AirPods Pro",
		Connected:    ptr(true),
		BatteryLevel: ptr(90),
	}, t0)

	assert.Equal(t, "AirPods Pro", r.Name)
	assert.Equal(t, TypeHeadphones, r.Type)
	assert.False(t, r.Connected, "new devices start disconnected")
	assert.Nil(t, r.BatteryLevel, "new devices start with unknown battery")
	assert.Equal(t, t0, r.LastSeen)
}

func TestMergeScanUnnamedDevice(t *testing.T) {
	d := NewDirectory()
	r := MergeScan(d, Observation{ID: "X"}, t0)
	assert.Equal(t, UnknownName, r.Name)
	assert.Equal(t, TypeOther, r.Type)
}

func TestMergeScanUsesSuppliedType(t *testing.T) {
	d := NewDirectory()
	r := MergeScan(d, Observation{ID: "X", Name: "Thing", Type: TypeGamepad}, t0)
	assert.Equal(t, TypeGamepad, r.Type)
}

func TestMergeScanNeverOverwritesUserState(t *testing.T) {
	d := NewDirectory()
	d.Upsert(Patch{
		ID:           "A1",
		Name:         ptr("JBL Flip 5"),
		CustomName:   ptr("Kitchen"),
		Connected:    ptr(true),
		BatteryLevel: ptr(64),
		Type:         ptr(TypeSpeaker),
	})

	r := MergeScan(d, Observation{
		ID:           "A1",
		Name:         "Renamed By Firmware",
		Type:         TypeMouse,
		Connected:    ptr(false),
		BatteryLevel: ptr(5),
	}, t1)

	assert.Equal(t, "Kitchen", r.CustomName)
	assert.True(t, r.Connected)
	require.NotNil(t, r.BatteryLevel)
	assert.Equal(t, 64, *r.BatteryLevel)
	assert.Equal(t, "JBL Flip 5", r.Name, "known name is immutable")
	assert.Equal(t, TypeSpeaker, r.Type, "known type is kept")
	assert.Equal(t, t1, r.LastSeen)
	assert.Equal(t, 1, d.Len())
}

func TestMergeScanFillsUnknownName(t *testing.T) {
	d := NewDirectory()
	MergeConnection(d, "A1", true, t0) // inserted with placeholder name

	r := MergeScan(d, Observation{ID: "A1", Name: "MX Master 3 Mouse"}, t1)
	assert.Equal(t, "MX Master 3 Mouse", r.Name)
	assert.Equal(t, TypeMouse, r.Type)
	assert.True(t, r.Connected)
}

func TestMergeScanReclassifiesOnceNamed(t *testing.T) {
	d := NewDirectory()
	r := MergeScan(d, Observation{ID: "A1"}, t0)
	require.Equal(t, TypeOther, r.Type)

	r = MergeScan(d, Observation{ID: "A1", Name: "Galaxy Buds2"}, t1)
	assert.Equal(t, "Galaxy Buds2", r.Name)
	assert.Equal(t, TypeHeadphones, r.Type)

	r = MergeScan(d, Observation{ID: "A1", Name: "Galaxy Speaker"}, t1)
	assert.Equal(t, "Galaxy Buds2", r.Name)
	assert.Equal(t, TypeHeadphones, r.Type, "classified type is kept")
}

func TestMergeScanNamedOtherStaysOther(t *testing.T) {
	d := NewDirectory()
	MergeScan(d, Observation{ID: "A1", Name: "Thermostat"}, t0)
	r := MergeScan(d, Observation{ID: "A1", Name: "Thermostat", Type: TypeSpeaker}, t1)
	assert.Equal(t, TypeOther, r.Type)
}

func TestMergeScanPrefersObservationTime(t *testing.T) {
	d := NewDirectory()
	r := MergeScan(d, Observation{ID: "A1", SeenAt: t0}, t1)
	assert.Equal(t, t0, r.LastSeen)
}

func TestMergeScanRepeatedNeverDuplicates(t *testing.T) {
	d := NewDirectory()
	for i := 0; i < 5; i++ {
		MergeScan(d, Observation{ID: "A1", Name: "AirPods"}, t0)
		MergeScan(d, Observation{ID: "B2", Name: "Keyboard"}, t0)
	}
	assert.Equal(t, 2, d.Len())
}

func TestMergeConnectionTouchesOnlyTarget(t *testing.T) {
	d := NewDirectory()
	MergeScan(d, Observation{ID: "A1", Name: "AirPods"}, t0)
	MergeScan(d, Observation{ID: "B2", Name: "Keyboard"}, t0)
	MergeRename(d, "A1", "Mine")
	before, _ := d.Get("B2")

	r := MergeConnection(d, "A1", true, t1)
	assert.True(t, r.Connected)
	assert.Equal(t, t1, r.LastSeen)
	assert.Equal(t, "Mine", r.CustomName)
	assert.Equal(t, "AirPods", r.Name)

	after, _ := d.Get("B2")
	assert.Equal(t, before, after)
}

func TestToggleThenBatteryScenario(t *testing.T) {
	d := NewDirectory()
	MergeScan(d, Observation{ID: "A1", Name: "AirPods Pro"}, t0)

	MergeConnection(d, "A1", true, t1)
	MergeBattery(d, "A1", ptr(82))

	r, ok := d.Get("A1")
	require.True(t, ok)
	assert.True(t, r.Connected)
	require.NotNil(t, r.BatteryLevel)
	assert.Equal(t, 82, *r.BatteryLevel)
}

func TestMergeBattery(t *testing.T) {
	d := NewDirectory()
	MergeScan(d, Observation{ID: "A1", Name: "AirPods"}, t0)

	r := MergeBattery(d, "A1", ptr(255))
	assert.Equal(t, 100, *r.BatteryLevel)

	r = MergeBattery(d, "A1", ptr(-1))
	assert.Equal(t, 0, *r.BatteryLevel)

	r = MergeBattery(d, "A1", nil)
	assert.Nil(t, r.BatteryLevel)
	assert.Equal(t, t0, r.LastSeen, "battery merge leaves last seen alone")
}

func TestMergeUnknownIDInserts(t *testing.T) {
	d := NewDirectory()
	MergeBattery(d, "N1", ptr(40))
	MergeConnection(d, "N2", true, t0)
	MergeRename(d, "N3", "Spare")
	assert.Equal(t, 3, d.Len())

	r, _ := d.Get("N1")
	assert.Equal(t, 40, *r.BatteryLevel)
	assert.False(t, r.Connected)

	for _, r := range d.List() {
		assert.Equal(t, UnknownName, r.Name, r.ID)
		assert.True(t, r.Type.Valid(), "%s has unclassified type %q", r.ID, r.Type)
	}
}

func TestMergeRename(t *testing.T) {
	d := NewDirectory()
	MergeScan(d, Observation{ID: "A1", Name: "AirPods Pro"}, t0)

	r := MergeRename(d, "A1", "  Work Buds  ")
	assert.Equal(t, "Work Buds", r.CustomName)
	assert.Equal(t, "Work Buds", r.DisplayName())

	r = MergeRename(d, "A1", "  ")
	assert.Empty(t, r.CustomName, "blank rename clears the override")
	assert.Equal(t, "AirPods Pro", r.Name)
	assert.Equal(t, "AirPods Pro", r.DisplayName())

	MergeRename(d, "A1", "Again")
	r = MergeRename(d, "A1", "")
	assert.Empty(t, r.CustomName)
}

func TestCustomNameSurvivesRefresh(t *testing.T) {
	d := NewDirectory()
	MergeScan(d, Observation{ID: "A1", Name: "AirPods Pro"}, t0)
	MergeRename(d, "A1", "Work Buds")

	for i := 0; i < 3; i++ {
		MergeScan(d, Observation{ID: "A1", Name: "AirPods Pro"}, t1)
		MergeConnection(d, "A1", i%2 == 0, t1)
		MergeBattery(d, "A1", ptr(50-i))
	}
	r, _ := d.Get("A1")
	assert.Equal(t, "Work Buds", r.CustomName)
}
