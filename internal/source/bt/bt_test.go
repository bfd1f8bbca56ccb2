package bt

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chaz8081/btdeck/internal/ble"
	"github.com/chaz8081/btdeck/internal/source"
)

type fakeCharacteristic struct {
	value []byte
	err   error
}

func (c *fakeCharacteristic) Read(buf []byte) (int, error) {
	if c.err != nil {
		return 0, c.err
	}
	return copy(buf, c.value), nil
}

type fakeConnection struct {
	mu            sync.Mutex
	battery       *fakeCharacteristic
	discoverCalls int
	disconnectErr error
	disconnected  bool
	onDisconnect  func()
}

func (c *fakeConnection) DiscoverCharacteristic(svc, char string) (ble.Characteristic, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.discoverCalls++
	if c.battery == nil || svc != ble.BatteryServiceUUID || char != ble.BatteryLevelCharUUID {
		return nil, fmt.Errorf("fake: %s not found", char)
	}
	return c.battery, nil
}

func (c *fakeConnection) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disconnectErr != nil {
		return c.disconnectErr
	}
	c.disconnected = true
	return nil
}

func (c *fakeConnection) OnDisconnect(cb func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onDisconnect = cb
}

func (c *fakeConnection) drop() {
	c.mu.Lock()
	cb := c.onDisconnect
	c.mu.Unlock()
	cb()
}

type fakeAdapter struct {
	mu         sync.Mutex
	devices    []ble.Device
	enableErr  error
	scanErr    error
	connectErr error
	battery    []byte // nil means no Battery Service
	conns      map[string]*fakeConnection
}

func newFakeAdapter(devices ...ble.Device) *fakeAdapter {
	return &fakeAdapter{devices: devices, battery: []byte{82}, conns: make(map[string]*fakeConnection)}
}

func (a *fakeAdapter) Enable() error { return a.enableErr }

func (a *fakeAdapter) Scan(ctx context.Context, _ string, onFound func(ble.Device)) error {
	if a.scanErr != nil {
		return a.scanErr
	}
	for _, d := range a.devices {
		onFound(d)
	}
	<-ctx.Done()
	return nil
}

func (a *fakeAdapter) Connect(_ context.Context, address string) (ble.Connection, error) {
	if a.connectErr != nil {
		return nil, a.connectErr
	}
	conn := &fakeConnection{}
	if a.battery != nil {
		conn.battery = &fakeCharacteristic{value: a.battery}
	}
	a.mu.Lock()
	a.conns[address] = conn
	a.mu.Unlock()
	return conn, nil
}

func (a *fakeAdapter) conn(address string) *fakeConnection {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.conns[address]
}

var (
	airpods = ble.Device{Name: "AirPods Pro", Address: "3C:22:FB:1A:0B:01", RSSI: -50}
	mouse   = ble.Device{Name: "MX Master 3 Mouse", Address: "E8:11:32:5C:7D:03", RSSI: -70}
)

func newTestSource(t *testing.T, adapter *fakeAdapter) *Source {
	t.Helper()
	src := New(adapter, Options{ScanWindow: 20 * time.Millisecond})
	require.NoError(t, src.Initialize(context.Background()))
	return src
}

func scanAll(t *testing.T, src *Source) []source.Observation {
	t.Helper()
	var found []source.Observation
	require.NoError(t, src.Scan(context.Background(), func(o source.Observation) {
		found = append(found, o)
	}))
	return found
}

func TestInitializeFailure(t *testing.T) {
	adapter := newFakeAdapter()
	adapter.enableErr = errors.New("no adapter")
	src := New(adapter, Options{})

	err := src.Initialize(context.Background())
	assert.ErrorIs(t, err, source.ErrInitialization)

	_, err = src.ListConnected(context.Background())
	assert.ErrorIs(t, err, source.ErrSourceUnavailable)
}

func TestScanRemembersDevices(t *testing.T) {
	src := newTestSource(t, newFakeAdapter(airpods, mouse))

	found := scanAll(t, src)
	require.Len(t, found, 2)
	assert.Equal(t, airpods.Address, found[0].ID)
	assert.Equal(t, "AirPods Pro", found[0].Name)
	assert.Nil(t, found[0].Connected)

	list, err := src.ListConnected(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.False(t, *list[0].Connected)
}

func TestScanError(t *testing.T) {
	adapter := newFakeAdapter()
	adapter.scanErr = errors.New("radio busy")
	src := newTestSource(t, adapter)

	err := src.Scan(context.Background(), func(source.Observation) {})
	assert.ErrorIs(t, err, source.ErrSourceUnavailable)
}

func TestToggleConnectsAndDisconnects(t *testing.T) {
	adapter := newFakeAdapter(airpods)
	src := newTestSource(t, adapter)
	scanAll(t, src)
	ctx := context.Background()

	on, err := src.ToggleConnection(ctx, airpods.Address)
	require.NoError(t, err)
	assert.True(t, on)

	list, _ := src.ListConnected(ctx)
	assert.True(t, *list[0].Connected)

	off, err := src.ToggleConnection(ctx, airpods.Address)
	require.NoError(t, err)
	assert.False(t, off)
	assert.True(t, adapter.conn(airpods.Address).disconnected)
}

func TestToggleUnknownDevice(t *testing.T) {
	src := newTestSource(t, newFakeAdapter(airpods))

	_, err := src.ToggleConnection(context.Background(), "00:00:00:00:00:00")
	assert.ErrorIs(t, err, source.ErrConnection)
}

func TestToggleConnectFailureLeavesStateUnchanged(t *testing.T) {
	adapter := newFakeAdapter(airpods)
	adapter.connectErr = errors.New("page timeout")
	src := newTestSource(t, adapter)
	scanAll(t, src)

	_, err := src.ToggleConnection(context.Background(), airpods.Address)
	assert.ErrorIs(t, err, source.ErrConnection)

	list, _ := src.ListConnected(context.Background())
	assert.False(t, *list[0].Connected)
}

func TestToggleDisconnectFailureLeavesStateUnchanged(t *testing.T) {
	adapter := newFakeAdapter(airpods)
	src := newTestSource(t, adapter)
	scanAll(t, src)
	ctx := context.Background()

	_, err := src.ToggleConnection(ctx, airpods.Address)
	require.NoError(t, err)
	adapter.conn(airpods.Address).disconnectErr = errors.New("busy")

	state, err := src.ToggleConnection(ctx, airpods.Address)
	assert.ErrorIs(t, err, source.ErrConnection)
	assert.True(t, state)

	list, _ := src.ListConnected(ctx)
	assert.True(t, *list[0].Connected)
}

func TestPeripheralDisconnect(t *testing.T) {
	adapter := newFakeAdapter(airpods)
	src := newTestSource(t, adapter)
	scanAll(t, src)
	ctx := context.Background()

	_, err := src.ToggleConnection(ctx, airpods.Address)
	require.NoError(t, err)

	adapter.conn(airpods.Address).drop()

	list, _ := src.ListConnected(ctx)
	assert.False(t, *list[0].Connected)
	lvl, err := src.ReadBatteryLevel(ctx, airpods.Address)
	require.NoError(t, err)
	assert.Nil(t, lvl)
}

func TestReadBatteryLevel(t *testing.T) {
	adapter := newFakeAdapter(airpods)
	src := newTestSource(t, adapter)
	scanAll(t, src)
	ctx := context.Background()

	lvl, err := src.ReadBatteryLevel(ctx, airpods.Address)
	require.NoError(t, err)
	assert.Nil(t, lvl, "disconnected devices have no readable battery")

	_, err = src.ToggleConnection(ctx, airpods.Address)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		lvl, err = src.ReadBatteryLevel(ctx, airpods.Address)
		require.NoError(t, err)
		require.NotNil(t, lvl)
		assert.Equal(t, 82, *lvl)
	}
	assert.Equal(t, 1, adapter.conn(airpods.Address).discoverCalls, "characteristic is cached")
}

func TestReadBatteryLevelWithoutBatteryService(t *testing.T) {
	adapter := newFakeAdapter(mouse)
	adapter.battery = nil
	src := newTestSource(t, adapter)
	scanAll(t, src)

	_, err := src.ToggleConnection(context.Background(), mouse.Address)
	require.NoError(t, err)

	lvl, err := src.ReadBatteryLevel(context.Background(), mouse.Address)
	require.NoError(t, err)
	assert.Nil(t, lvl)
}

func TestReadBatteryLevelTransportError(t *testing.T) {
	adapter := newFakeAdapter(airpods)
	src := newTestSource(t, adapter)
	scanAll(t, src)
	_, err := src.ToggleConnection(context.Background(), airpods.Address)
	require.NoError(t, err)
	adapter.conn(airpods.Address).battery.err = errors.New("GATT timeout")

	_, err = src.ReadBatteryLevel(context.Background(), airpods.Address)
	assert.ErrorIs(t, err, source.ErrSourceUnavailable)
}

func TestClose(t *testing.T) {
	adapter := newFakeAdapter(airpods, mouse)
	src := newTestSource(t, adapter)
	scanAll(t, src)
	_, err := src.ToggleConnection(context.Background(), airpods.Address)
	require.NoError(t, err)

	require.NoError(t, src.Close())
	assert.True(t, adapter.conn(airpods.Address).disconnected)

	list, _ := src.ListConnected(context.Background())
	for _, o := range list {
		assert.False(t, *o.Connected)
	}
}
