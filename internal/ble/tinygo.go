package ble

import (
	"context"
	"fmt"
	"sync"

	"tinygo.org/x/bluetooth"
)

// TinyGoAdapter wraps tinygo-org/bluetooth (BlueZ on Linux, CoreBluetooth on
// macOS, WinRT on Windows). On macOS, device addresses are CoreBluetooth
// UUIDs rather than MAC addresses.
type TinyGoAdapter struct {
	adapter *bluetooth.Adapter

	// mu protects the connections map and each connection's disconnectCb.
	mu          sync.Mutex
	connections map[string]*tinyGoConnection // keyed by device address

	scans *scanFanout
}

// NewTinyGoAdapter creates a BLE adapter on the platform default adapter.
func NewTinyGoAdapter() *TinyGoAdapter {
	return &TinyGoAdapter{
		adapter:     bluetooth.DefaultAdapter,
		connections: make(map[string]*tinyGoConnection),
		scans:       newScanFanout(bluetooth.DefaultAdapter),
	}
}

// Compile-time check that TinyGoAdapter implements Adapter.
var _ Adapter = (*TinyGoAdapter)(nil)

func (a *TinyGoAdapter) Enable() error {
	if err := a.adapter.Enable(); err != nil {
		return err
	}

	// tinygo/bluetooth reports peripheral-initiated disconnects through the
	// adapter-level handler with connected=false.
	a.adapter.SetConnectHandler(func(device bluetooth.Device, connected bool) {
		if connected {
			return
		}
		id := device.Address.String()
		a.mu.Lock()
		var cb func()
		if conn, ok := a.connections[id]; ok {
			cb = conn.disconnectCb
			delete(a.connections, id)
		}
		a.mu.Unlock()
		if cb != nil {
			cb()
		}
	})

	return nil
}

func (a *TinyGoAdapter) Scan(ctx context.Context, serviceUUID string, onFound func(Device)) error {
	var (
		filter    bluetooth.UUID
		hasFilter bool
	)
	if serviceUUID != "" {
		uuid, err := bluetooth.ParseUUID(serviceUUID)
		if err != nil {
			return fmt.Errorf("ble: parse service UUID: %w", err)
		}
		filter, hasFilter = uuid, true
	}

	seen := make(map[string]bool) // subscriptions are called serially
	err := a.scans.run(ctx, func(result bluetooth.ScanResult) {
		if hasFilter && !result.HasServiceUUID(filter) {
			return
		}
		addr := result.Address.String()
		if seen[addr] {
			return
		}
		seen[addr] = true
		onFound(Device{
			Name:    result.LocalName(),
			Address: addr,
			RSSI:    int(result.RSSI),
		})
	})
	if err != nil {
		return fmt.Errorf("ble: scan: %w", err)
	}
	return nil
}

func (a *TinyGoAdapter) Connect(ctx context.Context, address string) (Connection, error) {
	var addr bluetooth.Address
	addr.Set(address)

	// tinygo/bluetooth's Connect blocks internally with its own timeout.
	// We wrap it to also respect our ctx cancellation.
	type connectResult struct {
		device bluetooth.Device
		err    error
	}
	ch := make(chan connectResult, 1)
	go func() {
		device, err := a.adapter.Connect(addr, bluetooth.ConnectionParams{})
		ch <- connectResult{device, err}
	}()

	select {
	case <-ctx.Done():
		// The underlying Connect cannot be cancelled; it will time out or
		// succeed on its own.
		return nil, fmt.Errorf("ble: connect to %s: %w", address, ctx.Err())
	case result := <-ch:
		if result.err != nil {
			return nil, fmt.Errorf("ble: connect to %s: %w", address, result.err)
		}
		conn := &tinyGoConnection{adapter: a, address: address, device: result.device}

		a.mu.Lock()
		a.connections[address] = conn
		a.mu.Unlock()

		return conn, nil
	}
}

type tinyGoConnection struct {
	adapter      *TinyGoAdapter
	address      string
	device       bluetooth.Device
	disconnectCb func()
}

func (c *tinyGoConnection) DiscoverCharacteristic(serviceUUID, charUUID string) (Characteristic, error) {
	svcUUID, err := bluetooth.ParseUUID(serviceUUID)
	if err != nil {
		return nil, err
	}
	charUUIDParsed, err := bluetooth.ParseUUID(charUUID)
	if err != nil {
		return nil, err
	}

	svcs, err := c.device.DiscoverServices([]bluetooth.UUID{svcUUID})
	if err != nil {
		return nil, fmt.Errorf("ble: discover services: %w", err)
	}
	if len(svcs) == 0 {
		return nil, fmt.Errorf("ble: service %s not found", serviceUUID)
	}

	chars, err := svcs[0].DiscoverCharacteristics([]bluetooth.UUID{charUUIDParsed})
	if err != nil {
		return nil, fmt.Errorf("ble: discover characteristics: %w", err)
	}
	if len(chars) == 0 {
		return nil, fmt.Errorf("ble: characteristic %s not found", charUUID)
	}

	return &tinyGoCharacteristic{char: chars[0]}, nil
}

func (c *tinyGoConnection) Disconnect() error {
	c.adapter.mu.Lock()
	delete(c.adapter.connections, c.address)
	c.adapter.mu.Unlock()
	return c.device.Disconnect()
}

func (c *tinyGoConnection) OnDisconnect(cb func()) {
	c.adapter.mu.Lock()
	c.disconnectCb = cb
	c.adapter.mu.Unlock()
}

type tinyGoCharacteristic struct {
	char bluetooth.DeviceCharacteristic
}

func (c *tinyGoCharacteristic) Read(buf []byte) (int, error) {
	return c.char.Read(buf)
}
