// Package ble abstracts the host Bluetooth Low Energy adapter: scanning for
// advertisers, connecting to peripherals and reading GATT characteristics.
package ble

import "context"

// Standard GATT UUIDs used by btdeck.
const (
	BatteryServiceUUID   = "0000180f-0000-1000-8000-00805f9b34fb"
	BatteryLevelCharUUID = "00002a19-0000-1000-8000-00805f9b34fb"
)

// Characteristic represents a BLE GATT characteristic.
type Characteristic interface {
	// Read reads the current value into buf and returns the byte count.
	Read(buf []byte) (int, error)
}

// Device represents a discovered BLE peripheral.
type Device struct {
	Name    string
	Address string // MAC address, or a CoreBluetooth UUID on macOS
	RSSI    int
}

// Connection represents an active BLE connection to a peripheral.
type Connection interface {
	// DiscoverCharacteristic finds a characteristic by UUID within a service.
	DiscoverCharacteristic(serviceUUID, charUUID string) (Characteristic, error)
	// Disconnect terminates the connection.
	Disconnect() error
	// OnDisconnect registers a callback invoked when the peripheral drops
	// the connection.
	OnDisconnect(callback func())
}

// Adapter abstracts the BLE hardware adapter for testing.
type Adapter interface {
	// Enable powers on the BLE adapter.
	Enable() error
	// Scan reports peripherals advertising serviceUUID (any peripheral when
	// serviceUUID is empty) until ctx is done. onFound is called once per
	// address per call. Concurrent calls share one radio scan.
	Scan(ctx context.Context, serviceUUID string, onFound func(Device)) error
	// Connect establishes a connection to the device with the given address.
	Connect(ctx context.Context, address string) (Connection, error)
}
