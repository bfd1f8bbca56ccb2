package ble

import (
	"errors"
	"fmt"
)

// ErrBatteryUnavailable means the peripheral does not expose a readable
// Battery Level characteristic.
var ErrBatteryUnavailable = errors.New("ble: battery level unavailable")

// DiscoverBattery finds the Battery Level characteristic of a connection.
// Peripherals without the Battery Service yield ErrBatteryUnavailable.
func DiscoverBattery(conn Connection) (Characteristic, error) {
	char, err := conn.DiscoverCharacteristic(BatteryServiceUUID, BatteryLevelCharUUID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBatteryUnavailable, err)
	}
	return char, nil
}

// ReadBattery reads a Battery Level characteristic. The value is a single
// unsigned byte holding a percentage; values above 100 are clamped.
func ReadBattery(char Characteristic) (int, error) {
	buf := make([]byte, 1)
	n, err := char.Read(buf)
	if err != nil {
		return 0, fmt.Errorf("ble: read battery level: %w", err)
	}
	if n < 1 {
		return 0, ErrBatteryUnavailable
	}
	level := int(buf[0])
	if level > 100 {
		level = 100
	}
	return level, nil
}
