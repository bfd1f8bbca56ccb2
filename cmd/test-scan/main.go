// Command test-scan is a manual test for BLE discovery and battery reads on
// the host adapter. It scans once and prints every advertiser found. With
// -connect it then connects to that address and reads its battery level.
//
// Usage:
//
//	go run ./cmd/test-scan [--window 5s] [--all] [--connect <address>]
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/chaz8081/btdeck/internal/ble"
	"github.com/chaz8081/btdeck/internal/device"
)

func main() {
	window := flag.Duration("window", 5*time.Second, "scan duration")
	all := flag.Bool("all", false, "report every advertiser, not only Battery Service ones")
	connect := flag.String("connect", "", "address to connect to after the scan")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	adapter := ble.NewTinyGoAdapter()
	if err := adapter.Enable(); err != nil {
		fmt.Printf("Error: enable adapter: %v\n", err)
		os.Exit(1)
	}

	filter := ble.BatteryServiceUUID
	if *all {
		filter = ""
	}

	fmt.Printf("Scanning for %s...\n", *window)
	scanCtx, cancel := context.WithTimeout(ctx, *window)
	err := adapter.Scan(scanCtx, filter, func(d ble.Device) {
		name := d.Name
		if name == "" {
			name = device.UnknownName
		}
		fmt.Printf("  %-40s %-28s %-10s %d dBm\n", d.Address, name, device.InferType(name), d.RSSI)
	})
	cancel()
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	if *connect == "" {
		fmt.Println("Done.")
		return
	}

	fmt.Printf("Connecting to %s...\n", *connect)
	connCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	conn, err := adapter.Connect(connCtx, *connect)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = conn.Disconnect() }()

	char, err := ble.DiscoverBattery(conn)
	if err != nil {
		fmt.Printf("No battery level: %v\n", err)
		return
	}
	level, err := ble.ReadBattery(char)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	fmt.Printf("Battery: %d%%\n", level)
}
