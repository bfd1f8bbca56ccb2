// Package controller owns the device directory and turns user intents
// (refresh, scan, toggle, rename) into device source calls, merging the
// results back into the directory and reporting failures as notices.
package controller

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/chaz8081/btdeck/internal/device"
	"github.com/chaz8081/btdeck/internal/source"
)

// Options configures a Controller.
type Options struct {
	// BatteryReads caps concurrent battery reads during a refresh.
	BatteryReads int
	// OnNotice, if set, is called for every new notice. It must not call
	// back into the Controller.
	OnNotice func(Notice)
	Now      func() time.Time
}

// DefaultOptions returns sensible defaults.
func DefaultOptions() Options {
	return Options{BatteryReads: 4}
}

// Controller is the single owner of the device directory. All mutation
// flows through it. Safe for concurrent use.
type Controller struct {
	src  source.Source
	dir  *device.Directory
	opts Options

	loading     atomic.Int32
	unavailable atomic.Bool

	mu      sync.Mutex
	notices []Notice
}

// New creates a controller over src with an empty directory.
func New(src source.Source, opts Options) *Controller {
	if opts.BatteryReads <= 0 {
		opts.BatteryReads = 4
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Controller{
		src:  src,
		dir:  device.NewDirectory(),
		opts: opts,
	}
}

// Devices returns the directory contents in insertion order.
func (c *Controller) Devices() []device.Record {
	return c.dir.List()
}

// Device returns one device by id.
func (c *Controller) Device(id string) (device.Record, bool) {
	return c.dir.Get(id)
}

// IsLoading reports whether a load or refresh is in flight.
func (c *Controller) IsLoading() bool {
	return c.loading.Load() > 0
}

// ConnectedCount returns how many known devices are connected, and how many
// devices are known.
func (c *Controller) ConnectedCount() (connected, total int) {
	devices := c.dir.List()
	for _, d := range devices {
		if d.Connected {
			connected++
		}
	}
	return connected, len(devices)
}

// Available reports whether the Bluetooth capability is usable. It turns
// false for the rest of the session once initialization fails.
func (c *Controller) Available() bool {
	return !c.unavailable.Load()
}

// Load initializes the source and fills the directory from its snapshot.
func (c *Controller) Load(ctx context.Context) error {
	if err := c.checkAvailable("load"); err != nil {
		return err
	}
	c.loading.Add(1)
	defer c.loading.Add(-1)

	if err := c.src.Initialize(ctx); err != nil {
		if kind, _ := kindOf(err); kind == KindInitialization {
			c.unavailable.Store(true)
		}
		c.fail("Bluetooth unavailable", "Bluetooth could not be started on this system.", "", err)
		return fmt.Errorf("controller: initialize: %w", err)
	}

	n, err := c.mergeSnapshot(ctx)
	if err != nil {
		c.fail("Error", "Failed to load devices. Please try again.", "", err)
		return fmt.Errorf("controller: load: %w", err)
	}
	slog.Info("[CTRL] devices loaded", "count", n)
	return nil
}

// Refresh re-reads the source's snapshot, then re-reads the battery level
// of every connected device.
func (c *Controller) Refresh(ctx context.Context) error {
	if err := c.checkAvailable("refresh"); err != nil {
		return err
	}
	c.loading.Add(1)
	defer c.loading.Add(-1)

	if _, err := c.mergeSnapshot(ctx); err != nil {
		c.fail("Error", "Failed to refresh devices.", "", err)
		return fmt.Errorf("controller: refresh: %w", err)
	}
	c.refreshBatteries(ctx)

	n := c.dir.Len()
	c.notify(Notice{
		Kind:     KindInfo,
		Severity: SeverityInfo,
		Title:    "Refresh complete",
		Message:  fmt.Sprintf("Found %d devices.", n),
	})
	return nil
}

// mergeSnapshot lists the source's devices and merges them. A list snapshot
// is authoritative for connection state and battery level, unlike a scan.
func (c *Controller) mergeSnapshot(ctx context.Context) (int, error) {
	obs, err := c.src.ListConnected(ctx)
	if err != nil {
		return 0, err
	}
	for _, o := range obs {
		now := c.opts.Now()
		device.MergeScan(c.dir, o, now)
		if o.Connected != nil {
			device.MergeConnection(c.dir, o.ID, *o.Connected, now)
		}
		if o.BatteryLevel != nil {
			device.MergeBattery(c.dir, o.ID, o.BatteryLevel)
		}
	}
	return len(obs), nil
}

// refreshBatteries reads every connected device's battery concurrently.
// Read failures are logged and otherwise ignored.
func (c *Controller) refreshBatteries(ctx context.Context) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.opts.BatteryReads)
	for _, r := range c.dir.List() {
		if !r.Connected {
			continue
		}
		id := r.ID
		g.Go(func() error {
			c.readBattery(gctx, id)
			return nil
		})
	}
	_ = g.Wait()
}

func (c *Controller) readBattery(ctx context.Context, id string) {
	level, err := c.src.ReadBatteryLevel(ctx, id)
	if err != nil {
		slog.Warn("[CTRL] battery read failed", "id", id, "error", err)
		return
	}
	device.MergeBattery(c.dir, id, level)
}

// Scan runs one scan window, merging devices as they are discovered.
func (c *Controller) Scan(ctx context.Context) error {
	if err := c.checkAvailable("scan"); err != nil {
		return err
	}

	var found atomic.Int32
	err := c.src.Scan(ctx, func(o source.Observation) {
		device.MergeScan(c.dir, o, c.opts.Now())
		found.Add(1)
	})
	if err != nil {
		c.fail("Scan Error", "Failed to scan for devices.", "", err)
		return fmt.Errorf("controller: scan: %w", err)
	}
	slog.Info("[CTRL] scan finished", "found", found.Load())
	return nil
}

// ToggleConnection connects or disconnects a known device. After a
// successful connect the device's battery level is read.
func (c *Controller) ToggleConnection(ctx context.Context, id string) error {
	if err := c.checkAvailable("toggle"); err != nil {
		return err
	}

	rec, ok := c.dir.Get(id)
	if !ok {
		err := source.Errorf("toggle", id, source.ErrConnection, "unknown device")
		c.fail("Connection Error", "Failed to change connection state.", id, err)
		return fmt.Errorf("controller: %w", err)
	}

	action := "Connecting to"
	if rec.Connected {
		action = "Disconnecting from"
	}
	c.notify(Notice{
		Kind:     KindInfo,
		Severity: SeverityInfo,
		Title:    action + " device...",
		Message:  rec.DisplayName(),
		DeviceID: id,
	})

	connected, err := c.src.ToggleConnection(ctx, id)
	if err != nil {
		c.fail("Connection Error", "Failed to change connection state.", id, err)
		return fmt.Errorf("controller: %w", err)
	}
	rec = device.MergeConnection(c.dir, id, connected, c.opts.Now())

	title := "Disconnected from device"
	if connected {
		title = "Connected to device"
	}
	c.notify(Notice{
		Kind:     KindInfo,
		Severity: SeverityInfo,
		Title:    title,
		Message:  rec.DisplayName(),
		DeviceID: id,
	})

	if connected {
		c.readBattery(ctx, id)
	}
	return nil
}

// Rename sets or, for a blank name, clears a device's display name. The
// source confirms the rename first when it stores names itself.
func (c *Controller) Rename(ctx context.Context, id, name string) error {
	if err := c.checkAvailable("rename"); err != nil {
		return err
	}
	if _, ok := c.dir.Get(id); !ok {
		err := fmt.Errorf("%w: %s", device.ErrUnknownDevice, id)
		c.fail("Rename Error", "Failed to rename device.", id, err)
		return fmt.Errorf("controller: rename: %w", err)
	}

	name = strings.TrimSpace(name)
	if r, ok := c.src.(source.Renamer); ok && c.Available() {
		if err := r.Rename(ctx, id, name); err != nil {
			c.fail("Rename Error", "Failed to rename device.", id, err)
			return fmt.Errorf("controller: rename: %w", err)
		}
	}
	device.MergeRename(c.dir, id, name)

	shown := name
	if shown == "" {
		shown = "default name"
	}
	c.notify(Notice{
		Kind:     KindInfo,
		Severity: SeverityInfo,
		Title:    "Device renamed",
		Message:  fmt.Sprintf("Device has been renamed to %q", shown),
		DeviceID: id,
	})
	return nil
}

// checkAvailable fails fast once initialization has failed. The persistent
// notice from the first failure already covers it, so no new notice is added.
func (c *Controller) checkAvailable(op string) error {
	if c.unavailable.Load() {
		return fmt.Errorf("controller: %s: %w", op, source.ErrInitialization)
	}
	return nil
}

// Notices returns the current notices, oldest first.
func (c *Controller) Notices() []Notice {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Notice, len(c.notices))
	copy(out, c.notices)
	return out
}

// Dismiss removes a notice. Persistent notices cannot be dismissed.
func (c *Controller) Dismiss(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, n := range c.notices {
		if n.ID != id {
			continue
		}
		if n.Severity == SeverityPersistent {
			return false
		}
		c.notices = append(c.notices[:i], c.notices[i+1:]...)
		return true
	}
	return false
}

func (c *Controller) fail(title, message, deviceID string, err error) {
	kind, severity := kindOf(err)
	slog.Error("[CTRL] "+strings.ToLower(title), "device", deviceID, "error", err)
	c.notify(Notice{
		Kind:     kind,
		Severity: severity,
		Title:    title,
		Message:  message,
		DeviceID: deviceID,
		Err:      err,
	})
}

func (c *Controller) notify(n Notice) {
	n.ID = uuid.NewString()
	n.CreatedAt = c.opts.Now()

	c.mu.Lock()
	c.notices = append(c.notices, n)
	if len(c.notices) > maxNotices {
		c.dropOldest()
	}
	c.mu.Unlock()

	if c.opts.OnNotice != nil {
		c.opts.OnNotice(n)
	}
}

// dropOldest removes the oldest notice that is not persistent. Caller holds mu.
func (c *Controller) dropOldest() {
	for i, n := range c.notices {
		if n.Severity != SeverityPersistent {
			c.notices = append(c.notices[:i], c.notices[i+1:]...)
			return
		}
	}
}
