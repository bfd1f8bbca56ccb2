package ble

import (
	"context"
	"log/slog"
	"sync"

	"tinygo.org/x/bluetooth"
)

// radio is the part of bluetooth.Adapter that drives scanning.
type radio interface {
	Scan(callback func(*bluetooth.Adapter, bluetooth.ScanResult)) error
	StopScan() error
}

// scanFanout shares one radio scan between concurrent callers. The radio
// runs while at least one subscription is open.
type scanFanout struct {
	radio radio

	mu          sync.Mutex
	subscribers map[int]*subscription
	nextSub     int
	loop        *scanLoop // nil when the radio is not scanning
}

// scanLoop is one run of the radio scan.
type scanLoop struct {
	done chan struct{}
	err  error // set before done is closed
}

// subscription delivers results to one caller, one at a time, and never
// after the caller has left.
type subscription struct {
	mu     sync.Mutex
	closed bool
	fn     func(bluetooth.ScanResult)
}

func (s *subscription) deliver(result bluetooth.ScanResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.fn(result)
	}
}

func (s *subscription) close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

func newScanFanout(r radio) *scanFanout {
	return &scanFanout{
		radio:       r,
		subscribers: make(map[int]*subscription),
	}
}

// run subscribes fn to scan results until ctx is done or the radio fails.
// fn is never called concurrently with itself nor after run returns.
func (f *scanFanout) run(ctx context.Context, fn func(bluetooth.ScanResult)) error {
	sub := &subscription{fn: fn}

	f.mu.Lock()
	id := f.nextSub
	f.nextSub++
	f.subscribers[id] = sub
	loop := f.loop
	if loop == nil {
		loop = &scanLoop{done: make(chan struct{})}
		f.loop = loop
		go f.drive(loop)
	}
	f.mu.Unlock()

	select {
	case <-ctx.Done():
	case <-loop.done:
	}

	f.mu.Lock()
	delete(f.subscribers, id)
	last := len(f.subscribers) == 0 && f.loop == loop
	f.mu.Unlock()
	sub.close()

	if last {
		// Fails if the radio has not started yet; dispatch stops it then.
		if err := f.radio.StopScan(); err != nil {
			slog.Debug("[BLE] stop scan", "error", err)
		}
	}

	select {
	case <-loop.done:
		if loop.err != nil && ctx.Err() == nil {
			return loop.err
		}
	default:
	}
	return nil
}

// drive runs the radio until no subscription is left. A scan stopped while
// new subscribers joined is restarted for them.
func (f *scanFanout) drive(loop *scanLoop) {
	var err error
	for {
		f.mu.Lock()
		if err != nil || len(f.subscribers) == 0 {
			f.loop = nil
			loop.err = err
			f.mu.Unlock()
			close(loop.done)
			return
		}
		f.mu.Unlock()

		err = f.radio.Scan(f.dispatch)
	}
}

// dispatch fans one advertisement out to every subscription. With none left
// it stops the radio.
func (f *scanFanout) dispatch(_ *bluetooth.Adapter, result bluetooth.ScanResult) {
	f.mu.Lock()
	subs := make([]*subscription, 0, len(f.subscribers))
	for _, sub := range f.subscribers {
		subs = append(subs, sub)
	}
	f.mu.Unlock()

	if len(subs) == 0 {
		if err := f.radio.StopScan(); err != nil {
			slog.Debug("[BLE] stop idle scan", "error", err)
		}
		return
	}
	for _, sub := range subs {
		sub.deliver(result)
	}
}
