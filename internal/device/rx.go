package device

import (
	"context"
	"fmt"
	"sync"
)

// RX is the receive device façade (spec.md §4.E): it owns a long-lived
// capture goroutine that appends gates to an internally locked list as they
// arrive. The Controller only ever reads Len() (an acquire-semantics count)
// or takes a Gates() snapshot after Stop.
type RX struct {
	driver Driver

	mu    sync.Mutex
	gates []RawGate

	cancel context.CancelFunc
	wg     sync.WaitGroup
	errs   chan error
}

// NewRX constructs an RX façade over driver.
func NewRX(driver Driver) *RX {
	return &RX{driver: driver}
}

// Start clears any previous gates and begins capturing in the background.
func (r *RX) Start(ctx context.Context) error {
	r.mu.Lock()
	r.gates = nil
	r.mu.Unlock()

	runCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.errs = make(chan error, 1)

	r.wg.Add(1)
	go r.captureLoop(runCtx)
	return nil
}

func (r *RX) captureLoop(ctx context.Context) {
	defer r.wg.Done()
	for {
		gate, err := r.driver.Capture(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			select {
			case r.errs <- err:
			default:
			}
			return
		}
		r.mu.Lock()
		r.gates = append(r.gates, gate)
		r.mu.Unlock()
	}
}

// Len returns the number of gates captured so far. Reading under the same
// lock the capture goroutine appends under gives the acquire-semantics
// count read spec.md §5 requires.
func (r *RX) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.gates)
}

// Gates returns a snapshot copy of the captured gates. Intended to be
// called only after Stop, per spec.md §5.
func (r *RX) Gates() []RawGate {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]RawGate, len(r.gates))
	copy(out, r.gates)
	return out
}

// Stop halts the capture goroutine and waits for it to exit.
func (r *RX) Stop() error {
	if r.cancel == nil {
		return nil
	}
	r.cancel()
	r.wg.Wait()
	r.cancel = nil

	select {
	case err := <-r.errs:
		return fmt.Errorf("%w: %v", ErrDeviceError, err)
	default:
		return nil
	}
}
