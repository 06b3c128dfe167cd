// Package device implements the TX and RX device façades (spec.md §4.D,
// §4.E) on top of an opaque Driver boundary standing in for the real
// DAC/ADC DMA hardware, which is out of scope for this module (spec.md §1).
package device

import (
	"context"
	"fmt"
	"sync"

	"github.com/schote/spectrum-console/internal/waveform"
)

// RawGate is one captured ADC gate: n_coils interleaved rows of n_ro int16
// samples each. Coil 0's bit 15 carries the embedded phase reference.
type RawGate struct {
	Coils   int
	Samples [][]int16 // [coil][sample]
}

// ReadoutLen returns the number of samples per coil in this gate.
func (g RawGate) ReadoutLen() int {
	if len(g.Samples) == 0 {
		return 0
	}
	return len(g.Samples[0])
}

// Driver is the opaque DMA boundary. A real implementation wraps the
// vendor's card SDK; tests and examples use an in-memory fake.
type Driver interface {
	// Replay streams seq to the TX DAC. It returns once the whole buffer
	// has been handed to the device (not once it has finished playing);
	// the caller is expected to run it in its own goroutine for async
	// replay semantics.
	Replay(ctx context.Context, samples []int16) error

	// Capture blocks until the next ADC gate is available or ctx is
	// cancelled, returning the raw per-coil int16 rows for that gate.
	Capture(ctx context.Context) (RawGate, error)

	// SetGradientOffsets programs the process-wide gradient DC offset
	// state on the TX card.
	SetGradientOffsets(offset GradientOffset, highImpedance bool) error
}

// GradientOffset is the per-axis DC offset in mV programmed onto the TX
// card, and the high-impedance flag carried alongside it (spec.md §4.D).
type GradientOffset struct {
	X, Y, Z       float64
	HighImpedance bool
}

// ErrDeviceError wraps opaque façade/driver failures (spec.md §7). Fatal to
// the current run.
var ErrDeviceError = fmt.Errorf("device: driver error")

// TX is the transmit device façade (spec.md §4.D): it accepts an
// Unrolled-Sequence and a driver, and streams the sequence asynchronously.
type TX struct {
	driver Driver

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan error
}

// NewTX constructs a TX façade over driver.
func NewTX(driver Driver) *TX {
	return &TX{driver: driver}
}

// Start begins asynchronous replay of seq. It returns immediately; call
// Stop to wait for the replay goroutine to finish and release resources.
func (t *TX) Start(ctx context.Context, seq *waveform.Unrolled) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.running {
		return fmt.Errorf("device: TX already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	t.cancel = cancel
	t.done = make(chan error, 1)
	t.running = true

	samples := seq.Flat()
	go func() {
		t.done <- t.driver.Replay(runCtx, samples)
	}()
	return nil
}

// Stop cancels replay (if still in flight) and waits for the replay
// goroutine to finish. Always safe to call, including when Start was never
// called or already stopped — matching spec.md §5's requirement that
// stop_operation always runs on every code path.
func (t *TX) Stop() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.running {
		return nil
	}
	t.cancel()
	err := <-t.done
	t.running = false
	t.cancel = nil
	t.done = nil
	if err != nil && err != context.Canceled {
		return fmt.Errorf("%w: %v", ErrDeviceError, err)
	}
	return nil
}

// SetGradientOffsets programs the TX card's DC offset state. It is
// process-wide state owned by the Controller (spec.md §5): the Controller
// is responsible for restoring it to zero at the end of every run.
func (t *TX) SetGradientOffsets(offset GradientOffset) error {
	if err := t.driver.SetGradientOffsets(offset, offset.HighImpedance); err != nil {
		return fmt.Errorf("%w: %v", ErrDeviceError, err)
	}
	return nil
}
