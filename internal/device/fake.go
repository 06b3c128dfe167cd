package device

import (
	"context"
	"sync"
)

// FakeDriver is an in-memory Driver used by tests and by callers exercising
// the Controller without real hardware. It replays into memory and lets the
// test arrange for a fixed sequence of gates to be delivered to Capture,
// one at a time, each gated by a channel so tests can control timing
// (including simulating a timeout by under-supplying gates).
type FakeDriver struct {
	mu          sync.Mutex
	replayed    []int16
	offsets     GradientOffset
	offsetsLog  []GradientOffset
	pendingGate chan RawGate
}

// NewFakeDriver constructs a FakeDriver with room for queued gates.
func NewFakeDriver() *FakeDriver {
	return &FakeDriver{pendingGate: make(chan RawGate, 256)}
}

// QueueGate arranges for gate to be the next value Capture returns.
func (f *FakeDriver) QueueGate(gate RawGate) {
	f.pendingGate <- gate
}

// Replayed returns the last buffer handed to Replay.
func (f *FakeDriver) Replayed() []int16 {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]int16, len(f.replayed))
	copy(out, f.replayed)
	return out
}

// GradientOffsetCalls returns every offset programmed via
// SetGradientOffsets, in order.
func (f *FakeDriver) GradientOffsetCalls() []GradientOffset {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]GradientOffset, len(f.offsetsLog))
	copy(out, f.offsetsLog)
	return out
}

func (f *FakeDriver) Replay(ctx context.Context, samples []int16) error {
	f.mu.Lock()
	f.replayed = append([]int16(nil), samples...)
	f.mu.Unlock()
	<-ctx.Done()
	if ctx.Err() == context.Canceled {
		return nil
	}
	return ctx.Err()
}

func (f *FakeDriver) Capture(ctx context.Context) (RawGate, error) {
	select {
	case g := <-f.pendingGate:
		return g, nil
	case <-ctx.Done():
		return RawGate{}, ctx.Err()
	}
}

func (f *FakeDriver) SetGradientOffsets(offset GradientOffset, highImpedance bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	offset.HighImpedance = highImpedance
	f.offsets = offset
	f.offsetsLog = append(f.offsetsLog, offset)
	return nil
}
