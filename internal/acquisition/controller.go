// Package acquisition implements the Acquisition Controller (spec.md §4.F)
// and the Parameters/Data records it produces and consumes (§4.H, §4.I):
// the coordinator that drives the TX/RX device façades through a run,
// invokes the DDC pipeline per average, and hands back a persisted Data
// record.
package acquisition

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/schote/spectrum-console/internal/ddc"
	"github.com/schote/spectrum-console/internal/device"
	"github.com/schote/spectrum-console/internal/logging"
	"github.com/schote/spectrum-console/internal/seqblock"
	"github.com/schote/spectrum-console/internal/unroll"
	"github.com/schote/spectrum-console/internal/waveform"
)

var log = logging.For("acquisition")

// Calibration is the static device calibration the Controller folds into
// every unroll call, alongside the caller-supplied Parameters.
type Calibration struct {
	OutputLimits       [4]float64
	GPAGain            [4]float64
	GradientEfficiency [4]float64
	RFToMillivolt      float64
	SpcmDwellTime      time.Duration
	System             unroll.System
	SampleRate         float64 // f_spcm, Hz
	ChannelScale       []float64
	StorageRoot        string
}

// pollInterval is the fixed poll period spec.md §4.F specifies.
const pollInterval = 10 * time.Millisecond

// Controller coordinates a TX façade, an RX façade, and the unroll/DDC
// pipelines into a single run() operation (spec.md §4.F). Only one run may
// be in flight at a time.
type Controller struct {
	tx   *device.TX
	rx   *device.RX
	cal  Calibration

	mu         sync.Mutex
	running    bool
	source     seqblock.Source
	unrolled   *waveform.Unrolled
	unrollHash string
}

// NewController constructs a Controller over the given TX/RX façades and
// static calibration.
func NewController(tx *device.TX, rx *device.RX, cal Calibration) *Controller {
	return &Controller{tx: tx, rx: rx, cal: cal}
}

// SetSequence installs the block-event source to run, discarding any
// cached Unrolled-Sequence (it will be rebuilt lazily on the next Run
// against whatever Parameters are passed in).
func (c *Controller) SetSequence(source seqblock.Source) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.source = source
	c.unrolled = nil
	c.unrollHash = ""
}

// Run drives one full acquisition: program gradient offsets, loop over
// num_averages driving RX/TX and the DDC pipeline, restore gradient
// offsets, validate per-bucket average counts, and return the resulting
// Data record (spec.md §4.F).
func (c *Controller) Run(ctx context.Context, params Parameters) (*Data, error) {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return nil, ErrBusy
	}
	if c.source == nil {
		c.mu.Unlock()
		return nil, ErrNoSequence
	}
	c.running = true
	source := c.source
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.running = false
		c.mu.Unlock()
	}()

	unrolled, err := c.ensureUnrolled(source, params)
	if err != nil {
		return nil, err
	}

	if err := c.tx.SetGradientOffsets(device.GradientOffset{
		X: params.GradientOffset.X,
		Y: params.GradientOffset.Y,
		Z: params.GradientOffset.Z,
	}); err != nil {
		return nil, err
	}
	defer func() {
		if err := c.tx.SetGradientOffsets(device.GradientOffset{}); err != nil {
			log.Warn("failed to reset gradient offsets", "err", err)
		}
	}()

	data, err := newData(c.cal.StorageRoot, source.Name(), params, 0, time.Now())
	if err != nil {
		return nil, err
	}

	ddcParams := ddc.Params{
		Larmor:       params.LarmorFrequency,
		Decimation:   params.Decimation,
		SampleRate:   c.cal.SampleRate,
		ChannelScale: c.cal.ChannelScale,
	}

	for avg := 0; avg < params.NumAverages; avg++ {
		if err := c.rx.Start(ctx); err != nil {
			return nil, err
		}
		time.Sleep(10 * time.Millisecond)
		if err := c.tx.Start(ctx, unrolled); err != nil {
			_ = c.rx.Stop()
			return nil, err
		}

		timeout := 5*time.Second + unrolled.Duration
		if err := pollForGates(ctx, c.rx, unrolled.ADCCount, timeout); err != nil {
			log.Warn("gate poll timed out, proceeding with partial data", "average", avg, "have", c.rx.Len(), "want", unrolled.ADCCount)
		}

		if err := c.tx.Stop(); err != nil {
			_ = c.rx.Stop()
			return nil, err
		}
		if err := c.rx.Stop(); err != nil {
			return nil, err
		}

		gates := c.rx.Gates()
		buckets, err := ddc.Process(gates, ddcParams, data.Buckets)
		if err != nil {
			return nil, err
		}
		data.Buckets = buckets

		if params.AveragingDelay > 0 {
			time.Sleep(params.AveragingDelay)
		}
	}

	decimatedDwell := time.Duration(float64(c.cal.SpcmDwellTime) * float64(params.Decimation))
	data.DwellTime = decimatedDwell

	if len(data.Buckets) == 0 {
		return nil, fmt.Errorf("%w: no gates arrived in %d average(s)", ErrMissingAverage, params.NumAverages)
	}
	for ro, bucket := range data.Buckets {
		if len(bucket.Raw) != params.NumAverages {
			return nil, fmt.Errorf("%w: bucket %d has %d of %d averages", ErrMissingAverage, ro, len(bucket.Raw), params.NumAverages)
		}
	}

	log.Debug("run complete", "averages", params.NumAverages, "buckets", len(data.Buckets))
	return data, nil
}

// ensureUnrolled rebuilds the cached Unrolled-Sequence if the parameters
// hash changed since the last unroll (spec.md §4.F).
func (c *Controller) ensureUnrolled(source seqblock.Source, params Parameters) (*waveform.Unrolled, error) {
	hash, err := params.Hash()
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.unrolled != nil && c.unrollHash == hash {
		return c.unrolled, nil
	}

	up := unroll.Params{
		Larmor:             params.LarmorFrequency,
		B1Scaling:          params.B1Scaling,
		FOVScaling:         params.FOVScaling,
		GradientOffset:     params.GradientOffset,
		OutputLimits:       c.cal.OutputLimits,
		GPAGain:            c.cal.GPAGain,
		GradientEfficiency: c.cal.GradientEfficiency,
		RFToMillivolt:      c.cal.RFToMillivolt,
		SpcmDwellTime:      c.cal.SpcmDwellTime,
		System:             c.cal.System,
	}

	unrolled, err := unroll.Unroll(source, up)
	if err != nil {
		return nil, err
	}
	c.unrolled = unrolled
	c.unrollHash = hash
	return unrolled, nil
}

// pollForGates blocks, polling every pollInterval, until rx has observed
// want gates or timeout elapses (spec.md §4.F/§5 acquire-semantics count
// read). Returns ErrTimeout if the deadline passed first.
func pollForGates(ctx context.Context, rx *device.RX, want int, timeout time.Duration) error {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		if rx.Len() >= want {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return ErrTimeout
		case <-ticker.C:
		}
	}
}
