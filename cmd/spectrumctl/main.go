// Command spectrumctl is a single-shot acquisition runner: it loads device
// calibration, builds a demo sequence (the real pulse-sequence construction
// DSL is out of scope for this module), runs one acquisition against a
// fake driver, and saves the result.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/pflag"

	"github.com/schote/spectrum-console/internal/acquisition"
	"github.com/schote/spectrum-console/internal/device"
	"github.com/schote/spectrum-console/internal/deviceconfig"
	"github.com/schote/spectrum-console/internal/logging"
	"github.com/schote/spectrum-console/internal/seqblock"
	"github.com/schote/spectrum-console/internal/unroll"
)

func main() {
	var (
		configPath = pflag.StringP("config", "c", "", "path to the device configuration YAML file")
		averages   = pflag.IntP("averages", "n", 1, "number of averages to acquire")
		storage    = pflag.StringP("storage", "s", "", "override the configured storage root")
		levelFlag  = pflag.String("log-level", "info", "log level: debug, info, warn, error")
	)
	pflag.Parse()

	level, err := log.ParseLevel(*levelFlag)
	if err != nil {
		fmt.Fprintln(os.Stderr, "spectrumctl:", err)
		os.Exit(2)
	}
	logging.SetLevel(level)
	out := logging.For("spectrumctl")

	if *configPath == "" {
		out.Error("missing required flag", "flag", "--config")
		os.Exit(2)
	}

	if err := run(*configPath, *averages, *storage); err != nil {
		out.Error("run failed", "err", err)
		os.Exit(1)
	}
}

func run(configPath string, averages int, storageOverride string) error {
	cfg, err := deviceconfig.Load(configPath)
	if err != nil {
		return err
	}

	storageRoot := cfg.Storage.Root
	if storageOverride != "" {
		storageRoot = storageOverride
	}

	cal := acquisition.Calibration{
		OutputLimits:       cfg.Calibration.OutputLimits,
		GPAGain:            cfg.Calibration.GPAGain,
		GradientEfficiency: cfg.Calibration.GradientEfficiency,
		RFToMillivolt:      cfg.Calibration.RFToMillivolt,
		SpcmDwellTime:      cfg.Calibration.SpcmDwellTime(),
		System: unroll.System{
			RFDeadTime:     cfg.Calibration.RFDeadTime(),
			RFRingdownTime: cfg.Calibration.RFRingdownTime(),
		},
		SampleRate:   cfg.Calibration.SampleRateHz,
		ChannelScale: cfg.Calibration.ChannelScale,
		StorageRoot:  storageRoot,
	}

	driver := device.NewFakeDriver()
	tx := device.NewTX(driver)
	rx := device.NewRX(driver)
	controller := acquisition.NewController(tx, rx, cal)
	controller.SetSequence(demoSequence())

	params := acquisition.Parameters{
		LarmorFrequency: 1e6,
		B1Scaling:       1,
		NumAverages:     averages,
		Decimation:      1,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	go feedDemoGates(driver, averages)

	data, err := controller.Run(ctx, params)
	if err != nil {
		return err
	}

	path, err := data.Save(false)
	if err != nil {
		return err
	}
	fmt.Println(path)
	return nil
}

// demoSequence stands in for a parsed sequence file: one block with a
// short ADC window, exercising the full unroll/capture/DDC path end to
// end without requiring the out-of-scope construction DSL.
func demoSequence() seqblock.Source {
	block := seqblock.Block{
		ADC: &seqblock.ADCEvent{
			NumSamples: 64,
			Dwell:      50 * time.Nanosecond,
		},
		Duration: 4 * time.Microsecond,
	}
	return seqblock.FromBlocks("demo", []seqblock.Block{block})
}

// feedDemoGates supplies the fake driver with one zero-filled gate per
// average, standing in for real hardware captures.
func feedDemoGates(driver *device.FakeDriver, averages int) {
	for i := 0; i < averages; i++ {
		driver.QueueGate(device.RawGate{
			Coils:   1,
			Samples: [][]int16{make([]int16, 64)},
		})
	}
}
