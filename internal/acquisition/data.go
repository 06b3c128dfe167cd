package acquisition

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/lestrrat-go/strftime"

	"github.com/schote/spectrum-console/internal/ddc"
)

// sessionDirFormat and runDirFormat name the directories a Data record is
// persisted under: <storage>/<YYYY-MM-DD>-session/<YYYY-MM-DD-HHMMSS-Name>/.
const (
	sessionDirFormat = "%Y-%m-%d-session"
	runDirFormat     = "%Y-%m-%d-%H%M%S"
)

// Data is the pure data carrier produced by a Controller run (spec.md
// §4.I): per-bucket raw and unprocessed arrays, the sequence handle,
// a parameters snapshot, dwell time, session directory, and a mutable
// info map plus optional extra named arrays set by callers after the run
// (e.g. reconstructed images).
type Data struct {
	SequenceName string
	Parameters   Parameters
	DwellTime    time.Duration
	SessionDir   string

	// Buckets is keyed by readout length, one ddc.Bucket per distinct
	// length observed during the run.
	Buckets map[int]*ddc.Bucket

	mu    sync.Mutex
	info  map[string]any
	extra map[string][]complex128
}

// newData constructs a Data record and computes its session directory.
func newData(storageRoot, sequenceName string, params Parameters, dwell time.Duration, at time.Time) (*Data, error) {
	sessionFmt, err := strftime.New(sessionDirFormat)
	if err != nil {
		return nil, fmt.Errorf("acquisition: compile session dir format: %w", err)
	}
	runFmt, err := strftime.New(runDirFormat)
	if err != nil {
		return nil, fmt.Errorf("acquisition: compile run dir format: %w", err)
	}

	session := sessionFmt.FormatString(at)
	run := fmt.Sprintf("%s-%s", runFmt.FormatString(at), sequenceName)
	dir := filepath.Join(storageRoot, session, run)

	return &Data{
		SequenceName: sequenceName,
		Parameters:   params,
		DwellTime:    dwell,
		SessionDir:   dir,
		Buckets:      make(map[int]*ddc.Bucket),
		info:         make(map[string]any),
		extra:        make(map[string][]complex128),
	}, nil
}

// AddInfo records a metadata key/value pair under info (spec.md §4.I).
func (d *Data) AddInfo(key string, value any) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.info[key] = value
}

// AddData attaches an additional named complex array alongside the raw
// buckets (spec.md §4.I "optional additional named arrays"), e.g. a
// reconstructed image.
func (d *Data) AddData(name string, values []complex128) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.extra[name] = append([]complex128(nil), values...)
}

// metaHeader is the content of meta.json (spec.md §6 persisted state):
// everything about a run except the sample payloads themselves, which live
// in their own raw_data[_k]/unprocessed_data[_k] containers next to it.
type metaHeader struct {
	SequenceName   string          `json:"sequence_name"`
	ParametersHash string          `json:"parameters_hash"`
	DwellTimeNs    int64           `json:"dwell_time_ns"`
	Info           map[string]any  `json:"info"`
	Buckets        []bucketSummary `json:"buckets"`
	Extra          []string        `json:"extra"`
}

type bucketSummary struct {
	ReadoutLen      int    `json:"readout_len"`
	RawShape        []int  `json:"raw_shape"` // [averages, coils, pe, ro]
	RawFile         string `json:"raw_file"`
	UnprocessedFile string `json:"unprocessed_file,omitempty"`
}

// Save persists the Data record under SessionDir following the layout
// spec.md §6 documents: meta.json plus one raw_data_<readout-len>.bin per
// bucket, an optional unprocessed_data_<readout-len>.bin when unprocessed
// samples were kept, and one extra_<name>.bin per named array added via
// AddData. Sequence text (spec.md's sequence.seq) is not written: sequence
// construction is driven entirely in memory via seqblock.Source in this
// module, so there is no source file to copy alongside the run.
//
// When overwrite is false, Save never replaces an existing file: it fails
// with ErrAlreadyExists before writing any file if meta.json already
// exists, and otherwise checks each container file just before writing it,
// so containers written earlier in the same call stay on disk when a later
// one collides.
func (d *Data) Save(overwrite bool) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := os.MkdirAll(d.SessionDir, 0o755); err != nil {
		return "", fmt.Errorf("acquisition: create session dir: %w", err)
	}

	hash, err := d.Parameters.Hash()
	if err != nil {
		return "", err
	}

	readoutLens := make([]int, 0, len(d.Buckets))
	for ro := range d.Buckets {
		readoutLens = append(readoutLens, ro)
	}
	sortInts(readoutLens)

	metaPath := filepath.Join(d.SessionDir, "meta.json")
	if !overwrite {
		if _, err := os.Stat(metaPath); err == nil {
			return "", fmt.Errorf("%w: %s", ErrAlreadyExists, metaPath)
		} else if !os.IsNotExist(err) {
			return "", fmt.Errorf("acquisition: stat %s: %w", metaPath, err)
		}
	}

	meta := metaHeader{
		SequenceName:   d.SequenceName,
		ParametersHash: hash,
		DwellTimeNs:    int64(d.DwellTime),
		Info:           d.info,
	}

	for _, ro := range readoutLens {
		bucket := d.Buckets[ro]
		if len(bucket.Raw) == 0 {
			continue
		}
		first := bucket.Raw[0]
		summary := bucketSummary{
			ReadoutLen: ro,
			RawShape:   []int{len(bucket.Raw), first.Coils, first.PE, first.RO},
			RawFile:    fmt.Sprintf("raw_data_%d.bin", ro),
		}

		var rawPayload []float64
		for _, slab := range bucket.Raw {
			rawPayload = appendComplex(rawPayload, slab.Data)
		}
		rawPath := filepath.Join(d.SessionDir, summary.RawFile)
		if err := writeBinaryContainer(rawPath, binaryHeader{ReadoutLen: ro, Shape: summary.RawShape}, rawPayload, overwrite); err != nil {
			return "", err
		}

		if len(bucket.Unprocessed) > 0 {
			u := bucket.Unprocessed[0]
			unprocessedShape := []int{len(bucket.Unprocessed), u.Coils, u.PE, u.RO}
			var unprocessedPayload []float64
			for _, slab := range bucket.Unprocessed {
				unprocessedPayload = appendComplex(unprocessedPayload, slab.Data)
			}
			summary.UnprocessedFile = fmt.Sprintf("unprocessed_data_%d.bin", ro)
			unprocessedPath := filepath.Join(d.SessionDir, summary.UnprocessedFile)
			if err := writeBinaryContainer(unprocessedPath, binaryHeader{ReadoutLen: ro, Shape: unprocessedShape}, unprocessedPayload, overwrite); err != nil {
				return "", err
			}
		}

		meta.Buckets = append(meta.Buckets, summary)
	}

	for name, values := range d.extra {
		meta.Extra = append(meta.Extra, name)
		extraPath := filepath.Join(d.SessionDir, fmt.Sprintf("extra_%s.bin", name))
		if err := writeBinaryContainer(extraPath, binaryHeader{Shape: []int{len(values)}}, appendComplex(nil, values), overwrite); err != nil {
			return "", err
		}
	}

	metaBytes, err := json.Marshal(meta)
	if err != nil {
		return "", fmt.Errorf("acquisition: marshal meta: %w", err)
	}
	if err := os.WriteFile(metaPath, metaBytes, 0o644); err != nil {
		return "", fmt.Errorf("acquisition: write meta.json: %w", err)
	}

	return d.SessionDir, nil
}
