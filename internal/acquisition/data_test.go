package acquisition

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schote/spectrum-console/internal/ddc"
)

func TestNewDataBuildsSessionDir(t *testing.T) {
	at := time.Date(2026, 3, 5, 14, 30, 0, 0, time.UTC)
	data, err := newData("/tmp/sessions", "myseq", baseParams(), time.Microsecond, at)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join("/tmp/sessions", "2026-03-05-session", "2026-03-05-143000-myseq"), data.SessionDir)
}

func TestAddInfoAndAddData(t *testing.T) {
	data, err := newData(t.TempDir(), "seq", baseParams(), time.Microsecond, time.Now())
	require.NoError(t, err)

	data.AddInfo("operator", "alice")
	data.AddData("recon", []complex128{1, 2, 3})

	assert.Equal(t, "alice", data.info["operator"])
	assert.Equal(t, []complex128{1, 2, 3}, data.extra["recon"])
}

func TestSaveWritesHeaderAndPayload(t *testing.T) {
	root := t.TempDir()
	data, err := newData(root, "seq", baseParams(), time.Microsecond, time.Now())
	require.NoError(t, err)

	data.Buckets[8] = &ddc.Bucket{
		ReadoutLen: 8,
		Raw: []ddc.Slab{
			func() ddc.Slab {
				s := ddc.Slab{Coils: 1, PE: 1, RO: 8, Data: make([]complex128, 8)}
				for i := range s.Data {
					s.Data[i] = complex(float64(i), 0)
				}
				return s
			}(),
		},
	}

	path, err := data.Save(false)
	require.NoError(t, err)

	metaPath := filepath.Join(path, "meta.json")
	info, err := os.Stat(metaPath)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))

	rawPath := filepath.Join(path, "raw_data_8.bin")
	rawInfo, err := os.Stat(rawPath)
	require.NoError(t, err)
	assert.Greater(t, rawInfo.Size(), int64(0))
}

func TestSaveWithoutOverwriteRejectsExistingFiles(t *testing.T) {
	root := t.TempDir()
	data, err := newData(root, "seq", baseParams(), time.Microsecond, time.Now())
	require.NoError(t, err)

	data.Buckets[8] = &ddc.Bucket{
		ReadoutLen: 8,
		Raw: []ddc.Slab{
			{Coils: 1, PE: 1, RO: 8, Data: make([]complex128, 8)},
		},
	}

	_, err = data.Save(false)
	require.NoError(t, err)

	_, err = data.Save(false)
	assert.ErrorIs(t, err, ErrAlreadyExists)

	_, err = data.Save(true)
	assert.NoError(t, err)
}
