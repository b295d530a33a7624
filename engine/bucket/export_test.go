package bucket

import (
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSidecarPath(t *testing.T) {
	assert.Equal(t, "out/frame.json", SidecarPath("out/frame.png"))
	assert.Equal(t, "frame.json", SidecarPath("frame"))
}

func TestResultSave(t *testing.T) {
	id := uuid.New()
	res := &Result{
		ID:       id,
		Export:   true,
		Width:    3,
		Height:   2,
		Pixels:   make([]float32, 3*2*4),
		Metadata: map[string]string{MetaMode: "export", "formula": "mandelbulb"},
		Samples:  42,
		Elapsed:  1500 * time.Millisecond,
	}
	for i := 0; i < len(res.Pixels); i += 4 {
		res.Pixels[i] = 4
	}

	path := filepath.Join(t.TempDir(), "renders", "frame.png")
	side, err := res.Save(path, 1)
	require.NoError(t, err)
	assert.Equal(t, SidecarPath(path), side)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, 3, img.Bounds().Dx())
	assert.Equal(t, 2, img.Bounds().Dy())
	r, g, _, a := img.At(1, 1).RGBA()
	assert.Greater(t, r, g)
	assert.Equal(t, uint32(0xffff), a)

	data, err := os.ReadFile(side)
	require.NoError(t, err)
	var doc Sidecar
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, id.String(), doc.ID)
	assert.Equal(t, uint64(42), doc.Samples)
	assert.InDelta(t, 1.5, doc.Seconds, 1e-9)
	assert.Equal(t, "mandelbulb", doc.Metadata["formula"])
}

func TestResultSaveRejectsEmpty(t *testing.T) {
	_, err := (&Result{}).Save(filepath.Join(t.TempDir(), "x.png"), 1)
	assert.Error(t, err)
}
