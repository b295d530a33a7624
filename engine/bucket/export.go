package bucket

import (
	"image/png"
	"os"
	"path/filepath"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Sidecar is the provenance document written next to a saved image.
type Sidecar struct {
	ID       string            `json:"id"`
	Export   bool              `json:"export"`
	Width    int               `json:"width"`
	Height   int               `json:"height"`
	Samples  uint64            `json:"samples"`
	Seconds  float64           `json:"seconds"`
	Exposure float32           `json:"exposure"`
	Metadata map[string]string `json:"metadata"`
}

// SidecarPath returns the sidecar location for an image path: the extension replaced by .json.
func SidecarPath(imagePath string) string {
	return strings.TrimSuffix(imagePath, filepath.Ext(imagePath)) + ".json"
}

// Sidecar builds the provenance document of r.
func (r *Result) Sidecar(exposure float32) Sidecar {
	return Sidecar{
		ID:       r.ID.String(),
		Export:   r.Export,
		Width:    r.Width,
		Height:   r.Height,
		Samples:  r.Samples,
		Seconds:  r.Elapsed.Seconds(),
		Exposure: exposure,
		Metadata: r.Metadata,
	}
}

// Save tone maps r into a PNG at path and writes the JSON sidecar next to it.
//
// Parameters:
//   - path: the image path
//   - exposure: linear exposure applied before the ACES curve
//
// Returns:
//   - string: the sidecar path
//   - error: an encode or write failure
func (r *Result) Save(path string, exposure float32) (string, error) {
	if r == nil || len(r.Pixels) < r.Width*r.Height*4 || r.Width <= 0 || r.Height <= 0 {
		return "", errors.New("bucket: empty result")
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", errors.Wrapf(err, "create %s", dir)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return "", errors.Wrapf(err, "create %s", path)
	}
	if err := png.Encode(f, r.Image(exposure)); err != nil {
		f.Close()
		return "", errors.Wrapf(err, "encode %s", path)
	}
	if err := f.Close(); err != nil {
		return "", errors.Wrapf(err, "close %s", path)
	}

	data, err := json.MarshalIndent(r.Sidecar(exposure), "", "  ")
	if err != nil {
		return "", errors.Wrap(err, "encode sidecar")
	}
	side := SidecarPath(path)
	if err := os.WriteFile(side, append(data, '\n'), 0o644); err != nil {
		return "", errors.Wrapf(err, "write %s", side)
	}
	return side, nil
}
