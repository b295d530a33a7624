// Package preset persists a view of the fractal: the shader configuration, the gradients, the camera and the scene
// offset. Presets are JSON documents.
package preset

import (
	"os"
	"path/filepath"

	"github.com/Carmen-Shannon/oxy-fractal/common"
	"github.com/Carmen-Shannon/oxy-fractal/engine/shaderconfig"
	"github.com/Carmen-Shannon/oxy-fractal/engine/virtualspace"
	"github.com/go-gl/mathgl/mgl32"
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
)

// Version is the preset format version written by Save.
const Version = 1

// ErrUnsupportedVersion is returned when a preset was written by a newer format.
var ErrUnsupportedVersion = errors.New("preset: unsupported version")

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Camera is the persisted camera. The absolute position is stored as a double-single pair.
type Camera struct {
	PositionHigh [3]float32 `json:"positionHigh"`
	PositionLow  [3]float32 `json:"positionLow"`

	// Rotation is the orientation quaternion as w, x, y, z.
	Rotation [4]float32 `json:"rotation"`

	// Fov is the vertical field of view in radians.
	Fov float32 `json:"fov"`
}

// Offset is the persisted scene offset as a double-single pair.
type Offset struct {
	High [3]float32 `json:"high"`
	Low  [3]float32 `json:"low"`
}

// Preset is one saved view.
type Preset struct {
	Version   int                     `json:"version"`
	Name      string                  `json:"name,omitempty"`
	Formula   string                  `json:"formula"`
	Features  shaderconfig.Config     `json:"features"`
	Gradients [][]common.GradientStop `json:"gradients,omitempty"`
	Camera    Camera                  `json:"camera"`
	Offset    Offset                  `json:"offset"`
}

// CameraWorld returns the absolute camera position in double precision.
func (p *Preset) CameraWorld() [3]float64 {
	return virtualspace.FromHighLow(p.Camera.PositionHigh, p.Camera.PositionLow).Float64()
}

// OffsetDS returns the scene offset in double-single form.
func (p *Preset) OffsetDS() virtualspace.Vec3 {
	return virtualspace.FromHighLow(p.Offset.High, p.Offset.Low)
}

// CameraRotation returns the orientation, identity when unset.
func (p *Preset) CameraRotation() mgl32.Quat {
	r := p.Camera.Rotation
	q := mgl32.Quat{W: r[0], V: mgl32.Vec3{r[1], r[2], r[3]}}
	if q.Len() < 1e-8 {
		return mgl32.QuatIdent()
	}
	return q.Normalize()
}

// Config returns the shader configuration of the preset with the formula applied on top of the features.
func (p *Preset) Config() shaderconfig.Config {
	c := p.Features.Clone()
	if p.Formula != "" {
		c.Set(shaderconfig.FeatureFormula, shaderconfig.ParamFormulaType, p.Formula)
	}
	return c
}

// New builds a preset from live engine state.
//
// Parameters:
//   - cfg: the shader configuration
//   - gradients: the stops of every gradient layer
//   - space: the virtual space
//   - pose: the local camera pose
//
// Returns:
//   - *Preset: the preset
func New(cfg shaderconfig.Config, gradients [][]common.GradientStop, space virtualspace.Space, pose virtualspace.Pose) *Preset {
	world := virtualspace.SplitVec3(space.WorldPosition(pose.Position))
	offset := space.OffsetDS()
	name, _ := cfg.Get(shaderconfig.FeatureFormula, shaderconfig.ParamFormulaType)
	formulaName, _ := name.(string)
	return &Preset{
		Version:   Version,
		Formula:   formulaName,
		Features:  cfg,
		Gradients: gradients,
		Camera: Camera{
			PositionHigh: world.High(),
			PositionLow:  world.Low(),
			Rotation:     [4]float32{pose.Rotation.W, pose.Rotation.V[0], pose.Rotation.V[1], pose.Rotation.V[2]},
			Fov:          pose.Fov,
		},
		Offset: Offset{High: offset.High(), Low: offset.Low()},
	}
}

// Parse decodes a preset document.
//
// Parameters:
//   - data: the JSON document
//
// Returns:
//   - *Preset: the preset
//   - error: a decode failure or ErrUnsupportedVersion
func Parse(data []byte) (*Preset, error) {
	p := &Preset{}
	if err := json.Unmarshal(data, p); err != nil {
		return nil, errors.Wrap(err, "decode preset")
	}
	if p.Version > Version {
		return nil, errors.Wrapf(ErrUnsupportedVersion, "version %d", p.Version)
	}
	if p.Version == 0 {
		p.Version = Version
	}
	if p.Features == nil {
		p.Features = shaderconfig.Config{}
	}
	return p, nil
}

// Load reads and decodes the preset at path.
func Load(path string) (*Preset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read preset %s", path)
	}
	p, err := Parse(data)
	if err != nil {
		return nil, errors.Wrapf(err, "load preset %s", path)
	}
	return p, nil
}

// Marshal encodes p as indented JSON.
func (p *Preset) Marshal() ([]byte, error) {
	return json.MarshalIndent(p, "", "  ")
}

// Save writes p to path, creating the parent directory.
func (p *Preset) Save(path string) error {
	data, err := p.Marshal()
	if err != nil {
		return errors.Wrap(err, "encode preset")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, "create %s", filepath.Dir(path))
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrapf(err, "write preset %s", path)
	}
	return nil
}
