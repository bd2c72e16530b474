package models

import (
	"fmt"
)

// Axis identifies the anatomical axis of a 3D volume along which 2D
// slices are sampled.
type Axis int

const (
	// AxisX samples slices perpendicular to the first array dimension
	AxisX Axis = 0

	// AxisY samples slices perpendicular to the second array dimension
	AxisY Axis = 1

	// AxisZ samples slices perpendicular to the third array dimension
	AxisZ Axis = 2
)

// Volume represents a single 3D scalar volume for one channel of one subject
type Volume struct {
	// Data is the voxel data as a 1D array, with the third axis varying
	// fastest: index = (x*H + y)*D + z
	Data []float32

	// W, H, D are the extents of the volume along its three axes
	W, H, D int
}

// NewVolume allocates a zero-filled volume with the given extents
func NewVolume(w, h, d int) *Volume {
	return &Volume{
		Data: make([]float32, w*h*d),
		W:    w,
		H:    h,
		D:    d,
	}
}

// At returns the voxel value at (x, y, z)
func (v *Volume) At(x, y, z int) float32 {
	return v.Data[(x*v.H+y)*v.D+z]
}

// Set stores a voxel value at (x, y, z)
func (v *Volume) Set(x, y, z int, val float32) {
	v.Data[(x*v.H+y)*v.D+z] = val
}

// Reorient returns a copy of the volume with the given axis moved to the
// trailing position, so that slice sampling can always index the last
// dimension. Axis Z returns the receiver unchanged (no copy).
//
// Axis X maps (x,y,z) -> (y,z,x) and axis Y maps (x,y,z) -> (x,z,y),
// preserving the relative order of the remaining axes.
func (v *Volume) Reorient(axis Axis) (*Volume, error) {
	switch axis {
	case AxisZ:
		return v, nil

	case AxisX:
		out := NewVolume(v.H, v.D, v.W)
		for x := 0; x < v.W; x++ {
			for y := 0; y < v.H; y++ {
				for z := 0; z < v.D; z++ {
					out.Set(y, z, x, v.At(x, y, z))
				}
			}
		}
		return out, nil

	case AxisY:
		out := NewVolume(v.W, v.D, v.H)
		for x := 0; x < v.W; x++ {
			for y := 0; y < v.H; y++ {
				for z := 0; z < v.D; z++ {
					out.Set(x, z, y, v.At(x, y, z))
				}
			}
		}
		return out, nil
	}
	return nil, fmt.Errorf("invalid axis %d: must be 0, 1 or 2", axis)
}

// VolumeStack holds the co-registered channel volumes of one subject.
// Every channel must share the same spatial extents.
type VolumeStack struct {
	// Chans holds one volume per input channel folder, in folder order
	Chans []*Volume
}

// Shape returns the shared spatial extents of the stack
func (s *VolumeStack) Shape() (w, h, d int) {
	if len(s.Chans) == 0 {
		return 0, 0, 0
	}
	v := s.Chans[0]
	return v.W, v.H, v.D
}

// SameShape reports whether two stacks agree in all three spatial axes
func (s *VolumeStack) SameShape(o *VolumeStack) bool {
	w1, h1, d1 := s.Shape()
	w2, h2, d2 := o.Shape()
	return w1 == w2 && h1 == h2 && d1 == d2
}

// Reorient reorients every channel of the stack so that the given axis is
// the trailing dimension
func (s *VolumeStack) Reorient(axis Axis) (*VolumeStack, error) {
	out := &VolumeStack{Chans: make([]*Volume, len(s.Chans))}
	for i, v := range s.Chans {
		rv, err := v.Reorient(axis)
		if err != nil {
			return nil, err
		}
		out.Chans[i] = rv
	}
	return out, nil
}

// Normalization types recognized in .deeprad sidecar records.
// The zscore and custom variants scale as (data-norm1)/norm2, the range
// variants as (data-norm1)/(norm2-norm1).
const (
	NormCustom       = "custom"
	NormGlobalZScore = "globalzscore"
	NormVolumeZScore = "volumezscore"
	NormGlobal       = "global"
	NormVolume       = "volume"
)

// NormalizationRecord is the per-volume scale/shift metadata stored in a
// .deeprad sidecar file and applied to raw voxel data before slicing
type NormalizationRecord struct {
	// NormType is one of the Norm* constants
	NormType string `json:"normtype"`

	// Norm1 is the shift term (mean, minimum, or custom shift)
	Norm1 float64 `json:"norm1"`

	// Norm2 is the scale term (stddev, maximum, or custom scale)
	Norm2 float64 `json:"norm2"`
}

// Apply normalizes voxel data in place according to the record type.
// An unrecognized type is a configuration error and aborts the run.
func (r *NormalizationRecord) Apply(data []float32) error {
	switch r.NormType {
	case NormCustom, NormGlobalZScore, NormVolumeZScore:
		shift := float32(r.Norm1)
		scale := float32(r.Norm2)
		for i := range data {
			data[i] = (data[i] - shift) / scale
		}
	case NormGlobal, NormVolume:
		shift := float32(r.Norm1)
		scale := float32(r.Norm2 - r.Norm1)
		for i := range data {
			data[i] = (data[i] - shift) / scale
		}
	default:
		return fmt.Errorf("invalid normtype %q in normalization record", r.NormType)
	}
	return nil
}
