package transform

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// BoundaryMode selects how planes are extended beyond their edges during
// resampling.
type BoundaryMode int

const (
	// ModeReflect extends by reflection including the edge sample
	// (d c b a | a b c d | d c b a)
	ModeReflect BoundaryMode = iota

	// ModeNearest repeats the edge sample (a a a a | a b c d | d d d d)
	ModeNearest

	// ModeMirror extends by reflection about the edge sample
	// (d c b | a b c d | c b a)
	ModeMirror

	// ModeWrap repeats the plane periodically (a b c d | a b c d)
	ModeWrap
)

// ParseBoundaryMode maps a configuration string to a BoundaryMode
func ParseBoundaryMode(s string) (BoundaryMode, error) {
	switch s {
	case "reflect":
		return ModeReflect, nil
	case "nearest":
		return ModeNearest, nil
	case "mirror":
		return ModeMirror, nil
	case "wrap":
		return ModeWrap, nil
	}
	return 0, fmt.Errorf("invalid boundary mode %q: must be one of mirror, nearest, reflect, wrap", s)
}

func (b BoundaryMode) String() string {
	switch b {
	case ModeReflect:
		return "reflect"
	case ModeNearest:
		return "nearest"
	case ModeMirror:
		return "mirror"
	case ModeWrap:
		return "wrap"
	}
	return "unknown"
}

// fold maps an out-of-range index into [0, n) according to the mode
func (b BoundaryMode) fold(i, n int) int {
	if i >= 0 && i < n {
		return i
	}
	if n == 1 {
		return 0
	}
	switch b {
	case ModeNearest:
		if i < 0 {
			return 0
		}
		return n - 1
	case ModeWrap:
		i %= n
		if i < 0 {
			i += n
		}
		return i
	case ModeReflect:
		period := 2 * n
		i %= period
		if i < 0 {
			i += period
		}
		if i >= n {
			i = period - 1 - i
		}
		return i
	case ModeMirror:
		period := 2*n - 2
		i %= period
		if i < 0 {
			i += period
		}
		if i >= n {
			i = period - i
		}
		return i
	}
	return 0
}

// Planes is a stack of P same-sized 2D planes, the flattened form of a
// slice slab. Plane p of a slab with k slices and C channels holds slice
// p%k of channel p/k; within a plane, index (w, h) follows the first two
// volume axes after reorientation.
type Planes struct {
	// Data holds the planes contiguously: value (w,h,p) lives at
	// Data[p*W*H + w*H + h]
	Data []float32

	// W, H are the per-plane extents, P the plane count
	W, H, P int
}

// NewPlanes allocates a zero-filled plane stack
func NewPlanes(w, h, p int) *Planes {
	return &Planes{Data: make([]float32, w*h*p), W: w, H: h, P: p}
}

// At returns the value of plane p at (w, h)
func (pl *Planes) At(w, h, p int) float32 {
	return pl.Data[(p*pl.W+w)*pl.H+h]
}

// Set stores a value into plane p at (w, h)
func (pl *Planes) Set(w, h, p int, v float32) {
	pl.Data[(p*pl.W+w)*pl.H+h] = v
}

// Flatten packs the stack into one 2D image of W rows by H*P columns,
// planes side by side in index order, matching the layout training
// tooling expects to un-reshape.
func (pl *Planes) Flatten() (pix []float32, width, height int) {
	width = pl.H * pl.P
	height = pl.W
	pix = make([]float32, width*height)
	for p := 0; p < pl.P; p++ {
		for w := 0; w < pl.W; w++ {
			for h := 0; h < pl.H; h++ {
				pix[w*width+(h+pl.H*p)] = pl.At(w, h, p)
			}
		}
	}
	return pix, width, height
}

// Resample maps every plane of src through the composite transform into a
// new stack of outW by outH planes. The matrix maps output coordinates to
// source coordinates (the inverse-mapping convention), source values are
// interpolated bilinearly, and out-of-range coordinates are folded by the
// boundary mode. Output is always float32 regardless of how the source
// volume was stored.
func Resample(src *Planes, m *mat.Dense, outW, outH int, mode BoundaryMode) *Planes {
	m00, m01, m02 := m.At(0, 0), m.At(0, 1), m.At(0, 2)
	m10, m11, m12 := m.At(1, 0), m.At(1, 1), m.At(1, 2)

	out := NewPlanes(outW, outH, src.P)
	for p := 0; p < src.P; p++ {
		for w := 0; w < outW; w++ {
			for h := 0; h < outH; h++ {
				sw := m00*float64(w) + m01*float64(h) + m02
				sh := m10*float64(w) + m11*float64(h) + m12

				w0 := int(math.Floor(sw))
				h0 := int(math.Floor(sh))
				fw := sw - float64(w0)
				fh := sh - float64(h0)

				wa := mode.fold(w0, src.W)
				wb := mode.fold(w0+1, src.W)
				ha := mode.fold(h0, src.H)
				hb := mode.fold(h0+1, src.H)

				v00 := float64(src.At(wa, ha, p))
				v01 := float64(src.At(wa, hb, p))
				v10 := float64(src.At(wb, ha, p))
				v11 := float64(src.At(wb, hb, p))

				v := v00*(1-fw)*(1-fh) +
					v01*(1-fw)*fh +
					v10*fw*(1-fh) +
					v11*fw*fh
				out.Set(w, h, p, float32(v))
			}
		}
	}
	return out
}

// NoiseField draws one zero-mean Gaussian noise plane of w by h samples in
// row-major order. The same realization is shared across every plane of
// both the X and Y sample so paired images stay correlated.
func NoiseField(rng *rand.Rand, sigma float64, w, h int) []float32 {
	field := make([]float32, w*h)
	for i := range field {
		field[i] = float32(rng.NormFloat64() * sigma)
	}
	return field
}

// AddNoise adds a shared noise field to every plane of a stack. The field
// must be W by H in the stack's (w, h) order.
func (pl *Planes) AddNoise(field []float32) {
	for p := 0; p < pl.P; p++ {
		for w := 0; w < pl.W; w++ {
			for h := 0; h < pl.H; h++ {
				pl.Set(w, h, p, pl.At(w, h, p)+field[w*pl.H+h])
			}
		}
	}
}
