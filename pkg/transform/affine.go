// Package transform builds composite 2D affine augmentation transforms and
// resamples slice planes through them.
package transform

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// Options holds the augmentation configuration for one run. Zero values
// disable every augmentation, in which case Compose returns the identity.
type Options struct {
	// HFlips enables random horizontal flips (second image axis)
	HFlips bool

	// VFlips enables random vertical flips (first image axis)
	VFlips bool

	// Rotations is the maximum random rotation angle in degrees
	Rotations float64

	// Shears is the maximum random shear angle in degrees. Note the shear
	// angles are drawn from the rotation bound, matching the behavior the
	// downstream tooling was calibrated against.
	Shears float64

	// Scalings is the maximum random per-axis scale jitter as a fraction
	Scalings float64

	// Translations is the maximum random translation in pixels
	Translations float64

	// Resize, when non-nil, forces the output plane size to [W, H] and
	// folds the implied per-axis scale factors into the transform
	Resize []int
}

// randInt draws an integer from [lo, hi). An empty range yields 0 without
// consuming randomness, so a zero-magnitude option is equivalent to a
// disabled one.
func randInt(rng *rand.Rand, lo, hi int) int {
	if hi <= lo {
		return 0
	}
	return lo + rng.Intn(hi-lo)
}

// Compose derives one composite 3x3 homogeneous matrix for a single
// sample. srcW and srcH are the source plane extents, used to compute the
// resize scale factors.
//
// Elementary transforms are right-multiplied onto the accumulator in a
// fixed order: horizontal flip, vertical flip, rotation, shear, scale
// (with resize), translation. Random draws happen in that same order, one
// per active option, so a fixed seed reproduces the full run.
func Compose(rng *rand.Rand, opts Options, srcW, srcH int) *mat.Dense {
	m := eye()

	if opts.HFlips {
		e := eye()
		if rng.Float64() >= 0.5 {
			e.Set(1, 1, -1)
		}
		m.Mul(m, e)
	}

	if opts.VFlips {
		e := eye()
		if rng.Float64() >= 0.5 {
			e.Set(0, 0, -1)
		}
		m.Mul(m, e)
	}

	if math.Abs(opts.Rotations) > 1e-2 {
		bound := int(math.Abs(opts.Rotations))
		angle := math.Pi / 180.0 * float64(randInt(rng, -bound, bound))
		e := eye()
		e.Set(0, 0, math.Cos(angle))
		e.Set(0, 1, math.Sin(angle))
		e.Set(1, 0, -math.Sin(angle))
		e.Set(1, 1, math.Cos(angle))
		m.Mul(m, e)
	}

	if math.Abs(opts.Shears) > 1e-2 {
		// shear angles intentionally reuse the rotation bound
		bound := int(math.Abs(opts.Rotations))
		angleX := math.Pi / 180.0 * float64(randInt(rng, -bound, bound))
		angleY := math.Pi / 180.0 * float64(randInt(rng, -bound, bound))
		e := eye()
		e.Set(0, 1, math.Tan(angleX))
		e.Set(1, 0, math.Tan(angleY))
		m.Mul(m, e)
	}

	if math.Abs(opts.Scalings) > 1e-4 || opts.Resize != nil {
		initX, initY := 1.0, 1.0
		if opts.Resize != nil {
			initX = float64(srcW) / float64(opts.Resize[0])
			initY = float64(srcH) / float64(opts.Resize[1])
		}
		randX, randY := 0.0, 0.0
		if math.Abs(opts.Scalings) > 1e-4 {
			bound := int(math.Abs(opts.Scalings) * 10000)
			randX = float64(randInt(rng, -bound, bound)) / 10000
			randY = float64(randInt(rng, -bound, bound)) / 10000
		}
		e := eye()
		e.Set(0, 0, initX+randX)
		e.Set(1, 1, initY+randY)
		m.Mul(m, e)
	}

	if math.Abs(opts.Translations) > 0 {
		bound := int(math.Abs(opts.Translations))
		tx := float64(randInt(rng, -bound, bound))
		ty := float64(randInt(rng, -bound, bound))
		e := eye()
		e.Set(0, 2, tx)
		e.Set(1, 2, ty)
		m.Mul(m, e)
	}

	return m
}

// eye returns a 3x3 identity matrix
func eye() *mat.Dense {
	return mat.NewDense(3, 3, []float64{
		1, 0, 0,
		0, 1, 0,
		0, 0, 1,
	})
}

// IsIdentity reports whether a composite transform is exactly the identity
func IsIdentity(m *mat.Dense) bool {
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			want := 0.0
			if i == j {
				want = 1.0
			}
			if m.At(i, j) != want {
				return false
			}
		}
	}
	return true
}
