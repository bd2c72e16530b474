package pipeline

import (
	"fmt"
	"math/rand"

	"nii2img/internal/models"
	"nii2img/pkg/transform"
)

// DrawDepth samples the shared slice depth for one X/Y sample pair from a
// reoriented stack with the given trailing extent. The admissible range
// keeps a safety margin of half the widest requested adjacency window,
// m = max(xSlices, ySlices), on each side:
//
//	z ~ Uniform{m/2, ..., depth-m/2-2}
//
// A volume too thin for the window is an error; the caller skips the
// subject/axis rather than clamping the draw itself.
func DrawDepth(rng *rand.Rand, depth, xSlices, ySlices int) (int, error) {
	m := xSlices
	if ySlices > m {
		m = ySlices
	}
	lo := m / 2
	hi := depth - m/2 - 1 // exclusive, like the half-open integer draws elsewhere
	if hi <= lo {
		return 0, fmt.Errorf("volume has %d slices along the sampling axis, too few for a %d-slice adjacency window", depth, m)
	}
	return lo + rng.Intn(hi-lo), nil
}

// chunkRange returns the half-open slab span for k slices around z.
// For k > 1 the window is [z-k/2-1, z+k/2), one slice lower than a
// centered window; downstream training data was produced with this exact
// span, so it is kept. The span is shifted, never shrunk, back inside
// [0, depth) when the asymmetry would leave the volume.
func chunkRange(z, k, depth int) (lo, hi int) {
	if k == 1 {
		return z, z + 1
	}
	lo = z - k/2 - 1
	hi = z + k/2
	if lo < 0 {
		hi -= lo
		lo = 0
	}
	if hi > depth {
		lo -= hi - depth
		hi = depth
	}
	return lo, hi
}

// Chunk extracts a k-slice slab centered at depth z from every channel of
// a reoriented stack and flattens it into a plane stack. Planes are
// ordered slice-fastest (plane p holds slice p%k of channel p/k) so that
// channel identity stays recoverable by index arithmetic after the slab
// is written as one wide 2D image.
func Chunk(stack *models.VolumeStack, z, k int) *transform.Planes {
	w, h, d := stack.Shape()
	lo, hi := chunkRange(z, k, d)

	out := transform.NewPlanes(w, h, len(stack.Chans)*k)
	for c, vol := range stack.Chans {
		for zi := lo; zi < hi; zi++ {
			p := (zi - lo) + k*c
			for x := 0; x < w; x++ {
				for y := 0; y < h; y++ {
					out.Set(x, y, p, vol.At(x, y, zi))
				}
			}
		}
	}
	return out
}
