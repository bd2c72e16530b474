package transform

import (
	"math/rand"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func identity() *mat.Dense {
	return mat.NewDense(3, 3, []float64{
		1, 0, 0,
		0, 1, 0,
		0, 0, 1,
	})
}

// rampPlanes builds a stack whose values encode their own coordinates,
// which makes resampling errors easy to localize
func rampPlanes(w, h, p int) *Planes {
	pl := NewPlanes(w, h, p)
	for pi := 0; pi < p; pi++ {
		for x := 0; x < w; x++ {
			for y := 0; y < h; y++ {
				pl.Set(x, y, pi, float32(1000*pi+10*x+y))
			}
		}
	}
	return pl
}

// TestResampleIdentity verifies that the identity transform with an
// unchanged output shape returns the input planes exactly
func TestResampleIdentity(t *testing.T) {
	src := rampPlanes(6, 5, 3)
	out := Resample(src, identity(), 6, 5, ModeReflect)

	if out.W != src.W || out.H != src.H || out.P != src.P {
		t.Fatalf("Expected shape (%d,%d,%d), got (%d,%d,%d)", src.W, src.H, src.P, out.W, out.H, out.P)
	}
	for i := range src.Data {
		if out.Data[i] != src.Data[i] {
			t.Fatalf("Identity resample changed data at %d: %f != %f", i, out.Data[i], src.Data[i])
		}
	}
}

// TestResampleTranslation verifies the inverse-mapping convention: a +1
// offset in the matrix samples the source one pixel further along
func TestResampleTranslation(t *testing.T) {
	src := rampPlanes(6, 6, 1)

	m := identity()
	m.Set(0, 2, 1)
	out := Resample(src, m, 6, 6, ModeNearest)

	for x := 0; x < 5; x++ {
		for y := 0; y < 6; y++ {
			if out.At(x, y, 0) != src.At(x+1, y, 0) {
				t.Fatalf("Expected out(%d,%d) = src(%d,%d), got %f != %f",
					x, y, x+1, y, out.At(x, y, 0), src.At(x+1, y, 0))
			}
		}
	}
	// the last row reads past the edge and repeats it under nearest
	for y := 0; y < 6; y++ {
		if out.At(5, y, 0) != src.At(5, y, 0) {
			t.Fatalf("Expected nearest extension at edge, got %f", out.At(5, y, 0))
		}
	}
}

// TestResampleOutputShape verifies the output shape is taken from the
// arguments, not the source
func TestResampleOutputShape(t *testing.T) {
	src := rampPlanes(16, 12, 2)
	out := Resample(src, identity(), 8, 6, ModeReflect)

	if out.W != 8 || out.H != 6 || out.P != 2 {
		t.Errorf("Expected shape (8,6,2), got (%d,%d,%d)", out.W, out.H, out.P)
	}
}

// TestBoundaryFold checks each extension mode against its documented
// pattern for a 4-sample axis
func TestBoundaryFold(t *testing.T) {
	n := 4
	cases := []struct {
		mode     BoundaryMode
		indices  []int
		expected []int
	}{
		// a a a a | a b c d | d d d d
		{ModeNearest, []int{-2, -1, 0, 3, 4, 5}, []int{0, 0, 0, 3, 3, 3}},
		// d c b a | a b c d | d c b a
		{ModeReflect, []int{-2, -1, 0, 3, 4, 5}, []int{1, 0, 0, 3, 3, 2}},
		// d c b | a b c d | c b a
		{ModeMirror, []int{-2, -1, 0, 3, 4, 5}, []int{2, 1, 0, 3, 2, 1}},
		// a b c d | a b c d | a b c d
		{ModeWrap, []int{-2, -1, 0, 3, 4, 5}, []int{2, 3, 0, 3, 0, 1}},
	}

	for _, c := range cases {
		t.Run(c.mode.String(), func(t *testing.T) {
			for i, idx := range c.indices {
				if got := c.mode.fold(idx, n); got != c.expected[i] {
					t.Errorf("fold(%d, %d) = %d, expected %d", idx, n, got, c.expected[i])
				}
			}
		})
	}
}

// TestParseBoundaryMode covers the configuration surface
func TestParseBoundaryMode(t *testing.T) {
	for _, name := range []string{"mirror", "nearest", "reflect", "wrap"} {
		mode, err := ParseBoundaryMode(name)
		if err != nil {
			t.Errorf("ParseBoundaryMode(%q) failed: %v", name, err)
		}
		if mode.String() != name {
			t.Errorf("Mode %q round-tripped to %q", name, mode.String())
		}
	}
	if _, err := ParseBoundaryMode("clamp"); err == nil {
		t.Errorf("Expected error for unknown boundary mode")
	}
}

// TestNoiseShared verifies one noise field applied to two stacks shifts
// every plane of both by the same realization
func TestNoiseShared(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	field := NoiseField(rng, 0.5, 4, 4)

	a := rampPlanes(4, 4, 2)
	b := rampPlanes(4, 4, 3)
	a.AddNoise(field)
	b.AddNoise(field)

	// adding a small float to a large base rounds, so compare loosely
	const tol = 1e-3
	for x := 0; x < 4; x++ {
		for y := 0; y < 4; y++ {
			want := field[x*4+y]
			for p := 0; p < 2; p++ {
				got := a.At(x, y, p) - float32(1000*p+10*x+y)
				if diff := got - want; diff > tol || diff < -tol {
					t.Fatalf("Plane %d of a shifted by %f, expected %f", p, got, want)
				}
			}
			for p := 0; p < 3; p++ {
				got := b.At(x, y, p) - float32(1000*p+10*x+y)
				if diff := got - want; diff > tol || diff < -tol {
					t.Fatalf("Plane %d of b shifted by %f, expected %f", p, got, want)
				}
			}
		}
	}
}

// TestFlattenLayout pins the side-by-side plane packing of the emitted
// 2D images
func TestFlattenLayout(t *testing.T) {
	pl := rampPlanes(3, 2, 2)
	pix, width, height := pl.Flatten()

	if width != 4 || height != 3 {
		t.Fatalf("Expected 4x3 image, got %dx%d", width, height)
	}
	for p := 0; p < 2; p++ {
		for x := 0; x < 3; x++ {
			for y := 0; y < 2; y++ {
				got := pix[x*width+(y+2*p)]
				want := pl.At(x, y, p)
				if got != want {
					t.Errorf("Flattened (%d, col %d) = %f, expected %f", x, y+2*p, got, want)
				}
			}
		}
	}
}
