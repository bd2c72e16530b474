package transform

import (
	"math"
	"math/rand"
	"testing"

	"gonum.org/v1/gonum/mat"
)

// TestComposeIdentity verifies that a fully disabled augmentation
// configuration composes to exactly the identity matrix
func TestComposeIdentity(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	m := Compose(rng, Options{}, 64, 64)

	if !IsIdentity(m) {
		t.Errorf("Expected identity matrix, got %v", mat.Formatted(m))
	}
}

// TestComposeDeterministic verifies that the same seed yields the same
// composite transform
func TestComposeDeterministic(t *testing.T) {
	opts := Options{
		HFlips:       true,
		VFlips:       true,
		Rotations:    20,
		Shears:       5,
		Scalings:     0.1,
		Translations: 8,
	}

	m1 := Compose(rand.New(rand.NewSource(813)), opts, 64, 64)
	m2 := Compose(rand.New(rand.NewSource(813)), opts, 64, 64)

	if !mat.Equal(m1, m2) {
		t.Errorf("Same seed produced different transforms:\n%v\n%v", mat.Formatted(m1), mat.Formatted(m2))
	}
}

// TestComposeFlips verifies that flips only ever touch the diagonal and
// that both signs occur over repeated draws
func TestComposeFlips(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	sawFlip, sawNoFlip := false, false

	for i := 0; i < 100; i++ {
		m := Compose(rng, Options{HFlips: true}, 64, 64)

		d := m.At(1, 1)
		if d != 1 && d != -1 {
			t.Fatalf("Expected diagonal entry of +/-1, got %f", d)
		}
		if d == -1 {
			sawFlip = true
		} else {
			sawNoFlip = true
		}

		// everything else stays identity
		if m.At(0, 0) != 1 || m.At(0, 1) != 0 || m.At(1, 0) != 0 || m.At(0, 2) != 0 || m.At(1, 2) != 0 {
			t.Fatalf("Horizontal flip modified entries outside its diagonal: %v", mat.Formatted(m))
		}
	}

	if !sawFlip || !sawNoFlip {
		t.Errorf("Expected both flip outcomes over 100 draws (flip=%v, noflip=%v)", sawFlip, sawNoFlip)
	}
}

// TestComposeRotation verifies the rotation block is a proper rotation
// within the configured angle bound
func TestComposeRotation(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	maxAngle := 30.0

	for i := 0; i < 50; i++ {
		m := Compose(rng, Options{Rotations: maxAngle}, 64, 64)

		if m.At(0, 0) != m.At(1, 1) || m.At(0, 1) != -m.At(1, 0) {
			t.Fatalf("Rotation block is not a rotation: %v", mat.Formatted(m))
		}
		norm := m.At(0, 0)*m.At(0, 0) + m.At(0, 1)*m.At(0, 1)
		if math.Abs(norm-1) > 1e-12 {
			t.Fatalf("Rotation rows are not unit length: %f", norm)
		}
		angle := math.Abs(math.Asin(m.At(0, 1))) * 180 / math.Pi
		if angle > maxAngle {
			t.Fatalf("Rotation angle %f exceeds bound %f", angle, maxAngle)
		}
	}
}

// TestComposeShearReusesRotationBound pins the historical behavior that
// shear angles are drawn from the rotation bound: with a zero rotation
// bound an enabled shear stays inactive
func TestComposeShearReusesRotationBound(t *testing.T) {
	rng := rand.New(rand.NewSource(3))

	for i := 0; i < 20; i++ {
		m := Compose(rng, Options{Shears: 15}, 64, 64)
		if !IsIdentity(m) {
			t.Fatalf("Shear with zero rotation bound should be inactive, got %v", mat.Formatted(m))
		}
	}

	// with a rotation bound the shear terms show up off-diagonal
	sawShear := false
	for i := 0; i < 50; i++ {
		m := Compose(rng, Options{Shears: 15, Rotations: 10}, 64, 64)
		if m.At(0, 1) != 0 && m.At(1, 0) != 0 {
			sawShear = true
		}
	}
	if !sawShear {
		t.Errorf("Expected nonzero shear terms over 50 draws")
	}
}

// TestComposeResize verifies the resize target folds source/target scale
// factors into the matrix even without random scaling
func TestComposeResize(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	m := Compose(rng, Options{Resize: []int{128, 32}}, 256, 64)

	if m.At(0, 0) != 2 || m.At(1, 1) != 2 {
		t.Errorf("Expected scale factors 2, got %f and %f", m.At(0, 0), m.At(1, 1))
	}
	if m.At(0, 1) != 0 || m.At(1, 0) != 0 || m.At(0, 2) != 0 || m.At(1, 2) != 0 {
		t.Errorf("Resize touched entries outside the diagonal: %v", mat.Formatted(m))
	}
}

// TestComposeTranslationBounds verifies translations are whole pixels
// within the configured magnitude
func TestComposeTranslationBounds(t *testing.T) {
	rng := rand.New(rand.NewSource(99))

	for i := 0; i < 50; i++ {
		m := Compose(rng, Options{Translations: 5}, 64, 64)
		for _, v := range []float64{m.At(0, 2), m.At(1, 2)} {
			if v != math.Trunc(v) {
				t.Fatalf("Expected integer translation, got %f", v)
			}
			if v < -5 || v > 5 {
				t.Fatalf("Translation %f out of bounds", v)
			}
		}
	}
}
