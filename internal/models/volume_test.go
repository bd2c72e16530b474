package models

import (
	"testing"
)

// coordVolume encodes each voxel's coordinates into its value so that
// reorientation mistakes are directly visible
func coordVolume(w, h, d int) *Volume {
	v := NewVolume(w, h, d)
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			for z := 0; z < d; z++ {
				v.Set(x, y, z, float32(100*x+10*y+z))
			}
		}
	}
	return v
}

// TestReorient verifies that each axis ends up trailing with the
// remaining axes in their original relative order
func TestReorient(t *testing.T) {
	src := coordVolume(2, 3, 4)

	t.Run("AxisZ", func(t *testing.T) {
		out, err := src.Reorient(AxisZ)
		if err != nil {
			t.Fatalf("Reorient failed: %v", err)
		}
		if out != src {
			t.Errorf("Axis Z reorientation should be a no-op")
		}
	})

	t.Run("AxisX", func(t *testing.T) {
		out, err := src.Reorient(AxisX)
		if err != nil {
			t.Fatalf("Reorient failed: %v", err)
		}
		if out.W != 3 || out.H != 4 || out.D != 2 {
			t.Fatalf("Expected extents (3,4,2), got (%d,%d,%d)", out.W, out.H, out.D)
		}
		for x := 0; x < 2; x++ {
			for y := 0; y < 3; y++ {
				for z := 0; z < 4; z++ {
					if out.At(y, z, x) != src.At(x, y, z) {
						t.Fatalf("Axis X: out(%d,%d,%d) != src(%d,%d,%d)", y, z, x, x, y, z)
					}
				}
			}
		}
	})

	t.Run("AxisY", func(t *testing.T) {
		out, err := src.Reorient(AxisY)
		if err != nil {
			t.Fatalf("Reorient failed: %v", err)
		}
		if out.W != 2 || out.H != 4 || out.D != 3 {
			t.Fatalf("Expected extents (2,4,3), got (%d,%d,%d)", out.W, out.H, out.D)
		}
		for x := 0; x < 2; x++ {
			for y := 0; y < 3; y++ {
				for z := 0; z < 4; z++ {
					if out.At(x, z, y) != src.At(x, y, z) {
						t.Fatalf("Axis Y: out(%d,%d,%d) != src(%d,%d,%d)", x, z, y, x, y, z)
					}
				}
			}
		}
	})

	t.Run("Invalid", func(t *testing.T) {
		if _, err := src.Reorient(Axis(3)); err == nil {
			t.Errorf("Expected error for axis 3")
		}
	})
}

// TestStackShapes verifies the stack shape helpers used by the skip logic
func TestStackShapes(t *testing.T) {
	a := &VolumeStack{Chans: []*Volume{NewVolume(2, 3, 4), NewVolume(2, 3, 4)}}
	b := &VolumeStack{Chans: []*Volume{NewVolume(2, 3, 4)}}
	c := &VolumeStack{Chans: []*Volume{NewVolume(2, 3, 5)}}

	if !a.SameShape(b) {
		t.Errorf("Stacks with equal spatial extents should match regardless of channel count")
	}
	if a.SameShape(c) {
		t.Errorf("Stacks differing in depth should not match")
	}
}

// TestNormalizationApply covers both normalization formula families and
// the invalid-type error
func TestNormalizationApply(t *testing.T) {
	t.Run("RangeVariant", func(t *testing.T) {
		data := []float32{15}
		rec := &NormalizationRecord{NormType: NormVolume, Norm1: 10, Norm2: 20}
		if err := rec.Apply(data); err != nil {
			t.Fatalf("Apply failed: %v", err)
		}
		if data[0] != 0.5 {
			t.Errorf("Expected (15-10)/(20-10) = 0.5, got %f", data[0])
		}
	})

	t.Run("ZScoreVariant", func(t *testing.T) {
		data := []float32{15}
		rec := &NormalizationRecord{NormType: NormVolumeZScore, Norm1: 10, Norm2: 20}
		if err := rec.Apply(data); err != nil {
			t.Fatalf("Apply failed: %v", err)
		}
		if data[0] != 0.25 {
			t.Errorf("Expected (15-10)/20 = 0.25, got %f", data[0])
		}
	})

	t.Run("CustomVariant", func(t *testing.T) {
		data := []float32{5}
		rec := &NormalizationRecord{NormType: NormCustom, Norm1: 1, Norm2: 2}
		if err := rec.Apply(data); err != nil {
			t.Fatalf("Apply failed: %v", err)
		}
		if data[0] != 2 {
			t.Errorf("Expected (5-1)/2 = 2, got %f", data[0])
		}
	})

	t.Run("InvalidType", func(t *testing.T) {
		rec := &NormalizationRecord{NormType: "minmax"}
		if err := rec.Apply([]float32{1}); err == nil {
			t.Errorf("Expected error for unrecognized normtype")
		}
	})
}
