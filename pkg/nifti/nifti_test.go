package nifti

import (
	"bytes"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"nii2img/internal/models"
)

// writeRamp writes a test volume whose values encode their coordinates
func writeRamp(t *testing.T, path string, w, h, d int) *models.Volume {
	t.Helper()
	vol := models.NewVolume(w, h, d)
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			for z := 0; z < d; z++ {
				vol.Set(x, y, z, float32(100*x+10*y+z))
			}
		}
	}
	if err := WriteVolume(path, vol); err != nil {
		t.Fatalf("Failed to write test volume: %v", err)
	}
	return vol
}

// TestVolumeRoundTrip verifies writing and re-reading a volume preserves
// extents and voxel values, with and without gzip
func TestVolumeRoundTrip(t *testing.T) {
	dir := t.TempDir()

	for _, name := range []string{"plain.nii", "compressed.nii.gz"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			want := writeRamp(t, path, 4, 3, 5)

			got, err := ReadVolume(path)
			if err != nil {
				t.Fatalf("ReadVolume failed: %v", err)
			}
			if got.W != want.W || got.H != want.H || got.D != want.D {
				t.Fatalf("Expected extents (%d,%d,%d), got (%d,%d,%d)",
					want.W, want.H, want.D, got.W, got.H, got.D)
			}
			for i := range want.Data {
				if got.Data[i] != want.Data[i] {
					t.Fatalf("Voxel %d: %f != %f", i, got.Data[i], want.Data[i])
				}
			}
		})
	}
}

// TestLoadAppliesSidecar verifies the normalization round trip: a raw
// value of 15 with a volume-range record (10, 20) loads as 0.5
func TestLoadAppliesSidecar(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "subject.nii")

	vol := models.NewVolume(1, 1, 1)
	vol.Set(0, 0, 0, 15)
	if err := WriteVolume(path, vol); err != nil {
		t.Fatalf("Failed to write volume: %v", err)
	}
	rec := &models.NormalizationRecord{NormType: models.NormVolume, Norm1: 10, Norm2: 20}
	if err := WriteSidecar(path, rec); err != nil {
		t.Fatalf("Failed to write sidecar: %v", err)
	}

	got, err := Load(path, log.New(os.Stderr, "", 0))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got.At(0, 0, 0) != 0.5 {
		t.Errorf("Expected normalized value 0.5, got %f", got.At(0, 0, 0))
	}
}

// TestLoadMissingSidecar verifies raw passthrough plus a warning when no
// record exists
func TestLoadMissingSidecar(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "raw.nii")
	want := writeRamp(t, path, 2, 2, 2)

	var buf bytes.Buffer
	got, err := Load(path, log.New(&buf, "", 0))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	for i := range want.Data {
		if got.Data[i] != want.Data[i] {
			t.Fatalf("Data changed without a sidecar at %d", i)
		}
	}
	if !strings.Contains(buf.String(), "no normalization info") {
		t.Errorf("Expected a missing-sidecar warning, got %q", buf.String())
	}
}

// TestLoadInvalidNormType verifies an unrecognized normtype aborts
func TestLoadInvalidNormType(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.nii")
	writeRamp(t, path, 2, 2, 2)

	if err := os.WriteFile(SidecarPath(path), []byte(`{"normtype":"median","norm1":0,"norm2":1}`), 0644); err != nil {
		t.Fatalf("Failed to write sidecar: %v", err)
	}
	if _, err := Load(path, log.New(os.Stderr, "", 0)); err == nil {
		t.Errorf("Expected error for invalid normtype")
	}
}

// TestGlobOrder verifies .nii.gz files sort before .nii files, each
// group alphabetically
func TestGlobOrder(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.nii", "c.nii.gz", "a.nii", "d.nii.gz"} {
		writeRamp(t, filepath.Join(dir, name), 1, 1, 2)
	}

	got, err := Glob(dir)
	if err != nil {
		t.Fatalf("Glob failed: %v", err)
	}
	want := []string{"c.nii.gz", "d.nii.gz", "a.nii", "b.nii"}
	if len(got) != len(want) {
		t.Fatalf("Expected %d files, got %d", len(want), len(got))
	}
	for i := range want {
		if filepath.Base(got[i]) != want[i] {
			t.Errorf("Position %d: expected %s, got %s", i, want[i], filepath.Base(got[i]))
		}
	}
}

// TestRemoveSidecar verifies removal is idempotent
func TestRemoveSidecar(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "v.nii")
	writeRamp(t, path, 1, 1, 2)

	if err := WriteSidecar(path, &models.NormalizationRecord{NormType: models.NormCustom, Norm1: 0, Norm2: 1}); err != nil {
		t.Fatalf("WriteSidecar failed: %v", err)
	}
	if err := RemoveSidecar(path); err != nil {
		t.Fatalf("RemoveSidecar failed: %v", err)
	}
	if err := RemoveSidecar(path); err != nil {
		t.Fatalf("Second RemoveSidecar failed: %v", err)
	}
	if rec, err := ReadSidecar(path); err != nil || rec != nil {
		t.Errorf("Expected no sidecar after removal, got %v (%v)", rec, err)
	}
}
