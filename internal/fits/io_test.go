package fits

import (
	"math"
	"path/filepath"
	"testing"
)

func TestWriteReadRoundTrip(t *testing.T) {
	im := NewImage2D(5, 4, nil)
	im.Header.Set("CTYPE1", "RA---TAN")
	im.Header.Set("CRVAL1", 83.5)
	im.Header.Set("OBJECT", "test_field")
	for i := range im.Data {
		im.Data[i] = float64(i) * 0.5
	}
	im.SetAt(2, 1, math.NaN())

	path := filepath.Join(t.TempDir(), "roundtrip.fits")
	if err := WriteFile(path, im); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	got, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if got.NX != 5 || got.NY != 4 || got.Is3D() {
		t.Fatalf("shape = %dx%d NZ=%d, want 5x4 2D", got.NX, got.NY, got.NZ)
	}
	if v, _ := got.Header.Float("CRVAL1"); v != 83.5 {
		t.Errorf("CRVAL1 = %g, want 83.5", v)
	}
	if s, _ := got.Header.String("OBJECT"); s != "test_field" {
		t.Errorf("OBJECT = %q, want test_field", s)
	}
	if got.At(3, 2) != im.At(3, 2) {
		t.Errorf("pixel (3,2) = %g, want %g", got.At(3, 2), im.At(3, 2))
	}
	// NaN survives the float64 payload
	if !math.IsNaN(got.At(2, 1)) {
		t.Errorf("pixel (2,1) = %g, want NaN", got.At(2, 1))
	}
}

func TestWriteReadCube(t *testing.T) {
	c := NewCube(3, 2, 4, nil)
	c.Header.Set("CRVAL3", -2000.0)
	c.Header.Set("CDELT3", 1000.0)
	c.Header.Set("CRPIX3", 1.0)
	for i := range c.Data {
		c.Data[i] = float64(i)
	}

	path := filepath.Join(t.TempDir(), "cube.fits")
	if err := WriteFile(path, c); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	got, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !got.Is3D() || got.NZ != 4 {
		t.Fatalf("NZ = %d, want 4", got.NZ)
	}
	if got.At3(2, 1, 3) != c.At3(2, 1, 3) {
		t.Errorf("voxel (2,1,3) = %g, want %g", got.At3(2, 1, 3), c.At3(2, 1, 3))
	}
	axis, err := FreqAxis(got.Header)
	if err != nil {
		t.Fatalf("FreqAxis after round trip: %v", err)
	}
	if len(axis) != 4 || axis[0] != -2000.0 {
		t.Errorf("axis = %v, want 4 channels starting at -2000", axis)
	}
}
