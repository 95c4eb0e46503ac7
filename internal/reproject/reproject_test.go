package reproject

import (
	"math"
	"testing"

	"skyproc/internal/fits"
)

func tanImage(nx, ny int, ctype1, ctype2 string) *fits.Image {
	h := fits.NewHeader()
	h.Set("CTYPE1", ctype1)
	h.Set("CTYPE2", ctype2)
	h.Set("CRVAL1", 180.0)
	h.Set("CRVAL2", 30.0)
	h.Set("CRPIX1", float64(nx)/2)
	h.Set("CRPIX2", float64(ny)/2)
	h.Set("CDELT1", -0.02)
	h.Set("CDELT2", 0.02)
	return fits.NewImage2D(nx, ny, h)
}

func TestReproject2DIdentity(t *testing.T) {
	src := tanImage(10, 8, "RA---TAN", "DEC--TAN")
	for i := range src.Data {
		src.Data[i] = float64(i)
	}
	tmpl := tanImage(10, 8, "RA---TAN", "DEC--TAN")

	res, err := Reproject2D(src, tmpl, false, fits.InterpNearest)
	if err != nil {
		t.Fatalf("Reproject2D: %v", err)
	}
	for i := range src.Data {
		if res.Data.Data[i] != src.Data[i] {
			t.Fatalf("pixel %d = %g, want %g", i, res.Data.Data[i], src.Data[i])
		}
		if res.Footprint[i] != 1 {
			t.Fatalf("footprint %d = %g, want 1", i, res.Footprint[i])
		}
	}
}

func TestReproject2DShiftedTemplate(t *testing.T) {
	src := tanImage(10, 8, "RA---TAN", "DEC--TAN")
	for y := 0; y < 8; y++ {
		for x := 0; x < 10; x++ {
			src.SetAt(x, y, float64(x))
		}
	}
	// same sky, reference pixel moved one column: template pixel x sees
	// the sky of source pixel x-1
	tmpl := tanImage(10, 8, "RA---TAN", "DEC--TAN")
	tmpl.Header.Set("CRPIX1", 6.0)

	res, err := Reproject2D(src, tmpl, false, fits.InterpNearest)
	if err != nil {
		t.Fatalf("Reproject2D: %v", err)
	}
	if got := res.Data.At(5, 4); got != 4 {
		t.Errorf("pixel (5,4) = %g, want 4", got)
	}
	// column 0 looks one pixel beyond the source edge
	if !math.IsNaN(res.Data.At(0, 4)) {
		t.Errorf("uncovered pixel should be NaN, got %g", res.Data.At(0, 4))
	}
	if res.Footprint[4*10] != 0 {
		t.Errorf("uncovered pixel should have footprint 0")
	}
}

func TestReproject2DFrameMismatch(t *testing.T) {
	src := tanImage(6, 6, "RA---TAN", "DEC--TAN")
	tmpl := tanImage(6, 6, "GLON-TAN", "GLAT-TAN")
	if _, err := Reproject2D(src, tmpl, false, fits.InterpBilinear); err == nil {
		t.Fatal("expected a frame mismatch error")
	}
}

func TestReproject2DCleanStripsExtras(t *testing.T) {
	src := tanImage(6, 6, "RA---TAN", "DEC--TAN")
	for i := range src.Data {
		src.Data[i] = 3
	}
	// a stray spectral keyword must not confuse a cleaned reprojection
	src.Header.Set("CRVAL3", 1e9)
	tmpl := tanImage(6, 6, "RA---TAN", "DEC--TAN")

	res, err := Reproject2D(src, tmpl, true, fits.InterpNearest)
	if err != nil {
		t.Fatalf("Reproject2D: %v", err)
	}
	if res.Data.Header.Has("CRVAL3") {
		t.Errorf("cleaned output header still carries CRVAL3")
	}
	if res.Data.At(3, 3) != 3 {
		t.Errorf("pixel (3,3) = %g, want 3", res.Data.At(3, 3))
	}
}

func TestFootprintImage(t *testing.T) {
	src := tanImage(4, 4, "RA---TAN", "DEC--TAN")
	tmpl := tanImage(4, 4, "RA---TAN", "DEC--TAN")
	res, err := Reproject2D(src, tmpl, false, fits.InterpNearest)
	if err != nil {
		t.Fatalf("Reproject2D: %v", err)
	}
	fp := FootprintImage(res)
	if fp.NX != 4 || fp.NY != 4 {
		t.Fatalf("footprint shape %dx%d", fp.NX, fp.NY)
	}
	for i, v := range fp.Data {
		if v != res.Footprint[i] {
			t.Errorf("footprint pixel %d = %g, want %g", i, v, res.Footprint[i])
		}
	}
}
