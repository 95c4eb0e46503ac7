package wcs

import (
	"math"
	"testing"

	"skyproc/internal/fits"
)

func tanHeader(rot float64) *fits.Header {
	h := fits.NewHeader()
	h.Set("CTYPE1", "RA---TAN")
	h.Set("CTYPE2", "DEC--TAN")
	h.Set("CRVAL1", 120.0)
	h.Set("CRVAL2", 35.0)
	h.Set("CRPIX1", 50.0)
	h.Set("CRPIX2", 40.0)
	h.Set("CDELT1", -0.01)
	h.Set("CDELT2", 0.01)
	if rot != 0 {
		h.Set("CROTA2", rot)
	}
	return h
}

func TestNewRequiresReferencePoint(t *testing.T) {
	h := tanHeader(0)
	h.Delete("CRVAL2")
	if _, err := New(h); err == nil {
		t.Fatal("expected an error for a header without CRVAL2")
	}
}

func TestReferencePixelMapsToReferenceValue(t *testing.T) {
	w, err := New(tanHeader(0))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	// CRPIX is 1-based, our pixels 0-based
	lon, lat := w.PixToWorld(49, 39)
	if math.Abs(lon-120) > 1e-9 || math.Abs(lat-35) > 1e-9 {
		t.Errorf("reference pixel maps to (%g, %g), want (120, 35)", lon, lat)
	}
}

func TestPixWorldRoundTrip(t *testing.T) {
	for _, rot := range []float64{0, 17.5, -63} {
		w, err := New(tanHeader(rot))
		if err != nil {
			t.Fatalf("New(rot=%g): %v", rot, err)
		}
		for _, p := range [][2]float64{{0, 0}, {49, 39}, {12.25, 70.5}, {99, 3}} {
			lon, lat := w.PixToWorld(p[0], p[1])
			x, y, ok := w.WorldToPix(lon, lat)
			if !ok {
				t.Fatalf("rot=%g: WorldToPix rejected (%g, %g)", rot, lon, lat)
			}
			if math.Abs(x-p[0]) > 1e-8 || math.Abs(y-p[1]) > 1e-8 {
				t.Errorf("rot=%g: pixel (%g, %g) round-tripped to (%g, %g)", rot, p[0], p[1], x, y)
			}
		}
	}
}

func TestWorldToPixRejectsFarSide(t *testing.T) {
	w, err := New(tanHeader(0))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	// the antipode of the tangent point cannot project
	if _, _, ok := w.WorldToPix(300, -35); ok {
		t.Errorf("expected the far hemisphere to be rejected")
	}
}

func TestIsGalactic(t *testing.T) {
	h := tanHeader(0)
	w, _ := New(h)
	if w.IsGalactic() {
		t.Errorf("RA---TAN should not be Galactic")
	}
	h.Set("CTYPE1", "GLON-TAN")
	h.Set("CTYPE2", "GLAT-TAN")
	w, _ = New(h)
	if !w.IsGalactic() {
		t.Errorf("GLON-TAN should be Galactic")
	}
}

func TestEquatorialToGalacticPole(t *testing.T) {
	// fk5 position of the north Galactic pole
	_, b := EquatorialToGalactic(192.85948, 27.12825)
	if math.Abs(b-90) > 1e-3 {
		t.Errorf("NGP latitude = %g, want 90", b)
	}
	// Galactic centre is near (266.4, -28.94) in fk5
	l, b := EquatorialToGalactic(266.40499, -28.93617)
	if math.Abs(b) > 1e-3 || (l > 1e-3 && l < 360-1e-3) {
		t.Errorf("Galactic centre mapped to (%g, %g), want (0, 0)", l, b)
	}
}

func TestFrameRoundTrip(t *testing.T) {
	for _, c := range [][2]float64{{10, 20}, {120, -45}, {250, 75}, {359.5, -89}} {
		l, b := EquatorialToGalactic(c[0], c[1])
		ra, dec := GalacticToEquatorial(l, b)
		if math.Abs(ra-c[0]) > 1e-9 || math.Abs(dec-c[1]) > 1e-9 {
			t.Errorf("(%g, %g) round-tripped to (%g, %g)", c[0], c[1], ra, dec)
		}
	}
}
