package fits

import (
	"errors"
	"math"
	"testing"
)

func cubeHeader() *Header {
	h := NewHeader()
	h.Set("NAXIS", 3)
	h.Set("NAXIS1", 4)
	h.Set("NAXIS2", 3)
	h.Set("NAXIS3", 5)
	h.Set("CTYPE1", "RA---TAN")
	h.Set("CTYPE2", "DEC--TAN")
	h.Set("CRVAL1", 180.0)
	h.Set("CRVAL2", 0.0)
	h.Set("CRPIX1", 2.0)
	h.Set("CRPIX2", 2.0)
	h.Set("CDELT1", -0.1)
	h.Set("CDELT2", 0.1)
	h.Set("CRVAL3", -1000.0)
	h.Set("CRPIX3", 1.0)
	h.Set("CDELT3", 500.0)
	h.Set("CTYPE3", "VELO-LSR")
	h.Set("CUNIT3", "m/s")
	return h
}

func TestFreqAxis(t *testing.T) {
	axis, err := FreqAxis(cubeHeader())
	if err != nil {
		t.Fatalf("FreqAxis: %v", err)
	}
	if len(axis) != 5 {
		t.Fatalf("expected 5 channels, got %d", len(axis))
	}
	// channel at CRPIX3 carries CRVAL3
	if axis[0] != -1000.0 {
		t.Errorf("axis[0] = %g, want -1000", axis[0])
	}
	if axis[4] != 1000.0 {
		t.Errorf("axis[4] = %g, want 1000", axis[4])
	}
	for i := 1; i < len(axis); i++ {
		if d := axis[i] - axis[i-1]; d != 500.0 {
			t.Errorf("channel spacing at %d = %g, want 500", i, d)
		}
	}
}

func TestFreqAxisMissingKeyword(t *testing.T) {
	h := cubeHeader()
	h.Delete("CRVAL3")
	if _, err := FreqAxis(h); !errors.Is(err, ErrMissingKeyword) {
		t.Fatalf("expected ErrMissingKeyword, got %v", err)
	}
}

func TestTo2DDropsThirdAxis(t *testing.T) {
	h := To2D(cubeHeader())
	n, err := h.Int("NAXIS")
	if err != nil || n != 2 {
		t.Fatalf("NAXIS = %d (%v), want 2", n, err)
	}
	for _, k := range []string{"NAXIS3", "CRVAL3", "CRPIX3", "CDELT3", "CTYPE3", "CUNIT3"} {
		if h.Has(k) {
			t.Errorf("keyword %s survived To2D", k)
		}
	}
	if !h.Has("CRVAL1") || !h.Has("CDELT2") {
		t.Errorf("celestial keywords should survive To2D")
	}
	// already-2D headers pass through unchanged
	h2 := To2D(h)
	if len(h2.Keys()) != len(h.Keys()) {
		t.Errorf("To2D is not idempotent: %d keys became %d", len(h.Keys()), len(h2.Keys()))
	}
}

func TestMinimalWCS(t *testing.T) {
	h := cubeHeader()
	h.Set("HISTORY", "processed")
	h.Set("OBJECT", "field_17")
	m := MinimalWCS(h)
	if m.Has("HISTORY") || m.Has("OBJECT") || m.Has("CRVAL3") {
		t.Errorf("non-WCS keywords survived MinimalWCS: %v", m.Keys())
	}
	n, _ := m.Int("NAXIS")
	if n != 2 {
		t.Errorf("NAXIS = %d, want 2", n)
	}
	if v, err := m.Float("CDELT1"); err != nil || v != -0.1 {
		t.Errorf("CDELT1 = %g (%v), want -0.1", v, err)
	}
}

func TestHeaderFloatConversions(t *testing.T) {
	h := NewHeader()
	h.Set("A", 3)
	h.Set("B", 2.5)
	h.Set("C", "text")
	if v, err := h.Float("A"); err != nil || v != 3 {
		t.Errorf("Float(A) = %g (%v)", v, err)
	}
	if v, err := h.Float("B"); err != nil || v != 2.5 {
		t.Errorf("Float(B) = %g (%v)", v, err)
	}
	if _, err := h.Float("C"); err == nil {
		t.Errorf("Float(C) should fail on a string value")
	}
	if _, err := h.Float("MISSING"); !errors.Is(err, ErrMissingKeyword) {
		t.Errorf("Float(MISSING) should report the missing keyword, got %v", err)
	}
	if v := h.FloatOr("MISSING", 7.5); v != 7.5 {
		t.Errorf("FloatOr default = %g, want 7.5", v)
	}
}

func TestHeaderCloneIsIndependent(t *testing.T) {
	h := cubeHeader()
	c := h.Clone()
	c.Set("CRVAL1", 90.0)
	c.Delete("CDELT1")
	if v, _ := h.Float("CRVAL1"); v != 180.0 {
		t.Errorf("mutating the clone changed the original CRVAL1 to %g", v)
	}
	if !h.Has("CDELT1") {
		t.Errorf("deleting from the clone removed CDELT1 from the original")
	}
	if math.IsNaN(h.FloatOr("CDELT1", math.NaN())) {
		t.Errorf("original lost CDELT1")
	}
}
