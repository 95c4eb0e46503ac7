package ops

import (
	"math"
	"testing"

	"skyproc/internal/fits"
)

func TestMaskInterpFillsInterior(t *testing.T) {
	im := fits.NewImage2D(10, 10, nil)
	mask := make([]float64, 100)
	for i := range im.Data {
		im.Data[i] = 7
		mask[i] = 1
	}
	// punch a hole in the middle
	for _, p := range [][2]int{{4, 4}, {5, 4}, {4, 5}, {5, 5}} {
		i := p[1]*10 + p[0]
		mask[i] = math.NaN()
	}

	out, err := MaskInterp(im, mask)
	if err != nil {
		t.Fatalf("MaskInterp: %v", err)
	}
	for _, p := range [][2]int{{4, 4}, {5, 4}, {4, 5}, {5, 5}} {
		if v := out.At(p[0], p[1]); math.Abs(v-7) > 1e-12 {
			t.Errorf("hole pixel (%d,%d) = %g, want 7", p[0], p[1], v)
		}
	}
	// valid pixels pass through untouched
	if out.At(0, 0) != 7 || out.At(9, 9) != 7 {
		t.Errorf("valid pixels must keep their values")
	}
}

func TestMaskInterpKeepsExactValidValues(t *testing.T) {
	im := fits.NewImage2D(8, 8, nil)
	mask := make([]float64, 64)
	for i := range im.Data {
		im.Data[i] = float64(i)
		mask[i] = 1
	}
	mask[3*8+3] = math.NaN()

	out, err := MaskInterp(im, mask)
	if err != nil {
		t.Fatalf("MaskInterp: %v", err)
	}
	for i := range out.Data {
		if i == 3*8+3 {
			continue
		}
		if out.Data[i] != im.Data[i] {
			t.Errorf("valid pixel %d changed: %g -> %g", i, im.Data[i], out.Data[i])
		}
	}
	if math.IsNaN(out.Data[3*8+3]) {
		t.Errorf("interior hole should be filled")
	}
}

func TestMaskInterpLeavesOutsideHullNaN(t *testing.T) {
	// valid samples only in the left half; the right edge falls outside
	// their convex hull and must stay NaN
	im := fits.NewImage2D(10, 10, nil)
	mask := make([]float64, 100)
	for y := 0; y < 10; y++ {
		for x := 0; x < 10; x++ {
			i := y*10 + x
			if x < 5 {
				im.Data[i] = 1
				mask[i] = 1
			} else {
				im.Data[i] = math.NaN()
				mask[i] = math.NaN()
			}
		}
	}
	out, err := MaskInterp(im, mask)
	if err != nil {
		t.Fatalf("MaskInterp: %v", err)
	}
	if !math.IsNaN(out.At(9, 5)) {
		t.Errorf("pixel outside the hull was filled with %g", out.At(9, 5))
	}
	if out.At(2, 5) != 1 {
		t.Errorf("valid pixel lost its value")
	}
}

func TestMaskInterpNeedsEnoughSamples(t *testing.T) {
	im := fits.NewImage2D(3, 3, nil)
	mask := make([]float64, 9)
	for i := range mask {
		mask[i] = math.NaN()
	}
	mask[0] = 1
	mask[1] = 1
	if _, err := MaskInterp(im, mask); err == nil {
		t.Fatal("expected an error with fewer than 3 valid samples")
	}
}

func TestMaskInterpRejectsLengthMismatch(t *testing.T) {
	im := fits.NewImage2D(4, 4, nil)
	if _, err := MaskInterp(im, make([]float64, 5)); err == nil {
		t.Fatal("expected a length mismatch error")
	}
}
