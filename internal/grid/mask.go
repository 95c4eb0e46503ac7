package grid

import (
	"fmt"
	"math"

	"skyproc/internal/fits"
)

// Masks are float64 arrays of 1 (keep) and NaN (reject); applying one is
// an elementwise multiplication, so rejected samples poison downstream
// arithmetic instead of silently reading as zero.

// HighLat builds a mask keeping pixels with Galactic latitude |b| >= blim
// degrees.
func HighLat(g *Grid, blim float64) ([]float64, error) {
	if g.Frame != FrameGalactic {
		return nil, fmt.Errorf("high-latitude mask needs a Galactic grid, got %s", g.Frame)
	}
	mask := make([]float64, len(g.Lat))
	for i, b := range g.Lat {
		if math.Abs(b) < blim {
			mask[i] = math.NaN()
		} else {
			mask[i] = 1
		}
	}
	return mask, nil
}

// SNRMask masks samples below snr times the noise. The noise may be a
// single value or a per-pixel array the same length as data. It returns
// the mask and the masked copy of data.
func SNRMask(data, noise []float64, snr float64) (mask, clipped []float64, err error) {
	if len(noise) != 1 && len(noise) != len(data) {
		return nil, nil, fmt.Errorf("noise length %d does not broadcast against data length %d", len(noise), len(data))
	}
	mask = make([]float64, len(data))
	for i, v := range data {
		n := noise[0]
		if len(noise) > 1 {
			n = noise[i]
		}
		if v < snr*n {
			mask[i] = math.NaN()
		} else {
			mask[i] = 1
		}
	}
	return mask, Apply(mask, data), nil
}

// SignalMask masks samples below an absolute threshold. It returns the
// mask and the masked copy of data.
func SignalMask(data []float64, threshold float64) (mask, clipped []float64) {
	mask = make([]float64, len(data))
	for i, v := range data {
		if v < threshold {
			mask[i] = math.NaN()
		} else {
			mask[i] = 1
		}
	}
	return mask, Apply(mask, data)
}

// Apply multiplies data by mask elementwise into a new slice.
func Apply(mask, data []float64) []float64 {
	out := make([]float64, len(data))
	for i := range data {
		out[i] = data[i] * mask[i]
	}
	return out
}

// MaskHighLatEQ masks an equatorial 2D image down to high Galactic
// latitudes: the image's coordinate grid is rotated into Galactic, pixels
// with |b| < blim are set to NaN.
func MaskHighLatEQ(im *fits.Image, blim float64) (*fits.Image, error) {
	g, err := EquatorialToGalactic(im)
	if err != nil {
		return nil, err
	}
	mask, err := HighLat(g, blim)
	if err != nil {
		return nil, err
	}
	out := im.Clone()
	out.Data = Apply(mask, im.Data)
	return out, nil
}
