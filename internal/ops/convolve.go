// Package ops holds the pixel-level image operations: Gaussian smoothing,
// gradient magnitude, cube reductions, angle folding and mask filling.
package ops

import (
	"errors"
	"fmt"
	"math"

	"skyproc/internal/fits"
)

// ErrResolutionOrder is returned when the requested resolution is finer
// than the one the image already has.
var ErrResolutionOrder = errors.New("target resolution is finer than current resolution")

// fwhmToSigma converts a Gaussian FWHM to its standard deviation.
var fwhmToSigma = 1 / (2 * math.Sqrt(2*math.Ln2))

// KernelMethod selects how missing (NaN) samples enter the smoothing
// convolution.
type KernelMethod int

const (
	// KernelZeroFill treats NaN samples as zero signal.
	KernelZeroFill KernelMethod = iota
	// KernelInterp renormalises by the local coverage, so NaN holes are
	// filled from their smoothed surroundings.
	KernelInterp
)

// ParseKernelMethod maps a config/flag string to a KernelMethod.
func ParseKernelMethod(s string) (KernelMethod, error) {
	switch s {
	case "zerofill", "zero-fill":
		return KernelZeroFill, nil
	case "interpolate", "interp":
		return KernelInterp, nil
	}
	return 0, fmt.Errorf("unknown kernel method %q", s)
}

func (m KernelMethod) String() string {
	if m == KernelInterp {
		return "interpolate"
	}
	return "zerofill"
}

// gaussianWindow returns an n-point Gaussian window with the given
// standard deviation, centred at (n-1)/2.
func gaussianWindow(n int, std float64) []float64 {
	out := make([]float64, n)
	c := float64(n-1) / 2
	for i := range out {
		t := (float64(i) - c) / std
		out[i] = math.Exp(-0.5 * t * t)
	}
	return out
}

// Convolve smooths a 2D image from an angular resolution of oldres to
// newres (both Gaussian FWHM in arcminutes). The smoothing kernel FWHM is
// the quadrature difference of the two, converted to pixels through the
// CDELT2 pixel scale. The kernel spans the full image and is normalised
// to unit sum.
//
// newres equal to oldres returns an unchanged copy; newres below oldres
// is an error, since deconvolution is out of scope.
func Convolve(im *fits.Image, oldres, newres float64, method KernelMethod) (*fits.Image, error) {
	if im.Is3D() {
		return nil, errors.New("convolve expects a 2D image")
	}
	if newres < oldres {
		return nil, fmt.Errorf("%w: have %g arcmin, want %g arcmin", ErrResolutionOrder, oldres, newres)
	}
	if newres == oldres {
		return im.Clone(), nil
	}

	cdelt2, err := im.Header.Float("CDELT2")
	if err != nil {
		return nil, err
	}
	pixPerArcmin := 1 / (math.Abs(cdelt2) * 60)

	oldSigma := oldres * fwhmToSigma
	newSigma := newres * fwhmToSigma
	kernelSigmaPix := math.Sqrt(newSigma*newSigma-oldSigma*oldSigma) * pixPerArcmin

	nx, ny := im.NX, im.NY
	kx := gaussianWindow(nx, kernelSigmaPix)
	ky := gaussianWindow(ny, kernelSigmaPix)
	kernel := make([]float64, nx*ny)
	var ksum float64
	for y := 0; y < ny; y++ {
		for x := 0; x < nx; x++ {
			v := ky[y] * kx[x]
			kernel[y*nx+x] = v
			ksum += v
		}
	}
	for i := range kernel {
		kernel[i] /= ksum
	}

	out := im.Clone()
	switch method {
	case KernelZeroFill:
		filled := make([]float64, len(im.Data))
		for i, v := range im.Data {
			if !math.IsNaN(v) {
				filled[i] = v
			}
		}
		out.Data = convolveSameFFT(filled, kernel, nx, ny)
	case KernelInterp:
		filled := make([]float64, len(im.Data))
		weight := make([]float64, len(im.Data))
		for i, v := range im.Data {
			if !math.IsNaN(v) {
				filled[i] = v
				weight[i] = 1
			}
		}
		num := convolveSameFFT(filled, kernel, nx, ny)
		den := convolveSameFFT(weight, kernel, nx, ny)
		res := make([]float64, len(num))
		for i := range num {
			if den[i] < 1e-12 {
				res[i] = math.NaN()
			} else {
				res[i] = num[i] / den[i]
			}
		}
		out.Data = res
	default:
		return nil, fmt.Errorf("unknown kernel method %d", method)
	}
	return out, nil
}
