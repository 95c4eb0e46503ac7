package ops

import "gonum.org/v1/gonum/dsp/fourier"

// fft2InPlace runs an unnormalised 2D FFT over a flat row-major grid,
// rows then columns. With forward false it runs the inverse transform;
// a forward/inverse round trip scales by h*w.
func fft2InPlace(a []complex128, w, h int, forward bool) {
	rowFFT := fourier.NewCmplxFFT(w)
	colFFT := fourier.NewCmplxFFT(h)

	for y := 0; y < h; y++ {
		row := a[y*w : (y+1)*w]
		if forward {
			rowFFT.Coefficients(row, row)
		} else {
			rowFFT.Sequence(row, row)
		}
	}

	col := make([]complex128, h)
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			col[y] = a[y*w+x]
		}
		if forward {
			colFFT.Coefficients(col, col)
		} else {
			colFFT.Sequence(col, col)
		}
		for y := 0; y < h; y++ {
			a[y*w+x] = col[y]
		}
	}
}

// convolveSameFFT convolves a nx*ny image with a centered nx*ny kernel via
// FFT and returns the central nx*ny crop of the linear convolution.
func convolveSameFFT(img, kernel []float64, nx, ny int) []float64 {
	fw := nextPow2(2*nx - 1)
	fh := nextPow2(2*ny - 1)

	a := make([]complex128, fw*fh)
	b := make([]complex128, fw*fh)
	for y := 0; y < ny; y++ {
		for x := 0; x < nx; x++ {
			a[y*fw+x] = complex(img[y*nx+x], 0)
		}
	}
	for y := 0; y < ny; y++ {
		for x := 0; x < nx; x++ {
			b[y*fw+x] = complex(kernel[y*nx+x], 0)
		}
	}

	fft2InPlace(a, fw, fh, true)
	fft2InPlace(b, fw, fh, true)
	for i := range a {
		a[i] *= b[i]
	}
	fft2InPlace(a, fw, fh, false)

	// The kernel peak sits at ((nx-1)/2, (ny-1)/2), so the central crop of
	// the full linear convolution starts there.
	scale := float64(fw * fh)
	offX, offY := (nx-1)/2, (ny-1)/2
	out := make([]float64, nx*ny)
	for y := 0; y < ny; y++ {
		for x := 0; x < nx; x++ {
			out[y*nx+x] = real(a[(y+offY)*fw+x+offX]) / scale
		}
	}
	return out
}

func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}
