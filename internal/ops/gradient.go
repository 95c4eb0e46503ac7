package ops

import (
	"errors"
	"math"

	"skyproc/internal/fits"
)

// Gradient computes per-pixel partial derivatives of a 2D image using
// central differences in the interior and one-sided differences at the
// edges, plus the gradient magnitude. NaN samples propagate into every
// difference they touch.
func Gradient(im *fits.Image) (gx, gy, mag *fits.Image, err error) {
	if im.Is3D() {
		return nil, nil, nil, errors.New("gradient expects a 2D image")
	}
	nx, ny := im.NX, im.NY
	if nx < 2 || ny < 2 {
		return nil, nil, nil, errors.New("gradient needs at least 2 pixels per axis")
	}

	gx = im.Clone()
	gy = im.Clone()
	mag = im.Clone()

	for y := 0; y < ny; y++ {
		for x := 0; x < nx; x++ {
			var dx float64
			switch {
			case x == 0:
				dx = im.At(1, y) - im.At(0, y)
			case x == nx-1:
				dx = im.At(nx-1, y) - im.At(nx-2, y)
			default:
				dx = (im.At(x+1, y) - im.At(x-1, y)) / 2
			}
			var dy float64
			switch {
			case y == 0:
				dy = im.At(x, 1) - im.At(x, 0)
			case y == ny-1:
				dy = im.At(x, ny-1) - im.At(x, ny-2)
			default:
				dy = (im.At(x, y+1) - im.At(x, y-1)) / 2
			}
			gx.SetAt(x, y, dx)
			gy.SetAt(x, y, dy)
			mag.SetAt(x, y, math.Hypot(dx, dy))
		}
	}
	return gx, gy, mag, nil
}
