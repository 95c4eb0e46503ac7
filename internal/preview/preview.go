// Package preview renders PNG quicklooks of FITS images with a
// quantile-based grey stretch.
package preview

import (
	"errors"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"sort"

	"golang.org/x/image/draw"
	"gonum.org/v1/gonum/stat"

	"skyproc/internal/config"
	"skyproc/internal/fits"
)

// Render maps an image onto an 8-bit greyscale picture. The stretch runs
// between the qlo and qhi quantiles of the finite samples, NaN renders
// black, and the vertical axis is flipped so the first FITS row ends up
// at the bottom. Cubes render their first channel. When maxDim is set and
// the picture is larger, it is scaled down with Catmull-Rom resampling.
func Render(im *fits.Image, maxDim int, qlo, qhi float64) (image.Image, error) {
	data := im.Data
	if im.Is3D() {
		data = im.Plane(0)
	}

	finite := make([]float64, 0, len(data))
	for _, v := range data {
		if !math.IsNaN(v) {
			finite = append(finite, v)
		}
	}
	if len(finite) == 0 {
		return nil, errors.New("no finite samples to render")
	}
	sort.Float64s(finite)
	lo := stat.Quantile(qlo, stat.Empirical, finite, nil)
	hi := stat.Quantile(qhi, stat.Empirical, finite, nil)
	if hi <= lo {
		hi = lo + 1
	}

	out := image.NewGray(image.Rect(0, 0, im.NX, im.NY))
	for y := 0; y < im.NY; y++ {
		for x := 0; x < im.NX; x++ {
			v := data[y*im.NX+x]
			var g uint8
			if !math.IsNaN(v) {
				t := (v - lo) / (hi - lo)
				if t < 0 {
					t = 0
				}
				if t > 1 {
					t = 1
				}
				g = uint8(t*254 + 1)
			}
			out.SetGray(x, im.NY-1-y, color.Gray{Y: g})
		}
	}

	if maxDim > 0 && (im.NX > maxDim || im.NY > maxDim) {
		scale := float64(maxDim) / float64(im.NX)
		if im.NY > im.NX {
			scale = float64(maxDim) / float64(im.NY)
		}
		w := int(float64(im.NX) * scale)
		h := int(float64(im.NY) * scale)
		small := image.NewGray(image.Rect(0, 0, w, h))
		draw.CatmullRom.Scale(small, small.Bounds(), out, out.Bounds(), draw.Src, nil)
		return small, nil
	}
	return out, nil
}

// WriteFile renders a quicklook and writes it as PNG to path.
func WriteFile(im *fits.Image, path string, cfg config.PreviewConfig) error {
	pic, err := Render(im, cfg.MaxDim, cfg.QuantLow, cfg.QuantHigh)
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, pic); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
