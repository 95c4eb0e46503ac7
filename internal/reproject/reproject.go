// Package reproject resamples images between world coordinate systems:
// native Go interpolation between compatible 2D headers, HEALPix all-sky
// maps onto flat targets, and equatorial-to-Galactic runs delegated to the
// Montage tools.
package reproject

import (
	"errors"
	"math"

	"skyproc/internal/fits"
	"skyproc/internal/wcs"
)

// Result pairs reprojected data with its footprint: 1 where the template
// pixel was covered by the source image, 0 where it fell outside.
type Result struct {
	Data      *fits.Image
	Footprint []float64
}

// Reproject2D resamples a 2D source image onto the pixel grid of a 2D
// template header. Both headers must express the same celestial frame;
// each template pixel is pushed through the template WCS to the sky and
// back through the source WCS, then sampled at the requested order.
//
// With clean set, both headers are stripped to their minimal WCS keyword
// set before the transforms are built.
func Reproject2D(src, tmpl *fits.Image, clean bool, order fits.InterpOrder) (*Result, error) {
	if src.Is3D() || tmpl.Is3D() {
		return nil, errors.New("reproject expects 2D images")
	}

	srcHdr, tmplHdr := src.Header, tmpl.Header
	if clean {
		srcHdr = fits.MinimalWCS(srcHdr)
		tmplHdr = fits.MinimalWCS(tmplHdr)
	}
	srcW, err := wcs.New(srcHdr)
	if err != nil {
		return nil, err
	}
	tmplW, err := wcs.New(tmplHdr)
	if err != nil {
		return nil, err
	}
	if srcW.IsGalactic() != tmplW.IsGalactic() {
		return nil, errors.New("source and template are in different frames")
	}

	out := fits.NewImage2D(tmpl.NX, tmpl.NY, tmplHdr.Clone())
	fp := make([]float64, tmpl.NX*tmpl.NY)

	for y := 0; y < tmpl.NY; y++ {
		for x := 0; x < tmpl.NX; x++ {
			i := y*tmpl.NX + x
			lon, lat := tmplW.PixToWorld(float64(x), float64(y))
			sx, sy, ok := srcW.WorldToPix(lon, lat)
			if !ok {
				out.Data[i] = math.NaN()
				continue
			}
			v, ok := src.SampleAt(sx, sy, order)
			if !ok {
				out.Data[i] = math.NaN()
				continue
			}
			out.Data[i] = v
			fp[i] = 1
		}
	}
	return &Result{Data: out, Footprint: fp}, nil
}

// FootprintImage wraps a footprint in an image carrying the given header,
// for writing alongside the data product.
func FootprintImage(r *Result) *fits.Image {
	im := fits.NewImage2D(r.Data.NX, r.Data.NY, r.Data.Header.Clone())
	copy(im.Data, r.Footprint)
	return im
}
