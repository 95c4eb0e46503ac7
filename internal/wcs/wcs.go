// Package wcs implements the subset of the FITS world coordinate system
// needed here: linear celestial axes and the gnomonic (TAN) projection,
// with the classic CROTA2 rotation convention.
package wcs

import (
	"fmt"
	"math"
	"strings"

	"skyproc/internal/fits"
)

const degPerRad = 180 / math.Pi

// WCS maps between 0-based pixel coordinates and world coordinates in
// degrees for a 2D celestial header.
type WCS struct {
	Ctype1, Ctype2 string
	crpix1, crpix2 float64
	crval1, crval2 float64
	cdelt1, cdelt2 float64
	crota2         float64

	// linear transform pixel offsets -> intermediate coords, and inverse
	cd11, cd12, cd21, cd22     float64
	inv11, inv12, inv21, inv22 float64

	tan bool
}

// New builds a WCS from the first two axes of a header. CROTA2 defaults
// to zero and CDELT to 1 when absent, matching common minimal headers.
func New(h *fits.Header) (*WCS, error) {
	w := &WCS{}
	var err error
	if w.crval1, err = h.Float("CRVAL1"); err != nil {
		return nil, err
	}
	if w.crval2, err = h.Float("CRVAL2"); err != nil {
		return nil, err
	}
	if w.crpix1, err = h.Float("CRPIX1"); err != nil {
		return nil, err
	}
	if w.crpix2, err = h.Float("CRPIX2"); err != nil {
		return nil, err
	}
	w.cdelt1 = h.FloatOr("CDELT1", 1)
	w.cdelt2 = h.FloatOr("CDELT2", 1)
	w.crota2 = h.FloatOr("CROTA2", 0)
	w.Ctype1, _ = h.String("CTYPE1")
	w.Ctype2, _ = h.String("CTYPE2")

	w.tan = strings.HasSuffix(w.Ctype1, "-TAN")

	rho := w.crota2 / degPerRad
	cr, sr := math.Cos(rho), math.Sin(rho)
	w.cd11 = w.cdelt1 * cr
	w.cd12 = -w.cdelt2 * sr
	w.cd21 = w.cdelt1 * sr
	w.cd22 = w.cdelt2 * cr

	det := w.cd11*w.cd22 - w.cd12*w.cd21
	if det == 0 {
		return nil, fmt.Errorf("wcs: singular linear transform (CDELT1=%g CDELT2=%g)", w.cdelt1, w.cdelt2)
	}
	w.inv11 = w.cd22 / det
	w.inv12 = -w.cd12 / det
	w.inv21 = -w.cd21 / det
	w.inv22 = w.cd11 / det
	return w, nil
}

// IsGalactic reports whether the longitude axis carries Galactic
// coordinates.
func (w *WCS) IsGalactic() bool {
	return strings.HasPrefix(w.Ctype1, "GLON")
}

// PixToWorld converts a 0-based pixel position to world coordinates in
// degrees.
func (w *WCS) PixToWorld(x, y float64) (lon, lat float64) {
	// FITS pixel indices are 1-based.
	u := x + 1 - w.crpix1
	v := y + 1 - w.crpix2
	xi := w.cd11*u + w.cd12*v
	eta := w.cd21*u + w.cd22*v
	if !w.tan {
		return w.crval1 + xi, w.crval2 + eta
	}
	return w.tanToWorld(xi, eta)
}

// WorldToPix converts world coordinates in degrees to a 0-based pixel
// position. ok is false when the position cannot be projected.
func (w *WCS) WorldToPix(lon, lat float64) (x, y float64, ok bool) {
	var xi, eta float64
	if w.tan {
		xi, eta, ok = w.worldToTan(lon, lat)
		if !ok {
			return math.NaN(), math.NaN(), false
		}
	} else {
		xi = lon - w.crval1
		eta = lat - w.crval2
	}
	u := w.inv11*xi + w.inv12*eta
	v := w.inv21*xi + w.inv22*eta
	return u + w.crpix1 - 1, v + w.crpix2 - 1, true
}

// tanToWorld deprojects gnomonic intermediate coordinates (degrees) onto
// the sphere around the reference point.
func (w *WCS) tanToWorld(xi, eta float64) (lon, lat float64) {
	// native spherical coordinates
	r := math.Hypot(xi, eta)
	var theta float64
	if r == 0 {
		theta = math.Pi / 2
	} else {
		theta = math.Atan(degPerRad / r)
	}
	phi := math.Atan2(xi/degPerRad, -eta/degPerRad)

	// rotate to celestial; the reference point sits at the native pole
	// with LONPOLE 180 deg.
	dp := w.crval2 / degPerRad
	sinT, cosT := math.Sin(theta), math.Cos(theta)
	sinDp, cosDp := math.Sin(dp), math.Cos(dp)
	dphi := phi - math.Pi

	sinLat := sinT*sinDp + cosT*cosDp*math.Cos(dphi)
	lat = math.Asin(sinLat) * degPerRad
	dlon := math.Atan2(-cosT*math.Sin(dphi), sinT*cosDp-cosT*sinDp*math.Cos(dphi))
	lon = w.crval1 + dlon*degPerRad
	for lon < 0 {
		lon += 360
	}
	for lon >= 360 {
		lon -= 360
	}
	return lon, lat
}

// worldToTan projects world coordinates onto the gnomonic tangent plane.
func (w *WCS) worldToTan(lon, lat float64) (xi, eta float64, ok bool) {
	a := lon / degPerRad
	d := lat / degPerRad
	a0 := w.crval1 / degPerRad
	d0 := w.crval2 / degPerRad

	sinD, cosD := math.Sin(d), math.Cos(d)
	sinD0, cosD0 := math.Sin(d0), math.Cos(d0)
	cosDa := math.Cos(a - a0)

	sinT := sinD*sinD0 + cosD*cosD0*cosDa
	if sinT <= 0 {
		// more than 90 degrees from the tangent point
		return 0, 0, false
	}
	xi = degPerRad * cosD * math.Sin(a-a0) / sinT
	eta = degPerRad * (sinD*cosD0 - cosD*sinD0*cosDa) / sinT
	return xi, eta, true
}
