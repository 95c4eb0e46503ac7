// Package grid builds per-pixel world coordinate grids and the NaN-style
// masks derived from them.
package grid

import (
	"fmt"

	"skyproc/internal/fits"
	"skyproc/internal/wcs"
)

// Frame labels the celestial frame a grid's coordinates are expressed in.
type Frame string

const (
	FrameEquatorial Frame = "fk5"
	FrameGalactic   Frame = "galactic"
)

// Grid holds per-pixel longitude and latitude in degrees, row-major,
// matching the layout of the image it was derived from.
type Grid struct {
	NX, NY   int
	Lon, Lat []float64
	Frame    Frame
}

// At returns the coordinates of 0-based pixel (x, y).
func (g *Grid) At(x, y int) (lon, lat float64) {
	i := y*g.NX + x
	return g.Lon[i], g.Lat[i]
}

// fromWCS evaluates the transform at every pixel center. Grid positions
// are offset half a pixel below the integer indices, matching the
// pixel-center sampling convention used throughout.
func fromWCS(w *wcs.WCS, nx, ny int, frame Frame) *Grid {
	g := &Grid{
		NX:    nx,
		NY:    ny,
		Lon:   make([]float64, nx*ny),
		Lat:   make([]float64, nx*ny),
		Frame: frame,
	}
	for y := 0; y < ny; y++ {
		for x := 0; x < nx; x++ {
			lon, lat := w.PixToWorld(float64(x)-0.5, float64(y)-0.5)
			i := y*nx + x
			g.Lon[i] = lon
			g.Lat[i] = lat
		}
	}
	return g
}

func build(im *fits.Image, want Frame) (*Grid, error) {
	w, err := wcs.New(im.Header)
	if err != nil {
		return nil, err
	}
	have := FrameEquatorial
	if w.IsGalactic() {
		have = FrameGalactic
	}
	if have != want {
		return nil, fmt.Errorf("grid: header is %s, want %s (CTYPE1=%s)", have, want, w.Ctype1)
	}
	return fromWCS(w, im.NX, im.NY, want), nil
}

// Equatorial builds an (ra, dec) grid from an equatorial header.
func Equatorial(im *fits.Image) (*Grid, error) {
	return build(im, FrameEquatorial)
}

// Galactic builds an (l, b) grid from a Galactic header.
func Galactic(im *fits.Image) (*Grid, error) {
	return build(im, FrameGalactic)
}

// EquatorialToGalactic builds the native equatorial grid of an
// equatorial image and rotates it into Galactic coordinates.
func EquatorialToGalactic(im *fits.Image) (*Grid, error) {
	g, err := Equatorial(im)
	if err != nil {
		return nil, err
	}
	out := &Grid{
		NX:    g.NX,
		NY:    g.NY,
		Lon:   make([]float64, len(g.Lon)),
		Lat:   make([]float64, len(g.Lat)),
		Frame: FrameGalactic,
	}
	for i := range g.Lon {
		out.Lon[i], out.Lat[i] = wcs.EquatorialToGalactic(g.Lon[i], g.Lat[i])
	}
	return out, nil
}

// GalacticToEquatorial builds the native Galactic grid of a Galactic
// image and rotates it into fk5 coordinates.
func GalacticToEquatorial(im *fits.Image) (*Grid, error) {
	g, err := Galactic(im)
	if err != nil {
		return nil, err
	}
	out := &Grid{
		NX:    g.NX,
		NY:    g.NY,
		Lon:   make([]float64, len(g.Lon)),
		Lat:   make([]float64, len(g.Lat)),
		Frame: FrameEquatorial,
	}
	for i := range g.Lon {
		out.Lon[i], out.Lat[i] = wcs.GalacticToEquatorial(g.Lon[i], g.Lat[i])
	}
	return out, nil
}
