package reproject

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"

	"skyproc/internal/fits"
	"skyproc/internal/wcs"
)

// Montage drives the Montage command line tools for the frame rotations
// a linear resampler cannot do on its own. The canvas size and binary
// names come from configuration, so a non-standard install keeps working.
type Montage struct {
	// CanvasNX/CanvasNY are the pixel dimensions of the synthetic
	// Galactic target grid.
	CanvasNX int
	CanvasNY int
	// WorkDir holds the intermediate header files.
	WorkDir string

	ProjectBin     string
	ProjectCubeBin string
	GetHdrBin      string

	// run executes one tool invocation; tests stub it out.
	run func(ctx context.Context, name string, args ...string) error
}

// NewMontage returns a runner with the given canvas, using the standard
// binary names.
func NewMontage(canvasNX, canvasNY int, workDir string) *Montage {
	m := &Montage{
		CanvasNX:       canvasNX,
		CanvasNY:       canvasNY,
		WorkDir:        workDir,
		ProjectBin:     "mProject",
		ProjectCubeBin: "mProjectCube",
		GetHdrBin:      "mGetHdr",
	}
	m.run = m.runExec
	return m
}

// IsAvailable reports whether the Montage tools can be found.
func (m *Montage) IsAvailable() bool {
	if _, err := exec.LookPath(m.ProjectBin); err != nil {
		return false
	}
	_, err := exec.LookPath(m.GetHdrBin)
	return err == nil
}

func (m *Montage) runExec(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s: %v: %s", name, err, out)
	}
	return nil
}

// galacticHeader builds the header of the synthetic Galactic TAN target
// grid for an equatorial input: the reference point is the Galactic
// position of the input's central pixel, pixel scale is carried over, and
// the reference pixel sits at the canvas centre.
func (m *Montage) galacticHeader(in *fits.Image) (*fits.Header, error) {
	w, err := wcs.New(in.Header)
	if err != nil {
		return nil, err
	}
	if w.IsGalactic() {
		return nil, fmt.Errorf("input is already Galactic (CTYPE1=%s)", w.Ctype1)
	}

	ra, dec := w.PixToWorld(float64(in.NX)/2, float64(in.NY)/2)
	l, b := wcs.EquatorialToGalactic(ra, dec)

	h := fits.NewHeader()
	h.Set("CTYPE1", "GLON-TAN")
	h.Set("CTYPE2", "GLAT-TAN")
	h.Set("CRVAL1", l)
	h.Set("CRVAL2", b)
	h.Set("CRPIX1", float64(m.CanvasNX)/2)
	h.Set("CRPIX2", float64(m.CanvasNY)/2)
	h.Set("CDELT1", in.Header.FloatOr("CDELT1", 1))
	h.Set("CDELT2", in.Header.FloatOr("CDELT2", 1))
	h.Set("CROTA1", 0.0)
	h.Set("CROTA2", 0.0)
	h.Set("CUNIT1", "deg")
	h.Set("CUNIT2", "deg")
	h.Set("EQUINOX", 2000.0)
	return h, nil
}

// writeTemplate writes a zero-filled canvas with the Galactic header,
// extracts its text header with mGetHdr, removes the canvas again and
// returns the text header path.
func (m *Montage) writeTemplate(ctx context.Context, in *fits.Image, cube bool) (string, error) {
	hdr, err := m.galacticHeader(in)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(m.WorkDir, 0o755); err != nil {
		return "", err
	}

	var canvas *fits.Image
	if cube {
		nz := in.NZ
		canvas = fits.NewCube(m.CanvasNX, m.CanvasNY, nz, hdr)
		for _, k := range []string{"CRVAL3", "CRPIX3", "CDELT3", "CTYPE3", "CUNIT3"} {
			if v, ok := in.Header.Get(k); ok {
				canvas.Header.Set(k, v)
			}
		}
	} else {
		canvas = fits.NewImage2D(m.CanvasNX, m.CanvasNY, hdr)
	}

	canvasPath := filepath.Join(m.WorkDir, "header_gal.fits")
	if err := fits.WriteFile(canvasPath, canvas); err != nil {
		return "", err
	}
	defer os.Remove(canvasPath)

	hdrPath := filepath.Join(m.WorkDir, "header_gal.hdr")
	if err := m.run(ctx, m.GetHdrBin, canvasPath, hdrPath); err != nil {
		return "", err
	}
	return hdrPath, nil
}

// EquatorialToGalactic2D reprojects an equatorial 2D FITS file onto the
// synthetic Galactic grid with mProject.
func (m *Montage) EquatorialToGalactic2D(ctx context.Context, inPath, outPath string, log *slog.Logger) error {
	in, err := fits.ReadFile(inPath)
	if err != nil {
		return err
	}
	if in.Is3D() {
		return fmt.Errorf("%s is a cube, use the cube reprojection", inPath)
	}
	hdrPath, err := m.writeTemplate(ctx, in, false)
	if err != nil {
		return err
	}
	log.Info("reprojecting to Galactic grid", "input", inPath, "canvas_nx", m.CanvasNX, "canvas_ny", m.CanvasNY)
	return m.run(ctx, m.ProjectBin, inPath, outPath, hdrPath)
}

// EquatorialToGalactic3D reprojects an equatorial cube plane by plane
// with mProjectCube, keeping the third axis untouched.
func (m *Montage) EquatorialToGalactic3D(ctx context.Context, inPath, outPath string, log *slog.Logger) error {
	in, err := fits.ReadFile(inPath)
	if err != nil {
		return err
	}
	if !in.Is3D() {
		return fmt.Errorf("%s is not a cube, use the 2D reprojection", inPath)
	}
	hdrPath, err := m.writeTemplate(ctx, in, true)
	if err != nil {
		return err
	}
	log.Info("reprojecting cube to Galactic grid", "input", inPath, "channels", in.NZ)
	return m.run(ctx, m.ProjectCubeBin, inPath, outPath, hdrPath)
}
