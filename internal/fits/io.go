package fits

import (
	"fmt"
	"io"
	"math"
	"os"

	"github.com/astrogo/fitsio"
)

// reservedKeys are written by the FITS encoder itself and must not be
// appended a second time from our header copy.
var reservedKeys = map[string]bool{
	"SIMPLE": true, "BITPIX": true, "NAXIS": true,
	"NAXIS1": true, "NAXIS2": true, "NAXIS3": true, "NAXIS4": true,
	"EXTEND": true, "BSCALE": true, "BZERO": true, "BLANK": true,
	"END": true,
}

// Read decodes the primary HDU of a FITS stream into an Image. Integer
// sample types are scaled through BSCALE/BZERO and widened to float64, and
// BLANK samples become NaN.
func Read(r io.Reader) (*Image, error) {
	f, err := fitsio.Open(r)
	if err != nil {
		return nil, fmt.Errorf("open fits: %w", err)
	}
	defer f.Close()

	hdu, ok := f.HDU(0).(fitsio.Image)
	if !ok {
		return nil, fmt.Errorf("primary HDU is not an image")
	}
	hdr := hdu.Header()
	axes := hdr.Axes()
	if len(axes) < 1 || len(axes) > 3 {
		return nil, fmt.Errorf("unsupported NAXIS=%d, want 1 to 3", len(axes))
	}

	// 1D payloads (all-sky map vectors) read as a single row.
	out := &Image{Header: NewHeader(), NX: axes[0], NY: 1}
	n := axes[0]
	if len(axes) >= 2 {
		out.NY = axes[1]
		n *= axes[1]
	}
	if len(axes) == 3 {
		out.NZ = axes[2]
		n *= axes[2]
	}

	for _, key := range hdr.Keys() {
		out.Header.Set(key, hdr.Get(key).Value)
	}

	data, err := readSamples(hdu, hdr.Bitpix(), n)
	if err != nil {
		return nil, err
	}

	if hdr.Bitpix() > 0 {
		if blank, err := out.Header.Float("BLANK"); err == nil {
			for i, v := range data {
				if v == blank {
					data[i] = math.NaN()
				}
			}
		}
	}
	bscale := out.Header.FloatOr("BSCALE", 1)
	bzero := out.Header.FloatOr("BZERO", 0)
	if bscale != 1 || bzero != 0 {
		for i, v := range data {
			if !math.IsNaN(v) {
				data[i] = v*bscale + bzero
			}
		}
	}
	out.Data = data
	return out, nil
}

// readSamples reads the raw pixel payload for a given BITPIX and widens it
// to float64. Floating payloads carry NaN natively; integer payloads get
// BLANK substitution in Read.
func readSamples(hdu fitsio.Image, bitpix, n int) ([]float64, error) {
	out := make([]float64, n)
	switch bitpix {
	case 8:
		raw := make([]uint8, n)
		if err := hdu.Read(&raw); err != nil {
			return nil, fmt.Errorf("read pixels: %w", err)
		}
		for i, v := range raw {
			out[i] = float64(v)
		}
	case 16:
		raw := make([]int16, n)
		if err := hdu.Read(&raw); err != nil {
			return nil, fmt.Errorf("read pixels: %w", err)
		}
		for i, v := range raw {
			out[i] = float64(v)
		}
	case 32:
		raw := make([]int32, n)
		if err := hdu.Read(&raw); err != nil {
			return nil, fmt.Errorf("read pixels: %w", err)
		}
		for i, v := range raw {
			out[i] = float64(v)
		}
	case 64:
		raw := make([]int64, n)
		if err := hdu.Read(&raw); err != nil {
			return nil, fmt.Errorf("read pixels: %w", err)
		}
		for i, v := range raw {
			out[i] = float64(v)
		}
	case -32:
		raw := make([]float32, n)
		if err := hdu.Read(&raw); err != nil {
			return nil, fmt.Errorf("read pixels: %w", err)
		}
		for i, v := range raw {
			out[i] = float64(v)
		}
	case -64:
		if err := hdu.Read(&out); err != nil {
			return nil, fmt.Errorf("read pixels: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported BITPIX %d", bitpix)
	}
	return out, nil
}

// ReadFile decodes the primary HDU of the FITS file at path.
func ReadFile(path string) (*Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	im, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return im, nil
}

// Write encodes the image to w as the primary HDU with BITPIX -64.
func Write(w io.Writer, im *Image) error {
	f, err := fitsio.Create(w)
	if err != nil {
		return fmt.Errorf("create fits: %w", err)
	}
	defer f.Close()

	dims := []int{im.NX, im.NY}
	if im.Is3D() {
		dims = append(dims, im.NZ)
	}
	hdu := fitsio.NewImage(-64, dims)
	defer hdu.Close()

	var cards []fitsio.Card
	for _, key := range im.Header.Keys() {
		if reservedKeys[key] {
			continue
		}
		v, _ := im.Header.Get(key)
		cards = append(cards, fitsio.Card{Name: key, Value: v})
	}
	if err := hdu.Header().Append(cards...); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if err := hdu.Write(im.Data); err != nil {
		return fmt.Errorf("write pixels: %w", err)
	}
	return f.Write(hdu)
}

// WriteFile encodes the image to a FITS file at path, replacing any
// existing file.
func WriteFile(path string, im *Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Write(f, im); err != nil {
		f.Close()
		return fmt.Errorf("%s: %w", path, err)
	}
	return f.Close()
}
