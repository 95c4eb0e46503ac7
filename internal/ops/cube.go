package ops

import (
	"errors"
	"fmt"
	"math"
	"path/filepath"

	"skyproc/internal/fits"
	"skyproc/internal/fsutil"
)

// CubeMean averages a 3D cube along its third axis, ignoring NaN samples.
// A pixel with no finite samples stays NaN. The result carries the cube's
// header reduced to two dimensions.
func CubeMean(cube *fits.Image) (*fits.Image, error) {
	if !cube.Is3D() {
		return nil, errors.New("cube mean expects a 3D cube")
	}
	out := fits.NewImage2D(cube.NX, cube.NY, fits.To2D(cube.Header))
	for y := 0; y < cube.NY; y++ {
		for x := 0; x < cube.NX; x++ {
			var sum float64
			var n int
			for z := 0; z < cube.NZ; z++ {
				v := cube.At3(x, y, z)
				if !math.IsNaN(v) {
					sum += v
					n++
				}
			}
			if n == 0 {
				out.SetAt(x, y, math.NaN())
			} else {
				out.SetAt(x, y, sum/float64(n))
			}
		}
	}
	return out, nil
}

// Slice is one channel map extracted from a cube.
type Slice struct {
	// Index is the 0-based position along the third axis.
	Index int
	// Value is the third-axis coordinate of the channel in native units.
	Value float64
	Image *fits.Image
}

// CubeSlicer walks the channels of a 3D cube one at a time. Each channel
// plane is materialised lazily on Next, and Reset rewinds to the first
// channel.
type CubeSlicer struct {
	cube *fits.Image
	axis []float64
	hdr  *fits.Header
	next int
}

// NewCubeSlicer builds a slicer over the cube's third axis.
func NewCubeSlicer(cube *fits.Image) (*CubeSlicer, error) {
	if !cube.Is3D() {
		return nil, errors.New("slicer expects a 3D cube")
	}
	axis, err := fits.FreqAxis(cube.Header)
	if err != nil {
		return nil, err
	}
	return &CubeSlicer{
		cube: cube,
		axis: axis,
		hdr:  fits.To2D(cube.Header),
	}, nil
}

// Len returns the number of channels.
func (s *CubeSlicer) Len() int { return len(s.axis) }

// Next returns the next channel. ok is false once the cube is exhausted.
func (s *CubeSlicer) Next() (sl Slice, ok bool) {
	if s.next >= len(s.axis) {
		return Slice{}, false
	}
	z := s.next
	s.next++

	im := fits.NewImage2D(s.cube.NX, s.cube.NY, s.hdr.Clone())
	copy(im.Data, s.cube.Plane(z))
	return Slice{Index: z, Value: s.axis[z], Image: im}, true
}

// Reset rewinds the slicer to the first channel.
func (s *CubeSlicer) Reset() { s.next = 0 }

// SliceToDir writes every channel of a cube as its own 2D FITS file under
// dir. File names follow <base>_<value>_<units>.fits where the third-axis
// value is scaled from native units to kilo-units (m/s to km/s for the
// usual velocity cubes). It returns the written paths in channel order.
func SliceToDir(cube *fits.Image, dir, base, units string) ([]string, error) {
	s, err := NewCubeSlicer(cube)
	if err != nil {
		return nil, err
	}
	if err := fsutil.EnsureDir(dir); err != nil {
		return nil, err
	}
	paths := make([]string, 0, s.Len())
	for {
		sl, ok := s.Next()
		if !ok {
			break
		}
		name := fmt.Sprintf("%s_%g_%s.fits", base, sl.Value*1e-3, units)
		path := filepath.Join(dir, name)
		if err := fits.WriteFile(path, sl.Image); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}
