package fits

import (
	"fmt"
	"math"
)

// Image holds a 2D image or a 3D cube in row-major order, plane-major for
// cubes, with all samples widened to float64. NZ is 0 for 2D images.
type Image struct {
	Header *Header
	Data   []float64
	NX, NY int
	NZ     int
}

// NewImage2D allocates a 2D image of the given size. The header gains the
// matching NAXIS keywords.
func NewImage2D(nx, ny int, hdr *Header) *Image {
	if hdr == nil {
		hdr = NewHeader()
	}
	hdr.Set("NAXIS", 2)
	hdr.Set("NAXIS1", nx)
	hdr.Set("NAXIS2", ny)
	return &Image{
		Header: hdr,
		Data:   make([]float64, nx*ny),
		NX:     nx,
		NY:     ny,
	}
}

// NewCube allocates a 3D cube of the given size.
func NewCube(nx, ny, nz int, hdr *Header) *Image {
	if hdr == nil {
		hdr = NewHeader()
	}
	hdr.Set("NAXIS", 3)
	hdr.Set("NAXIS1", nx)
	hdr.Set("NAXIS2", ny)
	hdr.Set("NAXIS3", nz)
	return &Image{
		Header: hdr,
		Data:   make([]float64, nx*ny*nz),
		NX:     nx,
		NY:     ny,
		NZ:     nz,
	}
}

// Is3D reports whether the image carries a third axis.
func (im *Image) Is3D() bool { return im.NZ > 0 }

// At returns the sample at 0-based pixel (x, y) of a 2D image.
func (im *Image) At(x, y int) float64 {
	return im.Data[y*im.NX+x]
}

// SetAt stores the sample at 0-based pixel (x, y) of a 2D image.
func (im *Image) SetAt(x, y int, v float64) {
	im.Data[y*im.NX+x] = v
}

// At3 returns the sample at 0-based voxel (x, y, z) of a cube.
func (im *Image) At3(x, y, z int) float64 {
	return im.Data[(z*im.NY+y)*im.NX+x]
}

// Plane returns the z-th plane of a cube as a slice sharing the cube's
// backing array.
func (im *Image) Plane(z int) []float64 {
	n := im.NX * im.NY
	return im.Data[z*n : (z+1)*n]
}

// Clone returns a deep copy of the image.
func (im *Image) Clone() *Image {
	out := &Image{
		Header: im.Header.Clone(),
		Data:   append([]float64(nil), im.Data...),
		NX:     im.NX,
		NY:     im.NY,
		NZ:     im.NZ,
	}
	return out
}

// SampleAt returns the sample at a fractional 0-based pixel position using
// the given interpolation order. ok is false when the position falls outside
// the image or the needed neighbours are unavailable.
func (im *Image) SampleAt(x, y float64, order InterpOrder) (v float64, ok bool) {
	switch order {
	case InterpNearest:
		return im.sampleNearest(x, y)
	case InterpBilinear:
		return im.sampleBilinear(x, y)
	case InterpBiquadratic:
		return im.sampleLagrange3(x, y)
	case InterpBicubic:
		return im.sampleCatmullRom(x, y)
	}
	return math.NaN(), false
}

// InterpOrder selects the resampling kernel used when an image is evaluated
// at fractional pixel positions.
type InterpOrder int

const (
	InterpNearest InterpOrder = iota
	InterpBilinear
	InterpBiquadratic
	InterpBicubic
)

// ParseInterpOrder maps the conventional order names to an InterpOrder.
func ParseInterpOrder(s string) (InterpOrder, error) {
	switch s {
	case "nearest-neighbor", "nearest":
		return InterpNearest, nil
	case "bilinear":
		return InterpBilinear, nil
	case "biquadratic":
		return InterpBiquadratic, nil
	case "bicubic":
		return InterpBicubic, nil
	}
	return 0, fmt.Errorf("unknown interpolation order %q", s)
}

func (s InterpOrder) String() string {
	switch s {
	case InterpNearest:
		return "nearest-neighbor"
	case InterpBilinear:
		return "bilinear"
	case InterpBiquadratic:
		return "biquadratic"
	case InterpBicubic:
		return "bicubic"
	}
	return fmt.Sprintf("InterpOrder(%d)", int(s))
}

func (im *Image) sampleNearest(x, y float64) (float64, bool) {
	xi := int(math.Round(x))
	yi := int(math.Round(y))
	if xi < 0 || xi >= im.NX || yi < 0 || yi >= im.NY {
		return math.NaN(), false
	}
	return im.At(xi, yi), true
}

func (im *Image) sampleBilinear(x, y float64) (float64, bool) {
	x0 := int(math.Floor(x))
	y0 := int(math.Floor(y))
	if x0 < 0 || x0+1 >= im.NX || y0 < 0 || y0+1 >= im.NY {
		return im.sampleNearest(x, y)
	}
	fx := x - float64(x0)
	fy := y - float64(y0)
	v00 := im.At(x0, y0)
	v10 := im.At(x0+1, y0)
	v01 := im.At(x0, y0+1)
	v11 := im.At(x0+1, y0+1)
	top := v00*(1-fx) + v10*fx
	bot := v01*(1-fx) + v11*fx
	return top*(1-fy) + bot*fy, true
}

// sampleLagrange3 evaluates a 3x3 Lagrange (quadratic) stencil centred on
// the nearest pixel.
func (im *Image) sampleLagrange3(x, y float64) (float64, bool) {
	xc := int(math.Round(x))
	yc := int(math.Round(y))
	if xc < 1 || xc+1 >= im.NX || yc < 1 || yc+1 >= im.NY {
		return im.sampleBilinear(x, y)
	}
	tx := x - float64(xc)
	ty := y - float64(yc)
	wx := quadWeights(tx)
	wy := quadWeights(ty)
	var sum float64
	for j := 0; j < 3; j++ {
		for i := 0; i < 3; i++ {
			sum += wy[j] * wx[i] * im.At(xc+i-1, yc+j-1)
		}
	}
	return sum, true
}

func quadWeights(t float64) [3]float64 {
	return [3]float64{
		0.5 * t * (t - 1),
		1 - t*t,
		0.5 * t * (t + 1),
	}
}

// sampleCatmullRom evaluates a 4x4 Catmull-Rom cubic stencil.
func (im *Image) sampleCatmullRom(x, y float64) (float64, bool) {
	x0 := int(math.Floor(x))
	y0 := int(math.Floor(y))
	if x0 < 1 || x0+2 >= im.NX || y0 < 1 || y0+2 >= im.NY {
		return im.sampleBilinear(x, y)
	}
	fx := x - float64(x0)
	fy := y - float64(y0)
	wx := cubicWeights(fx)
	wy := cubicWeights(fy)
	var sum float64
	for j := 0; j < 4; j++ {
		for i := 0; i < 4; i++ {
			sum += wy[j] * wx[i] * im.At(x0+i-1, y0+j-1)
		}
	}
	return sum, true
}

func cubicWeights(t float64) [4]float64 {
	t2 := t * t
	t3 := t2 * t
	return [4]float64{
		0.5 * (-t3 + 2*t2 - t),
		0.5 * (3*t3 - 5*t2 + 2),
		0.5 * (-3*t3 + 4*t2 + t),
		0.5 * (t3 - t2),
	}
}
