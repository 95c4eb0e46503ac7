package ops

import (
	"errors"
	"math"
	"sort"

	"skyproc/internal/fits"
)

// MaskInterp fills masked pixels of a 2D image by interpolating from the
// surviving samples. mask follows the usual convention: finite means keep,
// NaN means fill. Valid pixels keep their original value; masked pixels
// inside the convex hull of the valid samples get an inverse-distance
// weighted estimate from their nearest valid neighbours; masked pixels
// outside the hull stay NaN, since extrapolation there is unconstrained.
func MaskInterp(im *fits.Image, mask []float64) (*fits.Image, error) {
	if im.Is3D() {
		return nil, errors.New("mask interpolation expects a 2D image")
	}
	if len(mask) != len(im.Data) {
		return nil, errors.New("mask length does not match image")
	}

	nx, ny := im.NX, im.NY
	var pts []point
	for y := 0; y < ny; y++ {
		for x := 0; x < nx; x++ {
			i := y*nx + x
			if !math.IsNaN(mask[i]) && !math.IsNaN(im.Data[i]) {
				pts = append(pts, point{float64(x), float64(y), im.Data[i]})
			}
		}
	}
	if len(pts) < 3 {
		return nil, errors.New("too few valid samples to interpolate")
	}

	hull := convexHull(pts)
	idx := newBucketIndex(pts, nx, ny)

	out := im.Clone()
	for y := 0; y < ny; y++ {
		for x := 0; x < nx; x++ {
			i := y*nx + x
			if !math.IsNaN(mask[i]) && !math.IsNaN(im.Data[i]) {
				continue
			}
			fx, fy := float64(x), float64(y)
			if !inHull(hull, fx, fy) {
				out.Data[i] = math.NaN()
				continue
			}
			out.Data[i] = idx.idw(fx, fy)
		}
	}
	return out, nil
}

type point struct{ x, y, v float64 }

// convexHull computes the hull of the sample positions with Andrew's
// monotone chain, counter-clockwise.
func convexHull(pts []point) []point {
	p := append([]point(nil), pts...)
	sort.Slice(p, func(i, j int) bool {
		if p[i].x != p[j].x {
			return p[i].x < p[j].x
		}
		return p[i].y < p[j].y
	})

	cross := func(o, a, b point) float64 {
		return (a.x-o.x)*(b.y-o.y) - (a.y-o.y)*(b.x-o.x)
	}

	var lower []point
	for _, q := range p {
		for len(lower) >= 2 && cross(lower[len(lower)-2], lower[len(lower)-1], q) <= 0 {
			lower = lower[:len(lower)-1]
		}
		lower = append(lower, q)
	}
	var upper []point
	for i := len(p) - 1; i >= 0; i-- {
		q := p[i]
		for len(upper) >= 2 && cross(upper[len(upper)-2], upper[len(upper)-1], q) <= 0 {
			upper = upper[:len(upper)-1]
		}
		upper = append(upper, q)
	}
	return append(lower[:len(lower)-1], upper[:len(upper)-1]...)
}

// inHull tests point-in-convex-polygon by signed areas. Boundary points
// count as inside.
func inHull(hull []point, x, y float64) bool {
	n := len(hull)
	if n < 3 {
		return false
	}
	for i := 0; i < n; i++ {
		a := hull[i]
		b := hull[(i+1)%n]
		if (b.x-a.x)*(y-a.y)-(b.y-a.y)*(x-a.x) < 0 {
			return false
		}
	}
	return true
}

// bucketIndex is a uniform spatial hash over the valid samples, used to
// find nearby neighbours without scanning every sample per pixel.
type bucketIndex struct {
	cell    float64
	cols    int
	rows    int
	buckets [][]point
}

const idwNeighbours = 12

func newBucketIndex(pts []point, nx, ny int) *bucketIndex {
	area := float64(nx * ny)
	cell := math.Sqrt(area / float64(len(pts)))
	if cell < 1 {
		cell = 1
	}
	cols := int(float64(nx)/cell) + 1
	rows := int(float64(ny)/cell) + 1
	b := &bucketIndex{
		cell:    cell,
		cols:    cols,
		rows:    rows,
		buckets: make([][]point, cols*rows),
	}
	for _, p := range pts {
		i := b.bucket(p.x, p.y)
		b.buckets[i] = append(b.buckets[i], p)
	}
	return b
}

func (b *bucketIndex) bucket(x, y float64) int {
	cx := int(x / b.cell)
	cy := int(y / b.cell)
	if cx < 0 {
		cx = 0
	}
	if cx >= b.cols {
		cx = b.cols - 1
	}
	if cy < 0 {
		cy = 0
	}
	if cy >= b.rows {
		cy = b.rows - 1
	}
	return cy*b.cols + cx
}

// idw estimates the value at (x, y) by inverse-squared-distance weighting
// over the nearest valid samples, growing the search ring until enough
// neighbours are found.
func (b *bucketIndex) idw(x, y float64) float64 {
	cx := int(x / b.cell)
	cy := int(y / b.cell)

	var found []point
	for ring := 1; len(found) < idwNeighbours && ring <= b.cols+b.rows; ring++ {
		found = found[:0]
		for j := cy - ring; j <= cy+ring; j++ {
			if j < 0 || j >= b.rows {
				continue
			}
			for i := cx - ring; i <= cx+ring; i++ {
				if i < 0 || i >= b.cols {
					continue
				}
				found = append(found, b.buckets[j*b.cols+i]...)
			}
		}
	}
	if len(found) == 0 {
		return math.NaN()
	}

	sort.Slice(found, func(i, j int) bool {
		di := (found[i].x-x)*(found[i].x-x) + (found[i].y-y)*(found[i].y-y)
		dj := (found[j].x-x)*(found[j].x-x) + (found[j].y-y)*(found[j].y-y)
		return di < dj
	})
	if len(found) > idwNeighbours {
		found = found[:idwNeighbours]
	}

	var num, den float64
	for _, p := range found {
		d2 := (p.x-x)*(p.x-x) + (p.y-y)*(p.y-y)
		if d2 == 0 {
			return p.v
		}
		w := 1 / d2
		num += w * p.v
		den += w
	}
	return num / den
}
