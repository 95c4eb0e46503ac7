package reproject

import (
	"errors"
	"fmt"
	"math"

	"skyproc/internal/fits"
	"skyproc/internal/wcs"
)

// Ordering is the HEALPix pixel ordering scheme of an all-sky map.
type Ordering int

const (
	OrderingRing Ordering = iota
	OrderingNested
)

// ParseOrdering maps the conventional scheme names to an Ordering.
func ParseOrdering(s string) (Ordering, error) {
	switch s {
	case "ring", "RING":
		return OrderingRing, nil
	case "nested", "nest", "NESTED", "NEST":
		return OrderingNested, nil
	}
	return 0, fmt.Errorf("unknown HEALPix ordering %q", s)
}

func (o Ordering) String() string {
	if o == OrderingNested {
		return "nested"
	}
	return "ring"
}

// NSideForLen derives nside from a map length, which must be 12*nside^2.
func NSideForLen(n int) (int, error) {
	if n <= 0 || n%12 != 0 {
		return 0, fmt.Errorf("map length %d is not a HEALPix pixelisation", n)
	}
	nside := int(math.Round(math.Sqrt(float64(n) / 12)))
	if 12*nside*nside != n {
		return 0, fmt.Errorf("map length %d is not a HEALPix pixelisation", n)
	}
	return nside, nil
}

// ang2pixRing returns the ring-ordered pixel containing colatitude theta
// and longitude phi, both in radians.
func ang2pixRing(nside int, theta, phi float64) int {
	ns := int64(nside)
	z := math.Cos(theta)
	za := math.Abs(z)
	tt := math.Mod(phi/(math.Pi/2), 4)
	if tt < 0 {
		tt += 4
	}

	if za <= 2.0/3.0 {
		temp1 := float64(ns) * (0.5 + tt)
		temp2 := float64(ns) * z * 0.75
		jp := int64(temp1 - temp2)
		jm := int64(temp1 + temp2)

		ir := ns + 1 + jp - jm
		kshift := int64(1)
		if ir&1 == 1 {
			kshift = 0
		}
		ip := (jp + jm - ns + kshift + 1) / 2
		ip %= 4 * ns
		return int(2*ns*(ns-1) + (ir-1)*4*ns + ip)
	}

	// polar caps
	tp := tt - math.Floor(tt)
	tmp := float64(ns) * math.Sqrt(3*(1-za))
	jp := int64(tp * tmp)
	jm := int64((1 - tp) * tmp)

	ir := jp + jm + 1
	ip := int64(tt * float64(ir))
	if ip >= 4*ir {
		ip -= 4 * ir
	}
	if z > 0 {
		return int(2*ir*(ir-1) + ip)
	}
	return int(12*ns*ns - 2*ir*(ir+1) + ip)
}

// ang2pixNest returns the nested-ordered pixel containing colatitude
// theta and longitude phi, both in radians. nside must be a power of two.
func ang2pixNest(nside int, theta, phi float64) int {
	ns := int64(nside)
	z := math.Cos(theta)
	za := math.Abs(z)
	tt := math.Mod(phi/(math.Pi/2), 4)
	if tt < 0 {
		tt += 4
	}

	var face, ix, iy int64
	if za <= 2.0/3.0 {
		temp1 := float64(ns) * (0.5 + tt)
		temp2 := float64(ns) * z * 0.75
		jp := int64(temp1 - temp2)
		jm := int64(temp1 + temp2)

		ifp := jp / ns
		ifm := jm / ns
		switch {
		case ifp == ifm:
			face = ifp&3 + 4
		case ifp < ifm:
			face = ifp & 3
		default:
			face = ifm&3 + 8
		}
		ix = jm & (ns - 1)
		iy = ns - 1 - jp&(ns-1)
	} else {
		ntt := int64(tt)
		if ntt >= 4 {
			ntt = 3
		}
		tp := tt - float64(ntt)
		tmp := float64(ns) * math.Sqrt(3*(1-za))
		jp := int64(tp * tmp)
		jm := int64((1 - tp) * tmp)
		if jp >= ns {
			jp = ns - 1
		}
		if jm >= ns {
			jm = ns - 1
		}
		if z >= 0 {
			face = ntt
			ix = ns - jm - 1
			iy = ns - jp - 1
		} else {
			face = ntt + 8
			ix = jm
			iy = jp
		}
	}
	return int(face*ns*ns + interleave(ix, iy))
}

// interleave spreads the bits of ix into even positions and iy into odd
// positions.
func interleave(ix, iy int64) int64 {
	var out int64
	for b := 0; b < 32; b++ {
		out |= (ix >> b & 1) << (2 * b)
		out |= (iy >> b & 1) << (2*b + 1)
	}
	return out
}

// FromHEALPix resamples an all-sky HEALPix map onto the pixel grid of a
// flat 2D target image by nearest-pixel lookup. mapGalactic says which
// frame the map's pixelisation lives in; when it differs from the
// target's frame, each target coordinate is rotated before lookup. The
// footprint is 1 wherever a sky coordinate exists for the target pixel.
func FromHEALPix(m []float64, ordering Ordering, mapGalactic bool, target *fits.Image) (*Result, error) {
	if target.Is3D() {
		return nil, errors.New("HEALPix resampling expects a 2D target")
	}
	nside, err := NSideForLen(len(m))
	if err != nil {
		return nil, err
	}
	if ordering == OrderingNested && nside&(nside-1) != 0 {
		return nil, fmt.Errorf("nested ordering needs a power-of-two nside, got %d", nside)
	}

	w, err := wcs.New(target.Header)
	if err != nil {
		return nil, err
	}
	targetGalactic := w.IsGalactic()

	out := fits.NewImage2D(target.NX, target.NY, target.Header.Clone())
	fp := make([]float64, target.NX*target.NY)

	for y := 0; y < target.NY; y++ {
		for x := 0; x < target.NX; x++ {
			i := y*target.NX + x
			lon, lat := w.PixToWorld(float64(x), float64(y))
			if math.IsNaN(lon) || math.IsNaN(lat) {
				out.Data[i] = math.NaN()
				continue
			}
			switch {
			case mapGalactic && !targetGalactic:
				lon, lat = wcs.EquatorialToGalactic(lon, lat)
			case !mapGalactic && targetGalactic:
				lon, lat = wcs.GalacticToEquatorial(lon, lat)
			}
			theta := (90 - lat) * math.Pi / 180
			phi := lon * math.Pi / 180

			var pix int
			if ordering == OrderingNested {
				pix = ang2pixNest(nside, theta, phi)
			} else {
				pix = ang2pixRing(nside, theta, phi)
			}
			out.Data[i] = m[pix]
			fp[i] = 1
		}
	}
	return &Result{Data: out, Footprint: fp}, nil
}
