package wcs

import "math"

// Rotation from fk5 J2000 equatorial to Galactic coordinates. Rows are the
// Galactic basis vectors expressed in the equatorial frame.
var eqToGal = [3][3]float64{
	{-0.0548755604162154, -0.8734370902348850, -0.4838350155487132},
	{0.4941094278755837, -0.4448296299600112, 0.7469822444972189},
	{-0.8676661490190047, -0.1980763734312015, 0.4559837761750669},
}

func sph2vec(lon, lat float64) [3]float64 {
	l := lon / degPerRad
	b := lat / degPerRad
	cb := math.Cos(b)
	return [3]float64{cb * math.Cos(l), cb * math.Sin(l), math.Sin(b)}
}

func vec2sph(v [3]float64) (lon, lat float64) {
	lon = math.Atan2(v[1], v[0]) * degPerRad
	if lon < 0 {
		lon += 360
	}
	lat = math.Asin(math.Min(1, math.Max(-1, v[2]))) * degPerRad
	return lon, lat
}

// EquatorialToGalactic converts fk5 J2000 (ra, dec) to Galactic (l, b),
// all in degrees. l is normalised to [0, 360).
func EquatorialToGalactic(ra, dec float64) (l, b float64) {
	v := sph2vec(ra, dec)
	var g [3]float64
	for i := 0; i < 3; i++ {
		g[i] = eqToGal[i][0]*v[0] + eqToGal[i][1]*v[1] + eqToGal[i][2]*v[2]
	}
	return vec2sph(g)
}

// GalacticToEquatorial converts Galactic (l, b) to fk5 J2000 (ra, dec),
// all in degrees. ra is normalised to [0, 360).
func GalacticToEquatorial(l, b float64) (ra, dec float64) {
	g := sph2vec(l, b)
	var v [3]float64
	// transpose of the rotation
	for i := 0; i < 3; i++ {
		v[i] = eqToGal[0][i]*g[0] + eqToGal[1][i]*g[1] + eqToGal[2][i]*g[2]
	}
	return vec2sph(v)
}
