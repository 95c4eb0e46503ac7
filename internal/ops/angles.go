package ops

// MapThetaHalfPolar folds polarization-style angles from a full turn onto
// the half-polar range, in place, and returns the slice. With degrees true
// the values are plane angles in [0, 360): [180, 360) maps down by 180 and
// exactly 360 maps to 0. Otherwise the values are angles normalised by pi,
// so 1.0 means half a turn: [1, 2) maps down by 1 and exactly 2 maps to 0.
func MapThetaHalfPolar(angles []float64, degrees bool) []float64 {
	if degrees {
		for i, a := range angles {
			switch {
			case a == 360:
				angles[i] = 0
			case a >= 180:
				angles[i] = a - 180
			}
		}
		return angles
	}
	for i, a := range angles {
		switch {
		case a == 2:
			angles[i] = 0
		case a >= 1:
			angles[i] = a - 1
		}
	}
	return angles
}
