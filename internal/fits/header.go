package fits

import (
	"errors"
	"fmt"
	"sort"
)

// ErrMissingKeyword is returned when a required header keyword is absent.
var ErrMissingKeyword = errors.New("missing header keyword")

// Header is an ordered FITS keyword/value mapping. Values are held as the
// types the FITS reader produced (int, float64, string, bool).
type Header struct {
	keys []string
	vals map[string]any
}

// NewHeader returns an empty header.
func NewHeader() *Header {
	return &Header{vals: make(map[string]any)}
}

// Set stores a keyword value, preserving first-insertion order.
func (h *Header) Set(key string, value any) {
	if _, ok := h.vals[key]; !ok {
		h.keys = append(h.keys, key)
	}
	h.vals[key] = value
}

// Get returns the raw value for key.
func (h *Header) Get(key string) (any, bool) {
	v, ok := h.vals[key]
	return v, ok
}

// Has reports whether key is present.
func (h *Header) Has(key string) bool {
	_, ok := h.vals[key]
	return ok
}

// Delete removes key if present. Removing an absent key is a no-op.
func (h *Header) Delete(key string) {
	if _, ok := h.vals[key]; !ok {
		return
	}
	delete(h.vals, key)
	for i, k := range h.keys {
		if k == key {
			h.keys = append(h.keys[:i], h.keys[i+1:]...)
			break
		}
	}
}

// Keys returns the keyword names in insertion order.
func (h *Header) Keys() []string {
	return append([]string(nil), h.keys...)
}

// Clone returns a deep copy of the header.
func (h *Header) Clone() *Header {
	c := NewHeader()
	for _, k := range h.keys {
		c.Set(k, h.vals[k])
	}
	return c
}

// Float returns the keyword value as a float64.
func (h *Header) Float(key string) (float64, error) {
	v, ok := h.vals[key]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrMissingKeyword, key)
	}
	switch x := v.(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case int:
		return float64(x), nil
	case int64:
		return float64(x), nil
	}
	return 0, fmt.Errorf("header keyword %s: value %v is not numeric", key, v)
}

// Int returns the keyword value as an int.
func (h *Header) Int(key string) (int, error) {
	v, ok := h.vals[key]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrMissingKeyword, key)
	}
	switch x := v.(type) {
	case int:
		return x, nil
	case int64:
		return int(x), nil
	case float64:
		return int(x), nil
	}
	return 0, fmt.Errorf("header keyword %s: value %v is not an integer", key, v)
}

// String returns the keyword value as a string.
func (h *Header) String(key string) (string, error) {
	v, ok := h.vals[key]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrMissingKeyword, key)
	}
	if s, ok := v.(string); ok {
		return s, nil
	}
	return fmt.Sprint(v), nil
}

// FloatOr returns the keyword value, or def when it is absent.
func (h *Header) FloatOr(key string, def float64) float64 {
	v, err := h.Float(key)
	if err != nil {
		return def
	}
	return v
}

// axis3Keys are the keywords that describe a spectral/velocity third axis.
var axis3Keys = []string{"NAXIS3", "CDELT3", "CROTA3", "CRPIX3", "CRVAL3", "CTYPE3", "CUNIT3"}

// FreqAxis constructs the third-axis coordinate values from a 3D header:
// axis[i] = CRVAL3 + ((i+1) - CRPIX3) * CDELT3 for i in [0, NAXIS3).
func FreqAxis(h *Header) ([]float64, error) {
	crval, err := h.Float("CRVAL3")
	if err != nil {
		return nil, err
	}
	crpix, err := h.Float("CRPIX3")
	if err != nil {
		return nil, err
	}
	cdelt, err := h.Float("CDELT3")
	if err != nil {
		return nil, err
	}
	naxis, err := h.Int("NAXIS3")
	if err != nil {
		return nil, err
	}

	axis := make([]float64, naxis)
	for i := range axis {
		axis[i] = crval + (float64(i+1)-crpix)*cdelt
	}
	return axis, nil
}

// To2D returns a copy of h reduced to two dimensions: NAXIS is set to 2 and
// all third-axis keywords are dropped. Applying it to an already-2D header
// returns an equivalent header.
func To2D(h *Header) *Header {
	out := h.Clone()
	out.Set("NAXIS", 2)
	for _, k := range axis3Keys {
		out.Delete(k)
	}
	return out
}

// minimalWCSKeys is the keyword set kept by MinimalWCS, in canonical order.
var minimalWCSKeys = []string{
	"NAXIS", "NAXIS1", "NAXIS2",
	"CTYPE1", "CRPIX1", "CRVAL1", "CDELT1",
	"CTYPE2", "CRPIX2", "CRVAL2", "CDELT2",
}

// MinimalWCS strips a header down to the minimal 2D WCS keyword set, so a
// resampler is not confused by unrelated keywords. NAXIS is forced to 2.
func MinimalWCS(h *Header) *Header {
	out := NewHeader()
	out.Set("NAXIS", 2)
	for _, k := range minimalWCSKeys[1:] {
		if v, ok := h.Get(k); ok {
			out.Set(k, v)
		}
	}
	return out
}

// SortedKeys returns keyword names in lexical order, for deterministic dumps.
func (h *Header) SortedKeys() []string {
	out := h.Keys()
	sort.Strings(out)
	return out
}
