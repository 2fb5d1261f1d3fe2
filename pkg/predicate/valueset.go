package predicate

import (
	"bytes"
	"errors"
)

// ErrEmptyIntersection is returned when adding a rule would leave a field's
// value-set unsatisfiable (spec.md §4.4 add-rule rules).
var ErrEmptyIntersection = errors.New("predicate: empty intersection")

// MaskEq is a masked-equality constraint: (value & Mask) must equal (Want &
// Mask).
type MaskEq struct {
	Mask []byte
	Want []byte
}

// ValueSet is the compact representation of a fixed-width field's allowed
// values: an optional exact value, inclusive lower/upper bounds, and up to
// two masked-equality constraints (spec.md §4.4). All byte slices are
// big-endian and of the field's declared width.
type ValueSet struct {
	Width int
	Eq    []byte
	Lower []byte
	Upper []byte
	Mask0 *MaskEq
	Mask1 *MaskEq
}

// NewValueSet returns the unconstrained value-set for a field of the given
// width.
func NewValueSet(width int) *ValueSet {
	return &ValueSet{Width: width}
}

// AddEqual narrows the set to exactly value, failing if it conflicts with
// an existing exact value or bound.
func (v *ValueSet) AddEqual(value []byte) error {
	if v.Eq != nil && !bytes.Equal(v.Eq, value) {
		return ErrEmptyIntersection
	}
	if v.Lower != nil && bytes.Compare(value, v.Lower) < 0 {
		return ErrEmptyIntersection
	}
	if v.Upper != nil && bytes.Compare(value, v.Upper) > 0 {
		return ErrEmptyIntersection
	}
	v.Eq = value
	v.Lower = value
	v.Upper = value
	return nil
}

// AddLowerBound narrows the set so every value is >= value.
func (v *ValueSet) AddLowerBound(value []byte) error {
	if v.Lower == nil || bytes.Compare(value, v.Lower) > 0 {
		v.Lower = value
	}
	if v.Upper != nil && bytes.Compare(v.Lower, v.Upper) > 0 {
		return ErrEmptyIntersection
	}
	if v.Eq != nil && bytes.Compare(v.Eq, v.Lower) < 0 {
		return ErrEmptyIntersection
	}
	return nil
}

// AddUpperBound narrows the set so every value is <= value.
func (v *ValueSet) AddUpperBound(value []byte) error {
	if v.Upper == nil || bytes.Compare(value, v.Upper) < 0 {
		v.Upper = value
	}
	if v.Lower != nil && bytes.Compare(v.Lower, v.Upper) > 0 {
		return ErrEmptyIntersection
	}
	if v.Eq != nil && bytes.Compare(v.Eq, v.Upper) > 0 {
		return ErrEmptyIntersection
	}
	return nil
}

// AddMaskEqual attaches a masked-equality constraint, filling Mask0 then
// Mask1; a third masked-equal predicate on the same field is rejected with
// an error.
func (v *ValueSet) AddMaskEqual(mask, want []byte) error {
	me := &MaskEq{Mask: mask, Want: want}
	switch {
	case v.Mask0 == nil:
		v.Mask0 = me
	case v.Mask1 == nil:
		v.Mask1 = me
	default:
		return errors.New("predicate: more than two masked-equal constraints on one field")
	}
	return nil
}

// Test reports whether value satisfies every constraint in the set. An
// unconstrained set (no Eq/Lower/Upper/Mask) accepts everything.
func (v *ValueSet) Test(value []byte) bool {
	if v.Eq != nil && !bytes.Equal(v.Eq, value) {
		return false
	}
	if v.Lower != nil && bytes.Compare(value, v.Lower) < 0 {
		return false
	}
	if v.Upper != nil && bytes.Compare(value, v.Upper) > 0 {
		return false
	}
	if v.Mask0 != nil && !maskEqual(value, v.Mask0) {
		return false
	}
	if v.Mask1 != nil && !maskEqual(value, v.Mask1) {
		return false
	}
	return true
}

func maskEqual(value []byte, m *MaskEq) bool {
	if len(value) != len(m.Mask) || len(value) != len(m.Want) {
		return false
	}
	for i := range value {
		if value[i]&m.Mask[i] != m.Want[i]&m.Mask[i] {
			return false
		}
	}
	return true
}

// MinBound returns the set's effective lower bound, or a Width-byte
// all-zero slice if unconstrained — used to build the TreeIdx seek lower
// bound (spec.md §4.5 "group.min, domain.min, ... pubkey.min").
func (v *ValueSet) MinBound() []byte {
	if v.Lower != nil {
		return v.Lower
	}
	return make([]byte, v.Width)
}

// MaxBound returns the set's effective upper bound, or a Width-byte
// all-0xff slice if unconstrained.
func (v *ValueSet) MaxBound() []byte {
	if v.Upper != nil {
		return v.Upper
	}
	out := make([]byte, v.Width)
	for i := range out {
		out[i] = 0xff
	}
	return out
}

// IsSingleton reports whether the set is pinned to exactly one value.
func (v *ValueSet) IsSingleton() bool {
	return v.Eq != nil
}
