package predicate

import (
	"fmt"

	"linkspace/pkg/point"
)

// Predicate is a single (field, op, value) constraint, or for path/prefix
// a (field, op, Path) constraint (spec.md §4.4).
type Predicate struct {
	Field Field
	Op    Op
	Value []byte // big-endian, width per FieldWidth(Field); unused for path/prefix
	Mask  []byte // only for OpMaskedEqual
	Path  point.Path // only for FieldPath/FieldPrefix
}

// Equal builds an '=' predicate over a fixed-width field.
func Equal(f Field, value []byte) Predicate { return Predicate{Field: f, Op: OpEqual, Value: value} }

// PathEqual builds the exact-path predicate.
func PathEqual(p point.Path) Predicate { return Predicate{Field: FieldPath, Op: OpEqual, Path: p} }

// PrefixEqual builds the path-prefix predicate.
func PrefixEqual(p point.Path) Predicate { return Predicate{Field: FieldPrefix, Op: OpEqual, Path: p} }

// EncodeUint64 encodes v into a big-endian byte slice of the given width,
// for building fixed-width field predicate values.
func EncodeUint64(v uint64, width int) []byte {
	out := make([]byte, width)
	for i := width - 1; i >= 0 && v != 0; i-- {
		out[i] = byte(v)
		v >>= 8
	}
	return out
}

// PredicateSet accumulates predicates per field, narrowing each field's
// ValueSet as rules are added and tracking the exact/prefix path
// constraint separately (spec.md §4.4 "Per-field add-rule rules").
type PredicateSet struct {
	values map[Field]*ValueSet
	neq    []Predicate

	hasExactPath bool
	exactPath    point.Path
	hasPrefix    bool
	prefixPath   point.Path
}

// New returns an empty, unconstrained predicate set.
func New() *PredicateSet {
	return &PredicateSet{values: make(map[Field]*ValueSet)}
}

func (ps *PredicateSet) valueSet(f Field) *ValueSet {
	vs, ok := ps.values[f]
	if !ok {
		width, _ := FieldWidth(f)
		vs = NewValueSet(width)
		ps.values[f] = vs
	}
	return vs
}

// ValueSet returns the accumulated value-set for a fixed-width field
// (nil for path/prefix, which have no value-set — use ExactPath/Prefix).
func (ps *PredicateSet) ValueSet(f Field) *ValueSet {
	return ps.values[f]
}

// ExactPath returns the exact-path constraint, if any was added.
func (ps *PredicateSet) ExactPath() (point.Path, bool) { return ps.exactPath, ps.hasExactPath }

// Prefix returns the path-prefix constraint, if any was added.
func (ps *PredicateSet) Prefix() (point.Path, bool) { return ps.prefixPath, ps.hasPrefix }

// NotEqual returns the accumulated '!=' predicates, which have no compact
// value-set representation and are always residual.
func (ps *PredicateSet) NotEqual() []Predicate { return ps.neq }

// Add narrows the set by one predicate, returning ErrEmptyIntersection if
// the predicate contradicts an existing constraint on the same field.
func (ps *PredicateSet) Add(p Predicate) error {
	switch p.Field {
	case FieldPath:
		return ps.addExactPath(p)
	case FieldPrefix:
		return ps.addPrefix(p)
	default:
		return ps.addFixedWidth(p)
	}
}

func (ps *PredicateSet) addExactPath(p Predicate) error {
	if p.Op != OpEqual {
		return fmt.Errorf("%w: path accepts only '='", ErrBadPredicate)
	}
	if ps.hasExactPath && !ps.exactPath.Equal(p.Path) {
		return ErrEmptyIntersection
	}
	ps.exactPath = p.Path
	ps.hasExactPath = true
	return ps.valueSet(FieldPathLen).AddEqual(EncodeUint64(uint64(p.Path.Depth()), 1))
}

func (ps *PredicateSet) addPrefix(p Predicate) error {
	if p.Op != OpEqual {
		return fmt.Errorf("%w: prefix accepts only '='", ErrBadPredicate)
	}
	if ps.hasPrefix {
		switch {
		case p.Path.HasPrefix(ps.prefixPath):
			ps.prefixPath = p.Path // new prefix is more specific
		case ps.prefixPath.HasPrefix(p.Path):
			// existing prefix already more specific; keep it
		default:
			return ErrEmptyIntersection
		}
	} else {
		ps.prefixPath = p.Path
		ps.hasPrefix = true
	}
	return ps.valueSet(FieldPathLen).AddLowerBound(EncodeUint64(uint64(ps.prefixPath.Depth()), 1))
}

func (ps *PredicateSet) addFixedWidth(p Predicate) error {
	width, ok := FieldWidth(p.Field)
	if !ok {
		return fmt.Errorf("%w: unknown field %q", ErrBadPredicate, p.Field)
	}
	if p.Op == OpMaskedEqual {
		if len(p.Value) != width || len(p.Mask) != width {
			return fmt.Errorf("%w: mask/value width mismatch for %q", ErrBadPredicate, p.Field)
		}
		return ps.valueSet(p.Field).AddMaskEqual(p.Mask, p.Value)
	}
	if len(p.Value) != width {
		return fmt.Errorf("%w: value width mismatch for %q", ErrBadPredicate, p.Field)
	}
	vs := ps.valueSet(p.Field)
	switch p.Op {
	case OpEqual:
		return vs.AddEqual(p.Value)
	case OpLessEqual:
		return vs.AddUpperBound(p.Value)
	case OpGreaterEqual:
		return vs.AddLowerBound(p.Value)
	case OpLess:
		dec, ok := decBytes(p.Value)
		if !ok {
			return ErrEmptyIntersection
		}
		return vs.AddUpperBound(dec)
	case OpGreater:
		inc, ok := incBytes(p.Value)
		if !ok {
			return ErrEmptyIntersection
		}
		return vs.AddLowerBound(inc)
	case OpNotEqual:
		ps.neq = append(ps.neq, p)
		return nil
	default:
		return fmt.Errorf("%w: unsupported op %v for %q", ErrBadPredicate, p.Op, p.Field)
	}
}

// incBytes increments a big-endian byte slice by one, saturating; ok is
// false if the value was already at its maximum.
func incBytes(b []byte) ([]byte, bool) {
	out := append([]byte(nil), b...)
	for i := len(out) - 1; i >= 0; i-- {
		if out[i] < 0xff {
			out[i]++
			return out, true
		}
		out[i] = 0
	}
	return out, false
}

// decBytes decrements a big-endian byte slice by one; ok is false if the
// value was already zero.
func decBytes(b []byte) ([]byte, bool) {
	out := append([]byte(nil), b...)
	for i := len(out) - 1; i >= 0; i-- {
		if out[i] > 0 {
			out[i]--
			return out, true
		}
		out[i] = 0xff
	}
	return out, false
}
