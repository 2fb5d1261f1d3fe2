package point

import (
	"bytes"
	"fmt"
)

// Path is an ordered sequence of at most MaxPathLen components, each at most
// MaxPathComponentSize bytes, spec.md §3 "Path".
//
// Two on-wire forms exist:
//
//   - space form: components separated by a one-byte length prefix, total
//     size <= MaxSpathSize. Depth is recovered by scanning.
//   - indexed form: space form prefixed by MaxPathLen one-byte offsets, each
//     giving the byte offset (within the space-form bytes that follow) of
//     the length byte starting that component. Offsets at index >= depth
//     equal len(spaceForm), marking "past the last component". This gives
//     O(1) access to any component without a scan.
type Path struct {
	components [][]byte
}

// NewPath validates and constructs a Path from component byte slices.
func NewPath(components ...[]byte) (Path, error) {
	if len(components) > MaxPathLen {
		return Path{}, fmt.Errorf("%w: depth %d exceeds MaxPathLen", ErrPathMalformed, len(components))
	}
	total := 0
	cs := make([][]byte, len(components))
	for i, c := range components {
		if len(c) > MaxPathComponentSize {
			return Path{}, fmt.Errorf("%w: component %d exceeds MaxPathComponentSize", ErrPathMalformed, i)
		}
		total += 1 + len(c)
		cp := make([]byte, len(c))
		copy(cp, c)
		cs[i] = cp
	}
	if total > MaxSpathSize {
		return Path{}, fmt.Errorf("%w: space form %d exceeds MaxSpathSize", ErrPathMalformed, total)
	}
	return Path{components: cs}, nil
}

// Empty is the zero-depth path.
var Empty = Path{}

// Depth returns the number of path components.
func (p Path) Depth() int { return len(p.components) }

// Component returns the i-th component, or nil if out of range.
func (p Path) Component(i int) []byte {
	if i < 0 || i >= len(p.components) {
		return nil
	}
	return p.components[i]
}

// SpathBytes builds the space form: one length byte followed by the
// component's bytes, repeated per component.
func (p Path) SpathBytes() []byte {
	buf := make([]byte, 0, MaxSpathSize)
	for _, c := range p.components {
		buf = append(buf, byte(len(c)))
		buf = append(buf, c...)
	}
	return buf
}

// IPathBytes builds the indexed form: MaxPathLen one-byte offsets followed
// by the space form.
func (p Path) IPathBytes() []byte {
	spath := p.SpathBytes()
	offsets := computeOffsets(spath, p.Depth())
	out := make([]byte, 0, MaxPathLen+len(spath))
	out = append(out, offsets[:]...)
	out = append(out, spath...)
	return out
}

func computeOffsets(spath []byte, depth int) [MaxPathLen]byte {
	var offsets [MaxPathLen]byte
	off := 0
	for i := 0; i < MaxPathLen; i++ {
		if i < depth {
			offsets[i] = byte(off)
			off += 1 + int(spath[off])
		} else {
			offsets[i] = byte(len(spath))
		}
	}
	return offsets
}

// ParseSpath parses a space-form byte slice, recovering depth by scanning.
func ParseSpath(b []byte) (Path, error) {
	if len(b) > MaxSpathSize {
		return Path{}, fmt.Errorf("%w: space form exceeds MaxSpathSize", ErrPathMalformed)
	}
	var components [][]byte
	i := 0
	for i < len(b) {
		l := int(b[i])
		i++
		if l > MaxPathComponentSize || i+l > len(b) {
			return Path{}, fmt.Errorf("%w: truncated component", ErrPathMalformed)
		}
		if len(components) >= MaxPathLen {
			return Path{}, fmt.Errorf("%w: depth exceeds MaxPathLen", ErrPathMalformed)
		}
		components = append(components, b[i:i+l])
		i += l
	}
	return Path{components: components}, nil
}

// ParseIPath parses an indexed-form byte slice and verifies the stored
// offsets equal the offsets recomputed from the trailing space form
// (spec.md §3 "A path has an invariant").
func ParseIPath(b []byte) (Path, error) {
	if len(b) < MaxPathLen {
		return Path{}, fmt.Errorf("%w: truncated ipath", ErrPathMalformed)
	}
	var stored [MaxPathLen]byte
	copy(stored[:], b[:MaxPathLen])
	spath := b[MaxPathLen:]
	p, err := ParseSpath(spath)
	if err != nil {
		return Path{}, err
	}
	want := computeOffsets(spath, p.Depth())
	if !bytes.Equal(stored[:], want[:]) {
		return Path{}, fmt.Errorf("%w: ipath offsets do not match space form", ErrPathMalformed)
	}
	return p, nil
}

// HasPrefix reports whether p's space-form bytes start with prefix's
// space-form bytes, i.e. prefix's components are a leading subsequence of
// p's components. Used to compile `prefix` predicates (spec.md §4.4).
func (p Path) HasPrefix(prefix Path) bool {
	if prefix.Depth() > p.Depth() {
		return false
	}
	pb, qb := p.SpathBytes(), prefix.SpathBytes()
	return bytes.HasPrefix(pb, qb)
}

// Equal reports whether p and other have identical components.
func (p Path) Equal(other Path) bool {
	return bytes.Equal(p.SpathBytes(), other.SpathBytes())
}

func (p Path) String() string {
	var buf bytes.Buffer
	for _, c := range p.components {
		buf.WriteByte('/')
		buf.Write(c)
	}
	if buf.Len() == 0 {
		return "/"
	}
	return buf.String()
}
