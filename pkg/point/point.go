package point

import (
	"lukechampine.com/blake3"
)

// Point is an owned, parsed point: a fixed 4-byte header plus content bytes.
// It is the portable stand-in for the original's unsized, fat-pointer point
// representation (spec.md §9 "Fat pointers and custom allocation") — an
// owned buffer plus typed views over it, never raw pointer arithmetic.
type Point struct {
	Header  PointHeader
	Content []byte
}

// Bytes returns the full point bytes: header(4) + content.
func (p *Point) Bytes() []byte {
	hb := p.Header.Bytes()
	out := make([]byte, 0, PointHeaderSize+len(p.Content))
	out = append(out, hb[:]...)
	out = append(out, p.Content...)
	return out
}

// Segments returns the point's byte segments for gather I/O, at most 8
// slices (spec.md §4.1 "segments(point)"). Datapoints and errorpoints
// yield [header, content]; linkpoints/keypoints split content further so a
// writer can append directly without re-serializing.
func (p *Point) Segments() [][]byte {
	hb := p.Header.Bytes()
	header := append([]byte(nil), hb[:]...)
	switch p.Header.Kind {
	case KindLink:
		lv, err := parseLinkPointContent(p.Content)
		if err != nil {
			return [][]byte{header, p.Content}
		}
		return [][]byte{header, p.Content[:LinkPointHeaderSize], lv.linksBytes, lv.ipathBytes, lv.Data}
	case KindKey:
		_, inner, err := splitKeyPointContent(p.Content)
		if err != nil {
			return [][]byte{header, p.Content}
		}
		lv, err := parseLinkPointContent(inner)
		if err != nil {
			return [][]byte{header, p.Content}
		}
		return [][]byte{header, p.Content[:KeyPointPrefixSize], inner[:LinkPointHeaderSize], lv.linksBytes, lv.ipathBytes, lv.Data}
	default:
		return [][]byte{header, p.Content}
	}
}

// Hash computes the BLAKE3 hash over the point's bytes (header + content),
// spec.md §3 "A point's hash is the BLAKE3 of its point bytes".
func (p *Point) Hash() Hash {
	h := blake3.New(32, nil)
	hb := p.Header.Bytes()
	h.Write(hb[:])
	h.Write(p.Content)
	var out Hash
	copy(out[:], h.Sum(nil))
	return out
}

// HashPoint is the free-function form used by the store and tests, taking
// already-serialized point bytes (header + content).
func HashPoint(pointBytes []byte) Hash {
	sum := blake3.Sum256(pointBytes)
	return Hash(sum)
}

// Data returns the application data payload for any point kind.
func (p *Point) Data() []byte {
	switch p.Header.Kind {
	case KindData, KindError:
		return p.Content
	case KindLink:
		lv, err := parseLinkPointContent(p.Content)
		if err != nil {
			return nil
		}
		return lv.Data
	case KindKey:
		_, inner, err := splitKeyPointContent(p.Content)
		if err != nil {
			return nil
		}
		lv, err := parseLinkPointContent(inner)
		if err != nil {
			return nil
		}
		return lv.Data
	default:
		return nil
	}
}
