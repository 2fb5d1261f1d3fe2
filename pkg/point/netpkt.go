package point

import "fmt"

// Netpkt is the on-wire transport envelope: a mutable 32-byte routing
// header, a 32-byte point hash, and the point bytes themselves (spec.md
// §3 "Netpkt", §6 on-wire layout). The routing header may be rewritten by
// forwarders; the hash and point never change once built.
type Netpkt struct {
	Routing RoutingHeader
	Hash    Hash
	Point   *Point
}

// NewNetpkt wraps a point with a freshly computed hash and the given
// routing header.
func NewNetpkt(routing RoutingHeader, p *Point) *Netpkt {
	return &Netpkt{Routing: routing, Hash: p.Hash(), Point: p}
}

// Bytes serializes the full netpkt: routing header(32) + hash(32) + point
// bytes.
func (n *Netpkt) Bytes() []byte {
	rb := n.Routing.Bytes()
	pb := n.Point.Bytes()
	out := make([]byte, 0, NetpktHeaderSize+HashSize+len(pb))
	out = append(out, rb[:]...)
	out = append(out, n.Hash[:]...)
	out = append(out, pb...)
	return out
}

// ParseNetpkt decodes a netpkt from its full on-wire bytes, without
// verifying the hash against the point or validating the point's
// kind-specific structure. Use CheckNetpkt for that.
func ParseNetpkt(b []byte) (*Netpkt, error) {
	if len(b) < NetpktHeaderSize+HashSize+PointHeaderSize {
		return nil, fmt.Errorf("%w: netpkt", ErrTruncated)
	}
	routing, err := ParseRoutingHeader(b[:NetpktHeaderSize])
	if err != nil {
		return nil, err
	}
	var hash Hash
	copy(hash[:], b[NetpktHeaderSize:NetpktHeaderSize+HashSize])
	p, err := Parse(b[NetpktHeaderSize+HashSize:])
	if err != nil {
		return nil, err
	}
	return &Netpkt{Routing: routing, Hash: hash, Point: p}, nil
}

// CheckNetpkt validates a parsed netpkt: the carried hash must equal the
// point's actual hash, and the point's kind-specific structure (and
// signature, for keypoints) must be well-formed.
func CheckNetpkt(n *Netpkt) error {
	if n.Point.Hash() != n.Hash {
		return ErrHashMismatch
	}
	return Check(n.Point)
}
