package point

import (
	"encoding/binary"
	"fmt"
)

// PointHeader is the fixed 4-byte header common to every point
// (spec.md §3 "Every point carries a fixed 4-byte header").
type PointHeader struct {
	Kind Kind
	Size uint16 // header + content, LE on the wire
}

// Bytes serializes the header: reserved(1)=0 | kind(1) | size(2 LE).
func (h PointHeader) Bytes() [PointHeaderSize]byte {
	var out [PointHeaderSize]byte
	out[0] = 0
	out[1] = byte(h.Kind)
	binary.LittleEndian.PutUint16(out[2:], h.Size)
	return out
}

// ParsePointHeader decodes the 4-byte point header.
func ParsePointHeader(b []byte) (PointHeader, error) {
	if len(b) < PointHeaderSize {
		return PointHeader{}, fmt.Errorf("%w: point header", ErrTruncated)
	}
	if b[0] != 0 {
		return PointHeader{}, ErrReservedNonZero
	}
	k := Kind(b[1])
	if !k.valid() {
		return PointHeader{}, fmt.Errorf("%w: 0x%02x", ErrBadKind, b[1])
	}
	size := binary.LittleEndian.Uint16(b[2:4])
	return PointHeader{Kind: k, Size: size}, nil
}

// NetFlags is the mutable flags bitfield carried in a RoutingHeader.
// Bit layout follows original_source crates/pkt/src/netpkt/header.rs, plus
// FlagFollowPulled which this rewrite adds in the unused bit 0x10 to carry
// the "pulled in by :follow" marker described in spec.md §4.5 (see
// SPEC_FULL.md "LINKED_IN_FUTURE_PKT / follow flag bit").
type NetFlags uint8

const (
	FlagSilent              NetFlags = 0b0000_0001
	FlagLinkedInFuturePkt   NetFlags = 0b0000_0010
	FlagLinkedInPreviousPkt NetFlags = 0b0000_0100
	FlagDontForward         NetFlags = 0b0000_1000
	FlagFollowPulled        NetFlags = 0b0001_0000
)

// RoutingHeader is the 32-byte mutable envelope prefix of a netpkt
// (spec.md §3 "Netpkt", §6 on-wire layout). Mutating it never changes the
// point hash.
type RoutingHeader struct {
	Flags NetFlags
	Hop   uint32
	Stamp uint64
	Ubits [4]uint32
}

// netpktMagic is the fixed 3-byte prefix of every netpkt, "LK1".
var netpktMagic = [3]byte{'L', 'K', '1'}

// Bytes serializes the routing header to its 32-byte on-wire form.
func (r RoutingHeader) Bytes() [NetpktHeaderSize]byte {
	var out [NetpktHeaderSize]byte
	copy(out[0:3], netpktMagic[:])
	out[3] = byte(r.Flags)
	binary.LittleEndian.PutUint32(out[4:8], r.Hop)
	binary.LittleEndian.PutUint64(out[8:16], r.Stamp)
	for i, u := range r.Ubits {
		binary.LittleEndian.PutUint32(out[16+i*4:20+i*4], u)
	}
	return out
}

// ParseRoutingHeader decodes a 32-byte routing header.
func ParseRoutingHeader(b []byte) (RoutingHeader, error) {
	if len(b) < NetpktHeaderSize {
		return RoutingHeader{}, fmt.Errorf("%w: routing header", ErrTruncated)
	}
	if b[0] != netpktMagic[0] || b[1] != netpktMagic[1] || b[2] != netpktMagic[2] {
		return RoutingHeader{}, ErrBadMagic
	}
	var r RoutingHeader
	r.Flags = NetFlags(b[3])
	r.Hop = binary.LittleEndian.Uint32(b[4:8])
	r.Stamp = binary.LittleEndian.Uint64(b[8:16])
	for i := range r.Ubits {
		r.Ubits[i] = binary.LittleEndian.Uint32(b[16+i*4 : 20+i*4])
	}
	return r, nil
}

// Hopped returns a copy with Hop incremented by one, as a forwarder would
// apply when relaying a netpkt (spec.md §3 "Lifecycle").
func (r RoutingHeader) Hopped() RoutingHeader {
	r.Hop++
	return r
}

// WithFlags returns a copy with Flags replaced.
func (r RoutingHeader) WithFlags(f NetFlags) RoutingHeader {
	r.Flags = f
	return r
}
