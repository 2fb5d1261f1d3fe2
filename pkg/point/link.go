package point

import "fmt"

// Hash is a 32-byte BLAKE3 point hash (spec.md §3 "Hash").
type Hash [HashSize]byte

// GroupID scopes a linkpoint to a publish/subscribe group.
type GroupID [GroupSize]byte

// Domain is an application-defined namespace within a group.
type Domain [DomainSize]byte

// PubKey is a secp256k1 compressed-x-only public key identifying a signer.
type PubKey [PubKeySize]byte

// Signature is a 64-byte Schnorr signature.
type Signature [SignatureSize]byte

// LinkTag is the 16-byte tag half of a Link.
type LinkTag [LinkTagSize]byte

// Link is a 48-byte (tag, pointer) pair, order-preserved within a point
// (spec.md §3 "Link").
type Link struct {
	Tag     LinkTag
	Pointer Hash
}

// Bytes serializes the link to its 48-byte on-wire form.
func (l Link) Bytes() [LinkSize]byte {
	var out [LinkSize]byte
	copy(out[:LinkTagSize], l.Tag[:])
	copy(out[LinkTagSize:], l.Pointer[:])
	return out
}

// ParseLink decodes a single 48-byte link record.
func ParseLink(b []byte) (Link, error) {
	if len(b) != LinkSize {
		return Link{}, fmt.Errorf("%w: link must be %d bytes, got %d", ErrTruncated, LinkSize, len(b))
	}
	var l Link
	copy(l.Tag[:], b[:LinkTagSize])
	copy(l.Pointer[:], b[LinkTagSize:])
	return l, nil
}

// EncodeLinks serializes a slice of links in order.
func EncodeLinks(links []Link) []byte {
	out := make([]byte, 0, len(links)*LinkSize)
	for _, l := range links {
		b := l.Bytes()
		out = append(out, b[:]...)
	}
	return out
}

// ParseLinks decodes count links from b, which must hold exactly
// count*LinkSize bytes.
func ParseLinks(b []byte, count int) ([]Link, error) {
	if len(b) != count*LinkSize {
		return nil, fmt.Errorf("%w: expected %d link bytes, got %d", ErrTruncated, count*LinkSize, len(b))
	}
	out := make([]Link, count)
	for i := range out {
		l, err := ParseLink(b[i*LinkSize : (i+1)*LinkSize])
		if err != nil {
			return nil, err
		}
		out[i] = l
	}
	return out, nil
}

// IsZero reports whether the hash is all-zero.
func (h Hash) IsZero() bool {
	for _, b := range h {
		if b != 0 {
			return false
		}
	}
	return true
}

// IsZero reports whether the pubkey is all-zero.
func (p PubKey) IsZero() bool {
	for _, b := range p {
		if b != 0 {
			return false
		}
	}
	return true
}
