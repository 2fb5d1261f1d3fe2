package point

import (
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/schnorr"
)

// KeyPointHeader is the fixed 136-byte prefix of keypoint content: the
// signer's x-only public key, the Schnorr signature, and the hash and
// point header of the enclosed linkpoint (spec.md §3 "Keypoints bind a
// signature to a linkpoint").
type KeyPointHeader struct {
	PubKey      PubKey
	Signature   Signature
	InnerHash   Hash
	InnerHeader PointHeader
}

// Bytes serializes the keypoint header to its fixed KeyPointPrefixSize
// byte form: 4 reserved bytes, pubkey, signature, inner hash, inner
// point header.
func (h KeyPointHeader) Bytes() [KeyPointPrefixSize]byte {
	var out [KeyPointPrefixSize]byte
	off := 4
	copy(out[off:off+PubKeySize], h.PubKey[:])
	off += PubKeySize
	copy(out[off:off+SignatureSize], h.Signature[:])
	off += SignatureSize
	copy(out[off:off+HashSize], h.InnerHash[:])
	off += HashSize
	ih := h.InnerHeader.Bytes()
	copy(out[off:off+PointHeaderSize], ih[:])
	return out
}

// ParseKeyPointHeader decodes the fixed keypoint header prefix.
func ParseKeyPointHeader(b []byte) (KeyPointHeader, error) {
	if len(b) < KeyPointPrefixSize {
		return KeyPointHeader{}, fmt.Errorf("%w: keypoint header", ErrTruncated)
	}
	if b[0] != 0 || b[1] != 0 || b[2] != 0 || b[3] != 0 {
		return KeyPointHeader{}, ErrReservedNonZero
	}
	var h KeyPointHeader
	off := 4
	copy(h.PubKey[:], b[off:off+PubKeySize])
	off += PubKeySize
	copy(h.Signature[:], b[off:off+SignatureSize])
	off += SignatureSize
	copy(h.InnerHash[:], b[off:off+HashSize])
	off += HashSize
	ih, err := ParsePointHeader(b[off : off+PointHeaderSize])
	if err != nil {
		return KeyPointHeader{}, err
	}
	h.InnerHeader = ih
	return h, nil
}

// splitKeyPointContent validates a keypoint's content and returns its
// header and the enclosed linkpoint's content bytes: the inner size,
// hash, and signature are all checked here so callers never observe a
// keypoint whose signature doesn't bind its enclosed linkpoint.
func splitKeyPointContent(content []byte) (KeyPointHeader, []byte, error) {
	h, err := ParseKeyPointHeader(content)
	if err != nil {
		return KeyPointHeader{}, nil, err
	}
	if h.InnerHeader.Kind != KindLink {
		return KeyPointHeader{}, nil, fmt.Errorf("%w: keypoint must enclose a linkpoint", ErrBadKind)
	}
	innerContentLen := int(h.InnerHeader.Size) - PointHeaderSize
	if innerContentLen < 0 || KeyPointPrefixSize+innerContentLen > len(content) {
		return KeyPointHeader{}, nil, fmt.Errorf("%w: inner linkpoint size out of range", ErrTruncated)
	}
	innerContent := content[KeyPointPrefixSize : KeyPointPrefixSize+innerContentLen]

	innerHeaderBytes := h.InnerHeader.Bytes()
	innerBytes := make([]byte, 0, PointHeaderSize+innerContentLen)
	innerBytes = append(innerBytes, innerHeaderBytes[:]...)
	innerBytes = append(innerBytes, innerContent...)
	if HashPoint(innerBytes) != h.InnerHash {
		return KeyPointHeader{}, nil, ErrHashMismatch
	}
	if err := verifySignature(h.PubKey, h.InnerHash, h.Signature); err != nil {
		return KeyPointHeader{}, nil, err
	}
	return h, innerContent, nil
}

// verifySignature checks a Schnorr signature over hash against an x-only
// public key. decred's schnorr package verifies against a full compressed
// key, so the x-only key is reconstructed with an assumed 0x02 (even Y)
// prefix — the same convention SignLinkPoint enforces when producing keys.
func verifySignature(pub PubKey, hash Hash, sig Signature) error {
	if pub.IsZero() {
		return ErrBadSignature
	}
	compressed := make([]byte, 1+PubKeySize)
	compressed[0] = 0x02
	copy(compressed[1:], pub[:])
	pk, err := secp256k1.ParsePubKey(compressed)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBadSignature, err)
	}
	parsed, err := schnorr.ParseSignature(sig[:])
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBadSignature, err)
	}
	if !parsed.Verify(hash[:], pk) {
		return ErrBadSignature
	}
	return nil
}

// SignLinkPoint signs an inner linkpoint's hash with priv and returns the
// keypoint header that binds the signature to it. The enclosing keypoint's
// content is KeyPointHeader.Bytes() followed by innerContent.
func SignLinkPoint(priv *secp256k1.PrivateKey, innerHeader PointHeader, innerContent []byte) (KeyPointHeader, error) {
	if innerHeader.Kind != KindLink {
		return KeyPointHeader{}, fmt.Errorf("%w: keypoint must enclose a linkpoint", ErrBadKind)
	}
	signingKey, pub := evenYKeyPair(priv)

	innerHeaderBytes := innerHeader.Bytes()
	innerBytes := make([]byte, 0, PointHeaderSize+len(innerContent))
	innerBytes = append(innerBytes, innerHeaderBytes[:]...)
	innerBytes = append(innerBytes, innerContent...)
	innerHash := HashPoint(innerBytes)

	sig, err := schnorr.Sign(signingKey, innerHash[:])
	if err != nil {
		return KeyPointHeader{}, fmt.Errorf("%w: %v", ErrBadSignature, err)
	}
	var sb Signature
	copy(sb[:], sig.Serialize())

	return KeyPointHeader{
		PubKey:      pub,
		Signature:   sb,
		InnerHash:   innerHash,
		InnerHeader: innerHeader,
	}, nil
}

// evenYKeyPair returns the private scalar to sign with and its x-only
// public key, negating the scalar when the derived point has an odd Y so
// the stored 32-byte PubKey always corresponds to an even-Y (0x02) point
// (BIP-340-style x-only convention layered on decred's Schnorr variant).
func evenYKeyPair(priv *secp256k1.PrivateKey) (*secp256k1.PrivateKey, PubKey) {
	pub := priv.PubKey()
	compressed := pub.SerializeCompressed()
	var out PubKey
	if compressed[0] == 0x02 {
		copy(out[:], compressed[1:])
		return priv, out
	}
	var scalar secp256k1.ModNScalar
	scalar.SetByteSlice(priv.Serialize())
	scalar.Negate()
	negBytes := scalar.Bytes()
	negPriv := secp256k1.PrivKeyFromBytes(negBytes[:])
	negPub := negPriv.PubKey().SerializeCompressed()
	copy(out[:], negPub[1:])
	return negPriv, out
}

// AsKeyPoint returns the parsed keypoint view if p is a keypoint, verifying
// the enclosed linkpoint's hash and signature.
func (p *Point) AsKeyPoint() (*KeyPointHeader, *LinkPointView, bool) {
	if p.Header.Kind != KindKey {
		return nil, nil, false
	}
	h, inner, err := splitKeyPointContent(p.Content)
	if err != nil {
		return nil, nil, false
	}
	lv, err := parseLinkPointContent(inner)
	if err != nil {
		return nil, nil, false
	}
	return &h, &lv, true
}
