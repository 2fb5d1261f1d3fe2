package point

import (
	"bytes"
	"testing"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/google/go-cmp/cmp"
)

func TestDatapointRoundTrip(t *testing.T) {
	p, err := BuildDatapoint([]byte("hello world"))
	if err != nil {
		t.Fatalf("BuildDatapoint: %v", err)
	}
	b := p.Bytes()
	got, err := Parse(b)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got.Header.Kind != KindData {
		t.Fatalf("kind = %v, want KindData", got.Header.Kind)
	}
	if !bytes.Equal(got.Data(), []byte("hello world")) {
		t.Fatalf("Data() = %q, want %q", got.Data(), "hello world")
	}
	if got.Hash() != p.Hash() {
		t.Fatalf("hash mismatch after round trip")
	}
	if err := Check(got); err != nil {
		t.Fatalf("Check: %v", err)
	}
}

func TestErrorpointKind(t *testing.T) {
	p, err := BuildErrorpoint([]byte("boom"))
	if err != nil {
		t.Fatalf("BuildErrorpoint: %v", err)
	}
	if p.Header.Kind != KindError {
		t.Fatalf("kind = %v, want KindError", p.Header.Kind)
	}
	if !bytes.Equal(p.Data(), []byte("boom")) {
		t.Fatalf("Data() = %q", p.Data())
	}
}

func TestLinkpointRoundTrip(t *testing.T) {
	path, err := NewPath([]byte("a"), []byte("bb"), []byte("ccc"))
	if err != nil {
		t.Fatalf("NewPath: %v", err)
	}
	links := []Link{
		{Tag: LinkTag{1, 2, 3}, Pointer: Hash{4, 5, 6}},
		{Tag: LinkTag{7}, Pointer: Hash{8}},
	}
	var group GroupID
	group[0] = 0xaa
	var domain Domain
	domain[0] = 0xbb

	p, err := BuildLinkpoint(group, domain, path, links, []byte("payload"), 42)
	if err != nil {
		t.Fatalf("BuildLinkpoint: %v", err)
	}
	b := p.Bytes()
	got, err := Parse(b)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if err := Check(got); err != nil {
		t.Fatalf("Check: %v", err)
	}
	lv, ok := got.AsLinkPoint()
	if !ok {
		t.Fatalf("AsLinkPoint: not ok")
	}
	if lv.Header.Group != group || lv.Header.Domain != domain {
		t.Fatalf("group/domain mismatch: %+v", lv.Header)
	}
	if lv.Header.Create != 42 {
		t.Fatalf("create = %d, want 42", lv.Header.Create)
	}
	if !lv.Path.Equal(path) {
		t.Fatalf("path mismatch: got %v want %v", lv.Path, path)
	}
	if diff := cmp.Diff(links, lv.Links); diff != "" {
		t.Fatalf("links mismatch (-want +got):\n%s", diff)
	}
	if !bytes.Equal(lv.Data, []byte("payload")) {
		t.Fatalf("Data = %q", lv.Data)
	}
	if !bytes.Equal(got.Data(), []byte("payload")) {
		t.Fatalf("Point.Data() = %q", got.Data())
	}
}

func TestLinkpointSegmentsReassemble(t *testing.T) {
	path, _ := NewPath([]byte("x"), []byte("y"))
	links := []Link{{Tag: LinkTag{9}, Pointer: Hash{1}}}
	var group GroupID
	var domain Domain
	p, err := BuildLinkpoint(group, domain, path, links, []byte("z"), 1)
	if err != nil {
		t.Fatalf("BuildLinkpoint: %v", err)
	}
	segs := p.Segments()
	var reassembled []byte
	for _, s := range segs {
		reassembled = append(reassembled, s...)
	}
	if !bytes.Equal(reassembled, p.Bytes()) {
		t.Fatalf("segments do not reassemble to point bytes")
	}
}

func TestKeypointRoundTripAndSignatureVerifies(t *testing.T) {
	priv, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("GeneratePrivateKey: %v", err)
	}
	path, _ := NewPath([]byte("feed"))
	links := []Link{{Tag: LinkTag{1}, Pointer: Hash{2}}}
	var group GroupID
	group[5] = 1
	var domain Domain
	domain[5] = 2

	p, err := BuildKeypoint(priv, group, domain, path, links, []byte("signed payload"), 7)
	if err != nil {
		t.Fatalf("BuildKeypoint: %v", err)
	}
	b := p.Bytes()
	got, err := Parse(b)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if err := Check(got); err != nil {
		t.Fatalf("Check: %v", err)
	}
	kh, lv, ok := got.AsKeyPoint()
	if !ok {
		t.Fatalf("AsKeyPoint: not ok")
	}
	if kh.PubKey.IsZero() {
		t.Fatalf("pubkey is zero")
	}
	if !bytes.Equal(lv.Data, []byte("signed payload")) {
		t.Fatalf("Data = %q", lv.Data)
	}
	if !bytes.Equal(got.Data(), []byte("signed payload")) {
		t.Fatalf("Point.Data() = %q", got.Data())
	}
}

func TestKeypointTamperedSignatureFailsCheck(t *testing.T) {
	priv, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("GeneratePrivateKey: %v", err)
	}
	path, _ := NewPath([]byte("feed"))
	var group GroupID
	var domain Domain

	p, err := BuildKeypoint(priv, group, domain, path, nil, []byte("payload"), 1)
	if err != nil {
		t.Fatalf("BuildKeypoint: %v", err)
	}
	// flip a byte inside the signature region of the keypoint content
	// (reserved(4) and pubkey come first).
	p.Content[4+PubKeySize+10] ^= 0xff

	if err := Check(p); err == nil {
		t.Fatalf("Check: expected error for tampered signature, got nil")
	}
}

func TestNetpktRoundTrip(t *testing.T) {
	p, err := BuildDatapoint([]byte("net"))
	if err != nil {
		t.Fatalf("BuildDatapoint: %v", err)
	}
	routing := RoutingHeader{Flags: FlagSilent, Hop: 3, Stamp: 1000, Ubits: [4]uint32{1, 2, 3, 4}}
	n := NewNetpkt(routing, p)
	b := n.Bytes()

	got, err := ParseNetpkt(b)
	if err != nil {
		t.Fatalf("ParseNetpkt: %v", err)
	}
	if err := CheckNetpkt(got); err != nil {
		t.Fatalf("CheckNetpkt: %v", err)
	}
	if diff := cmp.Diff(routing, got.Routing); diff != "" {
		t.Fatalf("routing mismatch (-want +got):\n%s", diff)
	}
	if got.Hash != p.Hash() {
		t.Fatalf("hash mismatch")
	}

	hopped := got.Routing.Hopped()
	if hopped.Hop != routing.Hop+1 {
		t.Fatalf("Hopped: hop = %d, want %d", hopped.Hop, routing.Hop+1)
	}
}

func TestNetpktHashMismatchFailsCheck(t *testing.T) {
	p, err := BuildDatapoint([]byte("net"))
	if err != nil {
		t.Fatalf("BuildDatapoint: %v", err)
	}
	n := NewNetpkt(RoutingHeader{}, p)
	n.Hash[0] ^= 0xff
	if err := CheckNetpkt(n); err != ErrHashMismatch {
		t.Fatalf("CheckNetpkt: err = %v, want ErrHashMismatch", err)
	}
}
