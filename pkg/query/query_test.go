package query

import (
	"testing"

	"linkspace/pkg/point"
	"linkspace/pkg/predicate"
	"linkspace/pkg/store"
)

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(t.TempDir(), nil, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func writeLinkpoint(t *testing.T, s *store.Store, group point.GroupID, domain point.Domain, path point.Path, create uint64, links []point.Link) *point.Netpkt {
	t.Helper()
	p, err := point.BuildLinkpoint(group, domain, path, links, nil, create)
	if err != nil {
		t.Fatalf("BuildLinkpoint: %v", err)
	}
	n := point.NewNetpkt(point.RoutingHeader{}, p)
	if _, err := s.Write([]*point.Netpkt{n}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	return n
}

func collect(t *testing.T, r *store.Reader, q *Query) []*store.PointView {
	t.Helper()
	var out []*store.PointView
	_, err := RunHistorical(r, q, func(pv *store.PointView, c Counters) Action {
		out = append(out, pv)
		return ActionContinue
	})
	if err != nil {
		t.Fatalf("RunHistorical: %v", err)
	}
	return out
}

func TestHashModeFindsExactPoint(t *testing.T) {
	s := openTestStore(t)
	var group point.GroupID
	group[0] = 9
	n := writeLinkpoint(t, s, group, point.Domain{}, point.Path{}, 1, nil)

	r, err := s.NewReader()
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	defer r.Close()

	ps := predicate.New()
	h := n.Point.Hash()
	if err := ps.Add(predicate.Equal(predicate.FieldHash, h[:])); err != nil {
		t.Fatalf("Add hash predicate: %v", err)
	}
	q := &Query{Predicates: ps, Mode: ModeHashAsc}
	got := collect(t, r, q)
	if len(got) != 1 || got[0].Netpkt.Point.Hash() != h {
		t.Fatalf("hash query got %d results, want the one matching point", len(got))
	}
}

func TestLogModeReturnsAllInOrder(t *testing.T) {
	s := openTestStore(t)
	var recvHashes []point.Hash
	for i := 0; i < 3; i++ {
		path, _ := point.NewPath([]byte{byte(i)})
		n := writeLinkpoint(t, s, point.GroupID{}, point.Domain{}, path, uint64(i), nil)
		recvHashes = append(recvHashes, n.Point.Hash())
	}

	r, err := s.NewReader()
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	defer r.Close()

	q := &Query{Predicates: predicate.New(), Mode: ModeLogAsc}
	got := collect(t, r, q)
	if len(got) != 3 {
		t.Fatalf("got %d results, want 3", len(got))
	}
	for i, pv := range got {
		if pv.Netpkt.Point.Hash() != recvHashes[i] {
			t.Fatalf("result[%d] hash mismatch", i)
		}
	}
}

func TestTreeModeNarrowsByGroupAndPrefix(t *testing.T) {
	s := openTestStore(t)
	var groupA, groupB point.GroupID
	groupA[0], groupB[0] = 1, 2

	helloWorld, _ := point.NewPath([]byte("hello"), []byte("world"))
	helloMoon, _ := point.NewPath([]byte("hello"), []byte("moon"))
	byeWorld, _ := point.NewPath([]byte("bye"), []byte("world"))

	match := writeLinkpoint(t, s, groupA, point.Domain{}, helloWorld, 10, nil)
	moon := writeLinkpoint(t, s, groupA, point.Domain{}, helloMoon, 20, nil)
	writeLinkpoint(t, s, groupA, point.Domain{}, byeWorld, 30, nil)
	writeLinkpoint(t, s, groupB, point.Domain{}, helloWorld, 40, nil)

	r, err := s.NewReader()
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	defer r.Close()

	ps := predicate.New()
	if err := ps.Add(predicate.Equal(predicate.FieldGroup, groupA[:])); err != nil {
		t.Fatalf("Add group: %v", err)
	}
	hello, _ := point.NewPath([]byte("hello"))
	if err := ps.Add(predicate.PrefixEqual(hello)); err != nil {
		t.Fatalf("Add prefix: %v", err)
	}

	// Both hello/moon and hello/world in group A carry the prefix; in
	// ascending tree order "moon" (length byte 4) sorts before "world" (5).
	q := &Query{Predicates: ps, Mode: ModeTreeAsc}
	got := collect(t, r, q)
	if len(got) != 2 {
		t.Fatalf("got %d results, want 2", len(got))
	}
	if got[0].Netpkt.Point.Hash() != moon.Point.Hash() || got[1].Netpkt.Point.Hash() != match.Point.Hash() {
		t.Fatalf("wrong points returned")
	}
}

func TestTreeModeDescReturnsNewestFirst(t *testing.T) {
	s := openTestStore(t)
	var group point.GroupID
	group[0] = 5
	p1, _ := point.NewPath([]byte("a"))
	p2, _ := point.NewPath([]byte("b"))
	first := writeLinkpoint(t, s, group, point.Domain{}, p1, 1, nil)
	second := writeLinkpoint(t, s, group, point.Domain{}, p2, 2, nil)

	r, err := s.NewReader()
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	defer r.Close()

	ps := predicate.New()
	if err := ps.Add(predicate.Equal(predicate.FieldGroup, group[:])); err != nil {
		t.Fatalf("Add group: %v", err)
	}
	q := &Query{Predicates: ps, Mode: ModeTreeDesc}
	got := collect(t, r, q)
	if len(got) != 2 {
		t.Fatalf("got %d results, want 2", len(got))
	}
	if got[0].Netpkt.Point.Hash() != second.Point.Hash() || got[1].Netpkt.Point.Hash() != first.Point.Hash() {
		t.Fatalf("expected newest-create-first ordering")
	}
}

func TestFollowDeliversLinkedPointFirst(t *testing.T) {
	s := openTestStore(t)
	target := writeLinkpoint(t, s, point.GroupID{}, point.Domain{}, point.Path{}, 1, nil)
	th := target.Point.Hash()
	link := point.Link{Pointer: th}
	source := writeLinkpoint(t, s, point.GroupID{}, point.Domain{}, point.Path{}, 2, []point.Link{link})

	r, err := s.NewReader()
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	defer r.Close()

	ps := predicate.New()
	sh := source.Point.Hash()
	if err := ps.Add(predicate.Equal(predicate.FieldHash, sh[:])); err != nil {
		t.Fatalf("Add hash: %v", err)
	}
	q := &Query{Predicates: ps, Mode: ModeHashAsc, Follow: true}
	got := collect(t, r, q)
	if len(got) != 2 {
		t.Fatalf("got %d results, want 2 (linked point + source)", len(got))
	}
	if got[0].Netpkt.Point.Hash() != th {
		t.Fatalf("linked point should be delivered before the source point")
	}
	if got[0].Netpkt.Routing.Flags&point.FlagFollowPulled == 0 {
		t.Fatalf("expected FlagFollowPulled set on followed point")
	}
	if got[1].Netpkt.Point.Hash() != sh {
		t.Fatalf("source point should be delivered second")
	}
}

// countingCursor wraps a treeCursor and counts every Seek/SeekPrev/Next/Prev
// call, so a test can assert the jumping cursor stays sub-linear rather than
// degenerating into a row-by-row scan (spec.md §4.5 Scenario D).
type countingCursor struct {
	tc  treeCursor
	ops *int
}

func (c *countingCursor) Seek(key []byte) (store.TreeEntry, bool, error) {
	*c.ops++
	return c.tc.Seek(key)
}

func (c *countingCursor) SeekPrev(key []byte) (store.TreeEntry, bool, error) {
	*c.ops++
	return c.tc.SeekPrev(key)
}

func (c *countingCursor) Next() (store.TreeEntry, bool, error) {
	*c.ops++
	return c.tc.Next()
}

func (c *countingCursor) Prev() (store.TreeEntry, bool, error) {
	*c.ops++
	return c.tc.Prev()
}

// TestTreeModeDomainOnlyJumpsPastOtherGroups is the Scenario D case: the
// query pins only domain, leaving group unconstrained across many distinct
// groups. A linear scan would visit every TreeIdx row; the jumping cursor
// must instead seek past each non-matching group in O(matching groups)
// operations rather than O(total rows).
func TestTreeModeDomainOnlyJumpsPastOtherGroups(t *testing.T) {
	s := openTestStore(t)
	const numGroups = 20
	const perGroup = 5
	const noisePerGroup = 10

	var targetDomain point.Domain
	targetDomain[0] = 0x42

	var want []point.Hash
	for g := 0; g < numGroups; g++ {
		var group point.GroupID
		group[0] = byte(g + 1)
		for i := 0; i < perGroup; i++ {
			path, _ := point.NewPath([]byte{byte(i)})
			n := writeLinkpoint(t, s, group, targetDomain, path, uint64(i), nil)
			want = append(want, n.Point.Hash())
		}
		// Noise entries in an unrelated domain, same groups, so a correct
		// jump must skip past them too.
		var otherDomain point.Domain
		otherDomain[0] = 0x99
		otherPath, _ := point.NewPath([]byte("noise"))
		for j := 0; j < noisePerGroup; j++ {
			writeLinkpoint(t, s, group, otherDomain, otherPath, uint64(j), nil)
		}
	}

	r, err := s.NewReader()
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	defer r.Close()

	ps := predicate.New()
	if err := ps.Add(predicate.Equal(predicate.FieldDomain, targetDomain[:])); err != nil {
		t.Fatalf("Add domain: %v", err)
	}
	q := &Query{Predicates: ps, Mode: ModeTreeAsc}

	var ops int
	orig := newTreeCursor
	newTreeCursor = func(rd *store.Reader) treeCursor {
		return &countingCursor{tc: orig(rd), ops: &ops}
	}
	defer func() { newTreeCursor = orig }()

	got := collect(t, r, q)
	if len(got) != len(want) {
		t.Fatalf("got %d results, want %d", len(got), len(want))
	}
	totalRows := numGroups * (perGroup + noisePerGroup)
	if ops >= totalRows {
		t.Fatalf("cursor ops = %d, want well under total row count %d (scan was linear, not a jump)", ops, totalRows)
	}
}

func TestLimitsStopDeliveryEarly(t *testing.T) {
	s := openTestStore(t)
	for i := 0; i < 5; i++ {
		path, _ := point.NewPath([]byte{byte(i)})
		writeLinkpoint(t, s, point.GroupID{}, point.Domain{}, path, uint64(i), nil)
	}

	r, err := s.NewReader()
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	defer r.Close()

	max := uint64(2)
	q := &Query{Predicates: predicate.New(), Mode: ModeLogAsc, Limits: Limits{IMax: &max}}
	got := collect(t, r, q)
	if len(got) != 2 {
		t.Fatalf("got %d results, want 2 (limit i<2)", len(got))
	}
}
