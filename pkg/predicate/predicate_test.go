package predicate

import (
	"testing"

	"linkspace/pkg/point"
)

func TestAddEqualCollapsesDuplicates(t *testing.T) {
	ps := New()
	v := EncodeUint64(42, 2)
	if err := ps.Add(Equal(FieldLinksLen, v)); err != nil {
		t.Fatalf("first add: %v", err)
	}
	if err := ps.Add(Equal(FieldLinksLen, v)); err != nil {
		t.Fatalf("duplicate add: %v", err)
	}
	vs := ps.ValueSet(FieldLinksLen)
	if !vs.IsSingleton() {
		t.Fatalf("expected singleton value set")
	}
}

func TestAddEqualConflictFails(t *testing.T) {
	ps := New()
	if err := ps.Add(Equal(FieldLinksLen, EncodeUint64(1, 2))); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := ps.Add(Equal(FieldLinksLen, EncodeUint64(2, 2))); err != ErrEmptyIntersection {
		t.Fatalf("err = %v, want ErrEmptyIntersection", err)
	}
}

func TestBoundsNarrowAndRejectEmpty(t *testing.T) {
	ps := New()
	if err := ps.Add(Predicate{Field: FieldCreate, Op: OpGreaterEqual, Value: EncodeUint64(100, 8)}); err != nil {
		t.Fatalf("add GE: %v", err)
	}
	if err := ps.Add(Predicate{Field: FieldCreate, Op: OpLessEqual, Value: EncodeUint64(200, 8)}); err != nil {
		t.Fatalf("add LE: %v", err)
	}
	vs := ps.ValueSet(FieldCreate)
	if !vs.Test(EncodeUint64(150, 8)) {
		t.Fatalf("150 should be in range [100,200]")
	}
	if vs.Test(EncodeUint64(99, 8)) || vs.Test(EncodeUint64(201, 8)) {
		t.Fatalf("out-of-range values should not test true")
	}

	if err := ps.Add(Predicate{Field: FieldCreate, Op: OpLessEqual, Value: EncodeUint64(50, 8)}); err != ErrEmptyIntersection {
		t.Fatalf("err = %v, want ErrEmptyIntersection", err)
	}
}

func TestPathRequiresExactDepth(t *testing.T) {
	ps := New()
	full, _ := point.NewPath([]byte("hello"), []byte("world"))
	if err := ps.Add(PathEqual(full)); err != nil {
		t.Fatalf("PathEqual: %v", err)
	}
	justHello, _ := point.NewPath([]byte("hello"))
	if ps.MatchesTreeDimensions(nil, nil, 1, justHello.SpathBytes(), nil) {
		t.Fatalf("depth-1 path should not match exact depth-2 predicate")
	}
	if !ps.MatchesTreeDimensions(nil, nil, 2, full.SpathBytes(), nil) {
		t.Fatalf("matching path should satisfy exact path predicate")
	}
}

func TestPrefixNarrowsToMoreSpecific(t *testing.T) {
	ps := New()
	hello, _ := point.NewPath([]byte("hello"))
	if err := ps.Add(PrefixEqual(hello)); err != nil {
		t.Fatalf("PrefixEqual hello: %v", err)
	}
	helloWorld, _ := point.NewPath([]byte("hello"), []byte("world"))
	if err := ps.Add(PrefixEqual(helloWorld)); err != nil {
		t.Fatalf("PrefixEqual hello/world: %v", err)
	}
	got, ok := ps.Prefix()
	if !ok || !got.Equal(helloWorld) {
		t.Fatalf("expected narrowed prefix hello/world, got %v", got)
	}
}

func TestPrefixDisjointFails(t *testing.T) {
	ps := New()
	a, _ := point.NewPath([]byte("a"))
	b, _ := point.NewPath([]byte("b"))
	if err := ps.Add(PrefixEqual(a)); err != nil {
		t.Fatalf("PrefixEqual a: %v", err)
	}
	if err := ps.Add(PrefixEqual(b)); err != ErrEmptyIntersection {
		t.Fatalf("err = %v, want ErrEmptyIntersection", err)
	}
}

func TestPathOnlyAcceptsEqual(t *testing.T) {
	ps := New()
	p, _ := point.NewPath([]byte("x"))
	err := ps.Add(Predicate{Field: FieldPath, Op: OpLess, Path: p})
	if err == nil {
		t.Fatalf("expected error for path with non-equal op")
	}
}

func TestMaskedEqual(t *testing.T) {
	ps := New()
	mask := []byte{0x0f}
	want := []byte{0x05}
	if err := ps.Add(Predicate{Field: FieldNetflags, Op: OpMaskedEqual, Mask: mask, Value: want}); err != nil {
		t.Fatalf("add masked equal: %v", err)
	}
	vs := ps.ValueSet(FieldNetflags)
	if !vs.Test([]byte{0x15}) {
		t.Fatalf("0x15 & 0x0f == 0x05, should match")
	}
	if vs.Test([]byte{0x13}) {
		t.Fatalf("0x13 & 0x0f == 0x03, should not match")
	}
}
