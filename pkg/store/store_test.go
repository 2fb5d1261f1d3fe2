package store

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"linkspace/pkg/point"
)

type collectingNotifier struct {
	recvs []uint64
}

func (c *collectingNotifier) Publish(recv uint64) {
	c.recvs = append(c.recvs, recv)
}

func openTestStore(t *testing.T, n Notifier) *Store {
	t.Helper()
	s, err := Open(t.TempDir(), n, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func datapointNetpkt(t *testing.T, data []byte) *point.Netpkt {
	t.Helper()
	p, err := point.BuildDatapoint(data)
	if err != nil {
		t.Fatalf("BuildDatapoint: %v", err)
	}
	return point.NewNetpkt(point.RoutingHeader{}, p)
}

func linkpointNetpkt(t *testing.T, group point.GroupID, domain point.Domain, path point.Path, create uint64) *point.Netpkt {
	t.Helper()
	p, err := point.BuildLinkpoint(group, domain, path, nil, nil, create)
	if err != nil {
		t.Fatalf("BuildLinkpoint: %v", err)
	}
	return point.NewNetpkt(point.RoutingHeader{}, p)
}

func TestWriteAndReadDatapoint(t *testing.T) {
	s := openTestStore(t, nil)
	n := datapointNetpkt(t, []byte("hello"))

	results, err := s.Write([]*point.Netpkt{n})
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if len(results) != 1 || results[0].Status != StatusNew {
		t.Fatalf("results = %+v, want one StatusNew", results)
	}

	r, err := s.NewReader()
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	defer r.Close()

	pv, ok, err := r.Read(n.Point.Hash())
	if err != nil || !ok {
		t.Fatalf("Read: ok=%v err=%v", ok, err)
	}
	if pv.Recv != results[0].Recv {
		t.Fatalf("recv = %d, want %d", pv.Recv, results[0].Recv)
	}
	if pv.Netpkt.Point.Hash() != n.Point.Hash() {
		t.Fatalf("read-back hash mismatch")
	}
}

func TestWriteIsIdempotent(t *testing.T) {
	s := openTestStore(t, nil)
	n := datapointNetpkt(t, []byte("dup"))

	first, err := s.Write([]*point.Netpkt{n})
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	second, err := s.Write([]*point.Netpkt{n, n})
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if first[0].Status != StatusNew {
		t.Fatalf("first write status = %v, want StatusNew", first[0].Status)
	}
	for _, r := range second {
		if r.Status != StatusExists {
			t.Fatalf("status = %v, want StatusExists", r.Status)
		}
		if r.Recv != first[0].Recv {
			t.Fatalf("recv = %d, want %d", r.Recv, first[0].Recv)
		}
	}
}

func TestRecvStrictlyIncreasing(t *testing.T) {
	s := openTestStore(t, nil)
	var prev uint64
	for i := 0; i < 5; i++ {
		n := datapointNetpkt(t, []byte{byte(i)})
		res, err := s.Write([]*point.Netpkt{n})
		if err != nil {
			t.Fatalf("Write: %v", err)
		}
		if res[0].Recv <= prev {
			t.Fatalf("recv %d did not increase past %d", res[0].Recv, prev)
		}
		prev = res[0].Recv
	}
}

func TestLinkpointTreeEntry(t *testing.T) {
	s := openTestStore(t, nil)
	var group point.GroupID
	group[0] = 1
	var domain point.Domain
	domain[0] = 2
	path, _ := point.NewPath([]byte("hello"), []byte("world"))

	n := linkpointNetpkt(t, group, domain, path, 1000)
	res, err := s.Write([]*point.Netpkt{n})
	if err != nil {
		t.Fatalf("Write: %v", err)
	}

	r, err := s.NewReader()
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	defer r.Close()

	prefix := treeKeyPrefix(group, domain, 2, path.SpathBytes(), point.PubKey{})
	e, ok, err := r.TreeCursor().Seek(prefix)
	if err != nil {
		t.Fatalf("Seek: %v", err)
	}
	if !ok {
		t.Fatalf("tree entry not found")
	}
	if e.Recv != res[0].Recv {
		t.Fatalf("tree entry recv = %d, want %d", e.Recv, res[0].Recv)
	}
	if e.Hash != n.Point.Hash() {
		t.Fatalf("tree entry hash mismatch")
	}
	if e.Create != 1000 {
		t.Fatalf("tree entry create = %d, want 1000", e.Create)
	}
}

func TestDatapointHasNoTreeEntry(t *testing.T) {
	s := openTestStore(t, nil)
	n := datapointNetpkt(t, []byte("no tree entry"))
	if _, err := s.Write([]*point.Netpkt{n}); err != nil {
		t.Fatalf("Write: %v", err)
	}

	r, err := s.NewReader()
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	defer r.Close()

	_, ok, err := r.TreeCursor().Seek(nil)
	if err != nil {
		t.Fatalf("Seek: %v", err)
	}
	if ok {
		t.Fatalf("expected empty tree index for datapoint-only store")
	}
}

func TestLogRangeForwardAndReverse(t *testing.T) {
	s := openTestStore(t, nil)
	var recvs []uint64
	for i := 0; i < 4; i++ {
		n := datapointNetpkt(t, []byte{byte(i)})
		res, err := s.Write([]*point.Netpkt{n})
		if err != nil {
			t.Fatalf("Write: %v", err)
		}
		recvs = append(recvs, res[0].Recv)
	}

	r, err := s.NewReader()
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	defer r.Close()

	fwd, err := r.LogRange(recvs[0], recvs[len(recvs)-1])
	if err != nil {
		t.Fatalf("LogRange forward: %v", err)
	}
	var fwdRecvs []uint64
	for _, pv := range fwd {
		fwdRecvs = append(fwdRecvs, pv.Recv)
	}
	if diff := cmp.Diff(recvs, fwdRecvs); diff != "" {
		t.Fatalf("forward recv order mismatch (-want +got):\n%s", diff)
	}

	rev, err := r.LogRange(recvs[len(recvs)-1], recvs[0])
	if err != nil {
		t.Fatalf("LogRange reverse: %v", err)
	}
	wantRev := make([]uint64, len(recvs))
	for i, v := range recvs {
		wantRev[len(recvs)-1-i] = v
	}
	var revRecvs []uint64
	for _, pv := range rev {
		revRecvs = append(revRecvs, pv.Recv)
	}
	if diff := cmp.Diff(wantRev, revRecvs); diff != "" {
		t.Fatalf("reverse recv order mismatch (-want +got):\n%s", diff)
	}
}

func TestWritePublishesHighWaterRecv(t *testing.T) {
	n := &collectingNotifier{}
	s := openTestStore(t, n)
	p1 := datapointNetpkt(t, []byte("a"))
	p2 := datapointNetpkt(t, []byte("b"))

	res, err := s.Write([]*point.Netpkt{p1, p2})
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if len(n.recvs) != 1 {
		t.Fatalf("Publish called %d times, want 1", len(n.recvs))
	}
	if n.recvs[0] != res[1].Recv {
		t.Fatalf("published recv = %d, want %d", n.recvs[0], res[1].Recv)
	}
}

func TestInvalidPointSkippedNotAborted(t *testing.T) {
	s := openTestStore(t, nil)
	good := datapointNetpkt(t, []byte("ok"))
	bad, err := point.BuildDatapoint([]byte("corrupt"))
	if err != nil {
		t.Fatalf("BuildDatapoint: %v", err)
	}
	badNetpkt := point.NewNetpkt(point.RoutingHeader{}, bad)
	badNetpkt.Hash[0] ^= 0xff // now fails CheckNetpkt

	results, err := s.Write([]*point.Netpkt{good, badNetpkt})
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if results[0].Status != StatusNew {
		t.Fatalf("good point status = %v, want StatusNew", results[0].Status)
	}
	if results[1].Status != StatusInvalid {
		t.Fatalf("bad point status = %v, want StatusInvalid", results[1].Status)
	}

	r, err := s.NewReader()
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	defer r.Close()
	if _, ok, _ := r.Read(bad.Hash()); ok {
		t.Fatalf("invalid point should not be stored")
	}
}
