// Package query implements query compilation and execution over a
// store.Reader snapshot: hash/log/tree modes, the tree-mode jumping
// cursor, counters, and the :follow option (spec.md §4.5).
package query

import (
	"bytes"

	"github.com/google/uuid"

	"linkspace/pkg/point"
	"linkspace/pkg/predicate"
	"linkspace/pkg/store"
)

// NewQid generates a random qid for a watch that doesn't need a
// caller-chosen, stable identifier.
func NewQid() string {
	return uuid.New().String()
}

// Mode selects how a query is executed (spec.md §4.5 ":mode").
type Mode int

const (
	ModeHashAsc Mode = iota
	ModeHashDesc
	ModeLogAsc
	ModeLogDesc
	ModeTreeAsc
	ModeTreeDesc
)

// Action is a watch handler's per-delivery decision.
type Action int

const (
	ActionContinue Action = iota
	ActionBreak
)

// Counters are the four query-local counters (spec.md §4.5 "Counter
// semantics").
type Counters struct {
	I       uint64
	IDb     uint64
	INew    uint64
	IBranch uint64
}

// Limits are the optional counter-predicate bounds on a query.
type Limits struct {
	IMax, IDbMax, INewMax, IBranchMax *uint64
	// DisableHistorical corresponds to i_db:=:0: skip the historical scan.
	DisableHistorical bool
	// DisableLive corresponds to i_new:=:0: never attach to the live stream.
	DisableLive bool
}

func (l Limits) historicalDone(c Counters) bool {
	if l.DisableHistorical {
		return true
	}
	if l.IMax != nil && c.I >= *l.IMax {
		return true
	}
	if l.IDbMax != nil && c.IDb >= *l.IDbMax {
		return true
	}
	return false
}

// Query is a compiled predicate set plus execution options (spec.md §4.5).
type Query struct {
	Predicates *predicate.PredicateSet
	Mode       Mode
	Qid        []byte
	Follow     bool
	Limits     Limits
}

// Handler receives one delivered point and the counters as of this
// delivery, and decides whether the query should continue.
type Handler func(pv *store.PointView, c Counters) Action

// RunHistorical executes a query's historical phase against a snapshot
// reader, delivering matches to handle in order until the handler breaks,
// a counter limit is reached, or the scan is exhausted.
func RunHistorical(r *store.Reader, q *Query, handle Handler) (Counters, error) {
	var c Counters
	if q.Limits.historicalDone(c) {
		return c, nil
	}

	switch q.Mode {
	case ModeHashAsc, ModeHashDesc:
		return runHash(r, q, handle, c)
	case ModeLogAsc:
		return runLog(r, q, handle, c, true)
	case ModeLogDesc:
		return runLog(r, q, handle, c, false)
	case ModeTreeAsc:
		return runTree(r, q, handle, c, true)
	default:
		return runTree(r, q, handle, c, false)
	}
}

func runHash(r *store.Reader, q *Query, handle Handler, c Counters) (Counters, error) {
	vs := q.Predicates.ValueSet(predicate.FieldHash)
	if vs == nil || !vs.IsSingleton() {
		return c, nil
	}
	var h point.Hash
	copy(h[:], vs.Eq)
	pv, ok, err := r.Read(h)
	if err != nil || !ok {
		return c, err
	}
	c = deliverWithFollow(r, q, handle, c, pv)
	return c, nil
}

func runLog(r *store.Reader, q *Query, handle Handler, c Counters, asc bool) (Counters, error) {
	recvSet := q.Predicates.ValueSet(predicate.FieldRecv)
	start, end := uint64(0), r.LogHead()
	if recvSet != nil {
		start = beUint64(recvSet.MinBound())
		end = beUint64(recvSet.MaxBound())
	}
	if !asc {
		start, end = end, start
	}
	pvs, err := r.LogRange(start, end)
	if err != nil {
		return c, err
	}
	for _, pv := range pvs {
		if !Matches(q.Predicates, pv) {
			continue
		}
		c.IDb++
		c.I++
		if handle(pv, c) == ActionBreak {
			return c, nil
		}
		if q.Limits.historicalDone(c) {
			return c, nil
		}
	}
	return c, nil
}

// treeCursor is the subset of *store.TreeCursor that runTree needs. Tests
// substitute newTreeCursor to wrap the real cursor with call counters,
// proving the jumping cursor stays sub-linear (spec.md §4.5 Scenario D).
type treeCursor interface {
	Seek(key []byte) (store.TreeEntry, bool, error)
	SeekPrev(key []byte) (store.TreeEntry, bool, error)
	Next() (store.TreeEntry, bool, error)
	Prev() (store.TreeEntry, bool, error)
}

var newTreeCursor = func(r *store.Reader) treeCursor {
	return r.TreeCursor()
}

// runTree implements the "jumping cursor" tree-mode seek (spec.md §4.5):
// it never visits more than O(matching+1) TreeIdx entries, building the
// next candidate key and Seek-ing directly to it whenever the current
// entry falls outside the compiled seek bounds (step 4), rather than
// stepping through every intervening row.
func runTree(r *store.Reader, q *Query, handle Handler, c Counters, asc bool) (Counters, error) {
	bounds := q.Predicates.SeekBounds()
	tc := newTreeCursor(r)

	branch := make(map[string]uint64)

	lowerKey := store.BuildSeekKey(bounds.GroupMin, bounds.DomainMin, bounds.DepthMin, bounds.PathPrefix, bounds.PubKeyMin)
	upperKey := store.BuildSeekKey(bounds.GroupMax, bounds.DomainMax, bounds.DepthMax, bounds.PathPrefix, bounds.PubKeyMax)

	var entry store.TreeEntry
	var ok bool
	var err error
	if asc {
		entry, ok, err = tc.Seek(lowerKey)
	} else {
		entry, ok, err = tc.SeekPrev(upperKey)
	}
	if err != nil {
		return c, err
	}

	for ok {
		key := store.BuildSeekKey(entry.Group[:], entry.Domain[:], entry.Depth, entry.Path, entry.PubKey[:])
		if asc && bytes.Compare(key, upperKey) > 0 {
			break
		}
		if !asc && bytes.Compare(key, lowerKey) < 0 {
			break
		}

		if q.Predicates.MatchesTreeDimensions(entry.Group[:], entry.Domain[:], entry.Depth, entry.Path, entry.PubKey[:]) &&
			q.Predicates.MatchesCreate(entry.Create) {
			found, rerr := r.GetByLogKeys([]uint64{entry.Recv})
			if rerr != nil {
				return c, rerr
			}
			if len(found) == 1 && found[0] != nil && Matches(q.Predicates, found[0]) {
				bk := string(entry.Group[:]) + string(entry.Domain[:]) + string(entry.Path) + string(entry.PubKey[:])
				branch[bk]++
				c.IBranch = branch[bk]
				if q.Limits.IBranchMax == nil || c.IBranch < *q.Limits.IBranchMax {
					c.IDb++
					c.I++
					if handle(found[0], c) == ActionBreak {
						return c, nil
					}
					if q.Limits.historicalDone(c) {
						return c, nil
					}
				}
			}
			if asc {
				entry, ok, err = tc.Next()
			} else {
				entry, ok, err = tc.Prev()
			}
			if err != nil {
				return c, err
			}
			continue
		}

		target, jump, step := nextCandidateKey(bounds, entry, asc)
		switch {
		case step:
			if asc {
				entry, ok, err = tc.Next()
			} else {
				entry, ok, err = tc.Prev()
			}
		case jump:
			if asc {
				entry, ok, err = tc.Seek(target)
			} else {
				entry, ok, err = tc.SeekPrev(target)
			}
		default:
			ok = false
		}
		if err != nil {
			return c, err
		}
	}
	return c, nil
}

// treeDim is one dimension of the TreeIdx key, in key order, carrying the
// current entry's value alongside the dimension's compiled floor/ceiling.
type treeDim struct {
	val, min, max []byte
	isPath        bool
	exact         bool
	unbounded     bool
}

// classify reports whether val is below the floor (-1), within bounds (0),
// or above the ceiling (+1) for this dimension.
func (d treeDim) classify() int {
	if d.isPath {
		if d.unbounded {
			return 0
		}
		if d.exact {
			switch {
			case bytes.Equal(d.val, d.min):
				return 0
			case bytes.Compare(d.val, d.min) < 0:
				return -1
			default:
				return 1
			}
		}
		if bytes.HasPrefix(d.val, d.min) {
			return 0
		}
		if bytes.Compare(d.val, d.min) < 0 {
			return -1
		}
		return 1
	}
	if bytes.Compare(d.val, d.min) < 0 {
		return -1
	}
	if bytes.Compare(d.val, d.max) > 0 {
		return 1
	}
	return 0
}

// stepUp returns the smallest value for this dimension strictly greater
// than its current value, or false if it is already at its ceiling.
func (d treeDim) stepUp() ([]byte, bool) {
	if d.isPath {
		succ := append(append([]byte(nil), d.val...), 0x00)
		if len(succ) > point.MaxSpathSize {
			return nil, false
		}
		if !d.unbounded && bytes.Compare(succ, d.max) > 0 {
			return nil, false
		}
		return succ, true
	}
	succ, ok := incBytes(d.val)
	if !ok || bytes.Compare(succ, d.max) > 0 {
		return nil, false
	}
	return succ, true
}

// stepDown returns the largest value for this dimension strictly less
// than its current value, or false if it is already at its floor.
func (d treeDim) stepDown() ([]byte, bool) {
	if d.isPath {
		if len(d.val) == 0 {
			return nil, false
		}
		out := append([]byte(nil), d.val...)
		if out[len(out)-1] == 0 {
			out = out[:len(out)-1]
		} else {
			out[len(out)-1]--
			for len(out) < point.MaxSpathSize {
				out = append(out, 0xff)
			}
		}
		if !d.unbounded && bytes.Compare(out, d.min) < 0 {
			return nil, false
		}
		return out, true
	}
	pred, ok := decBytes(d.val)
	if !ok || bytes.Compare(pred, d.min) < 0 {
		return nil, false
	}
	return pred, true
}

func buildTreeDims(bounds predicate.SeekBounds, entry store.TreeEntry) []treeDim {
	pathUnbounded := bounds.PathPrefix == nil
	pathMin := bounds.PathPrefix
	pathMax := bounds.PathPrefix
	if pathUnbounded {
		pathMin = nil
		pathMax = bytes.Repeat([]byte{0xff}, point.MaxSpathSize)
	} else if !bounds.PathExact {
		pad := point.MaxSpathSize - len(bounds.PathPrefix)
		pathMax = append(append([]byte(nil), bounds.PathPrefix...), bytes.Repeat([]byte{0xff}, pad)...)
	}

	return []treeDim{
		{val: entry.Group[:], min: bounds.GroupMin, max: bounds.GroupMax},
		{val: entry.Domain[:], min: bounds.DomainMin, max: bounds.DomainMax},
		{val: []byte{entry.Depth}, min: []byte{bounds.DepthMin}, max: []byte{bounds.DepthMax}},
		{val: entry.Path, min: pathMin, max: pathMax, isPath: true, exact: bounds.PathExact, unbounded: pathUnbounded},
		{val: entry.PubKey[:], min: bounds.PubKeyMin, max: bounds.PubKeyMax},
	}
}

func buildTreeKey(dims []treeDim) []byte {
	return store.BuildSeekKey(dims[0].val, dims[1].val, dims[2].val[0], dims[3].val, dims[4].val)
}

// nextCandidateKey computes the key the jumping cursor should Seek/SeekPrev
// to after entry fails the dimension test, using the first violated
// dimension to decide whether to raise (ascending) or lower (descending) a
// floor in place, or carry into a more significant dimension — the
// odometer step of spec.md §4.5's jumping cursor. jump is true when target
// holds a key to seek to; step is true when no dimension was violated (the
// miss is residual — a mask or `!=` constraint — and only one row can
// safely be skipped); neither true means the scan is exhausted.
func nextCandidateKey(bounds predicate.SeekBounds, entry store.TreeEntry, asc bool) (target []byte, jump bool, step bool) {
	dims := buildTreeDims(bounds, entry)

	viol, cls := -1, 0
	for i, d := range dims {
		if c := d.classify(); c != 0 {
			viol, cls = i, c
			break
		}
	}
	if viol == -1 {
		return nil, false, true
	}

	raiseFloor := (asc && cls < 0) || (!asc && cls > 0)
	if raiseFloor {
		for i := viol; i < len(dims); i++ {
			if asc {
				dims[i].val = dims[i].min
			} else {
				dims[i].val = dims[i].max
			}
		}
		return buildTreeKey(dims), true, false
	}

	for j := viol - 1; j >= 0; j-- {
		var succ []byte
		var ok bool
		if asc {
			succ, ok = dims[j].stepUp()
		} else {
			succ, ok = dims[j].stepDown()
		}
		if !ok {
			continue
		}
		dims[j].val = succ
		for k := j + 1; k < len(dims); k++ {
			if asc {
				dims[k].val = dims[k].min
			} else {
				dims[k].val = dims[k].max
			}
		}
		return buildTreeKey(dims), true, false
	}
	return nil, false, false
}

// incBytes increments a big-endian byte slice by one, saturating; ok is
// false if the value was already at its maximum.
func incBytes(b []byte) ([]byte, bool) {
	out := append([]byte(nil), b...)
	for i := len(out) - 1; i >= 0; i-- {
		if out[i] < 0xff {
			out[i]++
			return out, true
		}
		out[i] = 0
	}
	return out, false
}

// decBytes decrements a big-endian byte slice by one; ok is false if the
// value was already zero.
func decBytes(b []byte) ([]byte, bool) {
	out := append([]byte(nil), b...)
	for i := len(out) - 1; i >= 0; i-- {
		if out[i] > 0 {
			out[i]--
			return out, true
		}
		out[i] = 0xff
	}
	return out, false
}

// deliverWithFollow resolves a point's links through Reader.read and
// delivers them before the originating point, with LINKED_IN_FUTURE_PKT
// cleared and FlagFollowPulled set (spec.md §4.5 "Follow").
func deliverWithFollow(r *store.Reader, q *Query, handle Handler, c Counters, pv *store.PointView) Counters {
	if q.Follow {
		var links []point.Link
		switch lv, ok := pv.Netpkt.Point.AsLinkPoint(); {
		case ok:
			links = lv.Links
		default:
			if _, kv, kok := pv.Netpkt.Point.AsKeyPoint(); kok {
				links = kv.Links
			}
		}
		for _, link := range links {
			linked, ok, err := r.Read(link.Pointer)
			if err != nil || !ok {
				continue
			}
			routing := linked.Netpkt.Routing
			routing.Flags &^= point.FlagLinkedInFuturePkt
			routing.Flags |= point.FlagFollowPulled
			pulled := &store.PointView{
				Recv:   linked.Recv,
				Netpkt: &point.Netpkt{Routing: routing, Hash: linked.Netpkt.Hash, Point: linked.Netpkt.Point},
			}
			c.IDb++
			c.I++
			if handle(pulled, c) == ActionBreak {
				return c
			}
		}
	}
	c.IDb++
	c.I++
	handle(pv, c)
	return c
}

func beUint64(b []byte) uint64 {
	var v uint64
	for _, x := range b {
		v = v<<8 | uint64(x)
	}
	return v
}
