// Package dispatch implements the single-threaded cooperative watch loop
// over a store: watch/get/stop/process/process_while (spec.md §4.6),
// grounded on original_source's runtime/threads.rs poll loop and
// matcher/handle.rs's handle lifecycle, reworked from Rust's Rc-refcounted
// handles into explicit Stop calls since Go has no equivalent drop timing.
package dispatch

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"linkspace/pkg/query"
	"linkspace/pkg/store"
)

// StopReason explains why a watch stopped delivering.
type StopReason int

const (
	StopBreak StopReason = iota
	StopFinish
	StopReplaced
	StopClosed
)

func (r StopReason) String() string {
	switch r {
	case StopBreak:
		return "break"
	case StopFinish:
		return "finish"
	case StopReplaced:
		return "replaced"
	case StopClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// StoppedFunc is invoked exactly once when a watch stops.
type StoppedFunc func(reason StopReason)

type watchEntry struct {
	qid      string
	q        *query.Query
	handle   query.Handler
	stopped  StoppedFunc
	alive    bool
	counters query.Counters
	// histHead is the log head of the historical snapshot; live delivery
	// only considers points with a higher recv.
	histHead uint64
}

// Dispatcher owns the live-watch registry for one store and drains newly
// published points to every matching watch's handler. A Dispatcher itself
// is safe for concurrent use (Publish is typically called from the
// writer's goroutine while Process/ProcessWhile run elsewhere), but the
// historical-then-live delivery ordering for a single watch is only
// guaranteed when Watch and Process/ProcessWhile are not called
// concurrently for the same qid.
type Dispatcher struct {
	mu       sync.Mutex
	s        *store.Store
	log      *logrus.Logger
	watches  map[string]*watchEntry
	lastRecv uint64

	pending    uint64
	hasPending bool
	notifyCh   chan struct{}
}

// New creates a Dispatcher over s. The returned Dispatcher implements
// store.Notifier and should be passed to store.Open so writes wake it.
func New(s *store.Store, log *logrus.Logger) *Dispatcher {
	if log == nil {
		log = logrus.New()
	}
	return &Dispatcher{
		s:        s,
		log:      log,
		watches:  make(map[string]*watchEntry),
		notifyCh: make(chan struct{}, 1),
	}
}

// Publish implements store.Notifier. It only records a high-water recv
// and wakes any blocked ProcessWhile loop; it never runs handler code
// directly (spec.md §4.6, "the bus carries only the latest recv").
func (d *Dispatcher) Publish(recv uint64) {
	d.mu.Lock()
	if !d.hasPending || recv > d.pending {
		d.pending = recv
		d.hasPending = true
	}
	d.mu.Unlock()

	select {
	case d.notifyCh <- struct{}{}:
	default:
	}
}

// Watch registers handle under qid, first running q's historical phase
// against r synchronously, then attaching it for live delivery via
// Process/ProcessWhile. Watching an already-registered qid stops the
// previous watch with StopReplaced first (spec.md §4.6 "watch").
func (d *Dispatcher) Watch(r *store.Reader, qid string, q *query.Query, handle query.Handler, stopped StoppedFunc) error {
	if qid == "" {
		qid = query.NewQid()
	}
	d.mu.Lock()
	if old, ok := d.watches[qid]; ok {
		old.alive = false
		delete(d.watches, qid)
		d.mu.Unlock()
		if old.stopped != nil {
			old.stopped(StopReplaced)
		}
	} else {
		d.mu.Unlock()
	}

	entry := &watchEntry{qid: qid, q: q, handle: handle, stopped: stopped, alive: true, histHead: r.LogHead()}
	d.mu.Lock()
	d.watches[qid] = entry
	d.mu.Unlock()

	broken := false
	c, err := query.RunHistorical(r, q, func(pv *store.PointView, hc query.Counters) query.Action {
		act := handle(pv, hc)
		if act == query.ActionBreak {
			broken = true
		}
		return act
	})
	entry.counters = c
	if err != nil {
		d.Stop(qid, StopClosed)
		return err
	}
	if broken {
		d.Stop(qid, StopBreak)
	} else if q.Limits.DisableLive {
		d.Stop(qid, StopFinish)
	}
	return nil
}

// Get reports a watch's current counters and whether it is still active.
func (d *Dispatcher) Get(qid string) (query.Counters, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	e, ok := d.watches[qid]
	if !ok || !e.alive {
		return query.Counters{}, false
	}
	return e.counters, true
}

// Stop detaches a watch and invokes its StoppedFunc exactly once with
// reason, if it was still active.
func (d *Dispatcher) Stop(qid string, reason StopReason) {
	d.mu.Lock()
	e, ok := d.watches[qid]
	if ok {
		delete(d.watches, qid)
	}
	d.mu.Unlock()
	if ok && e.alive {
		e.alive = false
		if e.stopped != nil {
			e.stopped(reason)
		}
	}
	// Wake a ProcessWhile blocked on this qid so it sees the watch is gone.
	select {
	case d.notifyCh <- struct{}{}:
	default:
	}
}

// Process drains whatever recv range has been published since the last
// call, within a single fresh snapshot reader, and delivers matching
// points to every live watch in recv order (spec.md §4.6 "process").
// It returns immediately if nothing new has been published.
func (d *Dispatcher) Process() error {
	d.mu.Lock()
	if !d.hasPending {
		d.mu.Unlock()
		return nil
	}
	upto := d.pending
	from := d.lastRecv + 1
	d.hasPending = false
	d.mu.Unlock()

	if upto < from {
		return nil
	}

	r, err := d.s.NewReader()
	if err != nil {
		return err
	}
	defer r.Close()

	pvs, err := r.LogRange(from, upto)
	if err != nil {
		return err
	}

	d.mu.Lock()
	watches := make([]*watchEntry, 0, len(d.watches))
	for _, e := range d.watches {
		if e.alive {
			watches = append(watches, e)
		}
	}
	d.mu.Unlock()

	for _, pv := range pvs {
		for _, e := range watches {
			if !e.alive || pv.Recv <= e.histHead {
				continue
			}
			if !query.Matches(e.q.Predicates, pv) {
				continue
			}
			e.counters.INew++
			e.counters.I++
			if e.q.Limits.INewMax != nil && e.counters.INew > *e.q.Limits.INewMax {
				d.Stop(e.qid, StopFinish)
				continue
			}
			if e.handle(pv, e.counters) == query.ActionBreak {
				d.Stop(e.qid, StopBreak)
			}
		}
	}

	d.mu.Lock()
	d.lastRecv = upto
	d.mu.Unlock()
	return nil
}

// ProcessWhile repeatedly calls Process, blocking between calls until
// either a new high-water recv is published or ctx is done, until qid is
// no longer an active watch (spec.md §4.6 "process_while(qid, deadline)",
// ctx carrying the deadline/cancellation).
func (d *Dispatcher) ProcessWhile(ctx context.Context, qid string) error {
	for {
		if _, alive := d.Get(qid); !alive {
			return nil
		}
		if err := d.Process(); err != nil {
			return err
		}
		if _, alive := d.Get(qid); !alive {
			return nil
		}
		select {
		case <-ctx.Done():
			d.Stop(qid, StopClosed)
			return ctx.Err()
		case <-d.notifyCh:
		}
	}
}

// AttachStore binds the store Process reads from. Dispatcher and Store
// have a circular construction dependency (Store.Open takes a Notifier,
// but Dispatcher.Process needs the resulting *Store), so callers build
// the Dispatcher first with New(nil, log), open the store passing it as
// the Notifier, then call AttachStore with the result.
func (d *Dispatcher) AttachStore(s *store.Store) {
	d.mu.Lock()
	d.s = s
	d.mu.Unlock()
}

// ActiveWatchCount returns the number of currently registered watches.
func (d *Dispatcher) ActiveWatchCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.watches)
}

// Run drives Process in a loop until ctx is done, blocking between calls
// until Publish wakes it (spec.md §4.6's top-level poll loop, grounded on
// original_source's runtime/threads.rs "loop { rx2.poll().await }").
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		if err := d.Process(); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-d.notifyCh:
		}
	}
}

// Close stops every active watch with StopClosed.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	qids := make([]string, 0, len(d.watches))
	for qid := range d.watches {
		qids = append(qids, qid)
	}
	d.mu.Unlock()
	for _, qid := range qids {
		d.Stop(qid, StopClosed)
	}
}
