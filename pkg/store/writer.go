package store

import (
	"encoding/binary"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"linkspace/pkg/point"
)

// Status is the outcome of writing a single point.
type Status int

const (
	// StatusNew means the point was newly appended to the Log.
	StatusNew Status = iota
	// StatusExists means the point's hash was already present; no recv
	// slot was consumed.
	StatusExists
	// StatusInvalid means the point failed check and was never stored.
	StatusInvalid
)

func (s Status) String() string {
	switch s {
	case StatusNew:
		return "new"
	case StatusExists:
		return "exists"
	case StatusInvalid:
		return "invalid"
	default:
		return "unknown"
	}
}

// WriteResult reports the outcome for one point in a Write batch.
type WriteResult struct {
	Hash   point.Hash
	Recv   uint64
	Status Status
	Err    error
}

// Write appends a batch of netpkts atomically (spec.md §4.2 "Write
// transaction"). Invalid points are skipped (StatusInvalid) without
// aborting the rest of the batch; a storage-level failure aborts the
// whole transaction and no point in the batch becomes visible.
func (s *Store) Write(pkts []*point.Netpkt) ([]WriteResult, error) {
	results := make([]WriteResult, len(pkts))
	var lastRecv uint64
	var publishedAny bool

	err := s.db.Update(func(tx *bbolt.Tx) error {
		logB := tx.Bucket(bucketLog)
		hashB := tx.Bucket(bucketHash)
		treeB := tx.Bucket(bucketTree)

		startRecv, err := nextRecv(logB)
		if err != nil {
			return err
		}
		next := startRecv

		for i, n := range pkts {
			if err := point.CheckNetpkt(n); err != nil {
				results[i] = WriteResult{Status: StatusInvalid, Err: err}
				continue
			}
			h := n.Point.Hash()
			results[i].Hash = h

			if existing := hashB.Get(h[:]); existing != nil {
				results[i].Recv = binary.BigEndian.Uint64(existing)
				results[i].Status = StatusExists
				continue
			}

			recv := next
			next++
			var recvKey [8]byte
			binary.BigEndian.PutUint64(recvKey[:], recv)

			if err := hashB.Put(h[:], recvKey[:]); err != nil {
				return fmt.Errorf("%w: hash put: %v", ErrIO, err)
			}
			if err := logB.Put(recvKey[:], n.Bytes()); err != nil {
				return fmt.Errorf("%w: log put: %v", ErrIO, err)
			}
			if err := insertTreeEntry(treeB, n.Point, recv); err != nil {
				return err
			}

			results[i].Recv = recv
			results[i].Status = StatusNew
			lastRecv = recv
			publishedAny = true
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if publishedAny {
		s.notifier.Publish(lastRecv)
	}
	return results, nil
}

// nextRecv computes start_recv = max(log.last_key()+1, wall_clock_us),
// spec.md §4.2 step 1.
func nextRecv(logB *bbolt.Bucket) (uint64, error) {
	var lastKey uint64
	c := logB.Cursor()
	if k, _ := c.Last(); k != nil {
		if len(k) != 8 {
			return 0, fmt.Errorf("%w: log key wrong size", ErrCorruptIdx)
		}
		lastKey = binary.BigEndian.Uint64(k)
	}
	wallClock := uint64(time.Now().UnixMicro())
	if lastKey+1 > wallClock {
		return lastKey + 1, nil
	}
	return wallClock, nil
}

// insertTreeEntry inserts the TreeIdx entry for a new linkpoint/keypoint;
// datapoints and errorpoints have no entry (spec.md §4.2 step 4).
func insertTreeEntry(treeB *bbolt.Bucket, p *point.Point, recv uint64) error {
	var group point.GroupID
	var domain point.Domain
	var path point.Path
	var links []point.Link
	var data []byte
	var create uint64
	var pubkey point.PubKey

	switch p.Header.Kind {
	case point.KindLink:
		lv, ok := p.AsLinkPoint()
		if !ok {
			return fmt.Errorf("%w: linkpoint failed to parse on insert", ErrCorruptIdx)
		}
		group, domain, path, links, data, create = lv.Header.Group, lv.Header.Domain, lv.Path, lv.Links, lv.Data, lv.Header.Create
	case point.KindKey:
		kh, lv, ok := p.AsKeyPoint()
		if !ok {
			return fmt.Errorf("%w: keypoint failed to parse on insert", ErrCorruptIdx)
		}
		group, domain, path, links, data, create = lv.Header.Group, lv.Header.Domain, lv.Path, lv.Links, lv.Data, lv.Header.Create
		pubkey = kh.PubKey
	default:
		return nil
	}

	prefix := treeKeyPrefix(group, domain, uint8(path.Depth()), path.SpathBytes(), pubkey)
	key := treeKey(prefix, create, p.Hash())
	value := treeEntryValue(recv, uint16(len(links)), uint16(len(data)))
	if err := treeB.Put(key, value); err != nil {
		return fmt.Errorf("%w: tree put: %v", ErrIO, err)
	}
	return nil
}
