package store

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"go.etcd.io/bbolt"

	"linkspace/pkg/point"
)

// PointView is a point as read back from the Log: its recv (the Log key)
// alongside the parsed netpkt, exposing the routing header as stored
// (spec.md §4.3 "Views expose the routing header as stored").
type PointView struct {
	Recv   uint64
	Netpkt *point.Netpkt
}

// Reader is a read-only MVCC snapshot taken at the time it was opened
// (spec.md §4.3). Callers must Close it to release the underlying bbolt
// transaction.
type Reader struct {
	tx *bbolt.Tx
}

// NewReader opens a read-only snapshot.
func (s *Store) NewReader() (*Reader, error) {
	tx, err := s.db.Begin(false)
	if err != nil {
		return nil, fmt.Errorf("%w: begin reader: %v", ErrIO, err)
	}
	return &Reader{tx: tx}, nil
}

// Close releases the snapshot.
func (r *Reader) Close() error {
	return r.tx.Rollback()
}

// Read looks up a point by hash: HashIdx.get then Log.get.
func (r *Reader) Read(hash point.Hash) (*PointView, bool, error) {
	v := r.tx.Bucket(bucketHash).Get(hash[:])
	if v == nil {
		return nil, false, nil
	}
	return r.getByRecv(binary.BigEndian.Uint64(v))
}

// ReadPtr looks up only the recv for a hash, without touching the Log.
func (r *Reader) ReadPtr(hash point.Hash) (uint64, bool) {
	v := r.tx.Bucket(bucketHash).Get(hash[:])
	if v == nil {
		return 0, false
	}
	return binary.BigEndian.Uint64(v), true
}

// LogHead returns the highest recv committed to the Log, or 0 if empty.
func (r *Reader) LogHead() uint64 {
	c := r.tx.Bucket(bucketLog).Cursor()
	k, _ := c.Last()
	if k == nil {
		return 0
	}
	return binary.BigEndian.Uint64(k)
}

func (r *Reader) getByRecv(recv uint64) (*PointView, bool, error) {
	var key [8]byte
	binary.BigEndian.PutUint64(key[:], recv)
	raw := r.tx.Bucket(bucketLog).Get(key[:])
	if raw == nil {
		return nil, false, nil
	}
	n, err := point.ParseNetpkt(raw)
	if err != nil {
		return nil, false, fmt.Errorf("%w: log entry %d: %v", ErrCorruptIdx, recv, err)
	}
	return &PointView{Recv: recv, Netpkt: n}, true, nil
}

// LogRange iterates the Log between start and end inclusive: forward if
// start <= end, reverse otherwise (spec.md §4.3 "log_range").
func (r *Reader) LogRange(start, end uint64) ([]*PointView, error) {
	c := r.tx.Bucket(bucketLog).Cursor()
	var out []*PointView
	if start <= end {
		var sk [8]byte
		binary.BigEndian.PutUint64(sk[:], start)
		for k, v := c.Seek(sk[:]); k != nil; k, v = c.Next() {
			recv := binary.BigEndian.Uint64(k)
			if recv > end {
				break
			}
			pv, err := decodeLogEntry(recv, v)
			if err != nil {
				return nil, err
			}
			out = append(out, pv)
		}
		return out, nil
	}

	var sk [8]byte
	binary.BigEndian.PutUint64(sk[:], start)
	k, v := c.Seek(sk[:])
	if k == nil {
		k, v = c.Last()
	} else if binary.BigEndian.Uint64(k) > start {
		k, v = c.Prev()
	}
	for ; k != nil; k, v = c.Prev() {
		recv := binary.BigEndian.Uint64(k)
		if recv < end {
			break
		}
		pv, err := decodeLogEntry(recv, v)
		if err != nil {
			return nil, err
		}
		out = append(out, pv)
	}
	return out, nil
}

// GetByLogKeys fetches points for an explicit list of recv keys, in order,
// skipping any that are missing.
func (r *Reader) GetByLogKeys(keys []uint64) ([]*PointView, error) {
	logB := r.tx.Bucket(bucketLog)
	out := make([]*PointView, 0, len(keys))
	for _, recv := range keys {
		var key [8]byte
		binary.BigEndian.PutUint64(key[:], recv)
		raw := logB.Get(key[:])
		if raw == nil {
			continue
		}
		pv, err := decodeLogEntry(recv, raw)
		if err != nil {
			return nil, err
		}
		out = append(out, pv)
	}
	return out, nil
}

func decodeLogEntry(recv uint64, raw []byte) (*PointView, error) {
	n, err := point.ParseNetpkt(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: log entry %d: %v", ErrCorruptIdx, recv, err)
	}
	return &PointView{Recv: recv, Netpkt: n}, nil
}

// TreeCursor returns a cursor over the TreeIdx bucket for the query
// engine's jumping-cursor seek (spec.md §4.5).
func (r *Reader) TreeCursor() *TreeCursor {
	return &TreeCursor{c: r.tx.Bucket(bucketTree).Cursor()}
}

// TreeCursor wraps a bbolt cursor over the TreeIdx bucket, decoding rows
// into treeEntry as it goes.
type TreeCursor struct {
	c *bbolt.Cursor
}

// Seek positions the cursor at the first key >= prefix and returns its
// decoded entry, or ok=false if none exists.
func (t *TreeCursor) Seek(prefix []byte) (TreeEntry, bool, error) {
	k, v := t.c.Seek(prefix)
	return decodeCursorPos(k, v)
}

// SeekPrev positions the cursor at the last key <= prefix: bbolt has no
// native "seek floor", so this seeks forward then steps back once if the
// landed key overshoots prefix.
func (t *TreeCursor) SeekPrev(prefix []byte) (TreeEntry, bool, error) {
	k, v := t.c.Seek(prefix)
	if k == nil {
		k, v = t.c.Last()
		return decodeCursorPos(k, v)
	}
	if bytes.Compare(k, prefix) > 0 {
		k, v = t.c.Prev()
	}
	return decodeCursorPos(k, v)
}

// Next advances the cursor forward.
func (t *TreeCursor) Next() (TreeEntry, bool, error) {
	k, v := t.c.Next()
	return decodeCursorPos(k, v)
}

// Prev advances the cursor backward.
func (t *TreeCursor) Prev() (TreeEntry, bool, error) {
	k, v := t.c.Prev()
	return decodeCursorPos(k, v)
}

func decodeCursorPos(k, v []byte) (TreeEntry, bool, error) {
	if k == nil {
		return TreeEntry{}, false, nil
	}
	e, err := parseTreeEntry(k, v)
	if err != nil {
		return TreeEntry{}, false, err
	}
	return e, true, nil
}

