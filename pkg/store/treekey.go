package store

import (
	"encoding/binary"
	"fmt"

	"linkspace/pkg/point"
)

// TreeIdx keys are group(32)||domain(16)||depth(1)||path_bytes(var,<=242)||
// pubkey(32) per spec.md §4.2, followed by create(8 BE)||hash(32) so every
// key is unique: bbolt has no LMDB-style DUPSORT, so the "multiple values
// per key, sorted by value" behaviour the spec describes is folded into the
// key itself, with create as the leading sort field as the spec requires
// ("sort by value lexicographically, which orders primarily by create").
const treeKeyFixedSize = point.GroupSize + point.DomainSize + 1 + point.PubKeySize + 8 + point.HashSize

// treeKeyPrefix is the spec-level TreeIdx key, before the create/hash
// ordering suffix is appended.
func treeKeyPrefix(group point.GroupID, domain point.Domain, depth uint8, pathBytes []byte, pubkey point.PubKey) []byte {
	out := make([]byte, 0, point.GroupSize+point.DomainSize+1+len(pathBytes)+point.PubKeySize)
	out = append(out, group[:]...)
	out = append(out, domain[:]...)
	out = append(out, depth)
	out = append(out, pathBytes...)
	out = append(out, pubkey[:]...)
	return out
}

// treeKey appends the create/hash ordering suffix to a key prefix.
func treeKey(prefix []byte, create uint64, hash point.Hash) []byte {
	out := make([]byte, 0, len(prefix)+8+point.HashSize)
	out = append(out, prefix...)
	var cb [8]byte
	binary.BigEndian.PutUint64(cb[:], create)
	out = append(out, cb[:]...)
	out = append(out, hash[:]...)
	return out
}

// treeEntryValue is the TreeIdx value: recv(8)||links_len(2)||data_size(2).
// create and hash live in the key suffix rather than the value (see
// treeKeyFixedSize), so they are not repeated here.
func treeEntryValue(recv uint64, linksLen, dataSize uint16) []byte {
	var out [12]byte
	binary.BigEndian.PutUint64(out[0:8], recv)
	binary.BigEndian.PutUint16(out[8:10], linksLen)
	binary.BigEndian.PutUint16(out[10:12], dataSize)
	return out[:]
}

// BuildSeekKey builds a TreeIdx key prefix from raw field bytes, for use
// by the query engine's jumping-cursor seek (spec.md §4.5). group must be
// point.GroupSize bytes, domain point.DomainSize, pubkey point.PubKeySize;
// pathBytes is the space-form path and may be any length up to
// MaxSpathSize.
func BuildSeekKey(group, domain []byte, depth uint8, pathBytes, pubkey []byte) []byte {
	out := make([]byte, 0, len(group)+len(domain)+1+len(pathBytes)+len(pubkey))
	out = append(out, group...)
	out = append(out, domain...)
	out = append(out, depth)
	out = append(out, pathBytes...)
	out = append(out, pubkey...)
	return out
}

// TreeEntry is a decoded TreeIdx row.
type TreeEntry struct {
	Group    point.GroupID
	Domain   point.Domain
	Depth    uint8
	Path     []byte
	PubKey   point.PubKey
	Create   uint64
	Hash     point.Hash
	Recv     uint64
	LinksLen uint16
	DataSize uint16
}

// parseTreeEntry decodes a full TreeIdx (key, value) pair.
func parseTreeEntry(key, value []byte) (TreeEntry, error) {
	if len(key) < treeKeyFixedSize {
		return TreeEntry{}, fmt.Errorf("%w: tree key too short", ErrCorruptIdx)
	}
	if len(value) != 12 {
		return TreeEntry{}, fmt.Errorf("%w: tree value wrong size", ErrCorruptIdx)
	}
	n := len(key) - treeKeyFixedSize
	var e TreeEntry
	copy(e.Group[:], key[0:32])
	copy(e.Domain[:], key[32:48])
	e.Depth = key[48]
	e.Path = append([]byte(nil), key[49:49+n]...)
	copy(e.PubKey[:], key[49+n:49+n+32])
	e.Create = binary.BigEndian.Uint64(key[81+n : 89+n])
	copy(e.Hash[:], key[89+n:121+n])
	e.Recv = binary.BigEndian.Uint64(value[0:8])
	e.LinksLen = binary.BigEndian.Uint16(value[8:10])
	e.DataSize = binary.BigEndian.Uint16(value[10:12])
	return e, nil
}
