package query

import (
	"bytes"

	"linkspace/pkg/point"
	"linkspace/pkg/predicate"
	"linkspace/pkg/store"
)

// fields is every field value extracted from one stored point, ready for
// testing against a PredicateSet (spec.md §4.4 "Field taxonomy").
type fields struct {
	hash      []byte
	group     []byte
	domain    []byte
	create    []byte
	pathLen   []byte
	path      point.Path
	linksLen  []byte
	dataSize  []byte
	pointSize []byte
	pubkey    []byte
	kind      []byte
	recv      []byte
	hop       []byte
	stamp     []byte
	netflags  []byte
	ubits     [4][]byte
}

func extractFields(pv *store.PointView) fields {
	p := pv.Netpkt.Point
	h := p.Hash()

	var f fields
	f.hash = h[:]
	f.pointSize = predicate.EncodeUint64(uint64(p.Header.Size), 2)
	f.kind = []byte{byte(p.Header.Kind)}
	f.recv = predicate.EncodeUint64(pv.Recv, 8)

	routing := pv.Netpkt.Routing
	f.hop = predicate.EncodeUint64(uint64(routing.Hop), 4)
	f.stamp = predicate.EncodeUint64(routing.Stamp, 8)
	f.netflags = []byte{byte(routing.Flags)}
	for i, u := range routing.Ubits {
		f.ubits[i] = predicate.EncodeUint64(uint64(u), 4)
	}

	var group point.GroupID
	var domain point.Domain
	var pubkey point.PubKey
	var create uint64
	var path point.Path
	var linksLen, dataSize int

	switch p.Header.Kind {
	case point.KindLink:
		if lv, ok := p.AsLinkPoint(); ok {
			group, domain, create, path = lv.Header.Group, lv.Header.Domain, lv.Header.Create, lv.Path
			linksLen, dataSize = len(lv.Links), len(lv.Data)
		}
	case point.KindKey:
		if kh, lv, ok := p.AsKeyPoint(); ok {
			group, domain, create, path = lv.Header.Group, lv.Header.Domain, lv.Header.Create, lv.Path
			linksLen, dataSize = len(lv.Links), len(lv.Data)
			pubkey = kh.PubKey
		}
	}

	f.group = group[:]
	f.domain = domain[:]
	f.pubkey = pubkey[:]
	f.create = predicate.EncodeUint64(create, 8)
	f.pathLen = []byte{byte(path.Depth())}
	f.path = path
	f.linksLen = predicate.EncodeUint64(uint64(linksLen), 2)
	f.dataSize = predicate.EncodeUint64(uint64(dataSize), 2)
	return f
}

func (f fields) value(field predicate.Field) []byte {
	switch field {
	case predicate.FieldHash:
		return f.hash
	case predicate.FieldGroup:
		return f.group
	case predicate.FieldDomain:
		return f.domain
	case predicate.FieldCreate:
		return f.create
	case predicate.FieldPathLen:
		return f.pathLen
	case predicate.FieldLinksLen:
		return f.linksLen
	case predicate.FieldDataSize:
		return f.dataSize
	case predicate.FieldPointSize:
		return f.pointSize
	case predicate.FieldPubKey:
		return f.pubkey
	case predicate.FieldKind:
		return f.kind
	case predicate.FieldRecv:
		return f.recv
	case predicate.FieldHop:
		return f.hop
	case predicate.FieldStamp:
		return f.stamp
	case predicate.FieldNetflags:
		return f.netflags
	case predicate.FieldUbits0:
		return f.ubits[0]
	case predicate.FieldUbits1:
		return f.ubits[1]
	case predicate.FieldUbits2:
		return f.ubits[2]
	case predicate.FieldUbits3:
		return f.ubits[3]
	default:
		return nil
	}
}

var valueSetFields = []predicate.Field{
	predicate.FieldHash, predicate.FieldGroup, predicate.FieldDomain, predicate.FieldCreate,
	predicate.FieldPathLen, predicate.FieldLinksLen, predicate.FieldDataSize, predicate.FieldPointSize,
	predicate.FieldPubKey, predicate.FieldKind, predicate.FieldRecv,
	predicate.FieldHop, predicate.FieldStamp, predicate.FieldNetflags,
	predicate.FieldUbits0, predicate.FieldUbits1, predicate.FieldUbits2, predicate.FieldUbits3,
}

// Matches reports whether a stored point satisfies every predicate in ps
// (spec.md §8 Testable Property 8 "Any point delivered by a query
// satisfies every predicate in the query's predicate set").
func Matches(ps *predicate.PredicateSet, pv *store.PointView) bool {
	f := extractFields(pv)
	for _, field := range valueSetFields {
		if vs := ps.ValueSet(field); vs != nil && !vs.Test(f.value(field)) {
			return false
		}
	}
	if exact, ok := ps.ExactPath(); ok && !exact.Equal(f.path) {
		return false
	}
	if prefix, ok := ps.Prefix(); ok && !f.path.HasPrefix(prefix) {
		return false
	}
	for _, neq := range ps.NotEqual() {
		if bytes.Equal(f.value(neq.Field), neq.Value) {
			return false
		}
	}
	return true
}
