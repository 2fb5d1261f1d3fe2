package predicate

// SeekBounds is the compiled tree-mode seek plan: contiguous bounds on
// each dimension of the TreeIdx key prefix (spec.md §4.4 "The seek plan is
// a set of contiguous bounds on the TreeIdx key prefix").
type SeekBounds struct {
	GroupMin, GroupMax   []byte
	DomainMin, DomainMax []byte
	DepthMin, DepthMax   byte
	PubKeyMin, PubKeyMax []byte

	// PathPrefix is the space-form bytes of the exact path or prefix
	// constraint, or nil if neither was set.
	PathPrefix []byte
	// PathExact is true if PathPrefix must match the full path exactly
	// (an exact `path` predicate rather than a `prefix` one).
	PathExact bool
}

// SeekBounds derives the TreeIdx seek bounds from the accumulated
// group/domain/depth/path/pubkey constraints.
func (ps *PredicateSet) SeekBounds() SeekBounds {
	group := ps.valueSet(FieldGroup)
	domain := ps.valueSet(FieldDomain)
	depth := ps.valueSet(FieldPathLen)
	pubkey := ps.valueSet(FieldPubKey)

	b := SeekBounds{
		GroupMin:  group.MinBound(),
		GroupMax:  group.MaxBound(),
		DomainMin: domain.MinBound(),
		DomainMax: domain.MaxBound(),
		DepthMin:  0,
		DepthMax:  8,
		PubKeyMin: pubkey.MinBound(),
		PubKeyMax: pubkey.MaxBound(),
	}
	if len(depth.MinBound()) > 0 {
		b.DepthMin = depth.MinBound()[0]
	}
	if len(depth.MaxBound()) > 0 {
		b.DepthMax = depth.MaxBound()[0]
	}
	if ps.hasExactPath {
		b.PathPrefix = ps.exactPath.SpathBytes()
		b.PathExact = true
	} else if ps.hasPrefix {
		b.PathPrefix = ps.prefixPath.SpathBytes()
	}
	return b
}

// MatchesTreeDimensions reports whether a decoded TreeIdx entry's
// (group, domain, depth, path, pubkey) tuple satisfies every constraint
// the predicate set places on those dimensions — the per-step
// classification test of the jumping cursor (spec.md §4.5 step 2-3).
func (ps *PredicateSet) MatchesTreeDimensions(group, domain []byte, depth uint8, pathBytes, pubkey []byte) bool {
	if vs := ps.values[FieldGroup]; vs != nil && !vs.Test(group) {
		return false
	}
	if vs := ps.values[FieldDomain]; vs != nil && !vs.Test(domain) {
		return false
	}
	if vs := ps.values[FieldPathLen]; vs != nil && !vs.Test([]byte{depth}) {
		return false
	}
	if vs := ps.values[FieldPubKey]; vs != nil && !vs.Test(pubkey) {
		return false
	}
	if ps.hasExactPath {
		exact := ps.exactPath.SpathBytes()
		if len(exact) != len(pathBytes) || string(exact) != string(pathBytes) {
			return false
		}
	} else if ps.hasPrefix {
		prefix := ps.prefixPath.SpathBytes()
		if len(pathBytes) < len(prefix) || string(pathBytes[:len(prefix)]) != string(prefix) {
			return false
		}
	}
	return true
}

// MatchesCreate reports whether create satisfies the accumulated `create`
// constraint ("the stamp range contains create", spec.md §4.5 step 3).
func (ps *PredicateSet) MatchesCreate(create uint64) bool {
	vs := ps.values[FieldCreate]
	if vs == nil {
		return true
	}
	return vs.Test(EncodeUint64(create, 8))
}
