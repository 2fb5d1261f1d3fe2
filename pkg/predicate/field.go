// Package predicate implements the linkspace predicate taxonomy: the
// closed field set, per-field value-sets, and the add-rule logic that
// narrows a predicate set or rejects it as unsatisfiable (spec.md §4.4),
// grounded on original_source crates/core/src/predicate/predicate_type.rs.
package predicate

import "fmt"

// Field is one of the closed set of predicate fields.
type Field string

// Fixed point fields.
const (
	FieldHash     Field = "hash"
	FieldGroup    Field = "group"
	FieldDomain   Field = "domain"
	FieldCreate   Field = "create"
	FieldPathLen  Field = "path_len"
	FieldLinksLen Field = "links_len"
	FieldDataSize Field = "data_size"
	FieldPointSize Field = "point_size"
	FieldPubKey   Field = "pubkey"
	FieldKind     Field = "kind"
)

// Routing fields.
const (
	FieldHop      Field = "hop"
	FieldStamp    Field = "stamp"
	FieldNetflags Field = "netflags"
	FieldUbits0   Field = "ubits0"
	FieldUbits1   Field = "ubits1"
	FieldUbits2   Field = "ubits2"
	FieldUbits3   Field = "ubits3"
)

// Derived fields.
const (
	FieldPath   Field = "path"
	FieldPrefix Field = "prefix"
	FieldRecv   Field = "recv"
)

// Counter fields, not packet fields (spec.md §4.5).
const (
	FieldI       Field = "i"
	FieldIDb     Field = "i_db"
	FieldINew    Field = "i_new"
	FieldIBranch Field = "i_branch"
)

// FieldWidth is the declared byte width of a field's value, or 0 for
// variable-width fields (path, prefix).
func FieldWidth(f Field) (int, bool) {
	switch f {
	case FieldHash, FieldGroup, FieldPubKey:
		return 32, true
	case FieldDomain:
		return 16, true
	case FieldCreate, FieldStamp, FieldRecv:
		return 8, true
	case FieldLinksLen, FieldDataSize, FieldPointSize:
		return 2, true
	case FieldHop, FieldUbits0, FieldUbits1, FieldUbits2, FieldUbits3:
		return 4, true
	case FieldPathLen, FieldKind, FieldNetflags:
		return 1, true
	case FieldI, FieldIDb, FieldINew, FieldIBranch:
		return 4, true
	case FieldPath, FieldPrefix:
		return 0, true
	default:
		return 0, false
	}
}

// Op is a predicate operator.
type Op int

const (
	OpEqual Op = iota
	OpLess
	OpGreater
	OpLessEqual
	OpGreaterEqual
	OpNotEqual
	OpMaskedEqual
)

func (op Op) String() string {
	switch op {
	case OpEqual:
		return "="
	case OpLess:
		return "<"
	case OpGreater:
		return ">"
	case OpLessEqual:
		return "<="
	case OpGreaterEqual:
		return ">="
	case OpNotEqual:
		return "!="
	case OpMaskedEqual:
		return "=*"
	default:
		return fmt.Sprintf("op(%d)", int(op))
	}
}

// IsTreeField reports whether f is one of the fields that compose the
// TreeIdx key (group, domain, depth/path/prefix, pubkey) or its ordering
// suffix (create) — i.e. a seek-plan field rather than a residual-only one.
func IsTreeField(f Field) bool {
	switch f {
	case FieldGroup, FieldDomain, FieldPathLen, FieldPath, FieldPrefix, FieldPubKey, FieldCreate:
		return true
	default:
		return false
	}
}
