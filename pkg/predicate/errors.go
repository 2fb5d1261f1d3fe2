package predicate

import "errors"

// ErrBadPredicate is returned for a structurally invalid predicate: an
// unknown field, a wrong-width value, or an operator that field doesn't
// accept (spec.md §7 "Query errors").
var ErrBadPredicate = errors.New("predicate: bad predicate")
