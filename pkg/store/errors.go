package store

import "errors"

// Storage errors, spec.md §7 "Storage errors".
var (
	ErrIO          = errors.New("store: io error")
	ErrCorruptIdx  = errors.New("store: corrupt index")
	ErrEnvLocked   = errors.New("store: environment locked by another writer")
	ErrEnvMismatch = errors.New("store: environment id mismatch")
)
