package point

import "errors"

// Codec errors, spec.md §4.1 and §7 "Codec errors".
var (
	ErrTruncated       = errors.New("point: truncated")
	ErrBadMagic        = errors.New("point: bad netpkt magic")
	ErrBadKind         = errors.New("point: bad kind byte")
	ErrContentTooLarge = errors.New("point: content exceeds MAX_CONTENT_SIZE")
	ErrReservedNonZero = errors.New("point: reserved byte non-zero")
	ErrPathMalformed   = errors.New("point: malformed path")
	ErrHashMismatch    = errors.New("point: hash mismatch")
	ErrBadSignature    = errors.New("point: bad signature")
)
