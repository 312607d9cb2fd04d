package shallow

import "errors"

var (
	// ErrLockUnavailable is returned by ShallowFile.Lock when another
	// session, in this or another process, holds the shallow file lock.
	// The acquisition is single-attempt; retry policy is up to the caller.
	ErrLockUnavailable = errors.New("shallow file lock unavailable")

	// ErrNotLocked is returned when Unlock is called on a session that
	// already ended.
	ErrNotLocked = errors.New("shallow file not locked")

	// ErrMalformedRecord is returned when a line, on disk or from the
	// negotiation stream, does not decode to a valid fixed-width commit
	// hash. It is always surfaced: a malformed shallow record means
	// corruption or a foreign writer, never "not shallow".
	ErrMalformedRecord = errors.New("malformed shallow record")

	// ErrUnrecognizedAssertion is returned by Session.ApplyLine for a
	// non-empty line that starts with neither the "shallow " nor the
	// "unshallow " prefix. The wrapped message carries the offending line.
	ErrUnrecognizedAssertion = errors.New("unrecognized shallow assertion")
)
