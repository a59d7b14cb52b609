package catalog

import (
	"errors"
	"fmt"
)

// Kind classifies upstream failures so callers branch on a tag instead of
// matching error message substrings.
type Kind int

const (
	KindOther Kind = iota
	KindTransient
	KindRateLimited
	KindRemoved
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindRateLimited:
		return "rate_limited"
	case KindRemoved:
		return "removed"
	case KindNotFound:
		return "not_found"
	default:
		return "other"
	}
}

// Error is the typed failure surfaced by the catalog client.
type Error struct {
	Kind   Kind
	Status int // HTTP status when applicable, else 0
	PID    string
	Msg    string
}

func (e *Error) Error() string {
	if e.PID != "" {
		return fmt.Sprintf("catalog: %s (pid=%s status=%d): %s", e.Kind, e.PID, e.Status, e.Msg)
	}
	return fmt.Sprintf("catalog: %s (status=%d): %s", e.Kind, e.Status, e.Msg)
}

// KindOf extracts the kind from err, or KindOther for foreign errors.
func KindOf(err error) Kind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return KindOther
}

func IsRateLimited(err error) bool { return KindOf(err) == KindRateLimited }
func IsRemoved(err error) bool     { return KindOf(err) == KindRemoved }
func IsTransient(err error) bool   { return KindOf(err) == KindTransient }
func IsNotFound(err error) bool    { return KindOf(err) == KindNotFound }
