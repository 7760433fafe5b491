// Package fault classifies failures returned by external collaborators so
// callers can pick a fallback per kind instead of per error string.
package fault

import (
	"errors"
	"fmt"
)

// Kind is the degradation category of an adapter error.
type Kind int

const (
	// KindNone means the call succeeded.
	KindNone Kind = iota
	// KindUnconfigured means the collaborator has no credential and was never called.
	KindUnconfigured
	// KindTransient covers network and provider failures.
	KindTransient
	// KindMalformed covers inputs that could not be decoded.
	KindMalformed
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "ok"
	case KindUnconfigured:
		return "unconfigured"
	case KindTransient:
		return "transient"
	case KindMalformed:
		return "malformed"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ErrUnconfigured is returned by adapters whose credential is absent.
var ErrUnconfigured = errors.New("collaborator not configured")

// Error carries a Kind alongside the underlying cause. Error() returns the
// cause's message unchanged so it can be surfaced verbatim.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Kind.String()
	}
	return e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// Transient wraps err as a network/provider failure. Returns nil for nil.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: KindTransient, Err: err}
}

// Malformed wraps err as an input decoding failure. Returns nil for nil.
func Malformed(err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: KindMalformed, Err: err}
}

// KindOf reports the Kind of err. Unclassified non-nil errors count as transient.
func KindOf(err error) Kind {
	if err == nil {
		return KindNone
	}
	if errors.Is(err, ErrUnconfigured) {
		return KindUnconfigured
	}
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindTransient
}
