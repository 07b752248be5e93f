package processor

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind classifies pipeline failures.
type Kind int

const (
	KindUnknown Kind = iota
	KindInvalidConfiguration
	KindMissingRequiredAsset
	KindEngineFailure
	KindIOFailure
)

func (k Kind) String() string {
	switch k {
	case KindInvalidConfiguration:
		return "invalid configuration"
	case KindMissingRequiredAsset:
		return "missing required asset"
	case KindEngineFailure:
		return "engine failure"
	case KindIOFailure:
		return "io failure"
	default:
		return "unknown"
	}
}

// Error is returned by every pipeline operation. Stage names the stage or
// configuration element that failed, e.g. "clip[1]" or "audio_overlay".
type Error struct {
	Kind  Kind
	Stage string
	Err   error
}

func (e *Error) Error() string {
	if e.Stage == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Stage, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind Kind, stage string, err error) *Error {
	return &Error{Kind: kind, Stage: stage, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindUnknown
}

// IsClientError reports whether err was caused by the request rather than
// the environment.
func IsClientError(err error) bool {
	switch KindOf(err) {
	case KindInvalidConfiguration, KindMissingRequiredAsset:
		return true
	}
	return false
}
