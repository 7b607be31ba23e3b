package providers

import (
	"errors"
	"fmt"
	"strings"
)

// Kind is the closed set of error classifications crossing this layer's
// boundary. Anything a provider call throws is folded into one of these
// before it reaches a caller.
type Kind string

const (
	KindValidation   Kind = "validation"
	KindProviderInit Kind = "provider_init"
	KindNetwork      Kind = "network"
	KindPermission   Kind = "permission"
	KindInstall      Kind = "install"
	KindUnknown      Kind = "unknown"
)

// ErrCapabilityUnsupported marks an operation a descriptor does not declare.
// It is a documented contract, not a failure: callers should branch on the
// descriptor's Capabilities instead of calling and catching.
var ErrCapabilityUnsupported = errors.New("capability not supported by provider")

// Error is a classified provider error with an optional remediation hint.
type Error struct {
	Kind    Kind
	Message string
	Hint    string
}

func (e *Error) Error() string {
	if e.Hint != "" {
		return e.Message + " (" + e.Hint + ")"
	}
	return e.Message
}

// NewError builds a classified error from any thrown value.
func NewError(kind Kind, cause any) *Error {
	return &Error{Kind: kind, Message: NormalizeMessage(cause)}
}

// KindOf returns the classification of err, or KindUnknown when err carries
// no classification.
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindUnknown
}

// NormalizeMessage folds any thrown value into a stable, non-empty diagnostic
// string. Errors use their message, strings pass through, everything else is
// formatted; nil and empty results fall back to a fixed marker.
func NormalizeMessage(v any) string {
	var msg string
	switch val := v.(type) {
	case nil:
		msg = ""
	case error:
		msg = val.Error()
	case string:
		msg = val
	case fmt.Stringer:
		msg = val.String()
	default:
		msg = fmt.Sprintf("%v", val)
	}
	msg = strings.TrimSpace(msg)
	if msg == "" || msg == "<nil>" || msg == "map[]" {
		return "unknown error"
	}
	return msg
}

var permissionMarkers = []string{
	"permission denied",
	"not permitted",
	"access denied",
	"notallowederror",
}

var networkMarkers = []string{
	"connection refused",
	"no such host",
	"network is unreachable",
	"failed to fetch",
	"tls handshake",
	"timeout awaiting",
	"eof",
}

// Classify normalizes err into an *Error, pattern-matching the message for
// permission and network failures so the caller gets an actionable hint.
// Already-classified errors pass through unchanged.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}
	var pe *Error
	if errors.As(err, &pe) {
		return pe
	}

	msg := NormalizeMessage(err)
	lower := strings.ToLower(msg)

	for _, marker := range permissionMarkers {
		if strings.Contains(lower, marker) {
			return &Error{
				Kind:    KindPermission,
				Message: msg,
				Hint:    "grant the required permission and restart the application",
			}
		}
	}
	for _, marker := range networkMarkers {
		if strings.Contains(lower, marker) {
			return &Error{
				Kind:    KindNetwork,
				Message: msg,
				Hint:    "check that the backend is running and reachable from this machine",
			}
		}
	}
	return &Error{Kind: KindUnknown, Message: msg}
}
