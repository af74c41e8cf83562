// Package cloudphoneerr defines the typed error variants the executor
// pattern-matches on (spec §9: "tagged error variants ... do not encode
// control flow in exception type identity"), grounded on the
// {Code, Err}-wrapping shape of the teacher's dispatcher.Error.
package cloudphoneerr

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a failure per spec §7.
type Kind string

const (
	KindTransport            Kind = "transport"
	KindRateLimited          Kind = "rate_limited"
	KindPhoneNotRunning      Kind = "phone_not_running"
	KindHigherVersion        Kind = "higher_version_installed"
	KindProviderLogical      Kind = "provider_logical"
	KindMediaUnreachable     Kind = "media_unreachable"
	KindUsernameTaken        Kind = "username_taken"
	KindPollTimeout          Kind = "poll_timeout"
	KindCancelled            Kind = "cancelled"
)

// Error is the single error type raised by client/executor code. Callers
// branch on Kind (or use the Is* helpers / errors.Is against the
// sentinels below) rather than on a type hierarchy.
type Error struct {
	Kind Kind
	Code int // provider code, when Kind came from a provider response
	Msg  string
	Err  error // underlying cause, if any
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Msg != "" {
		return e.Msg
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is lets errors.Is match on Kind for sentinel-free comparisons, e.g.
// errors.Is(err, &Error{Kind: KindCancelled}).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || t == nil {
		return false
	}
	return t.Kind == e.Kind
}

// Sentinels for errors.Is comparisons at call sites.
var (
	ErrCancelled   = &Error{Kind: KindCancelled, Msg: "cancelled"}
	ErrPollTimeout = &Error{Kind: KindPollTimeout, Msg: "poll timeout"}
)

// Transport wraps a network/HTTP-transport level failure.
func Transport(err error) *Error {
	return &Error{Kind: KindTransport, Err: err, Msg: fmt.Sprintf("transport error: %v", err)}
}

// FromProviderCode classifies a non-zero provider response code into the
// matching typed error per spec §4.1/§7.
func FromProviderCode(code int, msg string) *Error {
	switch code {
	case 40007:
		return &Error{Kind: KindRateLimited, Code: code, Msg: msg}
	case 42002:
		return &Error{Kind: KindPhoneNotRunning, Code: code, Msg: msg}
	case 42004:
		return &Error{Kind: KindHigherVersion, Code: code, Msg: msg}
	default:
		return &Error{Kind: KindProviderLogical, Code: code, Msg: msg}
	}
}

// IsPermanent reports whether a provider logical error is one of the
// non-retryable codes in spec §7 (malformed, not found, balance
// insufficient).
func IsPermanent(code int) bool {
	switch code {
	case 40004, 40005, 41001:
		return true
	default:
		return false
	}
}

// MediaUnreachable builds the fatal pre-validation error for publish
// steps (spec §4.5/§7), enumerating every URL that failed its HEAD check.
func MediaUnreachable(urls []string) *Error {
	return &Error{
		Kind: KindMediaUnreachable,
		Msg:  fmt.Sprintf("media unreachable: %s", strings.Join(urls, ", ")),
	}
}

// UsernameTaken marks a rename failure recognized via substring match on
// the task's failure description (spec §4.5/§7).
func UsernameTaken(desc string) *Error {
	return &Error{Kind: KindUsernameTaken, Msg: desc}
}

// usernameTakenPhrases is the seed catalog used by IsUsernameTaken; see
// DESIGN.md Open Question decision #3.
var usernameTakenPhrases = []string{
	"username is already taken",
	"username is not available",
	"username taken",
	"username already in use",
}

// IsUsernameTaken reports whether a task failure description matches one
// of the known "username taken" provider phrases.
func IsUsernameTaken(desc string) bool {
	lower := strings.ToLower(desc)
	for _, phrase := range usernameTakenPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

// PollTimeout builds the fatal timeout error for pollTask budget expiry.
func PollTimeout(taskID string, budget string) *Error {
	return &Error{Kind: KindPollTimeout, Msg: fmt.Sprintf("poll timeout for task %s after %s", taskID, budget)}
}

// Cancelled builds the fatal cancellation error (spec §7 "canonical
// error=\"cancelled\"").
func Cancelled() *Error {
	return &Error{Kind: KindCancelled, Msg: "cancelled"}
}

// IsRetryable reports whether a *Error should be retried under the
// standard withRetry policy (spec §4.6 tie-breaks): rate limiting and
// transport failures are retryable regardless of state; phone-not-running
// is handled by its own restart branch (not standard retry); permanent
// provider codes and media/poll/cancel failures are not retryable.
func IsRetryable(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	switch e.Kind {
	case KindTransport, KindRateLimited:
		return true
	case KindProviderLogical:
		return !IsPermanent(e.Code)
	default:
		return false
	}
}

// IsPhoneNotRunning reports the special-case exception of spec §4.6.
func IsPhoneNotRunning(err error) bool {
	var e *Error
	return errors.As(err, &e) && e != nil && e.Kind == KindPhoneNotRunning
}
