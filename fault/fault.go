package fault

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindValidation              Kind = "validation"
	KindMalformedRequest        Kind = "malformed_request"
	KindForbidden               Kind = "forbidden"
	KindNotFound                Kind = "not_found"
	KindQuotaExceeded           Kind = "quota_exceeded"
	KindSubmissionLimitReached  Kind = "submission_limit_reached"
	KindNotAcceptingSubmissions Kind = "not_accepting_submissions"
	KindMissingRequiredAnswer   Kind = "missing_required_answer"
	KindRateLimited             Kind = "rate_limited"
	KindUnauthorized            Kind = "unauthorized"
	KindConflict                Kind = "conflict"
	KindInternal                Kind = "internal"
)

// MissingAnswer names a required question left unanswered.
type MissingAnswer struct {
	QuestionID    string `json:"questionId"`
	QuestionTitle string `json:"questionTitle"`
}

type Error struct {
	Kind    Kind
	Message string
	// Errors lists every validation message, in the order found.
	Errors     []string
	Missing    []MissingAnswer
	RetryAfter int
	Err        error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func New(kind Kind, msg string) error {
	return &Error{Kind: kind, Message: msg}
}

func Wrap(kind Kind, msg string, err error) error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

// KindOf classifies err; anything that is not an *Error is internal.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindInternal
}

func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// As returns the *Error carried by err, wrapping unclassified errors as
// internal ones.
func As(err error) *Error {
	var fe *Error
	if errors.As(err, &fe) {
		return fe
	}
	return &Error{Kind: KindInternal, Message: "Internal server error", Err: err}
}

// Validation returns nil when errs is empty.
func Validation(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	msgs := make([]string, len(errs))
	for i, err := range errs {
		msgs[i] = err.Error()
	}
	return &Error{Kind: KindValidation, Message: "Validation failed", Errors: msgs}
}

// MissingRequired returns nil when nothing is missing.
func MissingRequired(missing []MissingAnswer) error {
	switch len(missing) {
	case 0:
		return nil
	case 1:
		return &Error{
			Kind:    KindMissingRequiredAnswer,
			Message: fmt.Sprintf("Question %q is required", missing[0].QuestionTitle),
			Missing: missing,
		}
	}
	return &Error{
		Kind:    KindMissingRequiredAnswer,
		Message: fmt.Sprintf("%d required questions are unanswered", len(missing)),
		Missing: missing,
	}
}

func RateLimited(retryAfter int) error {
	return &Error{
		Kind:       KindRateLimited,
		Message:    "Too many requests, please try again later.",
		RetryAfter: retryAfter,
	}
}

func NotFound(msg string) error { return New(KindNotFound, msg) }
func Forbidden(msg string) error { return New(KindForbidden, msg) }
func Unauthorized(msg string) error { return New(KindUnauthorized, msg) }
func Malformed(msg string) error { return New(KindMalformedRequest, msg) }
func Conflict(msg string) error { return New(KindConflict, msg) }

func Internal(msg string, err error) error {
	return Wrap(KindInternal, msg, err)
}
