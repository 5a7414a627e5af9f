package domain

import (
	"errors"
	"fmt"
)

// Kind classifies an error for callers and transports.
type Kind string

const (
	KindInvalidInput     Kind = "INVALID_INPUT"
	KindNotFound         Kind = "NOT_FOUND"
	KindNotAllowed       Kind = "NOT_ALLOWED"
	KindStoreUnavailable Kind = "STORE_UNAVAILABLE"
)

// Error is the domain error type. Two errors match under errors.Is when their kinds
// match and the target either has no message or the same message.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		if e.Message == "" {
			return e.Cause.Error()
		}
		return e.Message + ": " + e.Cause.Error()
	}
	if e.Message == "" {
		return string(e.Kind)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && (t.Message == "" || t.Message == e.Message)
}

var (
	// ErrInvalidInput matches every malformed-request error.
	ErrInvalidInput = &Error{Kind: KindInvalidInput}
	// ErrNotFound matches every unknown-entity error.
	ErrNotFound = &Error{Kind: KindNotFound}
	// ErrNotAllowed matches gate rejections and lifecycle refusals.
	ErrNotAllowed = &Error{Kind: KindNotAllowed}
	// ErrStoreUnavailable matches backing store I/O failures.
	ErrStoreUnavailable = &Error{Kind: KindStoreUnavailable}

	// ErrSessionNotFound is returned when a live quiz session has not been initialized.
	ErrSessionNotFound = &Error{Kind: KindNotFound, Message: "quiz session not found"}
	// ErrParticipantNotFound is returned when a user tries to act before joining.
	ErrParticipantNotFound = &Error{Kind: KindNotFound, Message: "participant not found in quiz"}
	// ErrQuizNotFound indicates the quiz content could not be loaded.
	ErrQuizNotFound = &Error{Kind: KindNotFound, Message: "quiz not found"}
	// ErrQuestionNotFound indicates a submitted question ID is invalid.
	ErrQuestionNotFound = &Error{Kind: KindNotFound, Message: "question not found"}
	// ErrReportNotFound indicates the quiz has not been evaluated yet.
	ErrReportNotFound = &Error{Kind: KindNotFound, Message: "leaderboard report not found"}
	// ErrQuizInactive is returned for submissions to a quiz that is not running.
	ErrQuizInactive = &Error{Kind: KindNotAllowed, Message: "quiz is not active"}
	// ErrQuizDeactivated is returned when starting a deactivated quiz.
	ErrQuizDeactivated = &Error{Kind: KindNotAllowed, Message: "quiz is deactivated"}
)

// InvalidInput builds an InvalidInput error with a formatted message.
func InvalidInput(format string, args ...any) error {
	return &Error{Kind: KindInvalidInput, Message: fmt.Sprintf(format, args...)}
}

// Unavailable wraps an infrastructure failure as StoreUnavailable.
func Unavailable(op string, cause error) error {
	return &Error{Kind: KindStoreUnavailable, Message: op, Cause: cause}
}

// KindOf reports the kind of err, or "" when err is not a domain error.
func KindOf(err error) Kind {
	var blocked *BlockedError
	if errors.As(err, &blocked) {
		return KindNotAllowed
	}
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}

// BlockedError carries a gate rejection back to the submitting caller.
type BlockedError struct {
	Decision Decision
}

func (e *BlockedError) Error() string {
	return "answer not allowed: " + e.Decision.Message
}

func (e *BlockedError) Is(target error) bool {
	return target == ErrNotAllowed
}
