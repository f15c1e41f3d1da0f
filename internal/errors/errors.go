package errors

import (
	stderrors "errors"
	"fmt"
)

// Kind is the category of a failure. Callers branch on it; the message is for people.
type Kind string

const (
	KindUnrecognizedSource Kind = "unrecognized-source"
	KindDownloadFailed     Kind = "download-failed"
	KindTooLarge           Kind = "too-large"
	KindProcessingFailed   Kind = "processing-failed"
	KindTimeout            Kind = "timeout"
	KindQuota              Kind = "quota"
	KindInvalidCredential  Kind = "invalid-credential"
	KindProviderError      Kind = "provider-error"
	KindNoUsableCredential Kind = "no-usable-credential"

	KindInvalidArgument Kind = "invalid-argument"
	KindNotFound        Kind = "not-found"
	KindConflict        Kind = "conflict"
	KindInternal        Kind = "internal"
)

// AppError is an application-specific error type
type AppError struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// New creates a new AppError
func New(kind Kind, message string) *AppError {
	return &AppError{Kind: kind, Message: message}
}

// Newf creates a new AppError with a formatted message
func Newf(kind Kind, format string, args ...any) *AppError {
	return &AppError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps an error with a kind and message
func Wrap(err error, kind Kind, message string) *AppError {
	return &AppError{Kind: kind, Message: message, Cause: err}
}

// KindOf returns the kind of the outermost AppError in err's chain.
// Errors that carry no kind are internal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// IsRotatable reports whether err should be answered by switching credentials.
// Invalid or revoked credentials count as quota failures.
func IsRotatable(err error) bool {
	switch KindOf(err) {
	case KindQuota, KindInvalidCredential:
		return true
	}
	return false
}

var remedies = map[Kind]string{
	KindUnrecognizedSource: "link not recognized, use a YouTube, Google Drive or direct video link, or upload the file",
	KindDownloadFailed:     "could not download the video, check that the link is public and points to a video",
	KindTooLarge:           "file too large, reduce resolution or use a different source",
	KindProcessingFailed:   "the provider could not process this video, try another format",
	KindTimeout:            "the provider took too long, try a shorter video or retry later",
	KindQuota:              "all API keys are out of quota, add a new key or wait for the quota to reset",
	KindInvalidCredential:  "the API key was rejected, add a valid key",
	KindProviderError:      "the transcription service returned an error, retry in a moment",
	KindNoUsableCredential: "no working API key, add a key or reset an expired one",
	KindInvalidArgument:    "invalid request",
	KindNotFound:           "not found",
	KindConflict:           "already exists",
	KindInternal:           "unexpected error",
}

// UserMessage renders err as a short actionable sentence, never a raw provider trace.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	kind := KindOf(err)
	remedy := remedies[kind]
	var appErr *AppError
	if !stderrors.As(err, &appErr) || appErr.Message == "" {
		return remedy
	}
	switch kind {
	case KindInvalidArgument, KindNotFound, KindConflict:
		return appErr.Message
	case KindInternal:
		return remedy
	}
	return appErr.Message + ": " + remedy
}
