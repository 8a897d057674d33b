// Package apperr defines the error kinds shared by the service, the client
// and the CLI.
package apperr

import (
	"errors"
	"fmt"
	"strings"
)

// Upload rejection reasons as sent by the upload endpoint.
const (
	ReasonFileTypeNotAllowed = "file_type_not_allowed"
	ReasonNoFile             = "no_file"
	ReasonFileTooLarge       = "file_too_large"
)

// ValidationError blocks a submission locally. It never reaches the network.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

// Validation builds a ValidationError.
func Validation(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

var (
	ErrNoMembers        = Validation("members", "at least one member required")
	ErrPasswordMismatch = Validation("password", "passwords do not match")
	ErrTitleRequired    = Validation("title", "title is required")
	ErrMediaRequired    = Validation("media", "media file is required")
	ErrContentRequired  = Validation("content", "content is required")
)

// TransportError is a network or server failure. The Message is meant for
// users; Status is zero when no response was received.
type TransportError struct {
	Op      string
	Status  int
	Message string
	Err     error
}

func (e *TransportError) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	if e.Status != 0 {
		fmt.Fprintf(&b, " (status %d)", e.Status)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *TransportError) Unwrap() error { return e.Err }

// UserMessage is the generic text shown for transport failures.
func (e *TransportError) UserMessage() string {
	if e.Message != "" {
		return e.Message
	}
	return "something went wrong, please try again"
}

// UploadRejected is the transport failure returned when the server refuses a
// media upload for a known reason.
type UploadRejected struct {
	Reason  string
	Message string
}

func (e *UploadRejected) Error() string {
	if e.Message == "" {
		return "upload rejected: " + e.Reason
	}
	return "upload rejected: " + e.Reason + ": " + e.Message
}

// UserMessage translates the machine-readable reason.
func (e *UploadRejected) UserMessage() string {
	switch e.Reason {
	case ReasonFileTypeNotAllowed:
		if e.Message != "" {
			return e.Message
		}
		return "File type not allowed. Please check the list of allowed file types."
	case ReasonNoFile:
		return "No file was received by the server. Please try again."
	case ReasonFileTooLarge:
		if e.Message != "" {
			return e.Message
		}
		return "File is too large."
	default:
		if e.Message != "" {
			return e.Message
		}
		return e.Reason
	}
}

// Is lets errors.Is match a rejection against a reason-only template.
func (e *UploadRejected) Is(target error) bool {
	t, ok := target.(*UploadRejected)
	if !ok {
		return false
	}
	return t.Reason == e.Reason
}

var (
	ErrFileTypeNotAllowed = &UploadRejected{Reason: ReasonFileTypeNotAllowed}
	ErrNoFile             = &UploadRejected{Reason: ReasonNoFile}
)

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// IsTransport reports whether err is a TransportError or UploadRejected.
func IsTransport(err error) bool {
	var t *TransportError
	if errors.As(err, &t) {
		return true
	}
	var u *UploadRejected
	return errors.As(err, &u)
}

// UserMessage picks the text to show for any error kind.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var u *UploadRejected
	if errors.As(err, &u) {
		return u.UserMessage()
	}
	var v *ValidationError
	if errors.As(err, &v) {
		return v.Message
	}
	var t *TransportError
	if errors.As(err, &t) {
		return t.UserMessage()
	}
	return err.Error()
}
