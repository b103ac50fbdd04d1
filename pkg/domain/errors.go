package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// Validation failures.
var (
	ErrNoImageLoaded      = errors.New("no image loaded")
	ErrUnknownEffect      = errors.New("unknown effect")
	ErrUnknownParameter   = errors.New("unknown parameter")
	ErrOutOfRange         = errors.New("value out of range")
	ErrInvalidValue       = errors.New("invalid parameter value")
	ErrDuplicateSelection = errors.New("effect already selected")
	ErrNoSelection        = errors.New("no effect selected")
	ErrNothingToProcess   = errors.New("nothing to process")
	ErrNothingToExport    = errors.New("nothing to export")
)

// Boundary failures.
var (
	ErrUpload     = errors.New("upload failed")
	ErrProcessing = errors.New("processing failed")
	ErrDecode     = errors.New("decode failed")
)

// ErrSessionNotFound is returned when a session ID cannot be found in the store.
var ErrSessionNotFound = errors.New("session not found")

// ErrorKind groups errors for reporting and status mapping.
type ErrorKind string

const (
	KindValidation ErrorKind = "validation"
	KindUpload     ErrorKind = "upload"
	KindProcessing ErrorKind = "processing"
	KindDecode     ErrorKind = "decode"
	KindNotFound   ErrorKind = "not_found"
	KindInternal   ErrorKind = "internal"
)

// Error carries the kind and failing operation alongside the underlying cause.
// Err is usually one of the sentinels above, optionally wrapping transport detail.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Validation builds a validation error for op. Detail is appended to the sentinel message.
func Validation(op string, sentinel error, detail string) error {
	return newError(KindValidation, op, sentinel, detail)
}

// UploadFailure wraps a transport or server-reported upload failure.
func UploadFailure(op string, cause error) error {
	return &Error{Kind: KindUpload, Op: op, Err: fmt.Errorf("%w: %w", ErrUpload, cause)}
}

// ProcessingFailure wraps a transport or server-reported processing failure.
func ProcessingFailure(op string, cause error) error {
	return &Error{Kind: KindProcessing, Op: op, Err: fmt.Errorf("%w: %w", ErrProcessing, cause)}
}

// DecodeFailure wraps an image decode failure.
func DecodeFailure(op string, cause error) error {
	return &Error{Kind: KindDecode, Op: op, Err: fmt.Errorf("%w: %w", ErrDecode, cause)}
}

func newError(kind ErrorKind, op string, sentinel error, detail string) error {
	err := sentinel
	if detail != "" {
		err = fmt.Errorf("%w: %s", sentinel, detail)
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf classifies err. Plain sentinels are recognized even when not wrapped in *Error.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	switch {
	case errors.Is(err, ErrSessionNotFound):
		return KindNotFound
	case errors.Is(err, ErrUpload):
		return KindUpload
	case errors.Is(err, ErrProcessing):
		return KindProcessing
	case errors.Is(err, ErrDecode):
		return KindDecode
	case errors.Is(err, ErrNoImageLoaded), errors.Is(err, ErrUnknownEffect),
		errors.Is(err, ErrUnknownParameter), errors.Is(err, ErrOutOfRange),
		errors.Is(err, ErrInvalidValue), errors.Is(err, ErrDuplicateSelection),
		errors.Is(err, ErrNoSelection), errors.Is(err, ErrNothingToProcess),
		errors.Is(err, ErrNothingToExport):
		return KindValidation
	}
	return KindInternal
}

// HTTPStatus maps err to the status code adapters should answer with.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		if errors.Is(err, ErrDuplicateSelection) {
			return http.StatusConflict
		}
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindUpload, KindProcessing:
		return http.StatusBadGateway
	case KindDecode:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
