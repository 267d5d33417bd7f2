// Package arerr defines the compilation error taxonomy. Every pipeline step
// fails with exactly one kind; the kind decides whether resubmitting the same
// inputs can ever succeed.
package arerr

import (
	"errors"
	"fmt"

	"github.com/photobooksgallery/ar-compiler/pkg/schema"
)

type Kind string

const (
	ImageDecode          Kind = "ImageDecodeError"
	MaskApply            Kind = "MaskApplyError"
	InsufficientFeatures Kind = "InsufficientFeaturesError"
	CompilerCrash        Kind = "CompilerCrashError"
	VideoProbe           Kind = "VideoProbeError"
	VideoTranscode       Kind = "VideoTranscodeError"
	ViewerConfig         Kind = "ViewerConfigError"
	QrEncode             Kind = "QrEncodeError"
)

// FailureType maps a kind to the queue-facing failure classification.
// Content problems are permanent: resubmitting the same photo cannot fix a
// blank image. Crashes and transcode failures may succeed on retry.
func (k Kind) FailureType() schema.FailureType {
	switch k {
	case ImageDecode, MaskApply, InsufficientFeatures, VideoProbe:
		return schema.FailureTypePermanent
	case CompilerCrash, VideoTranscode:
		return schema.FailureTypeRetryable
	case ViewerConfig, QrEncode:
		return schema.FailureTypeValidation
	default:
		return schema.FailureTypeRetryable
	}
}

// Error carries the step error kind alongside the underlying cause.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New wraps err with the given kind.
func New(kind Kind, err error) error {
	return &Error{Kind: kind, Err: err}
}

// Newf wraps a formatted message with the given kind.
func Newf(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// KindOf extracts the kind from err, or "" if err carries none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// FailureOf classifies err for the queue. Unknown errors default to
// retryable.
func FailureOf(err error) schema.FailureType {
	if err == nil {
		return ""
	}
	if k := KindOf(err); k != "" {
		return k.FailureType()
	}
	return schema.FailureTypeRetryable
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool { return KindOf(err) == kind }
