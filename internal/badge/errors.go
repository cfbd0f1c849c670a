package badge

import (
	"errors"
	"fmt"

	"github.com/youruser/badgeapp/internal/identity"
	imagepkg "github.com/youruser/badgeapp/internal/image"
)

// Kind classifies why a badge could not be produced.
type Kind string

const (
	KindInvalidIdentityFormat Kind = "InvalidIdentityFormat"
	KindMissingName           Kind = "MissingName"
	KindMissingIdentifier     Kind = "MissingIdentifier"
	KindUnknownRole           Kind = "UnknownRole"
	KindImageTooSmall         Kind = "ImageTooSmall"
	KindTextTooLarge          Kind = "TextTooLarge"
	KindCodePatchUnavailable  Kind = "CodePatchUnavailable"
	KindAssetReadFailure      Kind = "AssetReadFailure"
	KindAssetWriteFailure     Kind = "AssetWriteFailure"
	KindUnknown               Kind = "Unknown"
)

// Fatal reports whether the kind stops processing of the image.
func (k Kind) Fatal() bool {
	return k != KindCodePatchUnavailable
}

// Validation reports whether the kind comes from the filename rather than
// the photo or the assets.
func (k Kind) Validation() bool {
	switch k {
	case KindInvalidIdentityFormat, KindMissingName, KindMissingIdentifier, KindUnknownRole:
		return true
	}
	return false
}

// Error is the single error type returned by the pipeline.
type Error struct {
	Kind    Kind
	Stage   Stage
	Source  string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s [%s at %s]", e.Source, e.Kind, e.Stage)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches another *Error of the same kind, so errors.Is(err, &Error{Kind: k})
// works as a kind test.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind && t.Stage == "" && t.Source == ""
}

func newError(kind Kind, stage Stage, source, message string, cause error) *Error {
	return &Error{Kind: kind, Stage: stage, Source: source, Message: message, Cause: cause}
}

// KindOf returns the kind carried by err, classifying lower-level errors.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var be *Error
	if errors.As(err, &be) {
		return be.Kind
	}
	return classify(err)
}

func classify(err error) Kind {
	var pe *identity.ParseError
	if errors.As(err, &pe) {
		switch pe.Reason {
		case identity.ReasonFormat:
			return KindInvalidIdentityFormat
		case identity.ReasonMissingName:
			return KindMissingName
		case identity.ReasonMissingIdentifier:
			return KindMissingIdentifier
		case identity.ReasonUnknownRole:
			return KindUnknownRole
		}
	}
	switch {
	case errors.Is(err, imagepkg.ErrImageTooSmall):
		return KindImageTooSmall
	case errors.Is(err, imagepkg.ErrTextTooLarge):
		return KindTextTooLarge
	}
	return KindUnknown
}
