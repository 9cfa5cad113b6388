package vkscene

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// ErrorKind classifies every failure the loader reports.
type ErrorKind int

const (
	// KindSceneLoad: the scene file is unreadable, corrupt or incomplete.
	KindSceneLoad ErrorKind = iota + 1
	// KindTextureLoad: a referenced image could not be decoded.
	KindTextureLoad
	// KindAllocation: no compatible memory type, or a graphics-API object
	// could not be created.
	KindAllocation
)

func (k ErrorKind) String() string {
	switch k {
	case KindSceneLoad:
		return "scene load"
	case KindTextureLoad:
		return "texture load"
	case KindAllocation:
		return "allocation"
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

// ErrNoMemoryType is wrapped by allocation errors raised when no memory type
// satisfies both the requirement filter and the requested properties.
var ErrNoMemoryType = errors.New("no suitable memory type")

// Error is returned by every fallible loader operation.
type Error struct {
	Kind ErrorKind
	// Path is the model or texture file involved, if any.
	Path string
	Err  error
}

func (e *Error) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s error: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s error: %s: %v", e.Kind, e.Path, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind ErrorKind, path string, err error) *Error {
	return &Error{Kind: kind, Path: path, Err: errors.WithStack(err)}
}

// IsKind reports whether err carries an *Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// allocError wraps a device failure, keeping an existing classification.
func allocError(path string, err error, format string, args ...interface{}) error {
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return newError(KindAllocation, path, errors.Wrapf(err, format, args...))
}
