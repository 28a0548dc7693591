package model

import "fmt"

// ClientInputError is a malformed-request condition (§7, HTTP 400):
// unparseable time strings, unknown file types, etc.
type ClientInputError struct {
	Msg string
}

func (e *ClientInputError) Error() string { return e.Msg }

// NewClientInputError builds a ClientInputError with a formatted message.
func NewClientInputError(format string, args ...any) *ClientInputError {
	return &ClientInputError{Msg: fmt.Sprintf(format, args...)}
}

// NotFoundError is an unknown access_code or id (§7, HTTP 404). Players
// treat this as "re-enrol required" when seen on a playlist fetch after a
// prior success.
type NotFoundError struct {
	Msg string
}

func (e *NotFoundError) Error() string { return e.Msg }

func NewNotFoundError(format string, args ...any) *NotFoundError {
	return &NotFoundError{Msg: fmt.Sprintf(format, args...)}
}

// ForbiddenError is a device marked inactive (§7, HTTP 403). The player
// should stop playback and show setup.
type ForbiddenError struct {
	Msg string
}

func (e *ForbiddenError) Error() string { return e.Msg }

func NewForbiddenError(format string, args ...any) *ForbiddenError {
	return &ForbiddenError{Msg: fmt.Sprintf(format, args...)}
}

// NetworkFailure wraps a timeout, DNS, or connection-refused condition
// encountered by the player. It logs and retries on the next poll;
// cached content keeps playing.
type NetworkFailure struct {
	Op  string
	Err error
}

func (e *NetworkFailure) Error() string { return fmt.Sprintf("network failure during %s: %v", e.Op, e.Err) }
func (e *NetworkFailure) Unwrap() error { return e.Err }

// CacheFailure is a disk write failure on the player. The affected item
// falls back to its remote URL; the next sync retries.
type CacheFailure struct {
	Path string
	Err  error
}

func (e *CacheFailure) Error() string { return fmt.Sprintf("cache failure for %s: %v", e.Path, e.Err) }
func (e *CacheFailure) Unwrap() error { return e.Err }

// RendererFailure is a media-load error surfaced by the embedded
// renderer. A single item failing does not stall the cycle.
type RendererFailure struct {
	Filename string
	Err      error
}

func (e *RendererFailure) Error() string {
	return fmt.Sprintf("renderer failure for %s: %v", e.Filename, e.Err)
}
func (e *RendererFailure) Unwrap() error { return e.Err }
