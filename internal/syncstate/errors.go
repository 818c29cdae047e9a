package syncstate

import (
	"errors"
	"fmt"
)

var ErrInvalidPhotoKind = errors.New("photo kind must be receipt or dish")

// StatusError reports a response outside the 2xx range.
type StatusError struct {
	Path string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d", e.Path, e.Code)
}

// DecodeError reports a response body that does not have the expected shape.
type DecodeError struct {
	Path string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s: decode response: %v", e.Path, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }
