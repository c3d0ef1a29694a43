package api

import (
	"errors"
	"fmt"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest = errors.New("bad request")
	ErrNoFeed     = errors.New("remote input is not enabled")
)

// WrapKind annotates err with op and the sentinel kind so errors.Is sees both.
func WrapKind(op string, kind, err error) error {
	return fmt.Errorf("%s: %w: %w", op, kind, err)
}

// NewKind returns kind annotated with op.
func NewKind(op string, kind error) error {
	return fmt.Errorf("%s: %w", op, kind)
}
