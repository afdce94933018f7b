// Package orcerr holds the sentinel errors shared across the
// orchestration subsystems for one specific purpose: translating a
// context cancellation or deadline into a typed error before it
// crosses a package API boundary, where the caller converts it into a
// partial-result field instead of a bare error return. These
// sentinels are never returned to an external caller on their own.
package orcerr

import (
	"context"
	"errors"
)

var (
	// ErrCancelled stands in for context.Canceled once it has been
	// observed and is being folded into a partial result.
	ErrCancelled = errors.New("orcgrid: operation cancelled")
	// ErrDeadlineExceeded stands in for context.DeadlineExceeded once
	// it has been observed and is being folded into a partial result.
	ErrDeadlineExceeded = errors.New("orcgrid: deadline exceeded")
)

// FromContext maps a context error onto the matching sentinel. Errors
// that are not context.Canceled or context.DeadlineExceeded (including
// nil) are returned unchanged.
func FromContext(err error) error {
	switch {
	case errors.Is(err, context.Canceled):
		return ErrCancelled
	case errors.Is(err, context.DeadlineExceeded):
		return ErrDeadlineExceeded
	default:
		return err
	}
}
