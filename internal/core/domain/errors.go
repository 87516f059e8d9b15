package domain

import (
	"errors"
	"fmt"
)

var (
	ErrTypeNotFound     = errors.New("document type not found")
	ErrDocumentNotFound = errors.New("document not found")
	ErrHintNotFound     = errors.New("hint not found")
	ErrUnknownPlatform  = errors.New("unknown platform")
	ErrInvalidScope     = errors.New("invalid plan scope")
	ErrInvalidPeriod    = errors.New("invalid period key")
	ErrInvalidInput     = errors.New("invalid input")
	ErrStalePlan        = errors.New("stale plan")
	ErrItemNotInPlan    = errors.New("item not in plan")
	ErrTemporary        = errors.New("temporary failure")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
