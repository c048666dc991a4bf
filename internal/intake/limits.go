package intake

import (
	"errors"
	"fmt"
)

var (
	// ErrTooManyItems is returned when a batch exceeds the item limit
	ErrTooManyItems = errors.New("too many items")

	// ErrEmptyBatch is returned when a batch contains no items
	ErrEmptyBatch = errors.New("batch contains no items")
)

// BatchLimits bounds what one intake request may carry.
type BatchLimits struct {
	MaxItems int // Maximum number of task items per request
}

// DefaultBatchLimits returns the default batch limits
func DefaultBatchLimits() BatchLimits {
	return BatchLimits{MaxItems: 20}
}

// NewBatchLimits creates batch limits from configuration
func NewBatchLimits(maxItems int) BatchLimits {
	if maxItems <= 0 {
		return DefaultBatchLimits()
	}
	return BatchLimits{MaxItems: maxItems}
}

// ValidateItemCount checks if the item count is within limits
func (l BatchLimits) ValidateItemCount(count int) error {
	if count == 0 {
		return ErrEmptyBatch
	}
	if count > l.MaxItems {
		return fmt.Errorf("%w: got %d items, limit is %d", ErrTooManyItems, count, l.MaxItems)
	}
	return nil
}
