// Package businessflow contains the ingestion, matching, and notification
// business logic for the tender pipeline.
package businessflow

import (
	"errors"
	"fmt"
)

// Business flow error constants
var (
	// Source-related errors. Both are non-fatal: the orchestrator reports
	// them as skipped outcomes instead of failing a batch.
	ErrSourceNotFound = errors.New("source not found")
	ErrSourceInactive = errors.New("source is inactive")

	// Keyword-related errors
	ErrKeywordIndexEmpty = errors.New("keyword index has no active keywords")

	// Run-related errors
	ErrRunCancelled = errors.New("run cancelled")
)

// RecordProcessingError wraps a failure while processing one raw record.
// It is always recovered inside the source's run; it never aborts the batch.
type RecordProcessingError struct {
	ReferenceID string
	Err         error
}

func (e *RecordProcessingError) Error() string {
	return fmt.Sprintf("record %s: %v", e.ReferenceID, e.Err)
}

func (e *RecordProcessingError) Unwrap() error {
	return e.Err
}

// DeliveryError wraps a per-channel, per-user delivery failure. It is
// recorded on the notification row and never propagated upward.
type DeliveryError struct {
	Channel string
	UserID  uint
	Err     error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("delivery via %s to user %d: %v", e.Channel, e.UserID, e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}
