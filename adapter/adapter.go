// Package adapter defines the notification boundary for completed transfers.
//
// After a file is saved, the runtime publishes a TransferCompletedEvent to an
// optional downstream system. Adapters are owned by the runtime; users supply
// configuration only.
package adapter

import (
	"context"
	"fmt"
	"time"
)

// ContractVersion is the version of the TransferCompletedEvent shape.
const ContractVersion = "1.0.0"

// EventTypeTransferCompleted is the event_type of every TransferCompletedEvent.
const EventTypeTransferCompleted = "transfer_completed"

// DefaultBackoff is the delay before the first retry. It doubles per attempt.
const DefaultBackoff = 500 * time.Millisecond

// TransferCompletedEvent is the payload published when a received file is saved.
type TransferCompletedEvent struct {
	ContractVersion string `json:"contract_version"`
	EventType       string `json:"event_type"` // always "transfer_completed"
	ReceiverID      string `json:"receiver_id"`
	Filename        string `json:"filename"` // as announced by the sender
	TotalChunks     int    `json:"total_chunks"`
	Bytes           int64  `json:"bytes"`
	Location        string `json:"location"` // where the sink stored it
	Timestamp       string `json:"timestamp"` // RFC 3339
}

// NewTransferCompletedEvent fills the fixed fields and stamps the time.
func NewTransferCompletedEvent(receiverID, filename string, totalChunks int, size int64, location string, at time.Time) *TransferCompletedEvent {
	return &TransferCompletedEvent{
		ContractVersion: ContractVersion,
		EventType:       EventTypeTransferCompleted,
		ReceiverID:      receiverID,
		Filename:        filename,
		TotalChunks:     totalChunks,
		Bytes:           size,
		Location:        location,
		Timestamp:       at.UTC().Format(time.RFC3339),
	}
}

// Adapter publishes transfer completion events to a downstream system.
type Adapter interface {
	// Publish sends a completion event. Must respect context cancellation.
	Publish(ctx context.Context, event *TransferCompletedEvent) error

	// Close releases adapter resources.
	Close() error
}

// Retry calls fn up to 1+retries times with exponential backoff starting at
// base. It stops early when ctx ends or permanent reports the error as
// non-retriable. The returned error is labeled with name.
func Retry(ctx context.Context, name string, retries int, base time.Duration, permanent func(error) bool, fn func(context.Context) error) error {
	var lastErr error
	attempts := 1 + retries

	for i := range attempts {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%s: context canceled: %w", name, err)
		}

		if i > 0 {
			backoff := time.Duration(1<<uint(i-1)) * base
			select {
			case <-ctx.Done():
				return fmt.Errorf("%s: context canceled during backoff: %w", name, ctx.Err())
			case <-time.After(backoff):
			}
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if permanent != nil && permanent(lastErr) {
			return fmt.Errorf("%s: non-retriable error: %w", name, lastErr)
		}
	}

	return fmt.Errorf("%s: failed after %d attempts: %w", name, attempts, lastErr)
}
