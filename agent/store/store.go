package store

import (
	"context"

	contractx "github.com/deuterium1925/smart-ass-back/agent/contract"
)

const DefaultHistoryLimit = 10

// CustomerStore is the keyed persistence contract for customer profiles.
// DeleteCustomer cascades: the customer's conversation turns are removed in
// the same consistency boundary, so a concurrent reader sees the profile and
// its history together or not at all.
type CustomerStore interface {
	UpsertCustomer(ctx context.Context, phoneNumber string, attributes map[string]any) (*contractx.Customer, error)
	GetCustomer(ctx context.Context, phoneNumber string) (*contractx.Customer, error)
	DeleteCustomer(ctx context.Context, phoneNumber string) error
}

// TurnStore owns conversation turns and is the only writer of automated
// results. Every mutation is a single check-and-set keyed by
// (phone_number, timestamp).
type TurnStore interface {
	// AppendTurn assigns a strictly-increasing timestamp scoped to the
	// customer and initializes the automated slots to pending.
	AppendTurn(ctx context.Context, phoneNumber, userText string) (int64, error)

	// History returns the most recent limit turns in creation order,
	// oldest first. limit <= 0 means DefaultHistoryLimit.
	History(ctx context.Context, phoneNumber string, limit int) ([]contractx.Turn, error)

	// TurnsByTimestamps returns exactly the named turns in input order.
	// A missing timestamp fails the whole call with ErrNotFound.
	TurnsByTimestamps(ctx context.Context, phoneNumber string, timestamps []int64) ([]contractx.Turn, error)

	GetTurn(ctx context.Context, phoneNumber string, timestamp int64) (*contractx.Turn, error)

	// SetOperatorResponse records the response exactly once; a second call
	// for the same turn fails with ErrConflict.
	SetOperatorResponse(ctx context.Context, phoneNumber string, timestamp int64, text string) (*contractx.Turn, error)

	// WriteAutomatedResults moves the automated slots out of pending.
	// When a concurrent trigger already wrote them, the call is a no-op
	// success restating the stored turn.
	WriteAutomatedResults(ctx context.Context, phoneNumber string, timestamp int64, results contractx.AutomatedResults) (*contractx.Turn, error)
}

// Store combines both contracts; the cascade on DeleteCustomer requires the
// backends to share one consistency boundary.
type Store interface {
	CustomerStore
	TurnStore
}
