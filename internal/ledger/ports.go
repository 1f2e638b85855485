// Package ledger defines the ports the dispatcher and scheduler use to
// read and mutate the balance ledger. Backends live in the subpackages.
package ledger

import (
	"context"
	"errors"
	"time"

	"balancebot/internal/core"
)

// ErrPersistence wraps any storage failure. Callers report it generically
// and must treat the attempted change as not applied.
var ErrPersistence = errors.New("ledger persistence failed")

// Store owns the member→balance mapping. Every mutating operation is a
// serialized read-modify-write transaction: when it returns an error the
// stored state is unchanged.
type Store interface {
	// AddMember inserts a new member with the given starting balance and
	// returns it. Fails with core.ErrUserAlreadyExists if present.
	AddMember(ctx context.Context, name string, initial core.Money) (core.Money, error)

	// RemoveMember deletes a member. Fails with core.ErrUserNotFound if
	// absent.
	RemoveMember(ctx context.Context, name string) error

	// Adjust applies a signed delta to a member's balance and returns the
	// new balance. Fails with core.ErrUserNotFound if absent.
	Adjust(ctx context.Context, name string, delta core.Money) (core.Money, error)

	// Balance returns a member's balance and whether the member exists.
	Balance(ctx context.Context, name string) (core.Money, bool, error)

	// List returns all members in insertion order.
	List(ctx context.Context) ([]core.Member, error)

	// CreditAll applies the same delta to every member as one transaction
	// and returns the updated members in insertion order. Either every
	// balance is updated and persisted, or none is.
	CreditAll(ctx context.Context, delta core.Money) ([]core.Member, error)

	Close() error
}

// ScheduleStore persists the date on which the monthly credit last fired.
// A zero time means it never has.
type ScheduleStore interface {
	LastFired(ctx context.Context) (time.Time, error)
	MarkFired(ctx context.Context, day time.Time) error
}
