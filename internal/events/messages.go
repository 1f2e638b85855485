package events

import (
	"encoding/json"
	"time"
)

// Event kinds published to the ledger events queue.
const (
	KindMemberAdded     = "member_added"
	KindMemberRemoved   = "member_removed"
	KindBalanceAdjusted = "balance_adjusted"
	KindPaydayRun       = "payday_run"
)

// LedgerEvent describes a single member mutation. Consumers that need the
// full ledger state query the bot's storage; the message stays small.
type LedgerEvent struct {
	Kind         string    `json:"kind"`
	Member       string    `json:"member,omitempty"`
	BalanceCents int64     `json:"balance_cents,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// PaydayEvent describes one completed monthly credit run.
type PaydayEvent struct {
	Kind        string    `json:"kind"`
	Date        string    `json:"date"`
	CreditCents int64     `json:"credit_cents"`
	Members     int       `json:"members"`
	Timestamp   time.Time `json:"timestamp"`
}

func NewLedgerEvent(kind, member string, balanceCents int64) *LedgerEvent {
	return &LedgerEvent{
		Kind:         kind,
		Member:       member,
		BalanceCents: balanceCents,
		Timestamp:    time.Now(),
	}
}

func NewPaydayEvent(date string, creditCents int64, members int) *PaydayEvent {
	return &PaydayEvent{
		Kind:        KindPaydayRun,
		Date:        date,
		CreditCents: creditCents,
		Members:     members,
		Timestamp:   time.Now(),
	}
}

func (e *LedgerEvent) ToJSON() ([]byte, error) { return json.Marshal(e) }
func (e *PaydayEvent) ToJSON() ([]byte, error) { return json.Marshal(e) }
