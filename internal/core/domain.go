package core

import (
	"errors"
	"fmt"
	"strings"
)

type (
	// Money is a fixed-point monetary amount with two fractional digits,
	// held as cents to keep arithmetic exact.
	Money struct {
		Cents int64
	}

	// Member is one ledger entry: a unique name and its current balance.
	Member struct {
		Name    string
		Balance Money
	}
)

var (
	ErrEmptyName         = errors.New("empty member name")
	ErrUserNotFound      = errors.New("user not found")
	ErrUserAlreadyExists = errors.New("user already exists")
	ErrInvalidAmount     = errors.New("invalid amount")
)

// Add returns the sum of two amounts.
func (m Money) Add(d Money) Money {
	return Money{Cents: m.Cents + d.Cents}
}

// Neg returns the negated amount.
func (m Money) Neg() Money {
	return Money{Cents: -m.Cents}
}

// Decimal renders the amount with exactly two fractional digits, e.g.
// "12.50" or "-0.05". This is also the on-disk representation.
func (m Money) Decimal() string {
	c := m.Cents
	sign := ""
	if c < 0 {
		sign = "-"
		c = -c
	}
	return fmt.Sprintf("%s%d.%02d", sign, c/100, c%100)
}

// String implements fmt.Stringer.
func (m Money) String() string {
	return m.Decimal()
}

// ValidateName checks a member name. Names are case-sensitive and any
// non-blank string is accepted.
func ValidateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return ErrEmptyName
	}
	return nil
}
