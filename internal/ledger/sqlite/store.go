// Package sqlite implements the ledger on an embedded SQLite database.
// Schema changes ship as embedded migrations and run on open.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"balancebot/internal/core"
	"balancebot/internal/ledger"

	_ "modernc.org/sqlite"
)

type Store struct {
	// SQLite allows one writer at a time; the mutex also gives every
	// read-modify-write sequence the serialization the ledger requires.
	mu sync.Mutex
	db *sql.DB
}

var (
	_ ledger.Store         = (*Store)(nil)
	_ ledger.ScheduleStore = (*Store)(nil)
)

func New(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Store) AddMember(ctx context.Context, name string, initial core.Money) (core.Money, error) {
	if err := core.ValidateName(name); err != nil {
		return core.Money{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var exists bool
		if err := tx.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM members WHERE name = ?)`, name,
		).Scan(&exists); err != nil {
			return err
		}
		if exists {
			return core.ErrUserAlreadyExists
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO members (name, balance_cents) VALUES (?, ?)`,
			name, initial.Cents)
		return err
	})
	if err != nil {
		return core.Money{}, err
	}

	slog.InfoContext(ctx, "Member added", "member", name, "amount_cents", initial.Cents)
	return initial, nil
}

func (s *Store) RemoveMember(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM members WHERE name = ?`, name)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return core.ErrUserNotFound
		}
		return nil
	})
}

func (s *Store) Adjust(ctx context.Context, name string, delta core.Money) (core.Money, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var updated core.Money
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var cents int64
		err := tx.QueryRowContext(ctx,
			`SELECT balance_cents FROM members WHERE name = ?`, name,
		).Scan(&cents)
		if errors.Is(err, sql.ErrNoRows) {
			return core.ErrUserNotFound
		}
		if err != nil {
			return err
		}
		updated = core.Money{Cents: cents + delta.Cents}
		_, err = tx.ExecContext(ctx,
			`UPDATE members SET balance_cents = ? WHERE name = ?`,
			updated.Cents, name)
		return err
	})
	if err != nil {
		return core.Money{}, err
	}
	return updated, nil
}

func (s *Store) Balance(ctx context.Context, name string) (core.Money, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var cents int64
	err := s.db.QueryRowContext(ctx,
		`SELECT balance_cents FROM members WHERE name = ?`, name,
	).Scan(&cents)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Money{}, false, nil
	}
	if err != nil {
		return core.Money{}, false, fmt.Errorf("%w: %v", ledger.ErrPersistence, err)
	}
	return core.Money{Cents: cents}, true, nil
}

func (s *Store) List(ctx context.Context) ([]core.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	members, err := s.listLocked(ctx, s.db)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ledger.ErrPersistence, err)
	}
	return members, nil
}

func (s *Store) CreditAll(ctx context.Context, delta core.Money) ([]core.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var members []core.Member
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`UPDATE members SET balance_cents = balance_cents + ?`, delta.Cents,
		); err != nil {
			return err
		}
		var err error
		members, err = s.listLocked(ctx, tx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return members, nil
}

// LastFired implements ledger.ScheduleStore.
func (s *Store) LastFired(ctx context.Context) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT last_fired FROM schedule_state WHERE id = 1`,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", ledger.ErrPersistence, err)
	}
	return time.Parse("2006-01-02", raw)
}

// MarkFired implements ledger.ScheduleStore.
func (s *Store) MarkFired(ctx context.Context, day time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO schedule_state (id, last_fired) VALUES (1, ?)
		 ON CONFLICT(id) DO UPDATE SET last_fired = excluded.last_fired`,
		day.Format("2006-01-02"))
	if err != nil {
		return fmt.Errorf("%w: %v", ledger.ErrPersistence, err)
	}
	return nil
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s *Store) listLocked(ctx context.Context, q querier) ([]core.Member, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT name, balance_cents FROM members ORDER BY seq`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []core.Member
	for rows.Next() {
		var m core.Member
		if err := rows.Scan(&m.Name, &m.Balance.Cents); err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

// inTx runs fn in a transaction. Domain errors pass through untouched;
// anything else is wrapped as a persistence failure.
func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %v", ledger.ErrPersistence, err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		if errors.Is(err, core.ErrUserNotFound) || errors.Is(err, core.ErrUserAlreadyExists) {
			return err
		}
		return fmt.Errorf("%w: %v", ledger.ErrPersistence, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", ledger.ErrPersistence, err)
	}
	return nil
}
