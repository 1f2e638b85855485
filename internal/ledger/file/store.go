// Package file implements the ledger on a single JSON file, the format the
// bot has always used: one object mapping member name to a 2-decimal
// balance, insertion order preserved. Writes go through a temp file and a
// rename so a crash mid-write never corrupts the previous state.
package file

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"balancebot/internal/core"
	"balancebot/internal/ledger"
)

type Store struct {
	mu        sync.Mutex
	path      string
	statePath string

	members   []core.Member
	index     map[string]int
	lastFired time.Time
}

const stateDateLayout = "2006-01-02"

var (
	_ ledger.Store         = (*Store)(nil)
	_ ledger.ScheduleStore = (*Store)(nil)
)

// New opens the ledger at path and the schedule state at statePath. A
// missing or unreadable file yields an empty ledger; that is logged as a
// degraded read, never returned as an error.
func New(path, statePath string) *Store {
	s := &Store{
		path:      path,
		statePath: statePath,
		index:     make(map[string]int),
	}

	members, err := readLedger(path)
	if err != nil {
		slog.Warn("Ledger file unreadable, starting empty",
			"path", path, "error", err)
	}
	s.commit(members)

	lastFired, err := readState(statePath)
	if err != nil {
		slog.Warn("Schedule state unreadable, treating as never fired",
			"path", statePath, "error", err)
	}
	s.lastFired = lastFired

	return s
}

func (s *Store) AddMember(_ context.Context, name string, initial core.Money) (core.Money, error) {
	if err := core.ValidateName(name); err != nil {
		return core.Money{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.index[name]; ok {
		return core.Money{}, core.ErrUserAlreadyExists
	}

	next := append(slices.Clone(s.members), core.Member{Name: name, Balance: initial})
	if err := s.persist(next); err != nil {
		return core.Money{}, err
	}
	s.commit(next)
	return initial, nil
}

func (s *Store) RemoveMember(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.index[name]
	if !ok {
		return core.ErrUserNotFound
	}

	next := slices.Delete(slices.Clone(s.members), i, i+1)
	if err := s.persist(next); err != nil {
		return err
	}
	s.commit(next)
	return nil
}

func (s *Store) Adjust(_ context.Context, name string, delta core.Money) (core.Money, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.index[name]
	if !ok {
		return core.Money{}, core.ErrUserNotFound
	}

	next := slices.Clone(s.members)
	next[i].Balance = next[i].Balance.Add(delta)
	if err := s.persist(next); err != nil {
		return core.Money{}, err
	}
	s.commit(next)
	return next[i].Balance, nil
}

func (s *Store) Balance(_ context.Context, name string) (core.Money, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.index[name]
	if !ok {
		return core.Money{}, false, nil
	}
	return s.members[i].Balance, true, nil
}

func (s *Store) List(_ context.Context) ([]core.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.members), nil
}

func (s *Store) CreditAll(_ context.Context, delta core.Money) ([]core.Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := slices.Clone(s.members)
	for i := range next {
		next[i].Balance = next[i].Balance.Add(delta)
	}
	if err := s.persist(next); err != nil {
		return nil, err
	}
	s.commit(next)
	return slices.Clone(next), nil
}

func (s *Store) Close() error { return nil }

// LastFired implements ledger.ScheduleStore.
func (s *Store) LastFired(_ context.Context) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastFired, nil
}

// MarkFired implements ledger.ScheduleStore.
func (s *Store) MarkFired(_ context.Context, day time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	body := []byte(fmt.Sprintf("{\n  \"last_fired\": %q\n}\n", day.Format(stateDateLayout)))
	if err := writeAtomic(s.statePath, body); err != nil {
		return fmt.Errorf("%w: write schedule state: %v", ledger.ErrPersistence, err)
	}
	s.lastFired = day
	return nil
}

// commit swaps in the new member list and rebuilds the name index.
func (s *Store) commit(members []core.Member) {
	s.members = members
	s.index = make(map[string]int, len(members))
	for i, m := range members {
		s.index[m.Name] = i
	}
}

func (s *Store) persist(members []core.Member) error {
	if err := writeAtomic(s.path, encodeLedger(members)); err != nil {
		return fmt.Errorf("%w: write ledger: %v", ledger.ErrPersistence, err)
	}
	return nil
}

func writeAtomic(path string, body []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, body, 0644); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

func readState(path string) (time.Time, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return time.Time{}, nil
		}
		return time.Time{}, err
	}
	raw, err := decodeState(data)
	if err != nil {
		return time.Time{}, err
	}
	if raw == "" {
		return time.Time{}, nil
	}
	return time.Parse(stateDateLayout, raw)
}
