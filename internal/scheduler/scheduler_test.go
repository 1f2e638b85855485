package scheduler

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"balancebot/internal/core"
	"balancebot/internal/telegram/memory"
)

type fakeStore struct {
	members    []core.Member
	creditErr  error
	creditRuns int
}

func (f *fakeStore) AddMember(_ context.Context, name string, initial core.Money) (core.Money, error) {
	f.members = append(f.members, core.Member{Name: name, Balance: initial})
	return initial, nil
}

func (f *fakeStore) RemoveMember(context.Context, string) error { return nil }

func (f *fakeStore) Adjust(_ context.Context, _ string, delta core.Money) (core.Money, error) {
	return delta, nil
}

func (f *fakeStore) Balance(context.Context, string) (core.Money, bool, error) {
	return core.Money{}, false, nil
}

func (f *fakeStore) List(context.Context) ([]core.Member, error) { return f.members, nil }

func (f *fakeStore) CreditAll(_ context.Context, delta core.Money) ([]core.Member, error) {
	if f.creditErr != nil {
		return nil, f.creditErr
	}
	f.creditRuns++
	for i := range f.members {
		f.members[i].Balance = f.members[i].Balance.Add(delta)
	}
	return f.members, nil
}

func (f *fakeStore) Close() error { return nil }

type fakeState struct {
	last    time.Time
	lastErr error
	markErr error
}

func (f *fakeState) LastFired(context.Context) (time.Time, error) {
	return f.last, f.lastErr
}

func (f *fakeState) MarkFired(_ context.Context, day time.Time) error {
	if f.markErr != nil {
		return f.markErr
	}
	f.last = day
	return nil
}

func newTestScheduler(store *fakeStore, state *fakeState, tr *memory.Transport) *Scheduler {
	return New(Config{
		Day:      1,
		Hour:     8,
		Credit:   core.Money{Cents: 5000},
		Currency: "EUR",
		ChatID:   -100,
		Interval: time.Hour,
	}, store, state, tr, nil, nil)
}

func TestTickFiresOncePerMonthlyWindow(t *testing.T) {
	store := &fakeStore{members: []core.Member{{Name: "Alice"}}}
	state := &fakeState{}
	s := newTestScheduler(store, state, memory.New())

	// Hourly ticks across two months: only the two payday windows fire.
	fires := 0
	now := time.Date(2026, 6, 28, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 8, 3, 0, 0, 0, 0, time.UTC)
	for ; now.Before(end); now = now.Add(time.Hour) {
		fired, err := s.Tick(context.Background(), now)
		if err != nil {
			t.Fatalf("Tick at %v: %v", now, err)
		}
		if fired {
			fires++
		}
	}
	if fires != 2 {
		t.Fatalf("expected 2 fires (July 1 and August 1), got %d", fires)
	}
	if store.creditRuns != 2 {
		t.Fatalf("expected 2 credit runs, got %d", store.creditRuns)
	}
	if store.members[0].Balance.Cents != 10000 {
		t.Fatalf("expected 10000 cents after two credits, got %d", store.members[0].Balance.Cents)
	}
}

func TestTickSameDayNoDoubleFire(t *testing.T) {
	store := &fakeStore{members: []core.Member{{Name: "Alice"}}}
	state := &fakeState{}
	s := newTestScheduler(store, state, memory.New())

	in := time.Date(2026, 8, 1, 8, 0, 0, 0, time.UTC)
	fired, err := s.Tick(context.Background(), in)
	if err != nil || !fired {
		t.Fatalf("first tick: fired=%v err=%v", fired, err)
	}
	fired, err = s.Tick(context.Background(), in.Add(10*time.Minute))
	if err != nil || fired {
		t.Fatalf("second tick in same window: fired=%v err=%v", fired, err)
	}
	if store.creditRuns != 1 {
		t.Fatalf("expected 1 credit run, got %d", store.creditRuns)
	}
}

func TestRestartInsideWindowNoDoubleFire(t *testing.T) {
	store := &fakeStore{members: []core.Member{{Name: "Alice"}}}
	state := &fakeState{}
	in := time.Date(2026, 8, 1, 8, 0, 0, 0, time.UTC)

	s1 := newTestScheduler(store, state, memory.New())
	if fired, err := s1.Tick(context.Background(), in); err != nil || !fired {
		t.Fatalf("first process tick: fired=%v err=%v", fired, err)
	}

	// Simulated restart: a new scheduler sharing the persisted state.
	s2 := newTestScheduler(store, state, memory.New())
	if fired, err := s2.Tick(context.Background(), in.Add(30*time.Minute)); err != nil || fired {
		t.Fatalf("post-restart tick: fired=%v err=%v", fired, err)
	}
	if store.creditRuns != 1 {
		t.Fatalf("expected 1 credit run across restart, got %d", store.creditRuns)
	}
}

func TestCreditFailureRetriesNextTick(t *testing.T) {
	store := &fakeStore{
		members:   []core.Member{{Name: "Alice"}},
		creditErr: errors.New("disk full"),
	}
	state := &fakeState{}
	tr := memory.New()
	s := newTestScheduler(store, state, tr)

	in := time.Date(2026, 8, 1, 8, 0, 0, 0, time.UTC)
	fired, err := s.Tick(context.Background(), in)
	if err == nil || fired {
		t.Fatalf("expected failed tick, got fired=%v err=%v", fired, err)
	}
	if len(tr.Sent()) != 0 {
		t.Fatal("no summary should be sent after a failed credit run")
	}
	if !state.last.IsZero() {
		t.Fatal("fired marker must not be set after a failed credit run")
	}

	// Next tick inside the window succeeds once the store recovers.
	store.creditErr = nil
	fired, err = s.Tick(context.Background(), in.Add(15*time.Minute))
	if err != nil || !fired {
		t.Fatalf("retry tick: fired=%v err=%v", fired, err)
	}
}

func TestPaydayClampsToMonthEnd(t *testing.T) {
	store := &fakeStore{members: []core.Member{{Name: "Alice"}}}
	s := New(Config{
		Day:      31,
		Hour:     8,
		Credit:   core.Money{Cents: 5000},
		Currency: "EUR",
		Interval: time.Hour,
	}, store, &fakeState{}, memory.New(), nil, nil)

	// February 2026 has 28 days.
	fired, err := s.Tick(context.Background(), time.Date(2026, 2, 28, 8, 0, 0, 0, time.UTC))
	if err != nil || !fired {
		t.Fatalf("expected fire on clamped month end, got fired=%v err=%v", fired, err)
	}
}

func TestSummaryMessage(t *testing.T) {
	store := &fakeStore{members: []core.Member{
		{Name: "Alice", Balance: core.Money{Cents: 1000}},
		{Name: "Bob", Balance: core.Money{Cents: -250}},
	}}
	tr := memory.New()
	s := newTestScheduler(store, &fakeState{}, tr)

	fired, err := s.Tick(context.Background(), time.Date(2026, 8, 1, 8, 0, 0, 0, time.UTC))
	if err != nil || !fired {
		t.Fatalf("Tick: fired=%v err=%v", fired, err)
	}

	msg, ok := tr.LastSent()
	if !ok {
		t.Fatal("expected a summary message")
	}
	if msg.ChatID != -100 {
		t.Fatalf("summary sent to chat %d, expected -100", msg.ChatID)
	}
	for _, want := range []string{
		"added 50.00 EUR to everyone",
		"Alice: 60.00 EUR",
		"Bob: 47.50 EUR",
	} {
		if !strings.Contains(msg.Text, want) {
			t.Fatalf("summary missing %q:\n%s", want, msg.Text)
		}
	}
}

func TestEmptyLedgerFiresWithoutSummary(t *testing.T) {
	tr := memory.New()
	s := newTestScheduler(&fakeStore{}, &fakeState{}, tr)

	fired, err := s.Tick(context.Background(), time.Date(2026, 8, 1, 8, 0, 0, 0, time.UTC))
	if err != nil || !fired {
		t.Fatalf("Tick: fired=%v err=%v", fired, err)
	}
	if len(tr.Sent()) != 0 {
		t.Fatal("no summary expected for an empty ledger")
	}
}
