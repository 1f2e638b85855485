package file

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"balancebot/internal/core"
)

func newTestStore(t *testing.T) (*Store, string, string) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "balances.json")
	statePath := filepath.Join(dir, "schedule_state.json")
	return New(path, statePath), path, statePath
}

func cents(c int64) core.Money { return core.Money{Cents: c} }

func TestAddMemberAndBalance(t *testing.T) {
	s, _, _ := newTestStore(t)
	ctx := context.Background()

	got, err := s.AddMember(ctx, "Alice", cents(1000))
	if err != nil {
		t.Fatalf("AddMember: %v", err)
	}
	if got.Cents != 1000 {
		t.Fatalf("expected 1000 cents, got %d", got.Cents)
	}

	balance, found, err := s.Balance(ctx, "Alice")
	if err != nil || !found {
		t.Fatalf("Balance: found=%v err=%v", found, err)
	}
	if balance.Cents != 1000 {
		t.Fatalf("expected 1000 cents, got %d", balance.Cents)
	}
}

func TestAddMemberDuplicate(t *testing.T) {
	s, _, _ := newTestStore(t)
	ctx := context.Background()

	if _, err := s.AddMember(ctx, "Alice", cents(1000)); err != nil {
		t.Fatalf("AddMember: %v", err)
	}
	_, err := s.AddMember(ctx, "Alice", cents(9999))
	if !errors.Is(err, core.ErrUserAlreadyExists) {
		t.Fatalf("expected ErrUserAlreadyExists, got %v", err)
	}

	// Stored balance must be untouched
	balance, _, _ := s.Balance(ctx, "Alice")
	if balance.Cents != 1000 {
		t.Fatalf("duplicate add mutated balance: %d", balance.Cents)
	}
}

func TestRemoveMember(t *testing.T) {
	s, _, _ := newTestStore(t)
	ctx := context.Background()

	if err := s.RemoveMember(ctx, "ghost"); !errors.Is(err, core.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}

	s.AddMember(ctx, "Alice", cents(0))
	if err := s.RemoveMember(ctx, "Alice"); err != nil {
		t.Fatalf("RemoveMember: %v", err)
	}
	if _, found, _ := s.Balance(ctx, "Alice"); found {
		t.Fatal("member still present after removal")
	}
}

func TestAdjustRoundsEachStep(t *testing.T) {
	s, _, _ := newTestStore(t)
	ctx := context.Background()

	s.AddMember(ctx, "Alice", cents(1000))

	if _, err := s.Adjust(ctx, "ghost", cents(100)); !errors.Is(err, core.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}

	b1, err := s.Adjust(ctx, "Alice", cents(250))
	if err != nil || b1.Cents != 1250 {
		t.Fatalf("expected 1250, got %d (err=%v)", b1.Cents, err)
	}
	b2, err := s.Adjust(ctx, "Alice", cents(-1250))
	if err != nil || b2.Cents != 0 {
		t.Fatalf("expected 0, got %d (err=%v)", b2.Cents, err)
	}
}

func TestSaveLoadRoundTripPreservesOrder(t *testing.T) {
	s, path, statePath := newTestStore(t)
	ctx := context.Background()

	names := []string{"Charlie", "Alice", "Bob"}
	for i, n := range names {
		if _, err := s.AddMember(ctx, n, cents(int64(i+1)*1050)); err != nil {
			t.Fatalf("AddMember %s: %v", n, err)
		}
	}

	reopened := New(path, statePath)
	members, err := reopened.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(members) != len(names) {
		t.Fatalf("expected %d members, got %d", len(names), len(members))
	}
	for i, n := range names {
		if members[i].Name != n {
			t.Fatalf("order lost at %d: expected %s, got %s", i, n, members[i].Name)
		}
		if want := int64(i+1) * 1050; members[i].Balance.Cents != want {
			t.Fatalf("%s: expected %d cents, got %d", n, want, members[i].Balance.Cents)
		}
	}
}

func TestCorruptLedgerFileStartsEmpty(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "balances.json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}

	s := New(path, filepath.Join(dir, "state.json"))
	members, err := s.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(members) != 0 {
		t.Fatalf("expected empty ledger, got %d members", len(members))
	}
}

func TestConcurrentAdjustNoLostUpdate(t *testing.T) {
	s, _, _ := newTestStore(t)
	ctx := context.Background()

	s.AddMember(ctx, "Alice", cents(1000))

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		if _, err := s.Adjust(ctx, "Alice", cents(500)); err != nil {
			t.Errorf("Adjust +5.00: %v", err)
		}
	}()
	go func() {
		defer wg.Done()
		if _, err := s.Adjust(ctx, "Alice", cents(-300)); err != nil {
			t.Errorf("Adjust -3.00: %v", err)
		}
	}()
	wg.Wait()

	balance, _, _ := s.Balance(ctx, "Alice")
	if balance.Cents != 1200 {
		t.Fatalf("lost update: expected 1200 cents, got %d", balance.Cents)
	}
}

func TestCreditAll(t *testing.T) {
	s, _, _ := newTestStore(t)
	ctx := context.Background()

	s.AddMember(ctx, "Alice", cents(1000))
	s.AddMember(ctx, "Bob", cents(0))

	members, err := s.CreditAll(ctx, cents(350))
	if err != nil {
		t.Fatalf("CreditAll: %v", err)
	}
	if len(members) != 2 {
		t.Fatalf("expected 2 members, got %d", len(members))
	}
	if members[0].Balance.Cents != 1350 || members[1].Balance.Cents != 350 {
		t.Fatalf("unexpected balances: %d, %d",
			members[0].Balance.Cents, members[1].Balance.Cents)
	}
}

func TestScheduleStateSurvivesReopen(t *testing.T) {
	s, path, statePath := newTestStore(t)
	ctx := context.Background()

	last, err := s.LastFired(ctx)
	if err != nil || !last.IsZero() {
		t.Fatalf("expected zero time before first fire, got %v (err=%v)", last, err)
	}

	day := time.Date(2026, 8, 1, 8, 0, 0, 0, time.UTC)
	if err := s.MarkFired(ctx, day); err != nil {
		t.Fatalf("MarkFired: %v", err)
	}

	reopened := New(path, statePath)
	last, err = reopened.LastFired(ctx)
	if err != nil {
		t.Fatalf("LastFired: %v", err)
	}
	if last.Format("2006-01-02") != "2026-08-01" {
		t.Fatalf("expected 2026-08-01, got %v", last)
	}
}

func TestEncodeDecodeLedger(t *testing.T) {
	members := []core.Member{
		{Name: "Alice", Balance: cents(1250)},
		{Name: "Bob with \"quotes\"", Balance: cents(-5)},
	}
	decoded, err := decodeLedger(encodeLedger(members))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(decoded) != 2 {
		t.Fatalf("expected 2 members, got %d", len(decoded))
	}
	for i := range members {
		if decoded[i] != members[i] {
			t.Fatalf("entry %d: expected %+v, got %+v", i, members[i], decoded[i])
		}
	}

	if _, err := decodeLedger([]byte(`{"a": 1, "a": 2}`)); err == nil {
		t.Fatal("duplicate keys should be rejected")
	}
	if _, err := decodeLedger([]byte(`{"a": "x"}`)); err == nil {
		t.Fatal("non-numeric balance should be rejected")
	}
}
