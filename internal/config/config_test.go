package config

import (
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func validConfig(t *testing.T) *Config {
	t.Helper()
	dir := t.TempDir()
	return &Config{
		TelegramToken:     "123456:test-token",
		GroupID:           -1001234567890,
		PollTimeout:       30 * time.Second,
		CreditAmount:      "50",
		Currency:          "EUR",
		PaydayDay:         1,
		PaydayHour:        8,
		TickInterval:      time.Hour,
		LedgerBackend:     "file",
		LedgerPath:        filepath.Join(dir, "balances.json"),
		ScheduleStatePath: filepath.Join(dir, "schedule_state.json"),
		SQLiteDBPath:      filepath.Join(dir, "bot.db"),
		CommandsPerMinute: 20,
	}
}

func TestValidateValidConfig(t *testing.T) {
	cfg := validConfig(t)
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected valid config, got: %v", err)
	}
	if cfg.Credit().Cents != 5000 {
		t.Fatalf("expected 5000 credit cents, got %d", cfg.Credit().Cents)
	}
}

func TestValidateErrors(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "missing token",
			mutate:  func(c *Config) { c.TelegramToken = "" },
			wantErr: "TELEGRAM_TOKEN is required",
		},
		{
			name:    "missing group id",
			mutate:  func(c *Config) { c.GroupID = 0 },
			wantErr: "GROUP_ID is required",
		},
		{
			name:    "missing credit amount",
			mutate:  func(c *Config) { c.CreditAmount = "" },
			wantErr: "CREDIT_AMOUNT is required",
		},
		{
			name:    "negative credit amount",
			mutate:  func(c *Config) { c.CreditAmount = "-50" },
			wantErr: "invalid credit amount",
		},
		{
			name:    "payday day out of range",
			mutate:  func(c *Config) { c.PaydayDay = 32 },
			wantErr: "invalid payday day",
		},
		{
			name:    "payday hour out of range",
			mutate:  func(c *Config) { c.PaydayHour = 24 },
			wantErr: "invalid payday hour",
		},
		{
			name:    "unknown backend",
			mutate:  func(c *Config) { c.LedgerBackend = "redis" },
			wantErr: "invalid ledger backend",
		},
		{
			name: "file backend needs ledger path",
			mutate: func(c *Config) {
				c.LedgerBackend = "file"
				c.LedgerPath = ""
			},
			wantErr: "ledger path cannot be empty",
		},
		{
			name: "sqlite backend needs db path",
			mutate: func(c *Config) {
				c.LedgerBackend = "sqlite"
				c.SQLiteDBPath = ""
			},
			wantErr: "SQLite database path cannot be empty",
		},
		{
			name:    "bad amqp scheme",
			mutate:  func(c *Config) { c.AMQPURL = "http://localhost:5672" },
			wantErr: "invalid AMQP URL scheme",
		},
		{
			name:    "tick interval too short",
			mutate:  func(c *Config) { c.TickInterval = 100 * time.Millisecond },
			wantErr: "invalid tick interval",
		},
		{
			name:    "poll timeout too long",
			mutate:  func(c *Config) { c.PollTimeout = 10 * time.Minute },
			wantErr: "invalid poll timeout",
		},
		{
			name:    "commands per minute too low",
			mutate:  func(c *Config) { c.CommandsPerMinute = 0 },
			wantErr: "invalid commands per minute",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig(t)
			tc.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("expected error containing %q, got: %v", tc.wantErr, err)
			}
		})
	}
}

func TestValidateCollectsMultipleErrors(t *testing.T) {
	cfg := validConfig(t)
	cfg.TelegramToken = ""
	cfg.GroupID = 0
	cfg.CreditAmount = ""
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"TELEGRAM_TOKEN", "GROUP_ID", "CREDIT_AMOUNT"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("expected combined error to mention %s, got: %v", want, err)
		}
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg := Load()
	if cfg.Currency != "$" {
		t.Fatalf("expected default currency $, got %q", cfg.Currency)
	}
	if cfg.PaydayHour != 8 {
		t.Fatalf("expected default payday hour 8, got %d", cfg.PaydayHour)
	}
	if cfg.LedgerBackend != "file" {
		t.Fatalf("expected default backend file, got %q", cfg.LedgerBackend)
	}
	if cfg.TickInterval != time.Hour {
		t.Fatalf("expected default tick interval 1h, got %v", cfg.TickInterval)
	}
	if cfg.CommandsPerMinute != 20 {
		t.Fatalf("expected default 20 commands per minute, got %d", cfg.CommandsPerMinute)
	}
}
