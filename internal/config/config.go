package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"balancebot/internal/core"
)

type Config struct {
	// Telegram
	TelegramToken string
	GroupID       int64
	PollTimeout   time.Duration

	// Monthly credit
	CreditAmount string
	Currency     string
	PaydayDay    int
	PaydayHour   int
	TickInterval time.Duration

	// Ledger backend
	LedgerBackend     string
	LedgerPath        string
	ScheduleStatePath string
	SQLiteDBPath      string

	// AMQP (optional)
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Dispatcher
	CommandsPerMinute int

	// Parsed during Validate
	CreditCents int64
}

func Load() *Config {
	cfg := &Config{
		TelegramToken: getEnv("TELEGRAM_TOKEN", ""),
		GroupID:       getEnvInt64("GROUP_ID", 0),
		PollTimeout:   getEnvDuration("POLL_TIMEOUT", 30*time.Second),

		CreditAmount: getEnv("CREDIT_AMOUNT", ""),
		Currency:     getEnv("CURRENCY", "$"),
		PaydayDay:    getEnvInt("PAYDAY_DAY", 0),
		PaydayHour:   getEnvInt("PAYDAY_HOUR", 8),
		TickInterval: getEnvDuration("TICK_INTERVAL", time.Hour),

		LedgerBackend:     getEnv("LEDGER_BACKEND", "file"),
		LedgerPath:        getEnv("LEDGER_PATH", "./data/balances.json"),
		ScheduleStatePath: getEnv("SCHEDULE_STATE_PATH", "./data/schedule_state.json"),
		SQLiteDBPath:      getEnv("SQLITE_DB_PATH", "./data/balancebot.db"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "balancebot"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "ledger_events"),

		CommandsPerMinute: getEnvInt("COMMANDS_PER_MINUTE", 20),
	}

	return cfg
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if c.TelegramToken == "" {
		errors = append(errors, "TELEGRAM_TOKEN is required")
	}
	if c.GroupID == 0 {
		errors = append(errors, "GROUP_ID is required and must be a non-zero chat id")
	}

	// Validate credit amount
	if c.CreditAmount == "" {
		errors = append(errors, "CREDIT_AMOUNT is required")
	} else if amount, err := core.ParseAmount(c.CreditAmount); err != nil {
		errors = append(errors, fmt.Sprintf("invalid credit amount '%s': must be a positive decimal", c.CreditAmount))
	} else {
		c.CreditCents = amount.Cents
	}

	if c.PaydayDay < 1 || c.PaydayDay > 31 {
		errors = append(errors, fmt.Sprintf("invalid payday day %d: must be between 1 and 31", c.PaydayDay))
	}
	if c.PaydayHour < 0 || c.PaydayHour > 23 {
		errors = append(errors, fmt.Sprintf("invalid payday hour %d: must be between 0 and 23", c.PaydayHour))
	}

	// Validate ledger backend
	validBackends := []string{"file", "sqlite"}
	isValidBackend := false
	for _, backend := range validBackends {
		if c.LedgerBackend == backend {
			isValidBackend = true
			break
		}
	}
	if !isValidBackend {
		errors = append(errors, fmt.Sprintf("invalid ledger backend '%s': must be one of %v", c.LedgerBackend, validBackends))
	}

	switch c.LedgerBackend {
	case "file":
		if c.LedgerPath == "" {
			errors = append(errors, "ledger path cannot be empty when using file backend")
		} else {
			errors = append(errors, ensureDir(c.LedgerPath)...)
		}
		if c.ScheduleStatePath == "" {
			errors = append(errors, "schedule state path cannot be empty when using file backend")
		} else {
			errors = append(errors, ensureDir(c.ScheduleStatePath)...)
		}
	case "sqlite":
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else {
			errors = append(errors, ensureDir(c.SQLiteDBPath)...)
		}
	}

	// Validate AMQP URL if provided
	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.TickInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid tick interval %v: must be at least 1 second", c.TickInterval))
	} else if c.TickInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid tick interval %v: must be at most 24 hours", c.TickInterval))
	}

	if c.PollTimeout < time.Second || c.PollTimeout > 5*time.Minute {
		errors = append(errors, fmt.Sprintf("invalid poll timeout %v: must be between 1 second and 5 minutes", c.PollTimeout))
	}

	if c.CommandsPerMinute < 1 {
		errors = append(errors, fmt.Sprintf("invalid commands per minute %d: must be at least 1", c.CommandsPerMinute))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// Credit returns the validated monthly credit amount.
func (c *Config) Credit() core.Money {
	return core.Money{Cents: c.CreditCents}
}

func ensureDir(path string) []string {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return []string{fmt.Sprintf("cannot create directory '%s': %v", dir, err)}
		}
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
