package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"balancebot/internal/core"
	"balancebot/internal/events"
	applog "balancebot/internal/log"
)

const (
	replyUnknown     = "Unknown command. Try /help."
	replyStart       = "Hello! I am the Balance Bot. Use /help to see available commands."
	replyDenied      = "Permission denied. Admins only."
	replyCheckFailed = "Error verifying permissions."
	replyBadAmount   = "Invalid amount format."
	replySaveFailed  = "Could not save changes, please try again."
	replyReadFailed  = "Could not read balances, please try again."
	replyThrottled   = "Too many commands, please slow down."
	replyNoBalances  = "No balances found."
)

const helpText = `Available commands:

Public:
/balance <name> - Show a user's balance
/all_balances - Show all balances
/help - Show this message

Admin only:
/add_user <name> [initial_balance] - Register a new user
/remove_user <name> - Remove a user
/add_amount <name> <amount> - Add funds to a user
/subtract_amount <name> <amount> - Deduct funds from a user`

type command struct {
	usage      string
	restricted bool
	minArgs    int
	maxArgs    int
	run        func(ctx context.Context, b *Bot, args []string) string
}

func commandTable() map[string]command {
	return map[string]command{
		"start": {
			usage:   "/start",
			maxArgs: 0,
			run: func(context.Context, *Bot, []string) string {
				return replyStart
			},
		},
		"help": {
			usage:   "/help",
			maxArgs: 0,
			run: func(context.Context, *Bot, []string) string {
				return helpText
			},
		},
		"balance": {
			usage:   "/balance <name>",
			minArgs: 1,
			maxArgs: 1,
			run:     balanceCmd,
		},
		"all_balances": {
			usage:   "/all_balances",
			maxArgs: 0,
			run:     allBalancesCmd,
		},
		"add_user": {
			usage:      "/add_user <name> [initial_balance]",
			restricted: true,
			minArgs:    1,
			maxArgs:    2,
			run:        addUserCmd,
		},
		"remove_user": {
			usage:      "/remove_user <name>",
			restricted: true,
			minArgs:    1,
			maxArgs:    1,
			run:        removeUserCmd,
		},
		"add_amount": {
			usage:      "/add_amount <name> <amount>",
			restricted: true,
			minArgs:    2,
			maxArgs:    2,
			run:        addAmountCmd,
		},
		"subtract_amount": {
			usage:      "/subtract_amount <name> <amount>",
			restricted: true,
			minArgs:    2,
			maxArgs:    2,
			run:        subtractAmountCmd,
		},
	}
}

func balanceCmd(ctx context.Context, b *Bot, args []string) string {
	name := args[0]
	balance, found, err := b.store.Balance(ctx, name)
	if err != nil {
		b.logger.ErrorContext(ctx, "Balance lookup failed",
			applog.FieldMember, name, applog.FieldError, err)
		return replyReadFailed
	}
	if !found {
		return notFoundReply(name)
	}
	return fmt.Sprintf("Balance for %s: %s %s", name, balance, b.currency)
}

func allBalancesCmd(ctx context.Context, b *Bot, _ []string) string {
	members, err := b.store.List(ctx)
	if err != nil {
		b.logger.ErrorContext(ctx, "Listing balances failed", applog.FieldError, err)
		return replyReadFailed
	}
	if len(members) == 0 {
		return replyNoBalances
	}

	lines := make([]string, 0, len(members)+1)
	lines = append(lines, "Current balances:")
	for _, m := range members {
		lines = append(lines, fmt.Sprintf("%s: %s %s", m.Name, m.Balance, b.currency))
	}
	return strings.Join(lines, "\n")
}

func addUserCmd(ctx context.Context, b *Bot, args []string) string {
	name := args[0]
	initial := core.Money{}
	if len(args) == 2 {
		parsed, err := core.ParseInitialBalance(args[1])
		if err != nil {
			return replyBadAmount
		}
		initial = parsed
	}

	balance, err := b.store.AddMember(ctx, name, initial)
	switch {
	case errors.Is(err, core.ErrUserAlreadyExists):
		return fmt.Sprintf("User '%s' already exists.", name)
	case err != nil:
		return b.saveFailure(ctx, "add_user", name, err)
	}

	b.publishEvent(ctx, events.KindMemberAdded, name, balance.Cents)
	return fmt.Sprintf("User '%s' added with balance %s %s.", name, balance, b.currency)
}

func removeUserCmd(ctx context.Context, b *Bot, args []string) string {
	name := args[0]
	err := b.store.RemoveMember(ctx, name)
	switch {
	case errors.Is(err, core.ErrUserNotFound):
		return notFoundReply(name)
	case err != nil:
		return b.saveFailure(ctx, "remove_user", name, err)
	}

	b.publishEvent(ctx, events.KindMemberRemoved, name, 0)
	return fmt.Sprintf("User '%s' removed.", name)
}

func addAmountCmd(ctx context.Context, b *Bot, args []string) string {
	name := args[0]
	amount, err := core.ParseAmount(args[1])
	if err != nil {
		return replyBadAmount
	}

	balance, err := b.store.Adjust(ctx, name, amount)
	switch {
	case errors.Is(err, core.ErrUserNotFound):
		return notFoundReply(name)
	case err != nil:
		return b.saveFailure(ctx, "add_amount", name, err)
	}

	b.publishEvent(ctx, events.KindBalanceAdjusted, name, balance.Cents)
	return fmt.Sprintf("Added %s %s to %s. New balance: %s %s",
		amount, b.currency, name, balance, b.currency)
}

func subtractAmountCmd(ctx context.Context, b *Bot, args []string) string {
	name := args[0]
	amount, err := core.ParseAmount(args[1])
	if err != nil {
		return replyBadAmount
	}

	balance, err := b.store.Adjust(ctx, name, amount.Neg())
	switch {
	case errors.Is(err, core.ErrUserNotFound):
		return notFoundReply(name)
	case err != nil:
		return b.saveFailure(ctx, "subtract_amount", name, err)
	}

	b.publishEvent(ctx, events.KindBalanceAdjusted, name, balance.Cents)
	return fmt.Sprintf("Deducted %s %s from %s. New balance: %s %s",
		amount, b.currency, name, balance, b.currency)
}

func notFoundReply(name string) string {
	return fmt.Sprintf("User '%s' not found.", name)
}

// saveFailure logs the underlying persistence error and returns the
// generic notice; the change did not take effect.
func (b *Bot) saveFailure(ctx context.Context, cmd, name string, err error) string {
	b.logger.ErrorContext(ctx, "Ledger operation failed",
		applog.FieldCommand, cmd,
		applog.FieldMember, name,
		applog.FieldError, err)
	return replySaveFailed
}

func (b *Bot) publishEvent(ctx context.Context, kind, member string, balanceCents int64) {
	if b.events == nil {
		return
	}
	if err := b.events.PublishLedgerEvent(ctx, kind, member, balanceCents); err != nil {
		b.logger.WarnContext(ctx, "Failed to publish ledger event",
			applog.FieldMember, member,
			applog.FieldError, err)
	}
}
