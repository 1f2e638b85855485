// Package bot routes incoming chat commands to ledger operations. Every
// command is validated before the ledger is touched; restricted commands
// additionally pass the admin gate. Replies never leak storage internals:
// a failed save is always reported as a generic retry notice.
package bot

import (
	"context"
	"strings"
	"sync"
	"time"

	"balancebot/internal/events"
	"balancebot/internal/ledger"
	applog "balancebot/internal/log"
	"balancebot/internal/telegram"
)

type Bot struct {
	store    ledger.Store
	gate     *Gate
	sender   telegram.Sender
	source   telegram.UpdateSource
	limiter  *Limiter
	events   *events.Client
	currency string
	logger   *applog.Logger
	commands map[string]command

	wg sync.WaitGroup
}

// Options carries the collaborators the dispatcher needs. Events may be
// nil; everything else is required.
type Options struct {
	Store    ledger.Store
	Gate     *Gate
	Sender   telegram.Sender
	Source   telegram.UpdateSource
	Limiter  *Limiter
	Events   *events.Client
	Currency string
	Logger   *applog.Logger
}

func New(opts Options) *Bot {
	logger := opts.Logger
	if logger == nil {
		logger = applog.New(applog.Config{Component: applog.ComponentBot})
	}
	b := &Bot{
		store:    opts.Store,
		gate:     opts.Gate,
		sender:   opts.Sender,
		source:   opts.Source,
		limiter:  opts.Limiter,
		events:   opts.Events,
		currency: opts.Currency,
		logger:   logger,
	}
	b.commands = commandTable()
	return b
}

// Run long-polls for updates until ctx is cancelled. Each update is
// handled as its own goroutine; the ledger store serializes the actual
// mutations. In-flight handlers are drained before Run returns.
func (b *Bot) Run(ctx context.Context) error {
	b.logger.Info("Dispatcher started")
	defer b.wg.Wait()

	var offset int64
	for {
		if ctx.Err() != nil {
			b.logger.Info("Dispatcher stopping", applog.FieldError, ctx.Err())
			return nil
		}

		updates, err := b.source.GetUpdates(ctx, offset)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			b.logger.WarnContext(ctx, "Polling failed, backing off", applog.FieldError, err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(3 * time.Second):
			}
			continue
		}

		for _, u := range updates {
			if u.UpdateID >= offset {
				offset = u.UpdateID + 1
			}
			if u.Text == "" {
				continue
			}
			b.wg.Add(1)
			go func(u telegram.Update) {
				defer b.wg.Done()
				b.HandleUpdate(ctx, u)
			}(u)
		}
	}
}

// HandleUpdate dispatches one update and delivers the reply.
func (b *Bot) HandleUpdate(ctx context.Context, u telegram.Update) {
	reply := b.Dispatch(ctx, u)
	if reply == "" {
		return
	}

	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := b.sender.SendMessage(sendCtx, u.ChatID, reply); err != nil {
		b.logger.ErrorContext(ctx, "Failed to send reply",
			applog.FieldChatID, u.ChatID,
			applog.FieldError, err)
	}
}

// Dispatch resolves one update to its reply text without sending it.
// Non-command messages produce an empty reply.
func (b *Bot) Dispatch(ctx context.Context, u telegram.Update) string {
	name, args := parseCommand(u.Text)
	if name == "" {
		return ""
	}

	if b.limiter != nil && !b.limiter.Allow(u.ChatID) {
		b.logger.WarnContext(ctx, "Chat throttled", applog.FieldChatID, u.ChatID)
		return replyThrottled
	}

	cmd, ok := b.commands[name]
	if !ok {
		return replyUnknown
	}

	if len(args) < cmd.minArgs || len(args) > cmd.maxArgs {
		return "Usage: " + cmd.usage
	}

	if cmd.restricted {
		allowed, err := b.gate.IsAuthorized(ctx, u.ChatID, u.UserID)
		if err != nil {
			b.logger.ErrorContext(ctx, "Permission check unresolved",
				applog.FieldCommand, name,
				applog.FieldChatID, u.ChatID,
				applog.FieldUserID, u.UserID,
				applog.FieldError, err)
			return replyCheckFailed
		}
		if !allowed {
			return replyDenied
		}
	}

	b.logger.InfoContext(ctx, "Handling command",
		applog.FieldCommand, name,
		applog.FieldChatID, u.ChatID,
		applog.FieldUserID, u.UserID)

	return cmd.run(ctx, b, args)
}

// parseCommand splits "/add_user Alice 10" into ("add_user", ["Alice",
// "10"]). A "@botname" suffix on the command is dropped. Non-commands
// yield an empty name.
func parseCommand(text string) (string, []string) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", nil
	}
	fields := strings.Fields(text)
	name := strings.TrimPrefix(fields[0], "/")
	if i := strings.Index(name, "@"); i >= 0 {
		name = name[:i]
	}
	if name == "" {
		return "", nil
	}
	return name, fields[1:]
}
