package bot

import (
	"context"
	"errors"
	"fmt"
	"time"

	applog "balancebot/internal/log"
	"balancebot/internal/telegram"
)

// ErrPermissionCheck means authorization could not be verified at all,
// as opposed to a clean denial. The gate fails closed either way.
var ErrPermissionCheck = errors.New("permission check failed")

// Gate decides whether a user may run restricted commands. It checks the
// originating chat first; when that check fails (typical for direct
// messages, where the bot cannot see group membership) it retries once
// against the configured group.
type Gate struct {
	checker      telegram.MemberChecker
	fallbackChat int64
	timeout      time.Duration
	logger       *applog.Logger
}

func NewGate(checker telegram.MemberChecker, fallbackChat int64, logger *applog.Logger) *Gate {
	if logger == nil {
		logger = applog.New(applog.Config{Component: applog.ComponentBot})
	}
	return &Gate{
		checker:      checker,
		fallbackChat: fallbackChat,
		timeout:      10 * time.Second,
		logger:       logger,
	}
}

// IsAuthorized reports whether the user holds an admin role. An
// ErrPermissionCheck error means neither attempt could resolve a role;
// callers must treat that as a denial.
func (g *Gate) IsAuthorized(ctx context.Context, chatID, userID int64) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	role, err := g.checker.GetChatMember(ctx, chatID, userID)
	if err != nil {
		g.logger.WarnContext(ctx, "Primary permission check failed, trying group",
			applog.FieldChatID, chatID,
			applog.FieldUserID, userID,
			applog.FieldError, err)

		role, err = g.checker.GetChatMember(ctx, g.fallbackChat, userID)
		if err != nil {
			return false, fmt.Errorf("%w: %v", ErrPermissionCheck, err)
		}
	}

	return role.IsAdmin(), nil
}
