// Package telegram defines the outbound chat-transport ports and the Bot
// API adapter. The bot core only sees these interfaces; tests use the
// in-memory implementation under memory/.
package telegram

import "context"

// Role is a chat member's status as reported by the transport.
type Role string

const (
	RoleCreator       Role = "creator"
	RoleAdministrator Role = "administrator"
	RoleMember        Role = "member"
	RoleRestricted    Role = "restricted"
	RoleLeft          Role = "left"
	RoleKicked        Role = "kicked"
)

// IsAdmin reports whether the role may run restricted commands.
func (r Role) IsAdmin() bool {
	return r == RoleCreator || r == RoleAdministrator
}

// Update is one incoming command message.
type Update struct {
	UpdateID int64
	ChatID   int64
	UserID   int64
	Text     string
}

// Ports for outbound transport adapters.
type (
	Sender interface {
		SendMessage(ctx context.Context, chatID int64, text string) error
	}

	MemberChecker interface {
		// GetChatMember returns the user's role in the chat. An error means
		// the role could not be determined, not that the user is absent.
		GetChatMember(ctx context.Context, chatID, userID int64) (Role, error)
	}

	UpdateSource interface {
		// GetUpdates long-polls for updates with ids >= offset.
		GetUpdates(ctx context.Context, offset int64) ([]Update, error)
	}
)
