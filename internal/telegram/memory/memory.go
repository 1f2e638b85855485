// Package memory is an in-memory transport used by tests.
package memory

import (
	"context"
	"fmt"
	"sync"

	"balancebot/internal/telegram"
)

type Message struct {
	ChatID int64
	Text   string
}

type roleKey struct {
	chatID int64
	userID int64
}

type Transport struct {
	mu       sync.Mutex
	sent     []Message
	sendErr  error
	roles    map[roleKey]telegram.Role
	chatErrs map[int64]error
	pending  []telegram.Update
}

var (
	_ telegram.Sender        = (*Transport)(nil)
	_ telegram.MemberChecker = (*Transport)(nil)
	_ telegram.UpdateSource  = (*Transport)(nil)
)

func New() *Transport {
	return &Transport{
		roles:    make(map[roleKey]telegram.Role),
		chatErrs: make(map[int64]error),
	}
}

func (t *Transport) SendMessage(_ context.Context, chatID int64, text string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.sendErr != nil {
		return t.sendErr
	}
	t.sent = append(t.sent, Message{ChatID: chatID, Text: text})
	return nil
}

func (t *Transport) GetChatMember(_ context.Context, chatID, userID int64) (telegram.Role, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.chatErrs[chatID]; err != nil {
		return "", err
	}
	if role, ok := t.roles[roleKey{chatID, userID}]; ok {
		return role, nil
	}
	return "", fmt.Errorf("member %d not found in chat %d", userID, chatID)
}

func (t *Transport) GetUpdates(_ context.Context, offset int64) ([]telegram.Update, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []telegram.Update
	for _, u := range t.pending {
		if u.UpdateID >= offset {
			out = append(out, u)
		}
	}
	return out, nil
}

// SetRole scripts the role a member check returns.
func (t *Transport) SetRole(chatID, userID int64, role telegram.Role) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.roles[roleKey{chatID, userID}] = role
}

// FailChat makes every member check against chatID fail with err.
func (t *Transport) FailChat(chatID int64, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.chatErrs[chatID] = err
}

// FailSend makes SendMessage fail with err (nil restores delivery).
func (t *Transport) FailSend(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sendErr = err
}

// Push queues updates for GetUpdates.
func (t *Transport) Push(updates ...telegram.Update) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pending = append(t.pending, updates...)
}

// Sent returns a copy of everything sent so far.
func (t *Transport) Sent() []Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Message(nil), t.sent...)
}

// LastSent returns the most recent message, or false when none was sent.
func (t *Transport) LastSent() (Message, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.sent) == 0 {
		return Message{}, false
	}
	return t.sent[len(t.sent)-1], true
}
