package bot

import (
	"sync"
	"time"
)

// Limiter throttles commands per chat so a flooding chat cannot starve the
// dispatcher or hammer the ledger.
type Limiter struct {
	mu           sync.Mutex
	chats        map[int64]*chatInfo
	stopCleanup  chan struct{}
	shutdownOnce sync.Once

	commandsPerMinute int
	cleanupInterval   time.Duration
}

type chatInfo struct {
	lastCommand time.Time
	commands    int
}

func NewLimiter(commandsPerMinute int) *Limiter {
	if commandsPerMinute <= 0 {
		commandsPerMinute = 20
	}
	l := &Limiter{
		chats:             make(map[int64]*chatInfo),
		stopCleanup:       make(chan struct{}),
		commandsPerMinute: commandsPerMinute,
		cleanupInterval:   5 * time.Minute,
	}
	go l.startCleanup()
	return l
}

// Allow checks if a command from the given chat should be handled.
func (l *Limiter) Allow(chatID int64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	chat, exists := l.chats[chatID]

	if !exists {
		l.chats[chatID] = &chatInfo{lastCommand: now, commands: 1}
		return true
	}

	// Reset counter if more than 1 minute has passed
	if now.Sub(chat.lastCommand) > time.Minute {
		chat.commands = 1
		chat.lastCommand = now
		return true
	}

	chat.commands++
	chat.lastCommand = now

	return chat.commands <= l.commandsPerMinute
}

func (l *Limiter) startCleanup() {
	ticker := time.NewTicker(l.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.cleanupStaleEntries()
		case <-l.stopCleanup:
			return
		}
	}
}

// cleanupStaleEntries drops chats idle for more than 10 minutes.
func (l *Limiter) cleanupStaleEntries() {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := time.Now().Add(-10 * time.Minute)
	for id, chat := range l.chats {
		if chat.lastCommand.Before(cutoff) {
			delete(l.chats, id)
		}
	}
}

// ActiveChats returns the number of currently tracked chats.
func (l *Limiter) ActiveChats() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.chats)
}

// Stop shuts down the cleanup goroutine.
func (l *Limiter) Stop() {
	l.shutdownOnce.Do(func() {
		close(l.stopCleanup)
	})
}
