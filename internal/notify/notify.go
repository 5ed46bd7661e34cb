// Package notify collects the user-visible status messages produced by the
// ledger, catalog, groups and game packages.
package notify

import (
	"sync"
	"time"
)

// Tone classifies a message for display.
type Tone string

const (
	ToneSuccess Tone = "success"
	ToneInfo    Tone = "info"
	ToneWarning Tone = "warning"
	ToneDanger  Tone = "danger"
)

// Channel names the status area a message belongs to.
type Channel string

const (
	ChannelPoints Channel = "points"
	ChannelGroups Channel = "groups"
	ChannelGame   Channel = "game"
	ChannelScan   Channel = "scan"
)

// Message is a single status line.
type Message struct {
	Channel   Channel   `json:"channel"`
	Text      string    `json:"text"`
	Tone      Tone      `json:"tone"`
	Timestamp time.Time `json:"timestamp"`
}

// Notifier receives messages.
type Notifier interface {
	Notify(ch Channel, text string, tone Tone)
}

// Log is a thread-safe ring buffer of recent messages. It implements Notifier.
type Log struct {
	mu      sync.RWMutex
	entries []Message
	maxSize int
	now     func() time.Time
}

// NewLog creates a message log holding at most maxSize entries.
func NewLog(maxSize int) *Log {
	if maxSize <= 0 {
		maxSize = 100
	}
	return &Log{
		entries: make([]Message, 0, maxSize),
		maxSize: maxSize,
		now:     time.Now,
	}
}

// Notify appends a message, evicting the oldest if at capacity.
func (l *Log) Notify(ch Channel, text string, tone Tone) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.entries) >= l.maxSize {
		l.entries = l.entries[1:]
	}
	l.entries = append(l.entries, Message{
		Channel:   ch,
		Text:      text,
		Tone:      tone,
		Timestamp: l.now(),
	})
}

// Entries returns a copy of all messages, oldest first.
func (l *Log) Entries() []Message {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Message, len(l.entries))
	copy(out, l.entries)
	return out
}

// Latest returns the most recent message on a channel.
func (l *Log) Latest(ch Channel) (Message, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for i := len(l.entries) - 1; i >= 0; i-- {
		if l.entries[i].Channel == ch {
			return l.entries[i], true
		}
	}
	return Message{}, false
}

// Clear removes all messages.
func (l *Log) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = l.entries[:0]
}

// Discard is a Notifier that drops every message.
type Discard struct{}

// Notify implements Notifier.
func (Discard) Notify(Channel, string, Tone) {}
