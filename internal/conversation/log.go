// Package conversation holds the ordered message log of the active
// session and the rules for merging server responses into it.
package conversation

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/narekokr/text-guided-audio-split/internal/gateway"
	"github.com/narekokr/text-guided-audio-split/internal/model/chat"
)

// Log is the append-only conversation log of the active session.
type Log struct {
	logger *zap.Logger

	mu   sync.RWMutex
	msgs []chat.Message
}

// NewLog builds an empty log.
func NewLog(logger *zap.Logger) *Log {
	return &Log{logger: logger}
}

// Messages returns a copy of the ordered log.
func (l *Log) Messages() []chat.Message {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]chat.Message, len(l.msgs))
	copy(out, l.msgs)
	return out
}

// Len returns the number of messages.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.msgs)
}

// Clear drops all messages.
func (l *Log) Clear() {
	l.mu.Lock()
	l.msgs = nil
	l.mu.Unlock()
}

// AppendUser appends the user's message optimistically, before the
// network call resolves. It is never rolled back.
func (l *Log) AppendUser(content string) {
	l.append(chat.Message{
		Role:      chat.RoleUser,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	})
}

// AppendDiagnostic appends a synthetic assistant message describing a
// failure, so the user's own message is never silently dropped.
func (l *Log) AppendDiagnostic(content string) {
	l.append(chat.Message{
		Role:      chat.RoleAssistant,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	})
}

func (l *Log) append(msg chat.Message) {
	l.mu.Lock()
	l.msgs = append(l.msgs, msg)
	l.mu.Unlock()
}

// ApplyChatResponse merges a successful chat turn. The returned
// history is authoritative and replaces the log wholesale, which also
// supersedes the optimistic user append without entry-by-entry
// deduplication. Artifacts bind to the last assistant message of the
// merged log. An empty history would erase the conversation, so it is
// treated as a contract violation and the local log is kept.
func (l *Log) ApplyChatResponse(resp *gateway.ChatResponse) {
	if len(resp.History) == 0 {
		l.logger.Warn("chat response carried no history, keeping local log")
		return
	}

	merged := fromHistory(resp.History, l.logger)
	merged = bindToLastAssistant(merged, resp.Stems, resp.Remix, l.logger)

	l.mu.Lock()
	l.msgs = merged
	l.mu.Unlock()
}

// ReplaceFromHistory swaps in another session's log wholesale,
// reconstructing per-message artifacts from their file entries.
func (l *Log) ReplaceFromHistory(msgs []gateway.HistoryMessage) {
	replaced := fromHistory(msgs, l.logger)

	l.mu.Lock()
	l.msgs = replaced
	l.mu.Unlock()
}
