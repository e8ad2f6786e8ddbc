package store

import (
	"context"
	"sort"
	"sync"

	"github.com/farshadkazemi/clarity/internal/pipeline"
)

// Memory is a process-local Store. The server falls back to it when Postgres
// is not configured, so a bare checkout runs without any infrastructure.
type Memory struct {
	mu            sync.RWMutex
	conversations map[string]pipeline.Conversation
	messages      map[string][]pipeline.Message
	searchResults map[string][]pipeline.SearchResult
}

func NewMemory() *Memory {
	return &Memory{
		conversations: map[string]pipeline.Conversation{},
		messages:      map[string][]pipeline.Message{},
		searchResults: map[string][]pipeline.SearchResult{},
	}
}

func (m *Memory) SaveConversation(_ context.Context, c pipeline.Conversation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.conversations[c.ID] = c
	return nil
}

func (m *Memory) GetConversation(_ context.Context, id string) (pipeline.Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.conversations[id]
	if !ok {
		return pipeline.Conversation{}, pipeline.ErrConversationNotFound
	}
	return c, nil
}

func (m *Memory) UpdateConversationSummary(_ context.Context, id, summary string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.conversations[id]
	if !ok {
		return pipeline.ErrConversationNotFound
	}
	c.Summary = summary
	m.conversations[id] = c
	return nil
}

func (m *Memory) AppendMessage(_ context.Context, msg pipeline.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages[msg.ConversationID] = append(m.messages[msg.ConversationID], msg)
	return nil
}

func (m *Memory) RecentMessages(_ context.Context, conversationID string, n int) ([]pipeline.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	msgs := append([]pipeline.Message(nil), m.messages[conversationID]...)
	sort.SliceStable(msgs, func(i, j int) bool { return msgs[i].CreatedAt.Before(msgs[j].CreatedAt) })
	if len(msgs) > n {
		msgs = msgs[len(msgs)-n:]
	}
	return msgs, nil
}

func (m *Memory) InsertSearchResults(_ context.Context, conversationID string, results []pipeline.SearchResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.searchResults[conversationID] = append(m.searchResults[conversationID], results...)
	return nil
}

func (m *Memory) ListSearchResults(_ context.Context, conversationID string) ([]pipeline.SearchResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]pipeline.SearchResult, len(m.searchResults[conversationID]))
	copy(out, m.searchResults[conversationID])
	return out, nil
}
