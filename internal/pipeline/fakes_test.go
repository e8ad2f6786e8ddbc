package pipeline

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/farshadkazemi/clarity/internal/search"
)

// fakeLLM scripts Generate by prompt inspection.
type fakeLLM struct {
	fn func(prompt, model string) (string, error)
}

func (f *fakeLLM) Generate(_ context.Context, prompt, model string) (string, error) {
	if f.fn == nil {
		return "", errors.New("fakeLLM: no script")
	}
	return f.fn(prompt, model)
}

// fakeSearcher scripts results per query.
type fakeSearcher struct {
	mu      sync.Mutex
	results map[string][]search.Result
	err     map[string]error
	calls   []string
}

func (f *fakeSearcher) Search(_ context.Context, query string, k int) ([]search.Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, query)
	f.mu.Unlock()
	if err, ok := f.err[query]; ok {
		return nil, err
	}
	rs := f.results[query]
	if len(rs) > k {
		rs = rs[:k]
	}
	return rs, nil
}

// memStore is an in-memory Store for pipeline tests.
type memStore struct {
	mu            sync.Mutex
	conversations map[string]Conversation
	messages      map[string][]Message
	searchResults map[string][]SearchResult
	failWrites    bool
}

func newMemStore() *memStore {
	return &memStore{
		conversations: map[string]Conversation{},
		messages:      map[string][]Message{},
		searchResults: map[string][]SearchResult{},
	}
}

var errWriteFailed = errors.New("write failed")

func (m *memStore) SaveConversation(_ context.Context, c Conversation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWrites {
		return errWriteFailed
	}
	m.conversations[c.ID] = c
	return nil
}

func (m *memStore) GetConversation(_ context.Context, id string) (Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.conversations[id]
	if !ok {
		return Conversation{}, ErrConversationNotFound
	}
	return c, nil
}

func (m *memStore) UpdateConversationSummary(_ context.Context, id, summary string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWrites {
		return errWriteFailed
	}
	c, ok := m.conversations[id]
	if !ok {
		return errors.New("conversation not found")
	}
	c.Summary = summary
	m.conversations[id] = c
	return nil
}

func (m *memStore) AppendMessage(_ context.Context, msg Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWrites {
		return errWriteFailed
	}
	m.messages[msg.ConversationID] = append(m.messages[msg.ConversationID], msg)
	return nil
}

func (m *memStore) RecentMessages(_ context.Context, conversationID string, n int) ([]Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msgs := m.messages[conversationID]
	sort.SliceStable(msgs, func(i, j int) bool { return msgs[i].CreatedAt.Before(msgs[j].CreatedAt) })
	if len(msgs) > n {
		msgs = msgs[len(msgs)-n:]
	}
	out := make([]Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

func (m *memStore) InsertSearchResults(_ context.Context, conversationID string, results []SearchResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWrites {
		return errWriteFailed
	}
	m.searchResults[conversationID] = append(m.searchResults[conversationID], results...)
	return nil
}

func (m *memStore) ListSearchResults(_ context.Context, conversationID string) ([]SearchResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SearchResult, len(m.searchResults[conversationID]))
	copy(out, m.searchResults[conversationID])
	return out, nil
}
