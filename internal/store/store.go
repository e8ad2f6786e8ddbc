package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/farshadkazemi/clarity/internal/pipeline"
)

// Postgres persists conversations, messages, and search results. Schema is
// managed by the migrate command; see the migrations directory.
type Postgres struct {
	DB *sql.DB
}

// NewPostgres opens and pings a Postgres connection.
func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return &Postgres{DB: db}, nil
}

func (s *Postgres) Close() error { return s.DB.Close() }

func (s *Postgres) SaveConversation(ctx context.Context, c pipeline.Conversation) error {
	_, err := s.DB.ExecContext(ctx, `
INSERT INTO conversations (id, query, summary, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5)
ON CONFLICT (id) DO UPDATE SET summary = EXCLUDED.summary, updated_at = EXCLUDED.updated_at`,
		c.ID, c.Query, c.Summary, c.CreatedAt, c.UpdatedAt)
	return err
}

func (s *Postgres) GetConversation(ctx context.Context, id string) (pipeline.Conversation, error) {
	c := pipeline.Conversation{ID: id}
	err := s.DB.QueryRowContext(ctx,
		`SELECT query, summary, created_at, updated_at FROM conversations WHERE id=$1`, id).
		Scan(&c.Query, &c.Summary, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return pipeline.Conversation{}, pipeline.ErrConversationNotFound
	}
	if err != nil {
		return pipeline.Conversation{}, err
	}
	return c, nil
}

func (s *Postgres) UpdateConversationSummary(ctx context.Context, id, summary string) error {
	res, err := s.DB.ExecContext(ctx,
		`UPDATE conversations SET summary=$2, updated_at=NOW() WHERE id=$1`, id, summary)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return pipeline.ErrConversationNotFound
	}
	return nil
}

func (s *Postgres) AppendMessage(ctx context.Context, msg pipeline.Message) error {
	citations, err := marshalNullable(msg.Citations)
	if err != nil {
		return fmt.Errorf("marshal citations: %w", err)
	}
	visualization, err := marshalNullable(msg.Visualization)
	if err != nil {
		return fmt.Errorf("marshal visualization: %w", err)
	}
	_, err = s.DB.ExecContext(ctx, `
INSERT INTO messages (id, conversation_id, role, content, citations, visualization, visualization_context, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		msg.ID, msg.ConversationID, string(msg.Role), msg.Content,
		citations, visualization, msg.VisualizationContext, msg.CreatedAt)
	return err
}

func (s *Postgres) RecentMessages(ctx context.Context, conversationID string, n int) ([]pipeline.Message, error) {
	rows, err := s.DB.QueryContext(ctx, `
SELECT id, role, content, COALESCE(citations,'null'), COALESCE(visualization,'null'), visualization_context, created_at
FROM messages WHERE conversation_id=$1
ORDER BY created_at DESC LIMIT $2`, conversationID, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []pipeline.Message
	for rows.Next() {
		m := pipeline.Message{ConversationID: conversationID}
		var role string
		var citations, visualization []byte
		if err := rows.Scan(&m.ID, &role, &m.Content, &citations, &visualization, &m.VisualizationContext, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.Role = pipeline.Role(role)
		if err := json.Unmarshal(citations, &m.Citations); err != nil {
			return nil, fmt.Errorf("unmarshal citations: %w", err)
		}
		if err := json.Unmarshal(visualization, &m.Visualization); err != nil {
			return nil, fmt.Errorf("unmarshal visualization: %w", err)
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// Query returns newest first; callers expect chronological order.
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

func (s *Postgres) InsertSearchResults(ctx context.Context, conversationID string, results []pipeline.SearchResult) error {
	if len(results) == 0 {
		return nil
	}
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	for i, r := range results {
		var published *time.Time
		if !r.PublishedAt.IsZero() {
			published = &r.PublishedAt
		}
		if _, err := tx.ExecContext(ctx, `
INSERT INTO search_results (conversation_id, position, title, snippet, url, published_at, source, relevance)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
			conversationID, i, r.Title, r.Snippet, r.URL, published, r.Source, r.Relevance); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *Postgres) ListSearchResults(ctx context.Context, conversationID string) ([]pipeline.SearchResult, error) {
	rows, err := s.DB.QueryContext(ctx, `
SELECT title, snippet, url, published_at, source, relevance
FROM search_results WHERE conversation_id=$1
ORDER BY position ASC`, conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []pipeline.SearchResult
	for rows.Next() {
		var r pipeline.SearchResult
		var published sql.NullTime
		if err := rows.Scan(&r.Title, &r.Snippet, &r.URL, &published, &r.Source, &r.Relevance); err != nil {
			return nil, err
		}
		if published.Valid {
			r.PublishedAt = published.Time
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// marshalNullable keeps empty payloads as SQL NULL instead of JSON literals.
func marshalNullable(v interface{}) (interface{}, error) {
	switch t := v.(type) {
	case []pipeline.Citation:
		if len(t) == 0 {
			return nil, nil
		}
	case *pipeline.VisualizationResult:
		if t == nil {
			return nil, nil
		}
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return raw, nil
}
