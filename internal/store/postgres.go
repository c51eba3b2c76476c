package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/kisaansahayak/sahayak/pkg/models"
)

// PostgresStore implements Store on PostgreSQL via a pgx connection pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// ConnectTimeout bounds the startup connection retry.
const ConnectTimeout = 30 * time.Second

// NewPostgresStore connects to connURL, retrying with exponential backoff
// until ConnectTimeout, and runs the schema migration.
func NewPostgresStore(ctx context.Context, connURL string, maxConns int) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(connURL)
	if err != nil {
		return nil, fmt.Errorf("postgres config: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = int32(maxConns)
	}

	var pool *pgxpool.Pool
	connect := func() error {
		p, err := pgxpool.NewWithConfig(ctx, cfg)
		if err != nil {
			return err
		}
		if err := p.Ping(ctx); err != nil {
			p.Close()
			log.Warn().Err(err).Msg("PostgreSQL not reachable yet, retrying")
			return err
		}
		pool = p
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = ConnectTimeout
	if err := backoff.Retry(connect, backoff.WithContext(b, ctx)); err != nil {
		return nil, fmt.Errorf("postgres connect: %w", err)
	}

	s := &PostgresStore{pool: pool}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres migrate: %w", err)
	}

	log.Info().
		Str("host", cfg.ConnConfig.Host).
		Str("database", cfg.ConnConfig.Database).
		Int32("max_conns", cfg.MaxConns).
		Msg("PostgreSQL store initialized")
	return s, nil
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	const ddl = `
		CREATE TABLE IF NOT EXISTS conversations (
			id              TEXT PRIMARY KEY,
			owner           TEXT NOT NULL,
			title           TEXT NOT NULL,
			preview         TEXT NOT NULL DEFAULT '',
			message_count   INTEGER NOT NULL DEFAULT 0,
			created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			last_message_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_conversations_owner
			ON conversations (owner, last_message_at DESC);

		CREATE TABLE IF NOT EXISTS messages (
			seq             BIGSERIAL PRIMARY KEY,
			id              TEXT NOT NULL UNIQUE,
			conversation_id TEXT NOT NULL REFERENCES conversations (id) ON DELETE CASCADE,
			role            TEXT NOT NULL,
			text            TEXT NOT NULL,
			created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_messages_conversation
			ON messages (conversation_id, seq);
	`
	_, err := s.pool.Exec(ctx, ddl)
	return err
}

func (s *PostgresStore) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// ── Conversations ───────────────────────────────────────────

const conversationColumns = `id, owner, title, preview, message_count, created_at, last_message_at`

func scanConversation(row pgx.Row) (*models.Conversation, error) {
	var c models.Conversation
	if err := row.Scan(&c.ID, &c.Owner, &c.Title, &c.Preview, &c.MessageCount, &c.CreatedAt, &c.LastMessageAt); err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *PostgresStore) CreateConversation(ctx context.Context, owner, title, firstMessage string) (*models.Conversation, error) {
	title, preview := newConversation(title, firstMessage)
	row := s.pool.QueryRow(ctx,
		`INSERT INTO conversations (id, owner, title, preview)
		 VALUES ($1, $2, $3, $4)
		 RETURNING `+conversationColumns,
		uuid.NewString(), owner, title, preview)
	c, err := scanConversation(row)
	if err != nil {
		return nil, fmt.Errorf("create conversation: %w", err)
	}
	return c, nil
}

func (s *PostgresStore) ListConversations(ctx context.Context, owner string) ([]models.Conversation, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+conversationColumns+` FROM conversations
		 WHERE owner = $1
		 ORDER BY last_message_at DESC, created_at DESC`, owner)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	result := make([]models.Conversation, 0)
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		result = append(result, *c)
	}
	return result, rows.Err()
}

func (s *PostgresStore) GetConversation(ctx context.Context, owner, id string) (*models.Conversation, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+conversationColumns+` FROM conversations WHERE id = $1 AND owner = $2`, id, owner)
	c, err := scanConversation(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, conversationNotFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	return c, nil
}

func (s *PostgresStore) UpdateConversation(ctx context.Context, owner, id string, upd models.ConversationUpdate) (*models.Conversation, error) {
	var preview *string
	if upd.Preview != nil {
		p := models.Preview(*upd.Preview)
		preview = &p
	}
	row := s.pool.QueryRow(ctx,
		`UPDATE conversations SET
			title = COALESCE($3, title),
			preview = COALESCE($4, preview),
			message_count = COALESCE($5, message_count)
		 WHERE id = $1 AND owner = $2
		 RETURNING `+conversationColumns,
		id, owner, upd.Title, preview, upd.MessageCount)
	c, err := scanConversation(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, conversationNotFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("update conversation: %w", err)
	}
	return c, nil
}

func (s *PostgresStore) DeleteConversation(ctx context.Context, owner, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM conversations WHERE id = $1 AND owner = $2`, id, owner)
	if err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return conversationNotFound(id)
	}
	return nil
}

// ── Messages ────────────────────────────────────────────────

func (s *PostgresStore) SaveMessage(ctx context.Context, owner, conversationID string, role models.Role, text string) (*models.Message, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("save message: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	msg := &models.Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		Role:           role,
		Text:           text,
	}
	var preview *string
	if role == models.RoleUser {
		p := models.Preview(text)
		preview = &p
	}

	err = tx.QueryRow(ctx,
		`UPDATE conversations SET
			message_count = message_count + 1,
			last_message_at = NOW(),
			preview = COALESCE($3, preview)
		 WHERE id = $1 AND owner = $2
		 RETURNING last_message_at`,
		conversationID, owner, preview).Scan(&msg.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, conversationNotFound(conversationID)
	}
	if err != nil {
		return nil, fmt.Errorf("save message: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO messages (id, conversation_id, role, text, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		msg.ID, conversationID, string(role), text, msg.CreatedAt); err != nil {
		return nil, fmt.Errorf("save message: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("save message: %w", err)
	}
	return msg, nil
}

func (s *PostgresStore) ListMessages(ctx context.Context, owner, conversationID string) ([]models.Message, error) {
	if _, err := s.GetConversation(ctx, owner, conversationID); err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, conversation_id, role, text, created_at FROM messages
		 WHERE conversation_id = $1
		 ORDER BY seq ASC`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	result := make([]models.Message, 0)
	for rows.Next() {
		var (
			msg  models.Message
			role string
		)
		if err := rows.Scan(&msg.ID, &msg.ConversationID, &role, &msg.Text, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msg.Role = models.Role(role)
		result = append(result, msg)
	}
	return result, rows.Err()
}

func (s *PostgresStore) LastMessage(ctx context.Context, owner, conversationID string, role models.Role) (string, error) {
	if _, err := s.GetConversation(ctx, owner, conversationID); err != nil {
		return "", err
	}
	var text string
	err := s.pool.QueryRow(ctx,
		`SELECT text FROM messages
		 WHERE conversation_id = $1 AND role = $2
		 ORDER BY seq DESC LIMIT 1`, conversationID, string(role)).Scan(&text)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("last message: %w", err)
	}
	return text, nil
}
