package messaging

import (
	"context"
	"errors"
	"hash/fnv"
	"io"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ian-yc-kim/cnts-messaging-svc/integration/database/pg"
)

// Store persists messages in PostgreSQL and allocates per-scope sequence
// numbers. Allocation and insert happen in one transaction guarded by a
// per-scope advisory lock, so concurrent writers to the same scope are
// serialized while unrelated scopes proceed in parallel.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// StoreOption configures the store.
type StoreOption func(*Store)

// WithLogger sets the logger for store diagnostics.
func WithLogger(logger *slog.Logger) StoreOption {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewStore creates a message store backed by the given pool.
func NewStore(pool *pgxpool.Pool, opts ...StoreOption) *Store {
	s := &Store{
		pool:   pool,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

const insertMessageQuery = `
	INSERT INTO messages (topic_type, topic_id, message_type, message_id, sender_type, sender_id, content_type, content)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	RETURNING created_at`

const nextMessageIDQuery = `
	SELECT COALESCE(MAX(message_id), 0) + 1
	FROM messages
	WHERE topic_type = $1 AND topic_id = $2 AND message_type = $3`

// Persist durably records a message and returns it with the allocated
// message_id and the commit-time created_at populated. When in.MessageID is
// zero the next sequence number for the scope is allocated inside the same
// transaction; an explicit MessageID bypasses allocation and may fail with
// ErrDuplicateMessage. On any error the transaction is rolled back and no
// partial state remains.
//
// Persist joins a transaction from the context when one was attached with
// pg.WithTx; otherwise it owns its transaction.
func (s *Store) Persist(ctx context.Context, in NewMessage) (*Message, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	tx, owned, err := s.begin(ctx)
	if err != nil {
		return nil, errors.Join(ErrStoreFailure, err)
	}
	if owned {
		// Safe after commit: Rollback on a committed tx is a no-op error.
		defer func() { _ = tx.Rollback(ctx) }()
	}

	msg, err := s.persistInTx(ctx, tx, in)
	if err != nil {
		return nil, err
	}

	if owned {
		if err := tx.Commit(ctx); err != nil {
			return nil, errors.Join(ErrStoreFailure, err)
		}
	}

	s.logger.InfoContext(ctx, "message persisted",
		slog.String("scope", msg.Scope().String()),
		slog.Int64("message_id", msg.MessageID))

	return msg, nil
}

func (s *Store) persistInTx(ctx context.Context, tx pgx.Tx, in NewMessage) (*Message, error) {
	messageID := in.MessageID
	if messageID == 0 {
		// The advisory lock serializes allocation per scope for the duration of
		// the transaction; max+1 therefore cannot be observed twice.
		if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", scopeLockKey(in.Scope)); err != nil {
			return nil, errors.Join(ErrStoreFailure, err)
		}
		if err := tx.QueryRow(ctx, nextMessageIDQuery,
			in.Scope.TopicType, in.Scope.TopicID, in.Scope.MessageType).Scan(&messageID); err != nil {
			return nil, errors.Join(ErrStoreFailure, err)
		}
	}

	msg := &Message{
		TopicType:   in.Scope.TopicType,
		TopicID:     in.Scope.TopicID,
		MessageType: in.Scope.MessageType,
		MessageID:   messageID,
		SenderType:  in.SenderType,
		SenderID:    in.SenderID,
		ContentType: in.ContentType,
		Content:     in.Content,
	}

	err := tx.QueryRow(ctx, insertMessageQuery,
		msg.TopicType, msg.TopicID, msg.MessageType, msg.MessageID,
		msg.SenderType, msg.SenderID, msg.ContentType, msg.Content,
	).Scan(&msg.CreatedAt)
	if err != nil {
		if pg.IsDuplicateKeyError(err) {
			return nil, errors.Join(ErrDuplicateMessage, err)
		}
		return nil, errors.Join(ErrStoreFailure, err)
	}

	return msg, nil
}

// begin returns the transaction attached to ctx when present, or starts a new
// one. The second return value reports whether the store owns the transaction.
func (s *Store) begin(ctx context.Context) (pgx.Tx, bool, error) {
	if tx, ok := pg.TxFromContext(ctx); ok {
		return tx, false, nil
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, false, err
	}
	return tx, true, nil
}

const listByScopeQuery = `
	SELECT topic_type, topic_id, message_type, message_id, sender_type, sender_id, content_type, content, created_at
	FROM messages
	WHERE topic_type = $1 AND topic_id = $2 AND message_type = $3
	ORDER BY message_id ASC`

// ListByScope returns all messages in the scope ordered by sequence number.
func (s *Store) ListByScope(ctx context.Context, scope ScopeKey) ([]Message, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, listByScopeQuery, scope.TopicType, scope.TopicID, scope.MessageType)
	if err != nil {
		return nil, errors.Join(ErrStoreFailure, err)
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(
			&m.TopicType, &m.TopicID, &m.MessageType, &m.MessageID,
			&m.SenderType, &m.SenderID, &m.ContentType, &m.Content, &m.CreatedAt,
		); err != nil {
			return nil, errors.Join(ErrStoreFailure, err)
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Join(ErrStoreFailure, err)
	}

	return messages, nil
}

// scopeLockKey maps a scope to the 64-bit key space of PostgreSQL advisory
// locks. Components are separated by NUL so distinct scopes cannot collide by
// concatenation.
func scopeLockKey(scope ScopeKey) int64 {
	h := fnv.New64a()
	_, _ = io.WriteString(h, scope.TopicType)
	_, _ = h.Write([]byte{0})
	_, _ = io.WriteString(h, scope.TopicID)
	_, _ = h.Write([]byte{0})
	_, _ = io.WriteString(h, scope.MessageType)
	return int64(h.Sum64())
}
