package messaging_test

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ian-yc-kim/cnts-messaging-svc/integration/database/pg"
	"github.com/ian-yc-kim/cnts-messaging-svc/messaging"
	"github.com/ian-yc-kim/cnts-messaging-svc/migrations"
)

// setupStore connects to the database named by TEST_DATABASE_URL, applies
// migrations, and returns a store. Tests are skipped when the variable is
// unset. Each test uses freshly generated topic ids, so tests can share one
// database without interfering.
func setupStore(t *testing.T) (*messaging.Store, *pgxpool.Pool) {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL is not set")
	}

	cfg := pg.Config{
		ConnectionString: dsn,
		MaxOpenConns:     10,
		RetryAttempts:    1,
		RetryInterval:    time.Second,
	}

	ctx := context.Background()
	pool, err := pg.Connect(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	require.NoError(t, pg.Migrate(ctx, pool, migrations.FS, cfg, log))

	return messaging.NewStore(pool), pool
}

func freshScope(messageType string) messaging.ScopeKey {
	return messaging.ScopeKey{
		TopicType:   "project",
		TopicID:     uuid.New().String(),
		MessageType: messageType,
	}
}

func newMessageIn(scope messaging.ScopeKey, content string) messaging.NewMessage {
	return messaging.NewMessage{
		Scope:       scope,
		SenderType:  "user",
		SenderID:    "u-1",
		ContentType: "text/plain",
		Content:     content,
	}
}

func TestStore_Persist_SequentialAllocation(t *testing.T) {
	t.Parallel()

	store, _ := setupStore(t)
	scope := freshScope("status_update")
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		msg, err := store.Persist(ctx, newMessageIn(scope, "payload"))
		require.NoError(t, err)
		assert.Equal(t, int64(i), msg.MessageID)
		assert.False(t, msg.CreatedAt.IsZero())
	}
}

func TestStore_Persist_ConcurrentAllocation(t *testing.T) {
	t.Parallel()

	store, _ := setupStore(t)
	scope := freshScope("status_update")
	ctx := context.Background()

	const writers = 20

	var wg sync.WaitGroup
	errs := make([]error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, errs[n] = store.Persist(ctx, newMessageIn(scope, "payload"))
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}

	msgs, err := store.ListByScope(ctx, scope)
	require.NoError(t, err)
	require.Len(t, msgs, writers)

	// No gaps, no duplicates: the sequence must be exactly 1..writers.
	for i, m := range msgs {
		assert.Equal(t, int64(i+1), m.MessageID)
	}
}

func TestStore_Persist_ScopeIsolation(t *testing.T) {
	t.Parallel()

	store, _ := setupStore(t)
	ctx := context.Background()

	statusScope := freshScope("status_update")
	commentScope := statusScope
	commentScope.MessageType = "comment"

	for i := 1; i <= 3; i++ {
		msg, err := store.Persist(ctx, newMessageIn(statusScope, "status"))
		require.NoError(t, err)
		assert.Equal(t, int64(i), msg.MessageID)
	}

	// A different message type under the same topic numbers independently.
	msg, err := store.Persist(ctx, newMessageIn(commentScope, "comment"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), msg.MessageID)

	// As does the same message type under a different topic.
	otherTopic := freshScope("status_update")
	msg, err = store.Persist(ctx, newMessageIn(otherTopic, "status"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), msg.MessageID)
}

// Three status updates on a project followed by one on a task sharing the same
// id: the task sequence starts at 1, untouched by the project's counter.
func TestStore_Persist_ProjectTaskScenario(t *testing.T) {
	t.Parallel()

	store, _ := setupStore(t)
	ctx := context.Background()

	sharedID := uuid.New().String()
	projectScope := messaging.ScopeKey{TopicType: "project", TopicID: sharedID, MessageType: "status_update"}
	taskScope := messaging.ScopeKey{TopicType: "task", TopicID: sharedID, MessageType: "status_update"}

	for i := 1; i <= 3; i++ {
		msg, err := store.Persist(ctx, newMessageIn(projectScope, "project status"))
		require.NoError(t, err)
		assert.Equal(t, int64(i), msg.MessageID)
	}

	msg, err := store.Persist(ctx, newMessageIn(taskScope, "task status"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), msg.MessageID)
}

func TestStore_Persist_ExplicitMessageID(t *testing.T) {
	t.Parallel()

	store, _ := setupStore(t)
	scope := freshScope("status_update")
	ctx := context.Background()

	in := newMessageIn(scope, "payload")
	in.MessageID = 100

	msg, err := store.Persist(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, int64(100), msg.MessageID)

	// Allocation continues after the explicit id, not before it.
	msg, err = store.Persist(ctx, newMessageIn(scope, "payload"))
	require.NoError(t, err)
	assert.Equal(t, int64(101), msg.MessageID)
}

func TestStore_Persist_DuplicateMessageID(t *testing.T) {
	t.Parallel()

	store, _ := setupStore(t)
	scope := freshScope("status_update")
	ctx := context.Background()

	in := newMessageIn(scope, "payload")
	in.MessageID = 7

	_, err := store.Persist(ctx, in)
	require.NoError(t, err)

	_, err = store.Persist(ctx, in)
	assert.ErrorIs(t, err, messaging.ErrDuplicateMessage)

	// The failed insert must leave no partial state behind.
	msgs, err := store.ListByScope(ctx, scope)
	require.NoError(t, err)
	assert.Len(t, msgs, 1)
}

func TestStore_Persist_JoinsContextTransaction(t *testing.T) {
	t.Parallel()

	store, pool := setupStore(t)
	scope := freshScope("status_update")
	ctx := context.Background()

	tx, err := pool.Begin(ctx)
	require.NoError(t, err)

	msg, err := store.Persist(pg.WithTx(ctx, tx), newMessageIn(scope, "payload"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), msg.MessageID)

	// Rolling back the caller's transaction must discard the message.
	require.NoError(t, tx.Rollback(ctx))

	msgs, err := store.ListByScope(ctx, scope)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestStore_ListByScope(t *testing.T) {
	t.Parallel()

	store, _ := setupStore(t)
	scope := freshScope("status_update")
	ctx := context.Background()

	t.Run("empty scope", func(t *testing.T) {
		msgs, err := store.ListByScope(ctx, freshScope("status_update"))
		require.NoError(t, err)
		assert.Empty(t, msgs)
	})

	t.Run("ordered by sequence", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			_, err := store.Persist(ctx, newMessageIn(scope, "payload"))
			require.NoError(t, err)
		}

		msgs, err := store.ListByScope(ctx, scope)
		require.NoError(t, err)
		require.Len(t, msgs, 3)
		for i, m := range msgs {
			assert.Equal(t, int64(i+1), m.MessageID)
		}
	})

	t.Run("invalid scope", func(t *testing.T) {
		_, err := store.ListByScope(ctx, messaging.ScopeKey{})
		assert.ErrorIs(t, err, messaging.ErrInvalidMessage)
	})
}
