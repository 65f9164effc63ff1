package registry

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/ian-yc-kim/cnts-messaging-svc/messaging"
)

// Conn is the send endpoint of a live subscriber connection. Implementations
// must be safe for concurrent use; Send may block on the peer, so the registry
// never calls it while holding its lock.
type Conn interface {
	// Send writes a single frame to the peer, honoring ctx deadlines.
	Send(ctx context.Context, payload []byte) error

	// Close sends a close frame with the given status code and reason, then
	// tears down the underlying transport.
	Close(code int, reason string) error
}

// ConnInfo is a point-in-time view of a registered connection, handed out by
// Snapshot so callers can inspect liveness without holding the registry lock.
type ConnInfo struct {
	ID           string
	Conn         Conn
	LastActivity time.Time
}

type connection struct {
	conn         Conn
	lastActivity time.Time
}

// Registry is the single source of truth for live connections and their topic
// subscriptions. One mutex guards the connection table and both subscription
// indexes; every operation is atomic with respect to every other, and no
// operation performs I/O under the lock.
type Registry struct {
	mu         sync.Mutex
	conns      map[string]*connection
	topicSubs  map[messaging.TopicKey]map[string]struct{}
	connTopics map[string]map[messaging.TopicKey]struct{}
	logger     *slog.Logger
	now        func() time.Time
}

// Option configures the registry.
type Option func(*Registry)

// WithLogger sets the logger for registry events.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithClock overrides the time source. Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		if now != nil {
			r.now = now
		}
	}
}

// New creates an empty registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		conns:      make(map[string]*connection),
		topicSubs:  make(map[messaging.TopicKey]map[string]struct{}),
		connTopics: make(map[string]map[messaging.TopicKey]struct{}),
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Connect registers a connection under the given id. A connection already
// registered under the same id is fully torn down first: its subscriptions are
// removed and its transport is closed. Last connect wins; this is not an error.
func (r *Registry) Connect(id string, conn Conn) {
	var replaced Conn

	r.mu.Lock()
	if existing, ok := r.conns[id]; ok {
		replaced = existing.conn
		r.removeConnectionLocked(id)
	}
	r.conns[id] = &connection{conn: conn, lastActivity: r.now()}
	r.connTopics[id] = make(map[messaging.TopicKey]struct{})
	r.mu.Unlock()

	if replaced != nil {
		r.logger.Warn("client already connected, replacing connection", slog.String("client_id", id))
		if err := replaced.Close(closeNormalClosure, "replaced by a new connection"); err != nil {
			r.logger.Debug("failed to close replaced connection",
				slog.String("client_id", id), slog.Any("error", err))
		}
	}

	r.logger.Info("client connected", slog.String("client_id", id))
}

// Touch records activity for the connection. Unknown ids are ignored; a frame
// may race with a concurrent disconnect.
func (r *Registry) Touch(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.conns[id]; ok {
		c.lastActivity = r.now()
	}
}

// Disconnect removes the connection and every subscription it held, pruning
// topic index entries left empty. Unknown ids are a no-op.
func (r *Registry) Disconnect(id string) {
	r.mu.Lock()
	_, ok := r.conns[id]
	if ok {
		r.removeConnectionLocked(id)
	}
	r.mu.Unlock()

	if ok {
		r.logger.Info("client disconnected", slog.String("client_id", id))
	}
}

// Subscribe adds a subscription for the connection. Subscribing twice to the
// same topic is idempotent. Returns ErrNotConnected for unknown ids.
func (r *Registry) Subscribe(id string, topic messaging.TopicKey) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.conns[id]; !ok {
		return ErrNotConnected
	}

	subs, ok := r.topicSubs[topic]
	if !ok {
		subs = make(map[string]struct{})
		r.topicSubs[topic] = subs
	}
	subs[id] = struct{}{}

	topics, ok := r.connTopics[id]
	if !ok {
		topics = make(map[messaging.TopicKey]struct{})
		r.connTopics[id] = topics
	}
	topics[topic] = struct{}{}

	return nil
}

// Unsubscribe removes a subscription. Missing subscriptions and unknown ids
// are a no-op, not an error.
func (r *Registry) Unsubscribe(id string, topic messaging.TopicKey) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.removeSubscriptionLocked(id, topic)
}

// Subscribers returns the send endpoints of every connection currently
// subscribed to the topic. Index entries referencing connections that are no
// longer registered are repaired as a side effect rather than returned.
func (r *Registry) Subscribers(topic messaging.TopicKey) []Conn {
	r.mu.Lock()
	defer r.mu.Unlock()

	subs, ok := r.topicSubs[topic]
	if !ok {
		return nil
	}

	conns := make([]Conn, 0, len(subs))
	var stale []string
	for id := range subs {
		if c, ok := r.conns[id]; ok {
			conns = append(conns, c.conn)
		} else {
			stale = append(stale, id)
		}
	}

	for _, id := range stale {
		r.removeSubscriptionLocked(id, topic)
		r.logger.Warn("removed stale subscription",
			slog.String("client_id", id), slog.String("topic", topic.String()))
	}

	return conns
}

// ConnID returns the id the given send endpoint is registered under. Used to
// identify which connection a failed send belongs to.
func (r *Registry) ConnID(conn Conn) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, c := range r.conns {
		if c.conn == conn {
			return id, true
		}
	}
	return "", false
}

// TopicsOf returns the topics the connection is currently subscribed to.
func (r *Registry) TopicsOf(id string) []messaging.TopicKey {
	r.mu.Lock()
	defer r.mu.Unlock()

	topics, ok := r.connTopics[id]
	if !ok {
		return nil
	}
	out := make([]messaging.TopicKey, 0, len(topics))
	for topic := range topics {
		out = append(out, topic)
	}
	return out
}

// Snapshot returns a copy of the current connection set. The copy lets callers
// perform slow work, like closing sockets, without holding the registry lock.
func (r *Registry) Snapshot() []ConnInfo {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]ConnInfo, 0, len(r.conns))
	for id, c := range r.conns {
		out = append(out, ConnInfo{ID: id, Conn: c.conn, LastActivity: c.lastActivity})
	}
	return out
}

// ConnectionCount returns the number of registered connections.
func (r *Registry) ConnectionCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns)
}

// SubscriptionCount returns the total number of subscriptions across all topics.
func (r *Registry) SubscriptionCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	total := 0
	for _, subs := range r.topicSubs {
		total += len(subs)
	}
	return total
}

// removeConnectionLocked drops the connection and all its subscriptions.
// Callers must hold r.mu.
func (r *Registry) removeConnectionLocked(id string) {
	delete(r.conns, id)

	for topic := range r.connTopics[id] {
		r.removeSubscriptionLocked(id, topic)
	}
	delete(r.connTopics, id)
}

// removeSubscriptionLocked drops one subscription and prunes empty topic
// entries. Callers must hold r.mu.
func (r *Registry) removeSubscriptionLocked(id string, topic messaging.TopicKey) {
	if subs, ok := r.topicSubs[topic]; ok {
		delete(subs, id)
		if len(subs) == 0 {
			delete(r.topicSubs, topic)
		}
	}
	if topics, ok := r.connTopics[id]; ok {
		delete(topics, topic)
	}
}
