package publisher

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/ian-yc-kim/cnts-messaging-svc/core/logger"
	"github.com/ian-yc-kim/cnts-messaging-svc/messaging"
	"github.com/ian-yc-kim/cnts-messaging-svc/registry"
	"github.com/ian-yc-kim/cnts-messaging-svc/telemetry"
	"github.com/ian-yc-kim/cnts-messaging-svc/ws"
)

// sendFailureClose is the RFC 6455 going-away status used when a subscriber's
// transport broke mid-broadcast.
const sendFailureClose = 1001

// SubscriberResolver is the slice of the connection registry the publisher
// needs: resolving subscribers, mapping a failed endpoint back to its id,
// and removing dead connections.
type SubscriberResolver interface {
	Subscribers(topic messaging.TopicKey) []registry.Conn
	ConnID(conn registry.Conn) (string, bool)
	Disconnect(id string)
}

// Publisher fans persisted messages out to topic subscribers. Delivery is
// best-effort: one broken subscriber never stops delivery to the rest, and
// nothing propagates back to the caller that triggered persistence.
type Publisher struct {
	reg         SubscriberResolver
	logger      *slog.Logger
	sendTimeout time.Duration
}

// Option configures the publisher.
type Option func(*Publisher)

// WithLogger sets the logger for delivery diagnostics.
func WithLogger(log *slog.Logger) Option {
	return func(p *Publisher) {
		if log != nil {
			p.logger = log
		}
	}
}

// WithSendTimeout bounds each per-subscriber send so one slow client cannot
// stall the broadcast to others. Zero keeps the default.
func WithSendTimeout(d time.Duration) Option {
	return func(p *Publisher) {
		if d > 0 {
			p.sendTimeout = d
		}
	}
}

// New creates a publisher resolving subscribers through the given registry.
func New(reg SubscriberResolver, opts ...Option) *Publisher {
	p := &Publisher{
		reg:         reg,
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		sendTimeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Publish delivers the message to every current subscriber of its topic.
// Subscription keys omit the message type, so all message types under a topic
// reach the same subscriber set. Always returns nil; the error signature only
// exists so Publish can be dispatched through async.Exec.
func (p *Publisher) Publish(ctx context.Context, msg *messaging.Message) error {
	if msg == nil {
		return nil
	}

	telemetry.MessagesPublishedTotal.Inc()

	payload, err := ws.EncodeDelivery(msg)
	if err != nil {
		p.logger.ErrorContext(ctx, "failed to encode delivery envelope",
			logger.Error(err), slog.String("scope", msg.Scope().String()))
		return nil
	}

	topic := msg.Topic()
	subscribers := p.reg.Subscribers(topic)
	if len(subscribers) == 0 {
		return nil
	}

	delivered := 0
	for _, conn := range subscribers {
		if err := p.sendTo(ctx, conn, payload); err != nil {
			telemetry.MessageDeliveriesTotal.With("failure").Inc()
			p.dropSubscriber(conn, topic, err)
			continue
		}
		telemetry.MessageDeliveriesTotal.With("success").Inc()
		delivered++
	}

	p.logger.InfoContext(ctx, "message broadcast complete",
		slog.String("topic", topic.String()),
		slog.Int64("message_id", msg.MessageID),
		logger.Count("delivered", delivered),
		logger.Count("subscribers", len(subscribers)))

	return nil
}

func (p *Publisher) sendTo(ctx context.Context, conn registry.Conn, payload []byte) error {
	sendCtx, cancel := context.WithTimeout(ctx, p.sendTimeout)
	defer cancel()
	return conn.Send(sendCtx, payload)
}

// dropSubscriber resolves the failed endpoint's connection id and removes it
// from the registry so subsequent broadcasts stop trying it.
func (p *Publisher) dropSubscriber(conn registry.Conn, topic messaging.TopicKey, sendErr error) {
	id, ok := p.reg.ConnID(conn)
	if !ok {
		p.logger.Warn("send failed for unregistered connection",
			slog.String("topic", topic.String()), logger.Error(sendErr))
		return
	}

	p.logger.Warn("send failed, disconnecting subscriber",
		logger.ClientID(id), slog.String("topic", topic.String()), logger.Error(sendErr))

	if err := conn.Close(sendFailureClose, "send failure"); err != nil {
		p.logger.Debug("failed to close broken connection",
			logger.ClientID(id), logger.Error(err))
	}
	p.reg.Disconnect(id)
	telemetry.ConnectionsClosedTotal.With("send_failure").Inc()
}
