package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/ian-yc-kim/cnts-messaging-svc/core/logger"
	"github.com/ian-yc-kim/cnts-messaging-svc/messaging"
	"github.com/ian-yc-kim/cnts-messaging-svc/pkg/async"
)

// MessageStore persists publish requests.
type MessageStore interface {
	Persist(ctx context.Context, in messaging.NewMessage) (*messaging.Message, error)
}

// MessagePublisher broadcasts a persisted message to topic subscribers.
type MessagePublisher interface {
	Publish(ctx context.Context, msg *messaging.Message) error
}

// publishRequest is the JSON body of POST /api/messages.
type publishRequest struct {
	TopicType   string `json:"topic_type"`
	TopicID     string `json:"topic_id"`
	MessageType string `json:"message_type"`
	MessageID   int64  `json:"message_id,omitempty"`
	SenderType  string `json:"sender_type"`
	SenderID    string `json:"sender_id"`
	ContentType string `json:"content_type"`
	Content     string `json:"content"`
}

func (r publishRequest) toNewMessage() messaging.NewMessage {
	return messaging.NewMessage{
		Scope: messaging.ScopeKey{
			TopicType:   r.TopicType,
			TopicID:     r.TopicID,
			MessageType: r.MessageType,
		},
		MessageID:   r.MessageID,
		SenderType:  r.SenderType,
		SenderID:    r.SenderID,
		ContentType: r.ContentType,
		Content:     r.Content,
	}
}

// publishMessageHandler persists the message and dispatches the broadcast
// without waiting for fan-out to complete. The client learns only whether the
// message was durably recorded.
func publishMessageHandler(store MessageStore, pub MessagePublisher, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req publishRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_json", "request body is not valid JSON", err.Error())
			return
		}

		in := req.toNewMessage()
		if err := in.Validate(); err != nil {
			writeError(w, http.StatusUnprocessableEntity, "validation_failed", "message validation failed", err.Error())
			return
		}

		msg, err := store.Persist(r.Context(), in)
		if err != nil {
			log.ErrorContext(r.Context(), "message persistence failed",
				logger.Error(err),
				slog.String("scope", in.Scope.String()))

			// Constraint violations and infra failures look the same to the
			// publisher; the distinction lives in the logs.
			if errors.Is(err, messaging.ErrInvalidMessage) {
				writeError(w, http.StatusUnprocessableEntity, "validation_failed", "message validation failed", err.Error())
				return
			}
			writeError(w, http.StatusInternalServerError, "persistence_failed", "failed to persist message", "")
			return
		}

		// Fan-out must survive request teardown and must not delay the
		// response, so it runs detached from the request context.
		async.Exec(context.WithoutCancel(r.Context()), msg, pub.Publish)

		writeJSON(w, http.StatusOK, msg)
	}
}
