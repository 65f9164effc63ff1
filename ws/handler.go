package ws

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/ian-yc-kim/cnts-messaging-svc/core/logger"
	"github.com/ian-yc-kim/cnts-messaging-svc/registry"
)

// Handler upgrades HTTP requests to websocket connections and runs the
// per-connection message loop: register, read frames, touch activity,
// dispatch subscribe/unsubscribe, and always deregister on exit.
type Handler struct {
	reg      *registry.Registry
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// HandlerOption configures the websocket handler.
type HandlerOption func(*Handler)

// WithHandlerLogger sets the logger for connection lifecycle events.
func WithHandlerLogger(log *slog.Logger) HandlerOption {
	return func(h *Handler) {
		if log != nil {
			h.logger = log
		}
	}
}

// WithOriginCheck overrides the upgrader's origin policy.
func WithOriginCheck(fn func(r *http.Request) bool) HandlerOption {
	return func(h *Handler) {
		h.upgrader.CheckOrigin = fn
	}
}

// NewHandler creates a websocket handler bound to the registry.
func NewHandler(reg *registry.Registry, opts ...HandlerOption) *Handler {
	h := &Handler{
		reg: reg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// ServeHTTP handles GET /ws/{client_id}.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	clientID := chi.URLParam(r, "client_id")
	if clientID == "" {
		http.Error(w, "client_id is required", http.StatusBadRequest)
		return
	}

	rawConn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response.
		h.logger.Warn("websocket upgrade failed",
			logger.ClientID(clientID), logger.Error(err))
		return
	}

	conn := newConn(rawConn)
	h.reg.Connect(clientID, conn)
	defer h.reg.Disconnect(clientID)

	h.readLoop(r.Context(), clientID, conn, rawConn)
}

// readLoop consumes inbound frames until the peer disconnects or the
// connection breaks. Malformed frames produce an error frame and keep the
// connection open.
func (h *Handler) readLoop(ctx context.Context, clientID string, conn *wsConn, rawConn *websocket.Conn) {
	for {
		_, data, err := rawConn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Warn("websocket read failed",
					logger.ClientID(clientID), logger.Error(err))
			} else {
				h.logger.Info("client closed connection", logger.ClientID(clientID))
			}
			return
		}

		h.reg.Touch(clientID)

		if err := h.handleFrame(ctx, clientID, conn, data); err != nil {
			// The error frame itself could not be delivered; the connection
			// is beyond repair, end the loop and let the deferred disconnect run.
			h.logger.Warn("failed to send error frame",
				logger.ClientID(clientID), logger.Error(err))
			return
		}
	}
}

// handleFrame dispatches one inbound frame. The returned error means a
// response frame could not be written back; protocol-level problems are
// reported to the client instead of being returned.
func (h *Handler) handleFrame(ctx context.Context, clientID string, conn *wsConn, data []byte) error {
	var frame Frame
	if err := json.Unmarshal(data, &frame); err != nil {
		h.logger.Warn("malformed websocket frame",
			logger.ClientID(clientID), logger.Error(err))
		return h.send(ctx, conn, NewErrorFrame("failed to process message: invalid JSON"))
	}

	switch frame.Type {
	case TypeSubscribe:
		return h.handleSubscribe(ctx, clientID, conn, data)
	case TypeUnsubscribe:
		return h.handleUnsubscribe(ctx, clientID, conn, data)
	default:
		h.logger.Warn("unknown websocket message type",
			logger.ClientID(clientID), slog.String("type", frame.Type))
		return h.send(ctx, conn, NewErrorFrame("unknown message type: "+frame.Type))
	}
}

func (h *Handler) handleSubscribe(ctx context.Context, clientID string, conn *wsConn, data []byte) error {
	var req TopicRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return h.send(ctx, conn, NewErrorFrame("failed to process message: "+err.Error()))
	}
	if err := req.Validate(); err != nil {
		return h.send(ctx, conn, NewErrorFrame("failed to process message: "+err.Error()))
	}

	if err := h.reg.Subscribe(clientID, req.Topic()); err != nil {
		return h.send(ctx, conn, NewErrorFrame(err.Error()))
	}

	h.logger.Info("client subscribed",
		logger.ClientID(clientID), logger.Topic(req.TopicType, req.TopicID))

	return h.send(ctx, conn, NewAck(TypeSubscribe))
}

func (h *Handler) handleUnsubscribe(ctx context.Context, clientID string, conn *wsConn, data []byte) error {
	var req TopicRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return h.send(ctx, conn, NewErrorFrame("failed to process message: "+err.Error()))
	}
	if err := req.Validate(); err != nil {
		return h.send(ctx, conn, NewErrorFrame("failed to process message: "+err.Error()))
	}

	h.reg.Unsubscribe(clientID, req.Topic())

	h.logger.Info("client unsubscribed",
		logger.ClientID(clientID), logger.Topic(req.TopicType, req.TopicID))

	return h.send(ctx, conn, NewAck(TypeUnsubscribe))
}

func (h *Handler) send(ctx context.Context, conn *wsConn, frame any) error {
	payload, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	return conn.Send(ctx, payload)
}
