package ws

import (
	"encoding/json"
	"fmt"

	"github.com/ian-yc-kim/cnts-messaging-svc/messaging"
)

// Inbound and outbound frame discriminators. Every frame carries a "type"
// field; anything else in an inbound frame is an error, not a disconnect.
const (
	TypeSubscribe   = "subscribe"
	TypeUnsubscribe = "unsubscribe"
	TypeAck         = "ack"
	TypeError       = "error"
	TypeMessage     = "message"
)

const maxTopicFieldLen = 255

// Frame is the minimal envelope used to sniff the type of an inbound frame
// before decoding it fully.
type Frame struct {
	Type string `json:"type"`
}

// TopicRequest is the shared payload of subscribe and unsubscribe frames.
type TopicRequest struct {
	Type      string `json:"type"`
	TopicType string `json:"topic_type"`
	TopicID   string `json:"topic_id"`
}

// Validate checks the topic components against the protocol bounds.
func (r TopicRequest) Validate() error {
	if r.TopicType == "" || len(r.TopicType) > maxTopicFieldLen {
		return fmt.Errorf("topic_type must be 1-%d characters", maxTopicFieldLen)
	}
	if r.TopicID == "" || len(r.TopicID) > maxTopicFieldLen {
		return fmt.Errorf("topic_id must be 1-%d characters", maxTopicFieldLen)
	}
	return nil
}

// Topic returns the fan-out key the request refers to.
func (r TopicRequest) Topic() messaging.TopicKey {
	return messaging.TopicKey{TopicType: r.TopicType, TopicID: r.TopicID}
}

// Acknowledgement confirms a subscribe or unsubscribe request.
type Acknowledgement struct {
	Type      string `json:"type"`
	RequestID string `json:"request_id"`
	Status    string `json:"status"`
}

// NewAck builds a success acknowledgement for the given request kind.
func NewAck(requestID string) Acknowledgement {
	return Acknowledgement{Type: TypeAck, RequestID: requestID, Status: "success"}
}

// ErrorFrame reports a client input problem without closing the connection.
type ErrorFrame struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

// NewErrorFrame builds an error frame with the given description.
func NewErrorFrame(msg string) ErrorFrame {
	return ErrorFrame{Type: TypeError, Error: msg}
}

// MessageDelivery wraps a persisted message for broadcast to subscribers.
type MessageDelivery struct {
	Type    string             `json:"type"`
	Message *messaging.Message `json:"message"`
}

// EncodeDelivery marshals the delivery envelope for a persisted message.
// The payload is encoded once per broadcast, not once per subscriber.
func EncodeDelivery(msg *messaging.Message) ([]byte, error) {
	return json.Marshal(MessageDelivery{Type: TypeMessage, Message: msg})
}
