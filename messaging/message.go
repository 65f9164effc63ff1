package messaging

import (
	"fmt"
	"time"
)

// maxFieldLen bounds every opaque key/sender component, mirroring the
// VARCHAR(255) columns of the messages table.
const maxFieldLen = 255

// TopicKey identifies a fan-out topic. Subscriptions are keyed by topic only;
// the message type is intentionally not part of the subscription key, so a
// topic subscriber receives every message type published under the topic.
type TopicKey struct {
	TopicType string `json:"topic_type"`
	TopicID   string `json:"topic_id"`
}

func (k TopicKey) String() string {
	return k.TopicType + ":" + k.TopicID
}

// ScopeKey identifies an independent numbering space for message sequences.
type ScopeKey struct {
	TopicType   string `json:"topic_type"`
	TopicID     string `json:"topic_id"`
	MessageType string `json:"message_type"`
}

// Topic returns the coarser fan-out key for the scope.
func (k ScopeKey) Topic() TopicKey {
	return TopicKey{TopicType: k.TopicType, TopicID: k.TopicID}
}

func (k ScopeKey) String() string {
	return k.TopicType + ":" + k.TopicID + ":" + k.MessageType
}

// Validate checks that every scope component is non-empty and within bounds.
func (k ScopeKey) Validate() error {
	if err := validateField("topic_type", k.TopicType); err != nil {
		return err
	}
	if err := validateField("topic_id", k.TopicID); err != nil {
		return err
	}
	return validateField("message_type", k.MessageType)
}

// Message is a persisted message record. The primary key is
// (topic_type, topic_id, message_type, message_id); message_id increases
// monotonically within its scope.
type Message struct {
	TopicType   string    `json:"topic_type"`
	TopicID     string    `json:"topic_id"`
	MessageType string    `json:"message_type"`
	MessageID   int64     `json:"message_id"`
	SenderType  string    `json:"sender_type"`
	SenderID    string    `json:"sender_id"`
	ContentType string    `json:"content_type"`
	Content     string    `json:"content"`
	CreatedAt   time.Time `json:"created_at"`
}

// Scope returns the numbering scope the message belongs to.
func (m *Message) Scope() ScopeKey {
	return ScopeKey{TopicType: m.TopicType, TopicID: m.TopicID, MessageType: m.MessageType}
}

// Topic returns the fan-out key for the message.
func (m *Message) Topic() TopicKey {
	return TopicKey{TopicType: m.TopicType, TopicID: m.TopicID}
}

// NewMessage carries caller-supplied fields for a message about to be persisted.
// A zero MessageID requests allocation of the next sequence number in the
// scope; a non-zero value is used as-is and may collide with an existing record.
type NewMessage struct {
	Scope       ScopeKey `json:"scope"`
	MessageID   int64    `json:"message_id,omitempty"`
	SenderType  string   `json:"sender_type"`
	SenderID    string   `json:"sender_id"`
	ContentType string   `json:"content_type"`
	Content     string   `json:"content"`
}

// Validate checks all fields against the table constraints.
func (n NewMessage) Validate() error {
	if err := n.Scope.Validate(); err != nil {
		return err
	}
	if n.MessageID < 0 {
		return fmt.Errorf("%w: message_id must be positive", ErrInvalidMessage)
	}
	if err := validateField("sender_type", n.SenderType); err != nil {
		return err
	}
	if err := validateField("sender_id", n.SenderID); err != nil {
		return err
	}
	if err := validateField("content_type", n.ContentType); err != nil {
		return err
	}
	if n.Content == "" {
		return fmt.Errorf("%w: content must not be empty", ErrInvalidMessage)
	}
	return nil
}

func validateField(name, value string) error {
	if value == "" {
		return fmt.Errorf("%w: %s must not be empty", ErrInvalidMessage, name)
	}
	if len(value) > maxFieldLen {
		return fmt.Errorf("%w: %s exceeds %d characters", ErrInvalidMessage, name, maxFieldLen)
	}
	return nil
}
