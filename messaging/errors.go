package messaging

import "errors"

var (
	// ErrInvalidMessage indicates caller-supplied fields failed validation.
	ErrInvalidMessage = errors.New("invalid message")

	// ErrDuplicateMessage indicates a primary key collision on
	// (topic_type, topic_id, message_type, message_id).
	ErrDuplicateMessage = errors.New("duplicate message in scope")

	// ErrStoreFailure indicates a storage-level failure; the transaction was
	// rolled back and nothing was persisted.
	ErrStoreFailure = errors.New("message store failure")
)
