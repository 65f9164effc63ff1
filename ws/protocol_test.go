package ws_test

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ian-yc-kim/cnts-messaging-svc/messaging"
	"github.com/ian-yc-kim/cnts-messaging-svc/ws"
)

func TestTopicRequest_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		req     ws.TopicRequest
		wantErr bool
	}{
		{
			name: "valid",
			req:  ws.TopicRequest{Type: ws.TypeSubscribe, TopicType: "project", TopicID: "42"},
		},
		{
			name:    "empty topic type",
			req:     ws.TopicRequest{Type: ws.TypeSubscribe, TopicID: "42"},
			wantErr: true,
		},
		{
			name:    "empty topic id",
			req:     ws.TopicRequest{Type: ws.TypeSubscribe, TopicType: "project"},
			wantErr: true,
		},
		{
			name: "topic type at limit",
			req:  ws.TopicRequest{TopicType: strings.Repeat("a", 255), TopicID: "42"},
		},
		{
			name:    "topic type over limit",
			req:     ws.TopicRequest{TopicType: strings.Repeat("a", 256), TopicID: "42"},
			wantErr: true,
		},
		{
			name:    "topic id over limit",
			req:     ws.TopicRequest{TopicType: "project", TopicID: strings.Repeat("b", 256)},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := tt.req.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestTopicRequest_Topic(t *testing.T) {
	t.Parallel()

	req := ws.TopicRequest{Type: ws.TypeSubscribe, TopicType: "project", TopicID: "42"}
	assert.Equal(t, messaging.TopicKey{TopicType: "project", TopicID: "42"}, req.Topic())
}

func TestNewAck(t *testing.T) {
	t.Parallel()

	ack := ws.NewAck(ws.TypeSubscribe)
	assert.Equal(t, ws.TypeAck, ack.Type)
	assert.Equal(t, ws.TypeSubscribe, ack.RequestID)
	assert.Equal(t, "success", ack.Status)
}

func TestEncodeDelivery(t *testing.T) {
	t.Parallel()

	msg := &messaging.Message{
		TopicType:   "project",
		TopicID:     "42",
		MessageType: "status_update",
		MessageID:   3,
		SenderType:  "user",
		SenderID:    "u-1",
		ContentType: "text/plain",
		Content:     "done",
		CreatedAt:   time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}

	payload, err := ws.EncodeDelivery(msg)
	require.NoError(t, err)

	var decoded ws.MessageDelivery
	require.NoError(t, json.Unmarshal(payload, &decoded))
	assert.Equal(t, ws.TypeMessage, decoded.Type)
	require.NotNil(t, decoded.Message)
	assert.Equal(t, int64(3), decoded.Message.MessageID)
	assert.Equal(t, "done", decoded.Message.Content)
}
