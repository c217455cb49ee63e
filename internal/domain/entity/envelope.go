package entity

import "time"

// Realtime message types pushed by the messaging service.
const (
	MessageTypeChat        = "message"
	MessageTypeTyping      = "typing"
	MessageTypeReadReceipt = "read"
)

// Envelope is a realtime JSON text frame.
type Envelope struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversation_id,omitempty"`
	SenderID       string `json:"sender_id,omitempty"`
	Content        string `json:"content,omitempty"`
}

// ReceivedEnvelope is an inbound envelope as kept in the channel log.
type ReceivedEnvelope struct {
	Envelope
	ReceivedAt time.Time `json:"received_at"`
}
