package realtime

import "encoding/json"

// Client -> server event types.
const (
	InSendMessage = "send-message"
	InMarkAsRead  = "mark-as-read"
	InTyping      = "typing"
)

// Server -> client event types.
const (
	OutConnected       = "connected"
	OutReceiveMessage  = "receive-message"
	OutMessageSent     = "message-sent"
	OutMessagesRead    = "messages-read"
	OutTyping          = "typing"
	OutNewConversation = "new-conversation"
	OutNotification    = "notification"
	OutError           = "error"
)

// Event is the frame written to a live connection.
type Event struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// Inbound is a frame read from a live connection; Payload is decoded per Type.
type Inbound struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type SendMessagePayload struct {
	RecipientID   uint   `json:"recipientId"`
	RecipientType string `json:"recipientType"`
	Content       string `json:"content"`
}

type MarkAsReadPayload struct {
	MessageIDs []uint `json:"messageIds"`
}

type TypingPayload struct {
	RecipientID   uint   `json:"recipientId"`
	RecipientType string `json:"recipientType,omitempty"`
	IsTyping      bool   `json:"isTyping"`
}

type TypingNotice struct {
	SenderID   uint   `json:"senderId"`
	SenderType string `json:"senderType"`
	IsTyping   bool   `json:"isTyping"`
}

type MessagesReadNotice struct {
	MessageIDs []uint `json:"messageIds"`
	Updated    int64  `json:"updated"`
}

type ErrorNotice struct {
	Reason string `json:"reason"`
}

func ErrorEvent(reason string) Event {
	return Event{Type: OutError, Payload: ErrorNotice{Reason: reason}}
}
