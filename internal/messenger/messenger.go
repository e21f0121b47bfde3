package messenger

import "context"

// MessageID uniquely identifies a delivered message within a messenger platform.
type MessageID string

// Message is a rendered notification ready to send.
type Message struct {
	Subject string
	Body    string
}

// Messenger delivers notifications to a chat platform. Target is a
// platform-specific channel or user identifier.
type Messenger interface {
	Send(ctx context.Context, target string, msg Message) (MessageID, error)

	// Platform returns the messenger platform identifier (e.g. "slack").
	Platform() string
}
