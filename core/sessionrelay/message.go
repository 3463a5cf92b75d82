package sessionrelay

import "encoding/json"

// Backplane channels.
const (
	ChannelSessionCreated          = "session-created"
	ChannelSessionDestroyed        = "session-destroyed"
	ChannelSessionInvalidated      = "session-invalidated"
	ChannelUserSessionsInvalidated = "user-sessions-invalidated"
	ChannelBroadcastMessage        = "broadcast-message"
)

// Event names handlers register for.
const (
	EventSessionCreated          = "sessionCreated"
	EventSessionDestroyed        = "sessionDestroyed"
	EventSessionInvalidated      = "sessionInvalidated"
	EventUserSessionsInvalidated = "userSessionsInvalidated"
	EventBroadcastMessage        = "broadcastMessage"
)

var channelEvents = map[string]string{
	ChannelSessionCreated:          EventSessionCreated,
	ChannelSessionDestroyed:        EventSessionDestroyed,
	ChannelSessionInvalidated:      EventSessionInvalidated,
	ChannelUserSessionsInvalidated: EventUserSessionsInvalidated,
	ChannelBroadcastMessage:        EventBroadcastMessage,
}

// Channels returns the relayed channels in a stable order.
func Channels() []string {
	return []string{
		ChannelSessionCreated,
		ChannelSessionDestroyed,
		ChannelSessionInvalidated,
		ChannelUserSessionsInvalidated,
		ChannelBroadcastMessage,
	}
}

// EventFor maps a channel to its event name.
func EventFor(channel string) (string, bool) {
	e, ok := channelEvents[channel]
	return e, ok
}

// IsEvent reports whether name is one of the relayed event names.
func IsEvent(name string) bool {
	for _, e := range channelEvents {
		if e == name {
			return true
		}
	}
	return false
}

// Message is the JSON envelope published on every relayed channel.
// Timestamp is unix milliseconds.
type Message struct {
	InstanceID      string          `json:"instanceId"`
	Timestamp       int64           `json:"timestamp"`
	SessionID       string          `json:"sessionId,omitempty"`
	UserID          string          `json:"userId,omitempty"`
	ExceptSessionID string          `json:"exceptSessionId,omitempty"`
	Count           int             `json:"count,omitempty"`
	Type            string          `json:"type,omitempty"`
	Payload         json.RawMessage `json:"payload,omitempty"`

	// Set on receipt.
	Channel string `json:"-"`
	Event   string `json:"-"`
}
