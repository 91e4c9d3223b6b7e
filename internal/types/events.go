package types

// EventKind identifies a push event delivered by the remote chat client.
type EventKind string

const (
	EventMessageReceived    EventKind = "message.received"
	EventMessageUpdated     EventKind = "message.updated"
	EventMessageDeleted     EventKind = "message.deleted"
	EventReactionUpdated    EventKind = "reaction.updated"
	EventThreadInfoUpdated  EventKind = "thread.updated"
	EventTypingStarted      EventKind = "typing.started"
	EventTypingStopped      EventKind = "typing.stopped"
	EventChannelUpdated     EventKind = "channel.updated"
	EventConnectionRestored EventKind = "connection.restored"
	EventConnectionLost     EventKind = "connection.lost"
)

// Event is an unsolicited update scoped by channel.
type Event struct {
	Kind      EventKind `json:"kind"`
	ChannelID string    `json:"channel_id,omitempty"`
	MessageID int64     `json:"message_id,omitempty"`
	UserID    string    `json:"user_id,omitempty"`
	Message   *Message  `json:"message,omitempty"`
	Channel   *Channel  `json:"channel,omitempty"`
	TS        int64     `json:"ts,omitempty"`
}
