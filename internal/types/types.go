package types

import (
	"fmt"
	"strings"
)

// MessageKind discriminates the payload a message carries.
type MessageKind string

const (
	MessageKindText   MessageKind = "text"
	MessageKindFile   MessageKind = "file"
	MessageKindSystem MessageKind = "system"
)

// SendState tracks the delivery of a locally originated message.
type SendState string

const (
	SendStatePending SendState = "pending"
	SendStateSent    SendState = "sent"
	SendStateFailed  SendState = "failed"
)

// FilePayload describes an uploaded attachment.
type FilePayload struct {
	URL      string `json:"url"`
	MimeType string `json:"mime_type"`
	Size     int64  `json:"size"`
	Name     string `json:"name"`
}

// ThreadSummary is present on parent messages that have replies.
type ThreadSummary struct {
	ReplyCount  int   `json:"reply_count"`
	LastReplyTS int64 `json:"last_reply_ts"`
}

// Message is a single chat message.
//
// ID is the server-assigned sequence, strictly increasing per channel.
// Unconfirmed local entries carry ID 0 and are matched by CorrelationID.
type Message struct {
	ID            int64               `json:"id"`
	ChannelID     string              `json:"channel_id"`
	SenderID      string              `json:"sender_id"`
	TS            int64               `json:"ts"`
	Kind          MessageKind         `json:"kind"`
	Text          string              `json:"text,omitempty"`
	File          *FilePayload        `json:"file,omitempty"`
	State         SendState           `json:"state,omitempty"`
	CorrelationID string              `json:"correlation_id,omitempty"`
	ParentID      int64               `json:"parent_id,omitempty"`
	Reactions     map[string][]string `json:"reactions,omitempty"`
	Thread        *ThreadSummary      `json:"thread,omitempty"`
	EditedAt      *int64              `json:"edited_at,omitempty"`
	LastError     string              `json:"-"`
}

// Confirmed reports whether the server has assigned an identifier.
func (m Message) Confirmed() bool {
	return m.ID != 0
}

// IsReply reports whether the message belongs to a thread.
func (m Message) IsReply() bool {
	return m.ParentID != 0
}

// Preview renders a one-line summary for channel rows and notifications.
func (m Message) Preview() string {
	switch m.Kind {
	case MessageKindText:
		return firstLine(m.Text)
	case MessageKindFile:
		if m.File == nil {
			return "[file]"
		}
		return fmt.Sprintf("[file] %s", m.File.Name)
	case MessageKindSystem:
		return "* " + firstLine(m.Text)
	default:
		return ""
	}
}

// Clone returns a copy that shares no mutable state with m.
func (m Message) Clone() Message {
	out := m
	if m.File != nil {
		file := *m.File
		out.File = &file
	}
	if m.Thread != nil {
		thread := *m.Thread
		out.Thread = &thread
	}
	if m.EditedAt != nil {
		editedAt := *m.EditedAt
		out.EditedAt = &editedAt
	}
	if m.Reactions != nil {
		out.Reactions = make(map[string][]string, len(m.Reactions))
		for key, users := range m.Reactions {
			out.Reactions[key] = append([]string(nil), users...)
		}
	}
	return out
}

func firstLine(text string) string {
	text = strings.TrimSpace(text)
	if idx := strings.IndexByte(text, '\n'); idx >= 0 {
		return text[:idx]
	}
	return text
}

// MessageSummary is the last-message metadata shown on a channel row.
type MessageSummary struct {
	MessageID int64  `json:"message_id"`
	SenderID  string `json:"sender_id"`
	Preview   string `json:"preview"`
	TS        int64  `json:"ts"`
}

// SummaryOf builds a channel row summary from a message.
func SummaryOf(m Message) *MessageSummary {
	return &MessageSummary{
		MessageID: m.ID,
		SenderID:  m.SenderID,
		Preview:   m.Preview(),
		TS:        m.TS,
	}
}

// Channel is a conversation container.
type Channel struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	CoverURL    string          `json:"cover_url,omitempty"`
	Members     []string        `json:"members"`
	LastMessage *MessageSummary `json:"last_message,omitempty"`
	UnreadCount int             `json:"unread_count"`
	UpdatedAt   int64           `json:"updated_at"`
	Provisional bool            `json:"-"`
}

// LastActivity returns the timestamp used for directory ordering.
func (c Channel) LastActivity() int64 {
	if c.LastMessage != nil && c.LastMessage.TS > c.UpdatedAt {
		return c.LastMessage.TS
	}
	return c.UpdatedAt
}

// Profile is the display data of a user.
type Profile struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url,omitempty"`
}

// FileUpload is the local input for a file send.
type FileUpload struct {
	Name     string
	MimeType string
	Data     []byte
}

// Size returns the payload size in bytes.
func (f FileUpload) Size() int64 {
	return int64(len(f.Data))
}

// ReplyContent is the body of a thread reply: text or a file.
type ReplyContent struct {
	Text string
	File *FileUpload
}

// MessageQuery controls a history fetch.
type MessageQuery struct {
	ChannelID        string
	Before           int64 // exclusive TS boundary, 0 = none
	After            int64 // exclusive TS boundary, 0 = none
	PageSize         int
	IncludeReactions bool
	IncludeThread    bool
}

// ChannelPage is one page of the channel listing.
type ChannelPage struct {
	Channels   []Channel `json:"channels"`
	NextCursor string    `json:"next_cursor,omitempty"`
}
