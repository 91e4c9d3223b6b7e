// Package remote is the boundary between the sync engine and the hosted chat backend.
package remote

import (
	"context"

	"github.com/adamavenir/pairchat/internal/types"
)

// Client is the remote chat capability the sync engine depends on.
// Implementations own timeouts; the engine treats every error alike.
type Client interface {
	// Ready reports whether calls can be attempted.
	Ready() bool

	ListChannels(ctx context.Context, pageSize int, cursor string) (types.ChannelPage, error)
	CreateChannel(ctx context.Context, memberIDs []string) (types.Channel, error)

	FetchMessages(ctx context.Context, query types.MessageQuery) ([]types.Message, error)
	GetMessage(ctx context.Context, channelID string, messageID int64) (types.Message, error)
	SendText(ctx context.Context, channelID, text, correlationID string) (types.Message, error)
	SendFile(ctx context.Context, channelID string, file types.FileUpload, correlationID string) (types.Message, error)
	EditText(ctx context.Context, msg types.Message, text string) (types.Message, error)
	DeleteMessage(ctx context.Context, msg types.Message) error

	AddReaction(ctx context.Context, msg types.Message, key string) (types.Message, error)
	RemoveReaction(ctx context.Context, msg types.Message, key string) (types.Message, error)

	SearchMessages(ctx context.Context, channelID, query string, pageSize int) ([]types.Message, error)

	FetchThreadReplies(ctx context.Context, channelID string, parentID int64, pageSize int) ([]types.Message, error)
	SendThreadReply(ctx context.Context, channelID string, parentID int64, reply types.ReplyContent, correlationID string) (types.Message, error)

	SendTyping(ctx context.Context, channelID string, typing bool) error

	// Events delivers push events until the client is closed.
	Events() <-chan types.Event
}
