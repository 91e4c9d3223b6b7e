// Package cache holds the last confirmed snapshot of channels and message windows
// so a session can show something before the first remote fetch lands.
package cache

import (
	"context"

	"github.com/adamavenir/pairchat/internal/types"
)

// Cache stores confirmed snapshots. Unconfirmed messages are never written.
type Cache interface {
	SaveChannels(ctx context.Context, channels []types.Channel) error
	LoadChannels(ctx context.Context) ([]types.Channel, error)
	SaveMessages(ctx context.Context, channelID string, messages []types.Message) error
	LoadMessages(ctx context.Context, channelID string) ([]types.Message, error)
	Close() error
}

func confirmedOnly(messages []types.Message) []types.Message {
	out := make([]types.Message, 0, len(messages))
	for _, msg := range messages {
		if msg.Confirmed() {
			out = append(out, msg.Clone())
		}
	}
	return out
}
