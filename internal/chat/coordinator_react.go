package chat

import (
	"context"

	"github.com/adamavenir/pairchat/internal/core"
	"github.com/adamavenir/pairchat/internal/types"
)

type reactionMode int

const (
	reactionToggle reactionMode = iota
	reactionAdd
	reactionRemove
)

// ToggleReaction removes self's reaction if present, otherwise adds it.
// Local state changes only when the server answers with the updated message.
func (c *Coordinator) ToggleReaction(ctx context.Context, channelID string, messageID int64, key string) (types.Message, error) {
	return c.react(ctx, channelID, messageID, key, reactionToggle)
}

func (c *Coordinator) AddReaction(ctx context.Context, channelID string, messageID int64, key string) (types.Message, error) {
	return c.react(ctx, channelID, messageID, key, reactionAdd)
}

func (c *Coordinator) RemoveReaction(ctx context.Context, channelID string, messageID int64, key string) (types.Message, error) {
	return c.react(ctx, channelID, messageID, key, reactionRemove)
}

func (c *Coordinator) react(ctx context.Context, channelID string, messageID int64, key string, mode reactionMode) (types.Message, error) {
	if err := requireChannel(channelID); err != nil {
		return types.Message{}, c.observe("react", err)
	}
	key, err := core.NormalizeReactionKey(key)
	if err != nil {
		return types.Message{}, c.observe("react", err)
	}

	c.mu.Lock()
	if !c.readyLocked() {
		c.mu.Unlock()
		return types.Message{}, c.observe("react", core.ErrNotConnected)
	}
	target, ledger, ok := c.lookupLocked(channelID, messageID)
	if !ok {
		c.mu.Unlock()
		return types.Message{}, nil
	}
	remove := mode == reactionRemove
	if mode == reactionToggle {
		remove = ledger.Has(messageID, key, c.self)
	}
	c.mu.Unlock()

	var updated types.Message
	if remove {
		updated, err = c.client.RemoveReaction(ctx, target, key)
	} else {
		updated, err = c.client.AddReaction(ctx, target, key)
	}
	if err != nil {
		return types.Message{}, c.observe("react", core.Remote("react", err))
	}

	updated = authoritative(updated, channelID)
	c.mu.Lock()
	c.supersedeLocked(channelID, messageID)
	inWindow, inThread := c.applyLocked(updated)
	c.mu.Unlock()
	c.emitApplied(channelID, inWindow, inThread)
	return updated, c.observe("react", nil)
}

// refetchMessage re-reads a whole message and applies it to every local copy.
// A response is dropped when a newer re-fetch or intent result for the same
// message was started or applied in the meantime.
func (c *Coordinator) refetchMessage(ctx context.Context, channelID string, messageID int64) error {
	if channelID == "" || messageID == 0 {
		return nil
	}
	c.mu.Lock()
	if _, _, ok := c.lookupLocked(channelID, messageID); !ok {
		c.mu.Unlock()
		return nil
	}
	version := c.beginRefetchLocked(channelID, messageID)
	c.mu.Unlock()

	msg, err := c.client.GetMessage(ctx, channelID, messageID)
	if err != nil {
		c.mu.Lock()
		c.endRefetchLocked(channelID, messageID, version)
		c.mu.Unlock()
		c.logger.Warn("message refetch failed", "channel_id", channelID, "message_id", messageID, "error", err)
		return core.Remote("get message", err)
	}
	msg = authoritative(msg, channelID)

	c.mu.Lock()
	if !c.endRefetchLocked(channelID, messageID, version) {
		c.mu.Unlock()
		return nil
	}
	inWindow, inThread := c.applyLocked(msg)
	c.mu.Unlock()
	c.emitApplied(channelID, inWindow, inThread)
	return nil
}
