package cache

import (
	"context"
	"sync"

	"github.com/adamavenir/pairchat/internal/types"
)

// Memory is an in-process Cache.
type Memory struct {
	mu       sync.RWMutex
	channels []types.Channel
	messages map[string][]types.Message
}

var _ Cache = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{messages: make(map[string][]types.Message)}
}

func (m *Memory) SaveChannels(ctx context.Context, channels []types.Channel) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.channels = make([]types.Channel, 0, len(channels))
	for _, ch := range channels {
		if ch.Provisional {
			continue
		}
		ch.Members = append([]string(nil), ch.Members...)
		m.channels = append(m.channels, ch)
	}
	return nil
}

func (m *Memory) LoadChannels(ctx context.Context) ([]types.Channel, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]types.Channel, len(m.channels))
	copy(out, m.channels)
	return out, nil
}

func (m *Memory) SaveMessages(ctx context.Context, channelID string, messages []types.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages[channelID] = confirmedOnly(messages)
	return nil
}

func (m *Memory) LoadMessages(ctx context.Context, channelID string) ([]types.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return confirmedOnly(m.messages[channelID]), nil
}

func (m *Memory) Close() error {
	return nil
}
