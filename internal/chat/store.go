package chat

import (
	"slices"

	"github.com/adamavenir/pairchat/internal/types"
)

// MessageStore is the ordered window of one channel's messages.
//
// Confirmed entries are kept ascending by ID with no duplicates. Unconfirmed
// entries (ID 0) follow them in send order and are keyed by correlation id.
// A MessageStore is not safe for concurrent use; the Coordinator serializes access.
type MessageStore struct {
	confirmed   []types.Message
	unconfirmed []types.Message
}

// NewMessageStore returns an empty store.
func NewMessageStore() *MessageStore {
	return &MessageStore{}
}

// Replace swaps the whole window for all.
// Duplicate IDs keep the last occurrence.
func (s *MessageStore) Replace(all []types.Message) {
	s.confirmed = s.confirmed[:0:0]
	s.unconfirmed = s.unconfirmed[:0:0]
	for _, msg := range all {
		if msg.Confirmed() {
			s.confirmed = append(s.confirmed, msg.Clone())
		}
	}
	s.confirmed = sortUnique(s.confirmed)
	for _, msg := range all {
		if !msg.Confirmed() {
			s.Append(msg)
		}
	}
}

// Prepend extends the window toward history.
// It reports false and leaves the store untouched when older overlaps the
// window or is not strictly older than the oldest confirmed entry.
func (s *MessageStore) Prepend(older []types.Message) bool {
	incoming := make([]types.Message, 0, len(older))
	for _, msg := range older {
		if msg.Confirmed() {
			incoming = append(incoming, msg.Clone())
		}
	}
	if len(incoming) == 0 {
		return false
	}
	incoming = sortUnique(incoming)
	for _, msg := range incoming {
		if _, ok := s.indexOf(msg.ID); ok {
			return false
		}
	}
	if len(s.confirmed) > 0 && incoming[len(incoming)-1].ID >= s.confirmed[0].ID {
		return false
	}
	s.confirmed = append(incoming, s.confirmed...)
	return true
}

// Append adds a single message.
//
// A confirmed message replaces any entry with the same ID in place and
// reconciles the unconfirmed entry carrying the same correlation id.
// An unconfirmed message replaces its earlier copy, and is dropped once the
// correlation id has already been confirmed.
func (s *MessageStore) Append(msg types.Message) {
	msg = msg.Clone()
	if !msg.Confirmed() {
		if msg.CorrelationID == "" {
			return
		}
		if s.confirmedCorrelation(msg.CorrelationID) {
			return
		}
		if idx := s.unconfirmedIndex(msg.CorrelationID); idx >= 0 {
			s.unconfirmed[idx] = msg
			return
		}
		s.unconfirmed = append(s.unconfirmed, msg)
		return
	}

	if msg.CorrelationID != "" {
		if idx := s.unconfirmedIndex(msg.CorrelationID); idx >= 0 {
			s.unconfirmed = slices.Delete(s.unconfirmed, idx, idx+1)
		}
	}
	idx, found := s.indexOf(msg.ID)
	if found {
		s.confirmed[idx] = msg
		return
	}
	s.confirmed = slices.Insert(s.confirmed, idx, msg)
}

// Update applies fn to the confirmed entry with id.
// It is a no-op returning false when id is outside the window.
func (s *MessageStore) Update(id int64, fn func(*types.Message)) bool {
	idx, ok := s.indexOf(id)
	if !ok {
		return false
	}
	msg := s.confirmed[idx].Clone()
	fn(&msg)
	msg.ID = id
	s.confirmed[idx] = msg
	return true
}

// UpdateUnconfirmed applies fn to the unconfirmed entry with correlationID.
func (s *MessageStore) UpdateUnconfirmed(correlationID string, fn func(*types.Message)) bool {
	idx := s.unconfirmedIndex(correlationID)
	if idx < 0 {
		return false
	}
	msg := s.unconfirmed[idx].Clone()
	fn(&msg)
	msg.ID = 0
	msg.CorrelationID = correlationID
	s.unconfirmed[idx] = msg
	return true
}

// Remove deletes the confirmed entry with id.
func (s *MessageStore) Remove(id int64) (types.Message, bool) {
	idx, ok := s.indexOf(id)
	if !ok {
		return types.Message{}, false
	}
	removed := s.confirmed[idx]
	s.confirmed = slices.Delete(s.confirmed, idx, idx+1)
	return removed, true
}

// RemoveUnconfirmed deletes the unconfirmed entry with correlationID.
func (s *MessageStore) RemoveUnconfirmed(correlationID string) (types.Message, bool) {
	idx := s.unconfirmedIndex(correlationID)
	if idx < 0 {
		return types.Message{}, false
	}
	removed := s.unconfirmed[idx]
	s.unconfirmed = slices.Delete(s.unconfirmed, idx, idx+1)
	return removed, true
}

// Get returns a copy of the confirmed entry with id.
func (s *MessageStore) Get(id int64) (types.Message, bool) {
	idx, ok := s.indexOf(id)
	if !ok {
		return types.Message{}, false
	}
	return s.confirmed[idx].Clone(), true
}

// Unconfirmed returns copies of the entries still waiting for an ID.
func (s *MessageStore) Unconfirmed() []types.Message {
	out := make([]types.Message, 0, len(s.unconfirmed))
	for _, msg := range s.unconfirmed {
		out = append(out, msg.Clone())
	}
	return out
}

// FindUnconfirmed returns a copy of the unconfirmed entry with correlationID.
func (s *MessageStore) FindUnconfirmed(correlationID string) (types.Message, bool) {
	idx := s.unconfirmedIndex(correlationID)
	if idx < 0 {
		return types.Message{}, false
	}
	return s.unconfirmed[idx].Clone(), true
}

// Confirmed returns copies of the confirmed entries in ascending order.
func (s *MessageStore) Confirmed() []types.Message {
	out := make([]types.Message, 0, len(s.confirmed))
	for _, msg := range s.confirmed {
		out = append(out, msg.Clone())
	}
	return out
}

// Messages returns the whole window: confirmed entries, then unconfirmed.
func (s *MessageStore) Messages() []types.Message {
	out := make([]types.Message, 0, s.Len())
	for _, msg := range s.confirmed {
		out = append(out, msg.Clone())
	}
	for _, msg := range s.unconfirmed {
		out = append(out, msg.Clone())
	}
	return out
}

// Oldest returns the oldest confirmed entry.
func (s *MessageStore) Oldest() (types.Message, bool) {
	if len(s.confirmed) == 0 {
		return types.Message{}, false
	}
	return s.confirmed[0].Clone(), true
}

// Newest returns the newest confirmed entry.
func (s *MessageStore) Newest() (types.Message, bool) {
	if len(s.confirmed) == 0 {
		return types.Message{}, false
	}
	return s.confirmed[len(s.confirmed)-1].Clone(), true
}

func (s *MessageStore) Len() int {
	return len(s.confirmed) + len(s.unconfirmed)
}

func (s *MessageStore) UnconfirmedLen() int {
	return len(s.unconfirmed)
}

func (s *MessageStore) indexOf(id int64) (int, bool) {
	return slices.BinarySearchFunc(s.confirmed, id, func(msg types.Message, target int64) int {
		switch {
		case msg.ID < target:
			return -1
		case msg.ID > target:
			return 1
		default:
			return 0
		}
	})
}

func (s *MessageStore) unconfirmedIndex(correlationID string) int {
	if correlationID == "" {
		return -1
	}
	return slices.IndexFunc(s.unconfirmed, func(msg types.Message) bool {
		return msg.CorrelationID == correlationID
	})
}

func (s *MessageStore) confirmedCorrelation(correlationID string) bool {
	return slices.ContainsFunc(s.confirmed, func(msg types.Message) bool {
		return msg.CorrelationID == correlationID
	})
}

// sortUnique sorts by ID and keeps the last occurrence of each ID.
func sortUnique(msgs []types.Message) []types.Message {
	slices.SortStableFunc(msgs, func(a, b types.Message) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		default:
			return 0
		}
	})
	out := msgs[:0]
	for i, msg := range msgs {
		if i+1 < len(msgs) && msgs[i+1].ID == msg.ID {
			continue
		}
		out = append(out, msg)
	}
	return out
}
