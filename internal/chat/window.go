package chat

import "github.com/adamavenir/pairchat/internal/types"

// window pairs a MessageStore with the ReactionLedger that owns its reactor sets.
// Messages are stored without reactions and merged back on read.
type window struct {
	store     *MessageStore
	reactions *ReactionLedger
}

func newWindow() window {
	return window{store: NewMessageStore(), reactions: NewReactionLedger()}
}

func (w window) put(msg types.Message) {
	if msg.Confirmed() {
		w.reactions.Set(msg.ID, msg.Reactions)
	}
	msg.Reactions = nil
	w.store.Append(msg)
}

// reset replaces the confirmed window and keeps every unconfirmed entry,
// so failed sends survive a snapshot.
func (w window) reset(msgs []types.Message) {
	unconfirmed := w.store.Unconfirmed()
	w.reactions.Reset()
	confirmed := make([]types.Message, 0, len(msgs))
	for _, msg := range msgs {
		if !msg.Confirmed() {
			continue
		}
		w.reactions.Set(msg.ID, msg.Reactions)
		msg.Reactions = nil
		confirmed = append(confirmed, msg)
	}
	w.store.Replace(confirmed)
	for _, msg := range unconfirmed {
		w.store.Append(msg)
	}
}

func (w window) prepend(msgs []types.Message) bool {
	stripped := make([]types.Message, 0, len(msgs))
	for _, msg := range msgs {
		msg.Reactions = nil
		stripped = append(stripped, msg)
	}
	if !w.store.Prepend(stripped) {
		return false
	}
	for _, msg := range msgs {
		w.reactions.Set(msg.ID, msg.Reactions)
	}
	return true
}

// update swaps in an authoritative copy of a message already in the window.
func (w window) update(msg types.Message) bool {
	reactions := msg.Reactions
	msg.Reactions = nil
	if !w.store.Update(msg.ID, func(m *types.Message) { *m = msg }) {
		return false
	}
	w.reactions.Set(msg.ID, reactions)
	return true
}

func (w window) remove(id int64) (types.Message, bool) {
	return w.store.Remove(id)
}

func (w window) get(id int64) (types.Message, bool) {
	msg, ok := w.store.Get(id)
	if ok {
		msg.Reactions = w.reactions.Reactions(id)
	}
	return msg, ok
}

func (w window) messages() []types.Message {
	out := w.store.Messages()
	for i := range out {
		if out[i].Confirmed() {
			out[i].Reactions = w.reactions.Reactions(out[i].ID)
		}
	}
	return out
}

func (w window) confirmed() []types.Message {
	out := w.store.Confirmed()
	for i := range out {
		out[i].Reactions = w.reactions.Reactions(out[i].ID)
	}
	return out
}

// topLevel drops thread replies, which live only in a ThreadContext.
func topLevel(msgs []types.Message) []types.Message {
	out := make([]types.Message, 0, len(msgs))
	for _, msg := range msgs {
		if !msg.IsReply() {
			out = append(out, msg)
		}
	}
	return out
}
