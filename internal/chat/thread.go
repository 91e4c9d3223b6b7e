package chat

import "github.com/adamavenir/pairchat/internal/types"

// ThreadContext is the zoomed-in view of one parent message and its replies.
// Its entries are independent copies of anything shown in the channel window.
type ThreadContext struct {
	channelID string
	parent    types.Message
	replies   window
	loading   bool
	gen       uint64
}

func newThreadContext(parent types.Message, gen uint64) *ThreadContext {
	t := &ThreadContext{
		channelID: parent.ChannelID,
		replies:   newWindow(),
		loading:   true,
		gen:       gen,
	}
	t.setParent(parent)
	return t
}

// ThreadView is a read-only snapshot of the open thread.
type ThreadView struct {
	Parent  types.Message
	Replies []types.Message
	Loading bool
}

func (t *ThreadContext) matches(channelID string, parentID int64) bool {
	return t != nil && t.channelID == channelID && t.parent.ID == parentID
}

func (t *ThreadContext) setParent(parent types.Message) {
	t.replies.reactions.Set(parent.ID, parent.Reactions)
	parent = parent.Clone()
	parent.Reactions = nil
	t.parent = parent
}

// setReplies replaces the replies. The parent shares the reply ledger, so its
// reactions are carried over.
func (t *ThreadContext) setReplies(msgs []types.Message) {
	parent, _ := t.get(t.parent.ID)
	t.replies.reset(msgs)
	t.setParent(parent)
}

// get finds the parent or a reply by id.
func (t *ThreadContext) get(id int64) (types.Message, bool) {
	if id == t.parent.ID {
		parent := t.parent.Clone()
		parent.Reactions = t.replies.reactions.Reactions(id)
		return parent, true
	}
	return t.replies.get(id)
}

// update applies an authoritative copy to the parent or a reply.
func (t *ThreadContext) update(msg types.Message) bool {
	if msg.ID == t.parent.ID {
		t.setParent(msg)
		return true
	}
	return t.replies.update(msg)
}

func (t *ThreadContext) view() ThreadView {
	parent, _ := t.get(t.parent.ID)
	return ThreadView{Parent: parent, Replies: t.replies.messages(), Loading: t.loading}
}
