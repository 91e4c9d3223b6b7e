package chat

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/adamavenir/pairchat/internal/remote"
	"github.com/adamavenir/pairchat/internal/types"
)

const selfID = "me"

var errNoSuchMessage = errors.New("no such message")

// gate pauses one call to a fake operation until released.
type gate struct {
	started chan struct{}
	release chan struct{}
}

func (g *gate) open() {
	close(g.release)
}

// fakeRemote is an in-memory chat server with call counting and per-call gates.
type fakeRemote struct {
	mu       sync.Mutex
	ready    bool
	nextID   int64
	messages map[string][]types.Message
	channels []types.Channel
	calls    map[string]int
	errs     map[string]error
	gates    map[string]*gate
	events   chan types.Event

	// mixReplies makes message pages carry thread replies as some servers do.
	mixReplies bool
}

var _ remote.Client = (*fakeRemote)(nil)

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		ready:    true,
		nextID:   1000,
		messages: make(map[string][]types.Message),
		calls:    make(map[string]int),
		errs:     make(map[string]error),
		gates:    make(map[string]*gate),
		events:   make(chan types.Event, 16),
	}
}

// seed stores top-level messages with the given ids in a channel.
func (f *fakeRemote) seed(channelID string, ids ...int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range ids {
		f.messages[channelID] = append(f.messages[channelID], types.Message{
			ID:        id,
			ChannelID: channelID,
			SenderID:  "peer",
			TS:        id * 1000,
			Kind:      types.MessageKindText,
			Text:      fmt.Sprintf("message %d", id),
		})
	}
	slices.SortFunc(f.messages[channelID], func(a, b types.Message) int { return int(a.ID - b.ID) })
}

func (f *fakeRemote) put(msg types.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	list := f.messages[msg.ChannelID]
	for i := range list {
		if list[i].ID == msg.ID {
			list[i] = msg.Clone()
			return
		}
	}
	f.messages[msg.ChannelID] = append(list, msg.Clone())
}

func (f *fakeRemote) block(op string) *gate {
	g := &gate{started: make(chan struct{}), release: make(chan struct{})}
	f.mu.Lock()
	f.gates[op] = g
	f.mu.Unlock()
	return g
}

func (f *fakeRemote) fail(op string, err error) {
	f.mu.Lock()
	f.errs[op] = err
	f.mu.Unlock()
}

func (f *fakeRemote) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeRemote) resetCalls() {
	f.mu.Lock()
	f.calls = make(map[string]int)
	f.mu.Unlock()
}

// enter records a call, waits on a one-shot gate and returns the scripted error.
func (f *fakeRemote) enter(op string) error {
	f.mu.Lock()
	f.calls[op]++
	g := f.gates[op]
	delete(f.gates, op)
	err := f.errs[op]
	f.mu.Unlock()
	if g != nil {
		close(g.started)
		<-g.release
	}
	return err
}

func (f *fakeRemote) find(channelID string, id int64) (int, bool) {
	for i, msg := range f.messages[channelID] {
		if msg.ID == id {
			return i, true
		}
	}
	return -1, false
}

func (f *fakeRemote) Ready() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ready
}

func (f *fakeRemote) Events() <-chan types.Event {
	return f.events
}

func (f *fakeRemote) ListChannels(ctx context.Context, pageSize int, cursor string) (types.ChannelPage, error) {
	if err := f.enter("list_channels"); err != nil {
		return types.ChannelPage{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return types.ChannelPage{Channels: append([]types.Channel(nil), f.channels...)}, nil
}

func (f *fakeRemote) CreateChannel(ctx context.Context, memberIDs []string) (types.Channel, error) {
	if err := f.enter("create_channel"); err != nil {
		return types.Channel{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := types.Channel{ID: fmt.Sprintf("ch-%d", len(f.channels)+1), Members: memberIDs, UpdatedAt: 1}
	f.channels = append(f.channels, ch)
	return ch, nil
}

func (f *fakeRemote) FetchMessages(ctx context.Context, q types.MessageQuery) ([]types.Message, error) {
	if err := f.enter("fetch_messages"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var matched []types.Message
	for _, msg := range f.messages[q.ChannelID] {
		if msg.IsReply() && !f.mixReplies {
			continue
		}
		if q.Before > 0 && msg.TS >= q.Before {
			continue
		}
		if q.After > 0 && msg.TS <= q.After {
			continue
		}
		matched = append(matched, msg.Clone())
	}
	if len(matched) > q.PageSize {
		matched = matched[len(matched)-q.PageSize:]
	}
	return matched, nil
}

func (f *fakeRemote) GetMessage(ctx context.Context, channelID string, messageID int64) (types.Message, error) {
	if err := f.enter("get_message"); err != nil {
		return types.Message{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	idx, ok := f.find(channelID, messageID)
	if !ok {
		return types.Message{}, errNoSuchMessage
	}
	return f.messages[channelID][idx].Clone(), nil
}

func (f *fakeRemote) create(channelID string, parentID int64, text string, file *types.FileUpload, correlationID string) types.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	msg := types.Message{
		ID:            f.nextID,
		ChannelID:     channelID,
		SenderID:      selfID,
		TS:            f.nextID * 1000,
		Kind:          types.MessageKindText,
		Text:          text,
		CorrelationID: correlationID,
		ParentID:      parentID,
	}
	if file != nil {
		msg.Kind = types.MessageKindFile
		msg.Text = ""
		msg.File = &types.FilePayload{Name: file.Name, MimeType: file.MimeType, Size: file.Size(), URL: "https://files/" + file.Name}
	}
	f.messages[channelID] = append(f.messages[channelID], msg)
	if parentID != 0 {
		if idx, ok := f.find(channelID, parentID); ok {
			parent := &f.messages[channelID][idx]
			if parent.Thread == nil {
				parent.Thread = &types.ThreadSummary{}
			}
			parent.Thread.ReplyCount++
			parent.Thread.LastReplyTS = msg.TS
		}
	}
	return msg.Clone()
}

func (f *fakeRemote) SendText(ctx context.Context, channelID, text, correlationID string) (types.Message, error) {
	if err := f.enter("send_text"); err != nil {
		return types.Message{}, err
	}
	return f.create(channelID, 0, text, nil, correlationID), nil
}

func (f *fakeRemote) SendFile(ctx context.Context, channelID string, file types.FileUpload, correlationID string) (types.Message, error) {
	if err := f.enter("send_file"); err != nil {
		return types.Message{}, err
	}
	return f.create(channelID, 0, "", &file, correlationID), nil
}

func (f *fakeRemote) EditText(ctx context.Context, msg types.Message, text string) (types.Message, error) {
	if err := f.enter("edit_text"); err != nil {
		return types.Message{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	idx, ok := f.find(msg.ChannelID, msg.ID)
	if !ok {
		return types.Message{}, errNoSuchMessage
	}
	stored := &f.messages[msg.ChannelID][idx]
	stored.Text = text
	edited := int64(42)
	stored.EditedAt = &edited
	return stored.Clone(), nil
}

func (f *fakeRemote) DeleteMessage(ctx context.Context, msg types.Message) error {
	if err := f.enter("delete_message"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	idx, ok := f.find(msg.ChannelID, msg.ID)
	if !ok {
		return errNoSuchMessage
	}
	f.messages[msg.ChannelID] = slices.Delete(f.messages[msg.ChannelID], idx, idx+1)
	return nil
}

func (f *fakeRemote) react(op string, msg types.Message, key string, add bool) (types.Message, error) {
	if err := f.enter(op); err != nil {
		return types.Message{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	idx, ok := f.find(msg.ChannelID, msg.ID)
	if !ok {
		return types.Message{}, errNoSuchMessage
	}
	stored := &f.messages[msg.ChannelID][idx]
	if stored.Reactions == nil {
		stored.Reactions = map[string][]string{}
	}
	users := slices.DeleteFunc(stored.Reactions[key], func(u string) bool { return u == selfID })
	if add {
		users = append(users, selfID)
	}
	if len(users) == 0 {
		delete(stored.Reactions, key)
	} else {
		stored.Reactions[key] = users
	}
	return stored.Clone(), nil
}

func (f *fakeRemote) AddReaction(ctx context.Context, msg types.Message, key string) (types.Message, error) {
	return f.react("add_reaction", msg, key, true)
}

func (f *fakeRemote) RemoveReaction(ctx context.Context, msg types.Message, key string) (types.Message, error) {
	return f.react("remove_reaction", msg, key, false)
}

func (f *fakeRemote) SearchMessages(ctx context.Context, channelID, query string, pageSize int) ([]types.Message, error) {
	if err := f.enter("search"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []types.Message
	list := f.messages[channelID]
	for i := len(list) - 1; i >= 0 && len(out) < pageSize; i-- {
		if strings.Contains(list[i].Text, query) {
			out = append(out, list[i].Clone())
		}
	}
	return out, nil
}

func (f *fakeRemote) FetchThreadReplies(ctx context.Context, channelID string, parentID int64, pageSize int) ([]types.Message, error) {
	if err := f.enter("fetch_thread_replies"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []types.Message
	for _, msg := range f.messages[channelID] {
		if msg.ParentID == parentID {
			out = append(out, msg.Clone())
		}
	}
	return out, nil
}

func (f *fakeRemote) SendThreadReply(ctx context.Context, channelID string, parentID int64, reply types.ReplyContent, correlationID string) (types.Message, error) {
	if err := f.enter("send_thread_reply"); err != nil {
		return types.Message{}, err
	}
	return f.create(channelID, parentID, reply.Text, reply.File, correlationID), nil
}

func (f *fakeRemote) SendTyping(ctx context.Context, channelID string, typing bool) error {
	op := "send_typing_stop"
	if typing {
		op = "send_typing_start"
	}
	return f.enter(op)
}
