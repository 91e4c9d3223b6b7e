package chat

import (
	"container/list"
	"sort"
	"strings"

	"github.com/gobwas/glob"

	"github.com/adamavenir/pairchat/internal/types"
)

// ChannelDirectory keeps the user's channels ordered by most recent activity.
type ChannelDirectory struct {
	order *list.List
	index map[string]*list.Element
}

func NewChannelDirectory() *ChannelDirectory {
	return &ChannelDirectory{
		order: list.New(),
		index: make(map[string]*list.Element),
	}
}

// Replace swaps in a remote snapshot, most recent first.
// Provisional channels missing from the snapshot are kept at the front.
func (d *ChannelDirectory) Replace(channels []types.Channel) {
	var provisional []types.Channel
	for e := d.order.Front(); e != nil; e = e.Next() {
		ch := e.Value.(types.Channel)
		if ch.Provisional {
			provisional = append(provisional, ch)
		}
	}

	sorted := make([]types.Channel, 0, len(channels))
	seen := make(map[string]bool, len(channels))
	for _, ch := range channels {
		if ch.ID == "" || seen[ch.ID] {
			continue
		}
		seen[ch.ID] = true
		sorted = append(sorted, cloneChannel(ch))
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].LastActivity() > sorted[j].LastActivity()
	})

	d.order.Init()
	d.index = make(map[string]*list.Element, len(sorted)+len(provisional))
	for _, ch := range provisional {
		if seen[ch.ID] {
			continue
		}
		d.index[ch.ID] = d.order.PushBack(ch)
	}
	for _, ch := range sorted {
		d.index[ch.ID] = d.order.PushBack(ch)
	}
}

// InsertFront adds or replaces a channel and moves it to the front.
func (d *ChannelDirectory) InsertFront(ch types.Channel) {
	ch = cloneChannel(ch)
	if e, ok := d.index[ch.ID]; ok {
		e.Value = ch
		d.order.MoveToFront(e)
		return
	}
	d.index[ch.ID] = d.order.PushFront(ch)
}

// Upsert updates a known channel in place, or inserts an unknown one at the front.
func (d *ChannelDirectory) Upsert(ch types.Channel) {
	if e, ok := d.index[ch.ID]; ok {
		e.Value = cloneChannel(ch)
		return
	}
	d.InsertFront(ch)
}

// Touch records a new message on a channel and moves it to the front.
// It reports false when the channel is unknown.
func (d *ChannelDirectory) Touch(channelID string, summary *types.MessageSummary, unread bool) bool {
	e, ok := d.index[channelID]
	if !ok {
		return false
	}
	ch := e.Value.(types.Channel)
	if summary != nil {
		s := *summary
		ch.LastMessage = &s
		if s.TS > ch.UpdatedAt {
			ch.UpdatedAt = s.TS
		}
	}
	if unread {
		ch.UnreadCount++
	}
	e.Value = ch
	d.order.MoveToFront(e)
	return true
}

// Rekey replaces a provisional entry with its confirmed channel, keeping its position.
// If the confirmed channel is already present, the provisional entry is dropped.
func (d *ChannelDirectory) Rekey(oldID string, ch types.Channel) {
	ch = cloneChannel(ch)
	ch.Provisional = false
	old, hasOld := d.index[oldID]
	if existing, ok := d.index[ch.ID]; ok {
		existing.Value = ch
		if hasOld && old != existing {
			d.order.Remove(old)
			delete(d.index, oldID)
		}
		return
	}
	if !hasOld {
		d.index[ch.ID] = d.order.PushFront(ch)
		return
	}
	old.Value = ch
	delete(d.index, oldID)
	d.index[ch.ID] = old
}

// MarkRead clears a channel's unread counter.
func (d *ChannelDirectory) MarkRead(channelID string) bool {
	e, ok := d.index[channelID]
	if !ok {
		return false
	}
	ch := e.Value.(types.Channel)
	if ch.UnreadCount == 0 {
		return false
	}
	ch.UnreadCount = 0
	e.Value = ch
	return true
}

func (d *ChannelDirectory) Get(channelID string) (types.Channel, bool) {
	e, ok := d.index[channelID]
	if !ok {
		return types.Channel{}, false
	}
	return cloneChannel(e.Value.(types.Channel)), true
}

// List returns the channels, most recent first.
func (d *ChannelDirectory) List() []types.Channel {
	out := make([]types.Channel, 0, d.order.Len())
	for e := d.order.Front(); e != nil; e = e.Next() {
		out = append(out, cloneChannel(e.Value.(types.Channel)))
	}
	return out
}

// Match returns channels whose name or id matches a glob pattern, case-insensitively.
func (d *ChannelDirectory) Match(pattern string) ([]types.Channel, error) {
	pattern = strings.ToLower(strings.TrimSpace(pattern))
	if pattern == "" {
		return d.List(), nil
	}
	g, err := glob.Compile(pattern)
	if err != nil {
		return nil, err
	}
	var out []types.Channel
	for e := d.order.Front(); e != nil; e = e.Next() {
		ch := e.Value.(types.Channel)
		if g.Match(strings.ToLower(ch.Name)) || g.Match(strings.ToLower(ch.ID)) {
			out = append(out, cloneChannel(ch))
		}
	}
	return out, nil
}

func (d *ChannelDirectory) Len() int {
	return d.order.Len()
}

func cloneChannel(ch types.Channel) types.Channel {
	ch.Members = append([]string(nil), ch.Members...)
	if ch.LastMessage != nil {
		s := *ch.LastMessage
		ch.LastMessage = &s
	}
	return ch
}
