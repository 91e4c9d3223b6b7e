package chat

import (
	"sort"
	"sync"
	"time"
)

type timer interface {
	Stop() bool
}

// TypingTracker holds the peers typing in the displayed channel and the
// caller's own outbound typing state. Peer entries expire after the idle window.
//
// Expiry runs on timer goroutines, so the tracker guards itself and reports
// expiries through onChange.
type TypingTracker struct {
	mu        sync.Mutex
	self      string
	idle      time.Duration
	active    string
	peers     map[string]*typingEntry
	outbound  map[string]bool
	gen       uint64
	onChange  func(channelID string)
	afterFunc func(time.Duration, func()) timer
}

type typingEntry struct {
	timer timer
	gen   uint64
}

// NewTypingTracker creates a tracker; onChange may be nil.
func NewTypingTracker(self string, idle time.Duration, onChange func(channelID string)) *TypingTracker {
	return &TypingTracker{
		self:     self,
		idle:     idle,
		peers:    make(map[string]*typingEntry),
		outbound: make(map[string]bool),
		onChange: onChange,
		afterFunc: func(d time.Duration, fn func()) timer {
			return time.AfterFunc(d, fn)
		},
	}
}

// SetActive switches the displayed channel and forgets peers of the previous one.
func (t *TypingTracker) SetActive(channelID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.active == channelID {
		return
	}
	t.clearPeersLocked()
	t.active = channelID
}

// SetIdle changes the expiry window for entries added afterwards.
func (t *TypingTracker) SetIdle(idle time.Duration) {
	t.mu.Lock()
	t.idle = idle
	t.mu.Unlock()
}

// Started records a peer as typing. Events for other channels and for self are ignored.
func (t *TypingTracker) Started(channelID, userID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if channelID == "" || channelID != t.active || userID == "" || userID == t.self {
		return false
	}
	entry, exists := t.peers[userID]
	if exists {
		entry.timer.Stop()
	} else {
		entry = &typingEntry{}
		t.peers[userID] = entry
	}
	// Generations are tracker-wide so a late timer never matches a newer entry.
	t.gen++
	entry.gen = t.gen
	gen := entry.gen
	entry.timer = t.afterFunc(t.idle, func() { t.expire(channelID, userID, gen) })
	return !exists
}

// Stopped removes a peer.
func (t *TypingTracker) Stopped(channelID, userID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if channelID != t.active {
		return false
	}
	entry, ok := t.peers[userID]
	if !ok {
		return false
	}
	entry.timer.Stop()
	delete(t.peers, userID)
	return true
}

// Typing lists the peers typing in channelID, sorted.
func (t *TypingTracker) Typing(channelID string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if channelID != t.active {
		return nil
	}
	out := make([]string, 0, len(t.peers))
	for userID := range t.peers {
		out = append(out, userID)
	}
	sort.Strings(out)
	return out
}

// BeginOutbound marks self as typing in channelID.
// It reports true only on the transition, when a notification should be sent.
func (t *TypingTracker) BeginOutbound(channelID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.outbound[channelID] {
		return false
	}
	t.outbound[channelID] = true
	return true
}

// EndOutbound clears self typing in channelID, reporting true on the transition.
func (t *TypingTracker) EndOutbound(channelID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.outbound[channelID] {
		return false
	}
	delete(t.outbound, channelID)
	return true
}

// Reset forgets every peer, used when the connection drops.
func (t *TypingTracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.clearPeersLocked()
	t.outbound = make(map[string]bool)
}

func (t *TypingTracker) expire(channelID, userID string, gen uint64) {
	t.mu.Lock()
	entry, ok := t.peers[userID]
	if !ok || entry.gen != gen || channelID != t.active {
		t.mu.Unlock()
		return
	}
	delete(t.peers, userID)
	onChange := t.onChange
	t.mu.Unlock()

	if onChange != nil {
		onChange(channelID)
	}
}

func (t *TypingTracker) clearPeersLocked() {
	for userID, entry := range t.peers {
		entry.timer.Stop()
		delete(t.peers, userID)
	}
}
