package chat

import (
	"slices"
	"sort"
)

// ReactionGroup is one reaction key on a message with its reactors.
type ReactionGroup struct {
	Key   string   `json:"key"`
	Count int      `json:"count"`
	Users []string `json:"users"`
}

// ReactionLedger owns the reactor sets of the messages in one collection.
// Entries only change from authoritative server copies.
type ReactionLedger struct {
	sets map[int64]map[string][]string
}

func NewReactionLedger() *ReactionLedger {
	return &ReactionLedger{sets: make(map[int64]map[string][]string)}
}

// Set replaces the reactions of a message. Reactors are deduplicated and
// keys with no reactors are dropped.
func (l *ReactionLedger) Set(messageID int64, reactions map[string][]string) {
	if messageID == 0 {
		return
	}
	normalized := make(map[string][]string, len(reactions))
	for key, users := range reactions {
		set := make([]string, 0, len(users))
		for _, user := range users {
			if user != "" && !slices.Contains(set, user) {
				set = append(set, user)
			}
		}
		if len(set) > 0 {
			normalized[key] = set
		}
	}
	if len(normalized) == 0 {
		delete(l.sets, messageID)
		return
	}
	l.sets[messageID] = normalized
}

func (l *ReactionLedger) Forget(messageID int64) {
	delete(l.sets, messageID)
}

func (l *ReactionLedger) Reset() {
	l.sets = make(map[int64]map[string][]string)
}

// Has reports whether user is in the reactor set of (messageID, key).
func (l *ReactionLedger) Has(messageID int64, key, user string) bool {
	return slices.Contains(l.sets[messageID][key], user)
}

// Reactions returns a copy of the reactions of a message, or nil.
func (l *ReactionLedger) Reactions(messageID int64) map[string][]string {
	set, ok := l.sets[messageID]
	if !ok {
		return nil
	}
	out := make(map[string][]string, len(set))
	for key, users := range set {
		out[key] = append([]string(nil), users...)
	}
	return out
}

// Groups returns the reactions of a message, largest first, then by key.
func (l *ReactionLedger) Groups(messageID int64) []ReactionGroup {
	set := l.sets[messageID]
	groups := make([]ReactionGroup, 0, len(set))
	for key, users := range set {
		groups = append(groups, ReactionGroup{Key: key, Count: len(users), Users: append([]string(nil), users...)})
	}
	sort.Slice(groups, func(i, j int) bool {
		if groups[i].Count != groups[j].Count {
			return groups[i].Count > groups[j].Count
		}
		return groups[i].Key < groups[j].Key
	})
	return groups
}
