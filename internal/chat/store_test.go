package chat

import (
	"math/rand"
	"testing"

	"github.com/adamavenir/pairchat/internal/types"
)

func newMsg(id int64) types.Message {
	return types.Message{ID: id, ChannelID: "ch-1", TS: id * 1000, Kind: types.MessageKindText, Text: "m"}
}

func newMsgs(ids ...int64) []types.Message {
	out := make([]types.Message, 0, len(ids))
	for _, id := range ids {
		out = append(out, newMsg(id))
	}
	return out
}

func ids(list []types.Message) []int64 {
	out := make([]int64, 0, len(list))
	for _, m := range list {
		out = append(out, m.ID)
	}
	return out
}

func assertIDs(t *testing.T, got []types.Message, want ...int64) {
	t.Helper()
	gotIDs := ids(got)
	if len(gotIDs) != len(want) {
		t.Fatalf("expected ids %v, got %v", want, gotIDs)
	}
	for i := range want {
		if gotIDs[i] != want[i] {
			t.Fatalf("expected ids %v, got %v", want, gotIDs)
		}
	}
}

func assertOrdered(t *testing.T, store *MessageStore) {
	t.Helper()
	confirmed := store.Confirmed()
	for i := 1; i < len(confirmed); i++ {
		if confirmed[i-1].ID >= confirmed[i].ID {
			t.Fatalf("store not strictly ascending: %v", ids(confirmed))
		}
	}
}

func TestStoreReplaceSortsAndDedupes(t *testing.T) {
	store := NewMessageStore()
	store.Replace(newMsgs(5, 3, 4, 3))
	assertIDs(t, store.Messages(), 3, 4, 5)
}

func TestStorePrependRejectsOverlap(t *testing.T) {
	store := NewMessageStore()
	store.Replace(newMsgs(10, 11, 12))

	if store.Prepend(newMsgs(8, 10)) {
		t.Fatal("expected overlapping prepend to be rejected")
	}
	if store.Prepend(newMsgs(13)) {
		t.Fatal("expected newer prepend to be rejected")
	}
	assertIDs(t, store.Messages(), 10, 11, 12)

	if !store.Prepend(newMsgs(9, 7, 8)) {
		t.Fatal("expected older prepend to apply")
	}
	assertIDs(t, store.Messages(), 7, 8, 9, 10, 11, 12)
}

func TestStoreAppendReplacesInPlace(t *testing.T) {
	store := NewMessageStore()
	store.Replace(newMsgs(1, 2))
	updated := newMsg(2)
	updated.Text = "edited"
	store.Append(updated)

	got, ok := store.Get(2)
	if !ok || got.Text != "edited" {
		t.Fatalf("expected in-place replace, got %+v", got)
	}
	if store.Len() != 2 {
		t.Fatalf("expected 2 messages, got %d", store.Len())
	}
}

func TestStoreAppendReconcilesCorrelation(t *testing.T) {
	store := NewMessageStore()
	store.Replace(newMsgs(1))
	store.Append(types.Message{ChannelID: "ch-1", Text: "hi", State: types.SendStatePending, CorrelationID: "corr-1"})
	if store.UnconfirmedLen() != 1 {
		t.Fatalf("expected pending entry, got %d", store.UnconfirmedLen())
	}

	confirmed := newMsg(500)
	confirmed.CorrelationID = "corr-1"
	confirmed.State = types.SendStateSent
	store.Append(confirmed)
	assertIDs(t, store.Messages(), 1, 500)

	// A late optimistic copy must not resurrect the pending entry.
	store.Append(types.Message{ChannelID: "ch-1", Text: "hi", State: types.SendStatePending, CorrelationID: "corr-1"})
	assertIDs(t, store.Messages(), 1, 500)
}

func TestStoreUnconfirmedStayAtTail(t *testing.T) {
	store := NewMessageStore()
	store.Append(types.Message{CorrelationID: "a"})
	store.Append(newMsg(4))
	store.Append(newMsg(2))
	assertIDs(t, store.Messages(), 2, 4, 0)
}

func TestStoreUpdateMissingIsNoop(t *testing.T) {
	store := NewMessageStore()
	store.Replace(newMsgs(1))
	called := false
	if store.Update(99, func(*types.Message) { called = true }) {
		t.Fatal("expected update of missing id to report false")
	}
	if called {
		t.Fatal("mutator should not run for missing id")
	}
}

func TestStoreUpdateKeepsID(t *testing.T) {
	store := NewMessageStore()
	store.Replace(newMsgs(1, 2, 3))
	store.Update(2, func(m *types.Message) {
		m.ID = 100
		m.Text = "changed"
	})
	assertIDs(t, store.Messages(), 1, 2, 3)
	got, _ := store.Get(2)
	if got.Text != "changed" {
		t.Fatalf("expected changed text, got %q", got.Text)
	}
}

func TestStoreReturnsCopies(t *testing.T) {
	store := NewMessageStore()
	m := newMsg(1)
	m.Reactions = map[string][]string{"+1": {"u1"}}
	store.Replace([]types.Message{m})

	got, _ := store.Get(1)
	got.Reactions["+1"] = append(got.Reactions["+1"], "u2")
	again, _ := store.Get(1)
	if len(again.Reactions["+1"]) != 1 {
		t.Fatalf("store leaked mutable state: %+v", again.Reactions)
	}
}

func TestStoreRemove(t *testing.T) {
	store := NewMessageStore()
	store.Replace(newMsgs(1, 2, 3))
	if _, ok := store.Remove(2); !ok {
		t.Fatal("expected remove to succeed")
	}
	if _, ok := store.Remove(2); ok {
		t.Fatal("expected second remove to miss")
	}
	assertIDs(t, store.Messages(), 1, 3)
}

func TestStoreOrderingHoldsForRandomSequences(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for round := 0; round < 200; round++ {
		store := NewMessageStore()
		for step := 0; step < 40; step++ {
			switch rng.Intn(4) {
			case 0:
				batch := make([]types.Message, rng.Intn(6))
				for i := range batch {
					batch[i] = newMsg(int64(rng.Intn(100) + 1))
				}
				store.Replace(batch)
			case 1:
				batch := make([]types.Message, rng.Intn(6))
				for i := range batch {
					batch[i] = newMsg(int64(rng.Intn(100) + 1))
				}
				store.Prepend(batch)
			case 2:
				store.Append(newMsg(int64(rng.Intn(100) + 1)))
			case 3:
				store.Remove(int64(rng.Intn(100) + 1))
			}
			assertOrdered(t, store)
		}
	}
}
