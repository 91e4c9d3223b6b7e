package chat

import "testing"

func TestLedgerSetNormalizes(t *testing.T) {
	ledger := NewReactionLedger()
	ledger.Set(1, map[string][]string{
		"+1":    {"a", "b", "a"},
		"heart": {},
	})
	got := ledger.Reactions(1)
	if len(got) != 1 || len(got["+1"]) != 2 {
		t.Fatalf("unexpected reactions: %v", got)
	}
	if !ledger.Has(1, "+1", "a") || ledger.Has(1, "heart", "a") {
		t.Fatal("unexpected membership")
	}
}

func TestLedgerEmptySetForgetsMessage(t *testing.T) {
	ledger := NewReactionLedger()
	ledger.Set(1, map[string][]string{"+1": {"a"}})
	ledger.Set(1, map[string][]string{"+1": nil})
	if ledger.Reactions(1) != nil {
		t.Fatal("expected reactions to be dropped")
	}
}

func TestLedgerGroupsOrder(t *testing.T) {
	ledger := NewReactionLedger()
	ledger.Set(1, map[string][]string{
		"tada":  {"a"},
		"+1":    {"a", "b"},
		"heart": {"c"},
	})
	groups := ledger.Groups(1)
	if len(groups) != 3 || groups[0].Key != "+1" || groups[1].Key != "heart" || groups[2].Key != "tada" {
		t.Fatalf("unexpected group order: %+v", groups)
	}
}
