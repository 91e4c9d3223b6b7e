package command

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"github.com/adamavenir/pairchat/internal/types"
)

func executeCommand(cmd *cobra.Command, args ...string) (string, error) {
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)

	err := cmd.Execute()
	return buf.String(), err
}

func TestRootCommandVersion(t *testing.T) {
	cmd := NewRootCmd("test")

	output, err := executeCommand(cmd, "--version")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if !strings.Contains(output, "pairchat version test") {
		t.Fatalf("expected version output, got %q", output)
	}
}

func TestRootCommandHelp(t *testing.T) {
	cmd := NewRootCmd("test")

	output, err := executeCommand(cmd)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if !strings.Contains(output, "Pairchat") {
		t.Fatalf("expected help output, got %q", output)
	}
}

func TestParseMessageID(t *testing.T) {
	cases := map[string]int64{"42": 42, "#7": 7, " 9 ": 9}
	for raw, want := range cases {
		got, err := parseMessageID(raw)
		if err != nil || got != want {
			t.Fatalf("parseMessageID(%q) = %d, %v", raw, got, err)
		}
	}
	for _, raw := range []string{"", "abc", "#", "-3", "0"} {
		if _, err := parseMessageID(raw); err == nil {
			t.Fatalf("expected error for %q", raw)
		}
	}
}

func TestFormatReactionsOrdersByCount(t *testing.T) {
	got := formatReactions(map[string][]string{
		"eyes": {"a"},
		"+1":   {"a", "b"},
		"tada": {"c"},
	})
	if got != "+1×2  eyes×1  tada×1" {
		t.Fatalf("unexpected reactions line: %q", got)
	}
}

func TestFormatMessageFlagsMentions(t *testing.T) {
	now := time.Now()
	mentioned := formatMessage(types.Message{ID: 1, SenderID: "sam", Text: "@me can you look?"}, "me", now)
	if !strings.HasPrefix(mentioned, "●") {
		t.Fatalf("expected mention marker, got %q", mentioned)
	}
	own := formatMessage(types.Message{ID: 2, SenderID: "me", Text: "note to @me"}, "me", now)
	if strings.Contains(own, "●") {
		t.Fatalf("own messages are never flagged, got %q", own)
	}
	pending := formatMessage(types.Message{SenderID: "me", Text: "hi", State: types.SendStatePending}, "me", now)
	if !strings.Contains(pending, "#-") || !strings.Contains(pending, "[sending]") {
		t.Fatalf("unexpected pending rendering: %q", pending)
	}
}
