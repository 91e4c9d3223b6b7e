package command

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"testing"

	"github.com/adamavenir/pairchat/internal/core"
	"github.com/adamavenir/pairchat/internal/types"
)

// run executes the root command against a chat server as user "me".
func run(t *testing.T, serverURL string, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	t.Setenv(envServer, "")
	t.Setenv(envToken, "")
	t.Setenv(envUser, "")
	t.Setenv(envConfig, "")

	cmd := NewRootCmd("test")
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	base := []string{"--server", serverURL, "--as", "me"}
	if !slices.Contains(args, "--cache") {
		base = append(base, "--no-cache")
	}
	cmd.SetArgs(append(base, args...))
	err = cmd.Execute()
	return out.String(), errOut.String(), err
}

func seedChannel(s *chatServer, channelID string, n int) {
	for i := 1; i <= n; i++ {
		s.addMessage(types.Message{ID: int64(i), ChannelID: channelID, SenderID: "peer", Text: "message " + strconv.Itoa(i)})
	}
}

func TestMissingServerIsReported(t *testing.T) {
	t.Setenv(envServer, "")
	t.Setenv(envUser, "")
	cmd := NewRootCmd("test")
	output, err := executeCommand(cmd, "--as", "me", "channels")
	if err == nil {
		t.Fatal("expected error without a server")
	}
	if !strings.Contains(output, "--server is required") {
		t.Fatalf("unexpected output: %q", output)
	}
}

func TestChannelsResolvesPeers(t *testing.T) {
	s, srv := newChatServer(t)
	s.channels = []types.Channel{
		{ID: "dm-sam", Members: []string{"me", "sam"}, UpdatedAt: 20},
		{ID: "dm-kim", Members: []string{"me", "kim"}, UpdatedAt: 10},
	}
	s.users["sam"] = types.Profile{ID: "sam", DisplayName: "Sam Rivera"}

	out, _, err := run(t, srv.URL, "channels")
	if err != nil {
		t.Fatalf("channels: %v", err)
	}
	if !strings.Contains(out, "Sam Rivera") || !strings.Contains(out, "@kim") {
		t.Fatalf("expected resolved and fallback names, got %q", out)
	}
	if strings.Index(out, "dm-sam") > strings.Index(out, "dm-kim") {
		t.Fatalf("expected most recent channel first, got %q", out)
	}

	out, _, err = run(t, srv.URL, "channels", "--match", "*kim")
	if err != nil {
		t.Fatalf("channels --match: %v", err)
	}
	if strings.Contains(out, "dm-sam") || !strings.Contains(out, "dm-kim") {
		t.Fatalf("unexpected filtered output: %q", out)
	}
}

func TestChannelsFallsBackToCacheWhenOffline(t *testing.T) {
	s, srv := newChatServer(t)
	s.channels = []types.Channel{{ID: "dm-sam", Members: []string{"me", "sam"}, UpdatedAt: 20}}
	cachePath := filepath.Join(t.TempDir(), "cache.db")

	if _, _, err := run(t, srv.URL, "--cache", cachePath, "channels"); err != nil {
		t.Fatalf("online channels: %v", err)
	}
	srv.Close()

	out, _, err := run(t, srv.URL, "--cache", cachePath, "channels")
	if err != nil {
		t.Fatalf("offline channels: %v", err)
	}
	if !strings.Contains(out, "dm-sam") {
		t.Fatalf("expected cached channel, got %q", out)
	}
}

func TestHistoryLoadsPages(t *testing.T) {
	s, srv := newChatServer(t)
	seedChannel(s, "A", 60)

	out, _, err := run(t, srv.URL, "--json", "history", "A")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	var msgs []types.Message
	if err := json.Unmarshal([]byte(out), &msgs); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(msgs) != 50 || msgs[0].ID != 11 {
		t.Fatalf("expected newest page of 50, got %d starting at %d", len(msgs), msgs[0].ID)
	}

	out, _, err = run(t, srv.URL, "--json", "history", "A", "--pages", "3")
	if err != nil {
		t.Fatalf("history --pages: %v", err)
	}
	msgs = nil
	if err := json.Unmarshal([]byte(out), &msgs); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(msgs) != 60 || msgs[0].ID != 1 || msgs[59].ID != 60 {
		t.Fatalf("expected full history in order, got %d messages", len(msgs))
	}
	// Page 2 is short, so page 3 is never requested.
	if got := s.count("list_messages"); got != 3 {
		t.Fatalf("expected 3 history requests in total, got %d", got)
	}
}

func TestHistorySince(t *testing.T) {
	s, srv := newChatServer(t)
	seedChannel(s, "A", 120)

	// Messages are stamped id seconds after the epoch.
	out, _, err := run(t, srv.URL, "--json", "history", "A", "--since", "1970-01-01T00:00:30Z")
	if err != nil {
		t.Fatalf("history --since: %v", err)
	}
	var msgs []types.Message
	if err := json.Unmarshal([]byte(out), &msgs); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(msgs) != 91 || msgs[0].ID != 30 {
		t.Fatalf("expected messages 30..120, got %d starting at %d", len(msgs), msgs[0].ID)
	}
	// Pages of 50: 71..120, 21..70; the second page covers the bound.
	if got := s.count("list_messages"); got != 2 {
		t.Fatalf("expected 2 history requests, got %d", got)
	}

	if _, _, err := run(t, srv.URL, "history", "A", "--since", "someday"); !errors.Is(err, core.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestSendText(t *testing.T) {
	s, srv := newChatServer(t)

	out, _, err := run(t, srv.URL, "send", "A", "hello", "world")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if !strings.Contains(out, "Sent") || !strings.Contains(out, "hello world") {
		t.Fatalf("unexpected output: %q", out)
	}
	stored, ok := s.stored("A", 101)
	if !ok || stored.Text != "hello world" || stored.CorrelationID == "" {
		t.Fatalf("unexpected stored message: %+v", stored)
	}
}

func TestSendBlankTextIsRejected(t *testing.T) {
	s, srv := newChatServer(t)

	_, errOut, err := run(t, srv.URL, "send", "A", "   ")
	if !errors.Is(err, core.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if !strings.Contains(errOut, "text is empty") {
		t.Fatalf("unexpected stderr: %q", errOut)
	}
	if s.count("post_message") != 0 {
		t.Fatal("blank text must not reach the server")
	}
}

func TestSendFile(t *testing.T) {
	s, srv := newChatServer(t)
	path := filepath.Join(t.TempDir(), "notes.txt")
	if err := os.WriteFile(path, []byte("remember the milk"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	out, _, err := run(t, srv.URL, "--json", "send", "A", "--file", path)
	if err != nil {
		t.Fatalf("send --file: %v", err)
	}
	var sent []types.Message
	if err := json.Unmarshal([]byte(out), &sent); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(sent) != 1 || sent[0].File == nil || sent[0].File.Name != "notes.txt" || sent[0].File.Size != 17 {
		t.Fatalf("unexpected sent files: %+v", sent)
	}
	if !strings.HasPrefix(sent[0].File.MimeType, "text/plain") {
		t.Fatalf("expected detected mime type, got %q", sent[0].File.MimeType)
	}
	if s.count("post_file") != 1 {
		t.Fatalf("expected one upload, got %d", s.count("post_file"))
	}
}

func TestEditMessage(t *testing.T) {
	s, srv := newChatServer(t)
	seedChannel(s, "A", 3)

	out, _, err := run(t, srv.URL, "edit", "A", "#2", "fixed", "typo")
	if err != nil {
		t.Fatalf("edit: %v", err)
	}
	if !strings.Contains(out, "Edited") || !strings.Contains(out, "fixed typo") {
		t.Fatalf("unexpected output: %q", out)
	}
	stored, _ := s.stored("A", 2)
	if stored.Text != "fixed typo" {
		t.Fatalf("expected server copy to change, got %q", stored.Text)
	}
}

func TestEditOutsideHistoryIsNotFound(t *testing.T) {
	s, srv := newChatServer(t)
	seedChannel(s, "A", 3)

	_, errOut, err := run(t, srv.URL, "edit", "A", "999", "nope")
	if !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if !strings.Contains(errOut, "Hint:") {
		t.Fatalf("expected a hint, got %q", errOut)
	}
	if s.count("edit_message") != 0 {
		t.Fatal("no edit request expected")
	}
}

func TestRmMessage(t *testing.T) {
	s, srv := newChatServer(t)
	seedChannel(s, "A", 3)

	out, _, err := run(t, srv.URL, "rm", "A", "3")
	if err != nil {
		t.Fatalf("rm: %v", err)
	}
	if !strings.Contains(out, "Deleted #3") {
		t.Fatalf("unexpected output: %q", out)
	}
	if _, ok := s.stored("A", 3); ok {
		t.Fatal("expected message to be deleted on the server")
	}
}

func TestReactToggles(t *testing.T) {
	s, srv := newChatServer(t)
	seedChannel(s, "A", 1)

	out, _, err := run(t, srv.URL, "react", "A", "1", ":+1:")
	if err != nil {
		t.Fatalf("react: %v", err)
	}
	if !strings.Contains(out, "+1×1") {
		t.Fatalf("expected reaction to be added, got %q", out)
	}

	out, _, err = run(t, srv.URL, "react", "A", "1", "+1")
	if err != nil {
		t.Fatalf("react again: %v", err)
	}
	if !strings.Contains(out, "no reactions") {
		t.Fatalf("expected reaction to be removed, got %q", out)
	}
	if s.count("add_reaction") != 1 || s.count("remove_reaction") != 1 {
		t.Fatalf("unexpected reaction calls: add=%d remove=%d", s.count("add_reaction"), s.count("remove_reaction"))
	}
}

func TestReactRejectsConflictingFlags(t *testing.T) {
	_, srv := newChatServer(t)
	if _, _, err := run(t, srv.URL, "react", "A", "1", "+1", "--add", "--remove"); err == nil {
		t.Fatal("expected error for --add with --remove")
	}
}

func TestThreadReply(t *testing.T) {
	s, srv := newChatServer(t)
	seedChannel(s, "A", 1)
	s.addMessage(types.Message{ID: 2, ChannelID: "A", SenderID: "peer", Text: "first reply", ParentID: 1})

	out, _, err := run(t, srv.URL, "--json", "thread", "A", "1", "--reply", "second reply")
	if err != nil {
		t.Fatalf("thread: %v", err)
	}
	var view struct {
		Parent  types.Message   `json:"parent"`
		Replies []types.Message `json:"replies"`
	}
	if err := json.Unmarshal([]byte(out), &view); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(view.Replies) != 2 || view.Replies[1].Text != "second reply" {
		t.Fatalf("unexpected replies: %+v", view.Replies)
	}
	if view.Parent.Thread == nil || view.Parent.Thread.ReplyCount != 1 {
		t.Fatalf("expected parent reply count from server, got %+v", view.Parent.Thread)
	}
}

func TestSearch(t *testing.T) {
	s, srv := newChatServer(t)
	s.addMessage(types.Message{ID: 1, ChannelID: "A", SenderID: "peer", Text: "lunch at noon?"})
	s.addMessage(types.Message{ID: 2, ChannelID: "A", SenderID: "peer", Text: "unrelated"})
	s.addMessage(types.Message{ID: 3, ChannelID: "A", SenderID: "me", Text: "lunch works"})

	out, _, err := run(t, srv.URL, "--json", "search", "A", "lunch")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	var results []types.Message
	if err := json.Unmarshal([]byte(out), &results); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(results) != 2 || results[0].ID != 3 || results[1].ID != 1 {
		t.Fatalf("expected newest matches first, got %+v", results)
	}
}

func TestCreateChannel(t *testing.T) {
	s, srv := newChatServer(t)

	out, _, err := run(t, srv.URL, "create", "@sam")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !strings.Contains(out, "Created ch-1 with me, sam") {
		t.Fatalf("unexpected output: %q", out)
	}
	if len(s.channels) != 1 {
		t.Fatalf("expected one channel on the server, got %d", len(s.channels))
	}
}

func TestConfigShowsFileValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pairchat.yaml")
	if err := os.WriteFile(path, []byte("messagePageSize: 10\nmaxFileSize: 2MiB\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv(envConfig, "")

	cmd := NewRootCmd("test")
	out, err := executeCommand(cmd, "--config", path, "config")
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	if !strings.Contains(out, "messagePageSize:   10") || !strings.Contains(out, "maxFileSize:       2.0 MiB") {
		t.Fatalf("unexpected config output: %q", out)
	}
}
