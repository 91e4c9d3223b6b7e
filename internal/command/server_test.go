package command

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"slices"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/adamavenir/pairchat/internal/types"
)

// chatServer is an in-memory chat API good enough for driving commands.
type chatServer struct {
	mu       sync.Mutex
	nextID   int64
	channels []types.Channel
	messages map[string][]types.Message
	users    map[string]types.Profile
	hits     map[string]int
}

func newChatServer(t *testing.T) (*chatServer, *httptest.Server) {
	t.Helper()
	s := &chatServer{
		nextID:   100,
		messages: make(map[string][]types.Message),
		users:    make(map[string]types.Profile),
		hits:     make(map[string]int),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/channels", s.listChannels)
	mux.HandleFunc("POST /v1/channels", s.createChannel)
	mux.HandleFunc("GET /v1/channels/{ch}/messages", s.listMessages)
	mux.HandleFunc("POST /v1/channels/{ch}/messages", s.postMessage)
	mux.HandleFunc("POST /v1/channels/{ch}/files", s.postFile)
	mux.HandleFunc("GET /v1/channels/{ch}/messages/{id}", s.getMessage)
	mux.HandleFunc("PATCH /v1/channels/{ch}/messages/{id}", s.editMessage)
	mux.HandleFunc("DELETE /v1/channels/{ch}/messages/{id}", s.deleteMessage)
	mux.HandleFunc("PUT /v1/channels/{ch}/messages/{id}/reactions/{key}", s.react(true))
	mux.HandleFunc("DELETE /v1/channels/{ch}/messages/{id}/reactions/{key}", s.react(false))
	mux.HandleFunc("GET /v1/channels/{ch}/messages/{id}/replies", s.listReplies)
	mux.HandleFunc("GET /v1/channels/{ch}/search", s.search)
	mux.HandleFunc("GET /v1/users/{id}", s.getUser)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return s, srv
}

func (s *chatServer) hit(name string) {
	s.hits[name]++
}

func (s *chatServer) count(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[name]
}

func (s *chatServer) addMessage(msg types.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if msg.Kind == "" {
		msg.Kind = types.MessageKindText
	}
	if msg.TS == 0 {
		msg.TS = msg.ID * 1000
	}
	s.messages[msg.ChannelID] = append(s.messages[msg.ChannelID], msg)
}

func (s *chatServer) stored(channelID string, id int64) (types.Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.indexLocked(channelID, id)
	if idx < 0 {
		return types.Message{}, false
	}
	return s.messages[channelID][idx].Clone(), true
}

func (s *chatServer) indexLocked(channelID string, id int64) int {
	return slices.IndexFunc(s.messages[channelID], func(m types.Message) bool { return m.ID == id })
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func notFound(w http.ResponseWriter) {
	writeJSON(w, http.StatusNotFound, map[string]string{"error": "not_found", "message": "no such message"})
}

func pathID(r *http.Request) int64 {
	id, _ := strconv.ParseInt(r.PathValue("id"), 10, 64)
	return id
}

func (s *chatServer) listChannels(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hit("list_channels")
	writeJSON(w, http.StatusOK, types.ChannelPage{Channels: s.channels})
}

func (s *chatServer) createChannel(w http.ResponseWriter, r *http.Request) {
	var req struct {
		MemberIDs []string `json:"member_ids"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hit("create_channel")
	ch := types.Channel{ID: "ch-" + strconv.Itoa(len(s.channels)+1), Members: req.MemberIDs, UpdatedAt: 1}
	s.channels = append(s.channels, ch)
	writeJSON(w, http.StatusCreated, ch)
}

func (s *chatServer) listMessages(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hit("list_messages")
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	before, _ := strconv.ParseInt(r.URL.Query().Get("before"), 10, 64)
	var out []types.Message
	for _, msg := range s.messages[r.PathValue("ch")] {
		if msg.IsReply() || (before > 0 && msg.TS >= before) {
			continue
		}
		out = append(out, msg)
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": out})
}

func (s *chatServer) createLocked(channelID string, msg types.Message) types.Message {
	s.nextID++
	msg.ID = s.nextID
	msg.ChannelID = channelID
	msg.TS = s.nextID * 1000
	msg.SenderID = "me"
	s.messages[channelID] = append(s.messages[channelID], msg)
	if msg.ParentID != 0 {
		if idx := s.indexLocked(channelID, msg.ParentID); idx >= 0 {
			parent := &s.messages[channelID][idx]
			if parent.Thread == nil {
				parent.Thread = &types.ThreadSummary{}
			}
			parent.Thread.ReplyCount++
			parent.Thread.LastReplyTS = msg.TS
		}
	}
	return msg
}

func (s *chatServer) postMessage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text          string `json:"text"`
		CorrelationID string `json:"correlation_id"`
		ParentID      int64  `json:"parent_id"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hit("post_message")
	msg := s.createLocked(r.PathValue("ch"), types.Message{
		Kind:          types.MessageKindText,
		Text:          req.Text,
		CorrelationID: req.CorrelationID,
		ParentID:      req.ParentID,
	})
	writeJSON(w, http.StatusCreated, msg)
}

func (s *chatServer) postFile(w http.ResponseWriter, r *http.Request) {
	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad_request", "message": err.Error()})
		return
	}
	data, _ := io.ReadAll(file)
	parentID, _ := strconv.ParseInt(r.FormValue("parent_id"), 10, 64)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hit("post_file")
	msg := s.createLocked(r.PathValue("ch"), types.Message{
		Kind:          types.MessageKindFile,
		CorrelationID: r.FormValue("correlation_id"),
		ParentID:      parentID,
		File: &types.FilePayload{
			Name:     header.Filename,
			MimeType: header.Header.Get("Content-Type"),
			Size:     int64(len(data)),
			URL:      "https://files.example/" + header.Filename,
		},
	})
	writeJSON(w, http.StatusCreated, msg)
}

func (s *chatServer) getMessage(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hit("get_message")
	idx := s.indexLocked(r.PathValue("ch"), pathID(r))
	if idx < 0 {
		notFound(w)
		return
	}
	writeJSON(w, http.StatusOK, s.messages[r.PathValue("ch")][idx])
}

func (s *chatServer) editMessage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hit("edit_message")
	ch := r.PathValue("ch")
	idx := s.indexLocked(ch, pathID(r))
	if idx < 0 {
		notFound(w)
		return
	}
	msg := &s.messages[ch][idx]
	msg.Text = req.Text
	edited := int64(99_000)
	msg.EditedAt = &edited
	writeJSON(w, http.StatusOK, msg)
}

func (s *chatServer) deleteMessage(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hit("delete_message")
	ch := r.PathValue("ch")
	idx := s.indexLocked(ch, pathID(r))
	if idx < 0 {
		notFound(w)
		return
	}
	s.messages[ch] = slices.Delete(s.messages[ch], idx, idx+1)
	w.WriteHeader(http.StatusNoContent)
}

func (s *chatServer) react(add bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		if add {
			s.hit("add_reaction")
		} else {
			s.hit("remove_reaction")
		}
		ch := r.PathValue("ch")
		idx := s.indexLocked(ch, pathID(r))
		if idx < 0 {
			notFound(w)
			return
		}
		msg := &s.messages[ch][idx]
		key := r.PathValue("key")
		if msg.Reactions == nil {
			msg.Reactions = map[string][]string{}
		}
		users := slices.DeleteFunc(msg.Reactions[key], func(u string) bool { return u == "me" })
		if add {
			users = append(users, "me")
		}
		if len(users) == 0 {
			delete(msg.Reactions, key)
		} else {
			msg.Reactions[key] = users
		}
		writeJSON(w, http.StatusOK, msg)
	}
}

func (s *chatServer) listReplies(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hit("list_replies")
	parentID := pathID(r)
	var out []types.Message
	for _, msg := range s.messages[r.PathValue("ch")] {
		if msg.ParentID == parentID {
			out = append(out, msg)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": out})
}

func (s *chatServer) search(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hit("search")
	query := r.URL.Query().Get("q")
	list := s.messages[r.PathValue("ch")]
	var out []types.Message
	for i := len(list) - 1; i >= 0; i-- {
		if strings.Contains(list[i].Text, query) {
			out = append(out, list[i])
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": out})
}

func (s *chatServer) getUser(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hit("get_user")
	profile, ok := s.users[r.PathValue("id")]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not_found"})
		return
	}
	writeJSON(w, http.StatusOK, profile)
}
