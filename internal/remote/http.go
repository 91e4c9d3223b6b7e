package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/adamavenir/pairchat/internal/core"
	"github.com/adamavenir/pairchat/internal/types"
)

const (
	defaultRequestTimeout = 20 * time.Second
	defaultRequestsPerSec = 10
	defaultRequestBurst   = 20
	eventBufferSize       = 256
)

// APIError represents a non-2xx response from the chat API.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" && e.Message != "" {
		return fmt.Sprintf("chat api error: %s (%d): %s", e.Code, e.Status, e.Message)
	}
	if e.Code != "" {
		return fmt.Sprintf("chat api error: %s (%d)", e.Code, e.Status)
	}
	if e.Message != "" {
		return fmt.Sprintf("chat api error (%d): %s", e.Status, e.Message)
	}
	return fmt.Sprintf("chat api error (%d)", e.Status)
}

type apiErrorPayload struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Options tunes an HTTPClient.
type Options struct {
	Timeout        time.Duration
	RequestsPerSec float64
	Burst          int
	Logger         *slog.Logger
}

// HTTPClient talks to the hosted chat API over REST and receives push events over a websocket.
type HTTPClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
	now        func() time.Time

	events    chan types.Event
	streaming atomic.Bool
	connected atomic.Bool
	stopOnce  sync.Once
	stop      context.CancelFunc
	done      chan struct{}
}

var _ Client = (*HTTPClient)(nil)

// NewHTTPClient constructs a client for the API rooted at baseURL.
func NewHTTPClient(baseURL, token string, opts Options) (*HTTPClient, error) {
	normalized, err := NormalizeBaseURL(baseURL)
	if err != nil {
		return nil, err
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultRequestTimeout
	}
	if opts.RequestsPerSec <= 0 {
		opts.RequestsPerSec = defaultRequestsPerSec
	}
	if opts.Burst <= 0 {
		opts.Burst = defaultRequestBurst
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &HTTPClient{
		baseURL: normalized,
		token:   token,
		httpClient: &http.Client{
			Timeout: opts.Timeout,
		},
		limiter: rate.NewLimiter(rate.Limit(opts.RequestsPerSec), opts.Burst),
		logger:  opts.Logger.With("component", "remote"),
		now:     time.Now,
		events:  make(chan types.Event, eventBufferSize),
		done:    make(chan struct{}),
	}, nil
}

// NormalizeBaseURL normalizes an API base URL and ensures it has a scheme.
func NormalizeBaseURL(raw string) (string, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return "", fmt.Errorf("server url cannot be empty")
	}
	parsed, err := url.Parse(value)
	if err != nil {
		return "", fmt.Errorf("invalid server url: %w", err)
	}
	if parsed.Scheme == "" {
		return "", fmt.Errorf("server url must include scheme (https://)")
	}
	return strings.TrimRight(value, "/"), nil
}

// Ready reports whether the token is usable and, once streaming, whether the socket is up.
func (c *HTTPClient) Ready() bool {
	if tokenExpired(c.token, c.now()) {
		return false
	}
	if c.streaming.Load() {
		return c.connected.Load()
	}
	return true
}

// Events delivers push events received over the websocket.
func (c *HTTPClient) Events() <-chan types.Event {
	return c.events
}

// ListChannels fetches one page of the user's channels.
func (c *HTTPClient) ListChannels(ctx context.Context, pageSize int, cursor string) (types.ChannelPage, error) {
	query := url.Values{}
	query.Set("page_size", strconv.Itoa(pageSize))
	if cursor != "" {
		query.Set("cursor", cursor)
	}
	var resp types.ChannelPage
	if err := c.doJSON(ctx, http.MethodGet, "/v1/channels", query, nil, &resp); err != nil {
		return types.ChannelPage{}, err
	}
	return resp, nil
}

// CreateChannel creates a channel with the given members.
func (c *HTTPClient) CreateChannel(ctx context.Context, memberIDs []string) (types.Channel, error) {
	var resp types.Channel
	req := createChannelRequest{MemberIDs: memberIDs}
	if err := c.doJSON(ctx, http.MethodPost, "/v1/channels", nil, req, &resp); err != nil {
		return types.Channel{}, err
	}
	return resp, nil
}

// FetchMessages fetches a page of history around a timestamp boundary.
func (c *HTTPClient) FetchMessages(ctx context.Context, q types.MessageQuery) ([]types.Message, error) {
	query := url.Values{}
	query.Set("limit", strconv.Itoa(q.PageSize))
	if q.Before > 0 {
		query.Set("before", strconv.FormatInt(q.Before, 10))
	}
	if q.After > 0 {
		query.Set("after", strconv.FormatInt(q.After, 10))
	}
	if q.IncludeReactions {
		query.Set("reactions", "1")
	}
	if q.IncludeThread {
		query.Set("thread", "1")
	}
	var resp messageListResponse
	if err := c.doJSON(ctx, http.MethodGet, channelPath(q.ChannelID, "messages"), query, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Messages, nil
}

// GetMessage fetches one message with its reactions and thread summary.
func (c *HTTPClient) GetMessage(ctx context.Context, channelID string, messageID int64) (types.Message, error) {
	var resp types.Message
	if err := c.doJSON(ctx, http.MethodGet, messagePath(channelID, messageID, ""), nil, nil, &resp); err != nil {
		return types.Message{}, err
	}
	return resp, nil
}

// SendText posts a text message.
func (c *HTTPClient) SendText(ctx context.Context, channelID, text, correlationID string) (types.Message, error) {
	var resp types.Message
	req := sendTextRequest{Text: text, CorrelationID: correlationID}
	if err := c.doJSON(ctx, http.MethodPost, channelPath(channelID, "messages"), nil, req, &resp); err != nil {
		return types.Message{}, err
	}
	return resp, nil
}

// SendFile uploads a file message.
func (c *HTTPClient) SendFile(ctx context.Context, channelID string, file types.FileUpload, correlationID string) (types.Message, error) {
	return c.uploadFile(ctx, channelID, 0, file, correlationID)
}

// EditText replaces the text of a message.
func (c *HTTPClient) EditText(ctx context.Context, msg types.Message, text string) (types.Message, error) {
	var resp types.Message
	req := editTextRequest{Text: text}
	if err := c.doJSON(ctx, http.MethodPatch, messagePath(msg.ChannelID, msg.ID, ""), nil, req, &resp); err != nil {
		return types.Message{}, err
	}
	return resp, nil
}

// DeleteMessage deletes a message.
func (c *HTTPClient) DeleteMessage(ctx context.Context, msg types.Message) error {
	return c.doJSON(ctx, http.MethodDelete, messagePath(msg.ChannelID, msg.ID, ""), nil, nil, nil)
}

// AddReaction adds the caller's reaction and returns the updated message.
func (c *HTTPClient) AddReaction(ctx context.Context, msg types.Message, key string) (types.Message, error) {
	var resp types.Message
	path := messagePath(msg.ChannelID, msg.ID, "reactions/"+url.PathEscape(key))
	if err := c.doJSON(ctx, http.MethodPut, path, nil, nil, &resp); err != nil {
		return types.Message{}, err
	}
	return resp, nil
}

// RemoveReaction removes the caller's reaction and returns the updated message.
func (c *HTTPClient) RemoveReaction(ctx context.Context, msg types.Message, key string) (types.Message, error) {
	var resp types.Message
	path := messagePath(msg.ChannelID, msg.ID, "reactions/"+url.PathEscape(key))
	if err := c.doJSON(ctx, http.MethodDelete, path, nil, nil, &resp); err != nil {
		return types.Message{}, err
	}
	return resp, nil
}

// SearchMessages runs a channel-scoped search, most recent first.
func (c *HTTPClient) SearchMessages(ctx context.Context, channelID, q string, pageSize int) ([]types.Message, error) {
	query := url.Values{}
	query.Set("q", q)
	query.Set("limit", strconv.Itoa(pageSize))
	var resp messageListResponse
	if err := c.doJSON(ctx, http.MethodGet, channelPath(channelID, "search"), query, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Messages, nil
}

// FetchThreadReplies fetches replies to a parent message.
func (c *HTTPClient) FetchThreadReplies(ctx context.Context, channelID string, parentID int64, pageSize int) ([]types.Message, error) {
	query := url.Values{}
	query.Set("limit", strconv.Itoa(pageSize))
	var resp messageListResponse
	if err := c.doJSON(ctx, http.MethodGet, messagePath(channelID, parentID, "replies"), query, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Messages, nil
}

// SendThreadReply posts a reply in a thread.
func (c *HTTPClient) SendThreadReply(ctx context.Context, channelID string, parentID int64, reply types.ReplyContent, correlationID string) (types.Message, error) {
	if reply.File != nil {
		return c.uploadFile(ctx, channelID, parentID, *reply.File, correlationID)
	}
	var resp types.Message
	req := sendTextRequest{Text: reply.Text, CorrelationID: correlationID, ParentID: parentID}
	if err := c.doJSON(ctx, http.MethodPost, channelPath(channelID, "messages"), nil, req, &resp); err != nil {
		return types.Message{}, err
	}
	return resp, nil
}

// SendTyping publishes the caller's typing state.
func (c *HTTPClient) SendTyping(ctx context.Context, channelID string, typing bool) error {
	return c.doJSON(ctx, http.MethodPost, channelPath(channelID, "typing"), nil, typingRequest{Typing: typing}, nil)
}

// FetchUser fetches a user profile.
func (c *HTTPClient) FetchUser(ctx context.Context, userID string) (types.Profile, error) {
	var resp types.Profile
	if err := c.doJSON(ctx, http.MethodGet, "/v1/users/"+url.PathEscape(userID), nil, nil, &resp); err != nil {
		return types.Profile{}, err
	}
	return resp, nil
}

func (c *HTTPClient) uploadFile(ctx context.Context, channelID string, parentID int64, file types.FileUpload, correlationID string) (types.Message, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	_ = writer.WriteField("correlation_id", correlationID)
	if parentID != 0 {
		_ = writer.WriteField("parent_id", strconv.FormatInt(parentID, 10))
	}
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, file.Name))
	header.Set("Content-Type", file.MimeType)
	part, err := writer.CreatePart(header)
	if err != nil {
		return types.Message{}, err
	}
	if _, err := part.Write(file.Data); err != nil {
		return types.Message{}, err
	}
	if err := writer.Close(); err != nil {
		return types.Message{}, err
	}

	endpoint, err := c.buildURL(channelPath(channelID, "files"), nil)
	if err != nil {
		return types.Message{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &buf)
	if err != nil {
		return types.Message{}, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	var resp types.Message
	if err := c.do(req, &resp); err != nil {
		return types.Message{}, err
	}
	return resp, nil
}

func (c *HTTPClient) doJSON(ctx context.Context, method, path string, query url.Values, reqBody any, respBody any) error {
	endpoint, err := c.buildURL(path, query)
	if err != nil {
		return err
	}

	var body io.Reader
	if reqBody != nil {
		data, err := json.Marshal(reqBody)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return err
	}
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.do(req, respBody)
}

func (c *HTTPClient) do(req *http.Request, respBody any) error {
	if tokenExpired(c.token, c.now()) {
		return fmt.Errorf("bearer token expired: %w", core.ErrNotConnected)
	}
	if err := c.limiter.Wait(req.Context()); err != nil {
		return err
	}

	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := c.now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respData, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	c.logger.Debug("api call", "method", req.Method, "path", req.URL.Path,
		"status", resp.StatusCode, "elapsed", c.now().Sub(start))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode}
		var payload apiErrorPayload
		if err := json.Unmarshal(respData, &payload); err == nil {
			apiErr.Code = payload.Error
			apiErr.Message = payload.Message
		} else {
			apiErr.Message = strings.TrimSpace(string(respData))
		}
		return apiErr
	}

	if respBody == nil || len(respData) == 0 {
		return nil
	}
	return json.Unmarshal(respData, respBody)
}

func (c *HTTPClient) buildURL(path string, query url.Values) (string, error) {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	base, err := url.Parse(c.baseURL)
	if err != nil {
		return "", err
	}
	ref, err := url.Parse(path)
	if err != nil {
		return "", err
	}
	endpoint := base.ResolveReference(ref)
	if len(query) > 0 {
		endpoint.RawQuery = query.Encode()
	}
	return endpoint.String(), nil
}

// IsNotFound reports whether err is a 404 from the chat API.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

func channelPath(channelID, suffix string) string {
	path := "/v1/channels/" + url.PathEscape(channelID)
	if suffix != "" {
		path += "/" + suffix
	}
	return path
}

func messagePath(channelID string, messageID int64, suffix string) string {
	return channelPath(channelID, "messages/"+strconv.FormatInt(messageID, 10)) + suffixPath(suffix)
}

func suffixPath(suffix string) string {
	if suffix == "" {
		return ""
	}
	return "/" + suffix
}
