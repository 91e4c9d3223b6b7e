package remote

import "github.com/adamavenir/pairchat/internal/types"

type createChannelRequest struct {
	MemberIDs []string `json:"member_ids"`
}

type sendTextRequest struct {
	Text          string `json:"text"`
	CorrelationID string `json:"correlation_id"`
	ParentID      int64  `json:"parent_id,omitempty"`
}

type editTextRequest struct {
	Text string `json:"text"`
}

type typingRequest struct {
	Typing bool `json:"typing"`
}

type messageListResponse struct {
	Messages []types.Message `json:"messages"`
}
