package model

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Channel is the medium the lead arrived on.
type Channel string

const (
	ChannelFacebook Channel = "FACEBOOK"
	ChannelEmail    Channel = "EMAIL"
	ChannelSMS      Channel = "SMS"
)

func (c Channel) Valid() bool {
	switch c {
	case ChannelFacebook, ChannelEmail, ChannelSMS:
		return true
	}
	return false
}

// GradingStatus tracks the reply-grading lifecycle of a message. The status
// column makes "grading failed" distinguishable from "never attempted".
type GradingStatus string

const (
	GradingStatusNone    GradingStatus = "none"
	GradingStatusPending GradingStatus = "pending"
	GradingStatusRunning GradingStatus = "grading"
	GradingStatusGraded  GradingStatus = "graded"
	GradingStatusFailed  GradingStatus = "failed"
)

// Message is a synthetic lead plus, once logged, the human-authored reply.
// ResponseMessage and ResponseAt are set together or not at all. ScorecardID
// links to at most one Scorecard and is never reassigned once set.
type Message struct {
	ID              uuid.UUID     `json:"id"`
	Channel         Channel       `json:"channel"`
	LeadMessage     string        `json:"lead_message"`
	LeadAt          time.Time     `json:"lead_at"`
	ResponseMessage *string       `json:"response_message,omitempty"`
	ResponseAt      *time.Time    `json:"response_at,omitempty"`
	ScorecardID     *int64        `json:"scorecard_id,omitempty"`
	GradingStatus   GradingStatus `json:"grading_status"`
}

// Replied reports whether a response has been logged.
func (m *Message) Replied() bool {
	return m.ResponseMessage != nil
}

// CreateLeadRequest is the input for creating a lead. LeadMessage is
// optional; when empty the lead is synthesized by the shopper agent.
type CreateLeadRequest struct {
	LeadMessage string
}

// ReplyRequest is the input for logging a reply to a lead.
type ReplyRequest struct {
	MessageID       uuid.UUID
	ResponseMessage string
}

var ErrEmptyResponse = errors.New("response_message is required")

func (r ReplyRequest) Validate() error {
	if r.MessageID == uuid.Nil {
		return errors.New("message id is required")
	}
	if strings.TrimSpace(r.ResponseMessage) == "" {
		return ErrEmptyResponse
	}
	return nil
}

// MessageFilter controls List queries.
type MessageFilter struct {
	Unreplied bool // only messages without a logged response
	Limit     int  // default 50
	Offset    int
	Desc      bool // order by lead_at
}
