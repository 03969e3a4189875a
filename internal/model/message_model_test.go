package model

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestChannel_Valid(t *testing.T) {
	assert.True(t, ChannelEmail.Valid())
	assert.True(t, ChannelFacebook.Valid())
	assert.True(t, ChannelSMS.Valid())
	assert.False(t, Channel("CARRIER_PIGEON").Valid())
	assert.False(t, Channel("").Valid())
}

func TestMessage_Replied(t *testing.T) {
	m := &Message{ID: uuid.New(), LeadMessage: "hi"}
	assert.False(t, m.Replied())

	reply := "hello back"
	now := time.Now()
	m.ResponseMessage = &reply
	m.ResponseAt = &now
	assert.True(t, m.Replied())
}

func TestReplyRequest_Validate(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		r := ReplyRequest{MessageID: uuid.New(), ResponseMessage: "thanks for reaching out"}
		assert.NoError(t, r.Validate())
	})

	t.Run("missing id", func(t *testing.T) {
		r := ReplyRequest{ResponseMessage: "hello"}
		assert.Error(t, r.Validate())
	})

	t.Run("blank response", func(t *testing.T) {
		r := ReplyRequest{MessageID: uuid.New(), ResponseMessage: "  \n "}
		assert.ErrorIs(t, r.Validate(), ErrEmptyResponse)
	})
}
