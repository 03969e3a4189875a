package repository

import (
	"time"

	"github.com/google/uuid"
	"github.com/leaseline/lead-gateway/internal/model"
	"gorm.io/gorm"
)

type MessageEntity struct {
	ID              uuid.UUID        `db:"id"               gorm:"primaryKey;column:id;type:uuid"`
	Channel         string           `db:"channel"          gorm:"column:channel;not null;default:EMAIL"`
	LeadMessage     string           `db:"lead_message"     gorm:"column:lead_message;not null"`
	LeadAt          time.Time        `db:"lead_at"          gorm:"column:lead_at;autoCreateTime;index"`
	ResponseMessage *string          `db:"response_message" gorm:"column:response_message"`
	ResponseAt      *time.Time       `db:"response_at"      gorm:"column:response_at"`
	ScorecardID     *int64           `db:"scorecard_id"     gorm:"column:scorecard_id;uniqueIndex"`
	Scorecard       *ScorecardEntity `gorm:"foreignKey:ScorecardID;references:ID"`
	GradingStatus   string           `db:"grading_status"   gorm:"column:grading_status;not null;default:none"`
}

func (MessageEntity) TableName() string {
	return "messages"
}

// BeforeCreate assigns the identifier client-side so it works the same on
// postgres and the sqlite test databases.
func (e *MessageEntity) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

func toMessageEntity(m *model.Message) *MessageEntity {
	if m == nil {
		return nil
	}
	return &MessageEntity{
		ID:              m.ID,
		Channel:         string(m.Channel),
		LeadMessage:     m.LeadMessage,
		LeadAt:          m.LeadAt,
		ResponseMessage: m.ResponseMessage,
		ResponseAt:      m.ResponseAt,
		ScorecardID:     m.ScorecardID,
		GradingStatus:   string(m.GradingStatus),
	}
}

func toMessageModel(e *MessageEntity) *model.Message {
	if e == nil {
		return nil
	}
	return &model.Message{
		ID:              e.ID,
		Channel:         model.Channel(e.Channel),
		LeadMessage:     e.LeadMessage,
		LeadAt:          e.LeadAt,
		ResponseMessage: e.ResponseMessage,
		ResponseAt:      e.ResponseAt,
		ScorecardID:     e.ScorecardID,
		GradingStatus:   model.GradingStatus(e.GradingStatus),
	}
}

func toMessageModels(entities []*MessageEntity) []*model.Message {
	if entities == nil {
		return nil
	}
	models := make([]*model.Message, len(entities))
	for i, e := range entities {
		models[i] = toMessageModel(e)
	}
	return models
}
