package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/leaseline/lead-gateway/internal/model"
	"github.com/leaseline/lead-gateway/pkg/pg"
	"gorm.io/gorm"
)

var (
	// ErrNotFound is returned when a message does not exist.
	ErrNotFound = errors.New("message not found")
	// ErrAlreadyReplied is returned when a response was already logged.
	ErrAlreadyReplied = errors.New("message already has a logged response")
	// ErrAlreadyGraded is returned when a scorecard reference is already set.
	ErrAlreadyGraded = errors.New("message already references a scorecard")
)

type MessageRepository struct {
	*pg.DB
}

func NewMessageRepository(db *pg.DB) *MessageRepository {
	return &MessageRepository{
		db,
	}
}

func (r *MessageRepository) Create(ctx context.Context, msg *model.Message) (*model.Message, error) {
	entity := toMessageEntity(msg)
	if entity.GradingStatus == "" {
		entity.GradingStatus = string(model.GradingStatusNone)
	}

	if err := r.Write(ctx).WithContext(ctx).Create(entity).Error; err != nil {
		return nil, err
	}

	return toMessageModel(entity), nil
}

func (r *MessageRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Message, error) {
	var entity MessageEntity
	err := r.Read(ctx).WithContext(ctx).First(&entity, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return toMessageModel(&entity), nil
}

func (r *MessageRepository) List(ctx context.Context, f model.MessageFilter) ([]*model.Message, int64, error) {
	q := r.Read(ctx).WithContext(ctx).Model(&MessageEntity{})

	if f.Unreplied {
		q = q.Where("response_message IS NULL")
	}

	// Count before pagination
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	order := "lead_at"
	if f.Desc {
		order += " DESC"
	} else {
		order += " ASC"
	}

	limit := f.Limit
	if limit <= 0 || limit > 1000 {
		limit = 50
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}

	var entities []*MessageEntity
	if err := q.Order(order).Limit(limit).Offset(offset).Find(&entities).Error; err != nil {
		return nil, 0, err
	}

	return toMessageModels(entities), total, nil
}

// LogResponse sets the response text and timestamp together, once. The
// guard lives in the WHERE clause so two concurrent replies cannot both win.
func (r *MessageRepository) LogResponse(ctx context.Context, id uuid.UUID, response string, at time.Time) error {
	res := r.Write(ctx).WithContext(ctx).Model(&MessageEntity{}).
		Where("id = ? AND response_message IS NULL", id).
		Updates(map[string]interface{}{
			"response_message": response,
			"response_at":      at,
			"grading_status":   string(model.GradingStatusPending),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
		return ErrAlreadyReplied
	}
	return nil
}

// AttachScorecard sets the one-to-one scorecard reference. A reference that
// is already set is never overwritten.
func (r *MessageRepository) AttachScorecard(ctx context.Context, id uuid.UUID, scorecardID int64) error {
	res := r.Write(ctx).WithContext(ctx).Model(&MessageEntity{}).
		Where("id = ? AND scorecard_id IS NULL", id).
		Updates(map[string]interface{}{
			"scorecard_id":   scorecardID,
			"grading_status": string(model.GradingStatusGraded),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
		return ErrAlreadyGraded
	}
	return nil
}

func (r *MessageRepository) SetGradingStatus(ctx context.Context, id uuid.UUID, status model.GradingStatus) error {
	res := r.Write(ctx).WithContext(ctx).Model(&MessageEntity{}).
		Where("id = ?", id).
		Update("grading_status", string(status))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
