package repository

import (
	"context"
	"errors"

	"github.com/leaseline/lead-gateway/internal/model"
	"github.com/leaseline/lead-gateway/pkg/pg"
	"gorm.io/gorm"
)

var (
	// ErrScoreOutOfRange is returned when a score falls outside [1,10].
	ErrScoreOutOfRange = errors.New("score out of range")
	// ErrEmptyRationale is returned when a rationale is blank.
	ErrEmptyRationale = errors.New("rationale must not be empty")
	// ErrScorecardNotFound is returned when a scorecard does not exist.
	ErrScorecardNotFound = errors.New("scorecard not found")
)

type ScorecardRepository struct {
	*pg.DB
}

func NewScorecardRepository(db *pg.DB) *ScorecardRepository {
	return &ScorecardRepository{
		db,
	}
}

// Create writes all twelve fields in one insert. Bounds are re-checked by
// the entity hook and the table CHECK constraints.
func (r *ScorecardRepository) Create(ctx context.Context, sc *model.Scorecard) (*model.Scorecard, error) {
	entity := toScorecardEntity(sc)

	if err := r.Write(ctx).WithContext(ctx).Create(entity).Error; err != nil {
		return nil, err
	}

	return toScorecardModel(entity), nil
}

func (r *ScorecardRepository) GetByID(ctx context.Context, id int64) (*model.Scorecard, error) {
	var entity ScorecardEntity
	err := r.Read(ctx).WithContext(ctx).First(&entity, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrScorecardNotFound
		}
		return nil, err
	}
	return toScorecardModel(&entity), nil
}
