package services

import (
	"context"

	"github.com/leaseline/lead-gateway/pkg/pg"
	"github.com/leaseline/lead-gateway/pkg/redis"
)

// HealthService reports whether the service's dependencies answer.
type HealthService struct {
	db    *pg.DB
	redis redis.RedisAdapter
}

func NewHealthService(db *pg.DB, redisAdapter redis.RedisAdapter) *HealthService {
	return &HealthService{db: db, redis: redisAdapter}
}

func (s *HealthService) Get() error {
	if s.db != nil {
		sqlDB, err := s.db.Read(context.Background()).DB()
		if err != nil {
			return err
		}
		if err := sqlDB.Ping(); err != nil {
			return err
		}
	}
	if s.redis != nil {
		if err := s.redis.Client().Ping(context.Background()).Err(); err != nil {
			return err
		}
	}
	return nil
}
