package store

import (
	"context"
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

type GormStore struct {
	db *gorm.DB
}

// OpenPostgres connects to dsn and migrates the results table.
func OpenPostgres(dsn string) (*GormStore, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	return NewGormStore(db)
}

func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if err := db.AutoMigrate(&Result{}); err != nil {
		return nil, fmt.Errorf("migrate results: %w", err)
	}
	return &GormStore{db: db}, nil
}

func (s *GormStore) Save(ctx context.Context, r Result) error {
	r.ID = 0
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "match_id"}}, DoNothing: true}).
		Create(&r).Error
	if err != nil {
		return fmt.Errorf("save result %s: %w", r.MatchID, err)
	}
	return nil
}

func (s *GormStore) Recent(ctx context.Context, limit int) ([]Result, error) {
	var out []Result
	err := s.db.WithContext(ctx).Order("ended_at desc").Limit(limit).Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("recent results: %w", err)
	}
	return out, nil
}

func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
