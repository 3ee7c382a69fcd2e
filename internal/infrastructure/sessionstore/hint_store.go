// Package sessionstore persists the session hint in a local SQLite file.
package sessionstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/tidyops/backend/internal/application/session"
)

// hintSlot is the primary key of the single hint row
const hintSlot = "current"

// HintModel is the persisted session hint
type HintModel struct {
	Slot            string     `gorm:"type:varchar(32);primaryKey"`
	ActiveCompanyID *uuid.UUID `gorm:"type:uuid"`
	IsAuthenticated bool       `gorm:"not null;default:false"`
	UpdatedAt       time.Time  `gorm:"not null"`
}

// TableName returns the table name for GORM
func (HintModel) TableName() string {
	return "session_hints"
}

// GormHintStore implements session.HintStore on GORM
type GormHintStore struct {
	db  *gorm.DB
	now func() time.Time
}

// Open opens (creating if needed) the SQLite file at path
func Open(path string) (*GormHintStore, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: gormlogger.Discard})
	if err != nil {
		return nil, fmt.Errorf("failed to open session store %s: %w", path, err)
	}
	return New(db)
}

// New creates a store on db and migrates its table
func New(db *gorm.DB) (*GormHintStore, error) {
	if err := db.AutoMigrate(&HintModel{}); err != nil {
		return nil, fmt.Errorf("failed to migrate session store: %w", err)
	}
	return &GormHintStore{db: db, now: time.Now}, nil
}

// Load returns the saved hint, or nil when there is none
func (s *GormHintStore) Load(ctx context.Context) (*session.Hint, error) {
	var m HintModel
	err := s.db.WithContext(ctx).Where("slot = ?", hintSlot).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &session.Hint{ActiveCompanyID: m.ActiveCompanyID, IsAuthenticated: m.IsAuthenticated}, nil
}

// Save replaces the saved hint
func (s *GormHintStore) Save(ctx context.Context, hint session.Hint) error {
	m := HintModel{
		Slot:            hintSlot,
		ActiveCompanyID: hint.ActiveCompanyID,
		IsAuthenticated: hint.IsAuthenticated,
		UpdatedAt:       s.now(),
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&m).Error
}

// Clear removes the saved hint
func (s *GormHintStore) Clear(ctx context.Context) error {
	return s.db.WithContext(ctx).Where("slot = ?", hintSlot).Delete(&HintModel{}).Error
}

// Close closes the underlying database
func (s *GormHintStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

var _ session.HintStore = (*GormHintStore)(nil)
