// Package searchlog persists completed searches for analytics.
package searchlog

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/catuchi/LawMadeSimple-sub001/internal/domain/searchlog"
)

// Record is a row of the search_logs table.
type Record struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"`
	Identity     *string   `gorm:"index"`
	QueryText    string    `gorm:"size:200;not null"`
	ResultCount  int       `gorm:"not null;default:0"`
	EntityFilter string    `gorm:"size:16;not null"`
	LawIDs       string
	SearchMode   string    `gorm:"size:32;not null"`
	CreatedAt    time.Time `gorm:"index"`
}

// TableName pins the table name.
func (Record) TableName() string { return "search_logs" }

// BeforeCreate assigns a random id when none is set.
func (r *Record) BeforeCreate(_ *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// Sink appends search log entries through gorm.
type Sink struct {
	db *gorm.DB
}

// NewSink creates a sink on an open gorm handle.
func NewSink(db *gorm.DB) *Sink {
	return &Sink{db: db}
}

// Append writes one entry.
func (s *Sink) Append(ctx context.Context, e searchlog.Entry) error {
	rec := toRecord(e)
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return fmt.Errorf("append search log: %w", err)
	}
	return nil
}

func toRecord(e searchlog.Entry) Record {
	rec := Record{
		QueryText:    e.QueryText,
		ResultCount:  e.ResultCount,
		EntityFilter: string(e.Filter),
		SearchMode:   string(e.Mode),
	}
	if !e.Identity.Anonymous() {
		id := string(e.Identity)
		rec.Identity = &id
	}
	if len(e.LawIDs) > 0 {
		rec.LawIDs = strings.Join(e.LawIDs, ",")
	}
	return rec
}
