package repository

import (
	"time"

	"github.com/size-analysis/pkg/model"
)

// SizeLoad represents the size_load table.
type SizeLoad struct {
	ID          string           `gorm:"column:id;type:varchar(64);primaryKey"`
	SessionID   string           `gorm:"column:session_id;type:varchar(64);index"`
	Input       string           `gorm:"column:input;type:varchar(1024)"`
	Options     string           `gorm:"column:options;type:varchar(1024)"`
	Fingerprint string           `gorm:"column:fingerprint;type:varchar(64)"`
	Status      model.LoadStatus `gorm:"column:status"`
	FileEntries int64            `gorm:"column:file_entries"`
	RootSize    float64          `gorm:"column:root_size"`
	DiffMode    bool             `gorm:"column:diff_mode"`
	Error       string           `gorm:"column:error;type:text"`
	StartedAt   time.Time        `gorm:"column:started_at;index"`
	FinishedAt  *time.Time       `gorm:"column:finished_at"`
}

// TableName returns the table name for SizeLoad.
func (SizeLoad) TableName() string {
	return "size_load"
}

// ToModel converts SizeLoad to model.LoadRecord.
func (l *SizeLoad) ToModel() *model.LoadRecord {
	return &model.LoadRecord{
		ID:          l.ID,
		SessionID:   l.SessionID,
		Input:       l.Input,
		Options:     l.Options,
		Fingerprint: l.Fingerprint,
		Status:      l.Status,
		FileEntries: l.FileEntries,
		RootSize:    l.RootSize,
		DiffMode:    l.DiffMode,
		Error:       l.Error,
		StartedAt:   l.StartedAt,
		FinishedAt:  l.FinishedAt,
	}
}

// SizeLoadFromModel converts model.LoadRecord to SizeLoad.
func SizeLoadFromModel(r *model.LoadRecord) *SizeLoad {
	return &SizeLoad{
		ID:          r.ID,
		SessionID:   r.SessionID,
		Input:       r.Input,
		Options:     r.Options,
		Fingerprint: r.Fingerprint,
		Status:      r.Status,
		FileEntries: r.FileEntries,
		RootSize:    r.RootSize,
		DiffMode:    r.DiffMode,
		Error:       r.Error,
		StartedAt:   r.StartedAt,
		FinishedAt:  r.FinishedAt,
	}
}
