package models

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

const (
	RemediationActionReprocess      = "reprocess"
	RemediationActionManualOverride = "manual_override"
)

const (
	RemediationOutcomeSucceeded = "succeeded"
	RemediationOutcomeFailed    = "failed"
)

// RemediationAudit is one remediation attempt that reached the remote API.
// Client-side rejections are not audited since nothing changed upstream.
type RemediationAudit struct {
	ID            uint      `gorm:"primary_key" json:"id"`
	RecordId      string    `gorm:"index;size:128;not null" json:"record_id"`
	Action        string    `gorm:"index;size:32;not null" json:"action"`
	Outcome       string    `gorm:"size:20;not null" json:"outcome"`
	ErrorKind     string    `gorm:"size:64" json:"error_kind"`
	Message       string    `gorm:"type:text" json:"message"`
	OperatorId    string    `gorm:"size:64" json:"operator_id"`
	OperatorName  string    `gorm:"size:255" json:"operator_name"`
	CorrelationId string    `gorm:"size:64" json:"correlation_id"`
	OldUserId     string    `gorm:"size:64" json:"old_user_id"`
	OldStatus     string    `gorm:"size:32" json:"old_status"`
	OldStep       string    `gorm:"size:64" json:"old_step"`
	NewUserId     string    `gorm:"size:64" json:"new_user_id"`
	NewStatus     string    `gorm:"size:32" json:"new_status"`
	NewStep       string    `gorm:"size:64" json:"new_step"`
	DurationMs    int64     `json:"duration_ms"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func CreateRemediationAudit(ctx context.Context, db *gorm.DB, audit *RemediationAudit) error {
	if db == nil {
		return errors.New("audit database not initialized")
	}
	return db.WithContext(ctx).Create(audit).Error
}

// ListRemediationAudits returns the newest entries first. An empty recordId
// lists across all records.
func ListRemediationAudits(ctx context.Context, db *gorm.DB, recordId string, limit int) ([]*RemediationAudit, error) {
	if db == nil {
		return nil, errors.New("audit database not initialized")
	}
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	var audits []*RemediationAudit
	query := db.WithContext(ctx).Model(&RemediationAudit{})
	if recordId != "" {
		query = query.Where("record_id = ?", recordId)
	}
	if err := query.Order("created_at DESC, id DESC").Limit(limit).Find(&audits).Error; err != nil {
		return nil, err
	}
	return audits, nil
}
