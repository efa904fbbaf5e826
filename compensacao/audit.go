package compensacao

import (
	"context"

	"github.com/mmdatafocus/compensacao_backend/models"
	"gorm.io/gorm"
)

type AuditSink interface {
	RecordRemediation(ctx context.Context, audit *models.RemediationAudit) error
}

type AuditReader interface {
	ListRemediations(ctx context.Context, recordID string, limit int) ([]*models.RemediationAudit, error)
}

// GormAuditStore keeps the remediation trail in MySQL.
type GormAuditStore struct {
	db *gorm.DB
}

func NewGormAuditStore(db *gorm.DB) *GormAuditStore {
	return &GormAuditStore{db: db}
}

func (s *GormAuditStore) RecordRemediation(ctx context.Context, audit *models.RemediationAudit) error {
	return models.CreateRemediationAudit(ctx, s.db, audit)
}

func (s *GormAuditStore) ListRemediations(ctx context.Context, recordID string, limit int) ([]*models.RemediationAudit, error) {
	return models.ListRemediationAudits(ctx, s.db, recordID, limit)
}
