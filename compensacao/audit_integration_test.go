package compensacao

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mmdatafocus/compensacao_backend/config"
	"github.com/mmdatafocus/compensacao_backend/models"
)

// Requires DB_* pointing at a disposable MySQL schema.
func TestGormAuditStore_RoundTrip(t *testing.T) {
	if os.Getenv("INTEGRATION_TESTS") == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run against MySQL")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if !config.ConnectDatabaseWithRetry(ctx, 2) {
		t.Fatalf("database not reachable")
	}
	models.MigrateTable()

	store := NewGormAuditStore(config.GetDB())
	recordID := "it-" + uuid.NewString()
	for _, outcome := range []string{models.RemediationOutcomeFailed, models.RemediationOutcomeSucceeded} {
		err := store.RecordRemediation(ctx, &models.RemediationAudit{
			RecordId: recordID,
			Action:   models.RemediationActionReprocess,
			Outcome:  outcome,
		})
		if err != nil {
			t.Fatalf("RecordRemediation(%s): %v", outcome, err)
		}
	}

	audits, err := store.ListRemediations(ctx, recordID, 10)
	if err != nil {
		t.Fatalf("ListRemediations: %v", err)
	}
	if len(audits) != 2 {
		t.Fatalf("got %d audits, want 2", len(audits))
	}
	if audits[0].Outcome != models.RemediationOutcomeSucceeded {
		t.Fatalf("newest first: got %q", audits[0].Outcome)
	}
	if err := config.GetDB().WithContext(ctx).Where("record_id = ?", recordID).Delete(&models.RemediationAudit{}).Error; err != nil {
		t.Fatalf("cleanup: %v", err)
	}
}
