package compensacao

import (
	"testing"
	"time"

	"github.com/mmdatafocus/compensacao_backend/models"
)

func rec(id string, origin models.OriginKind, at time.Time) models.ReconciliationRecord {
	return models.ReconciliationRecord{ID: id, OriginKind: origin, CreatedAt: at}
}

func TestMergeRecords_SortsNewestFirstAndKeepsTies(t *testing.T) {
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	tracked := []models.ReconciliationRecord{
		rec("t1", models.OriginTrackedDeposit, base),
		rec("t2", models.OriginTrackedDeposit, base.Add(2*time.Hour)),
		rec("t3", models.OriginTrackedDeposit, base.Add(time.Hour)),
	}
	orphaned := []models.ReconciliationRecord{
		rec("o1", models.OriginOrphanedTransaction, base.Add(time.Hour)),
		rec("o2", models.OriginOrphanedTransaction, base.Add(3*time.Hour)),
	}

	merged := MergeRecords(tracked, orphaned)

	expected := []string{"o2", "t2", "t3", "o1", "t1"}
	if len(merged) != len(expected) {
		t.Fatalf("expected %d records, got %d", len(expected), len(merged))
	}
	for i, id := range expected {
		if merged[i].ID != id {
			t.Fatalf("position %d: expected %s, got %s", i, id, merged[i].ID)
		}
	}
	for i := 1; i < len(merged); i++ {
		if merged[i].CreatedAt.After(merged[i-1].CreatedAt) {
			t.Fatalf("records not in descending order at %d", i)
		}
	}
}

func TestMergeRecords_Empty(t *testing.T) {
	merged := MergeRecords(nil, nil)
	if merged == nil || len(merged) != 0 {
		t.Fatalf("expected empty non-nil slice, got %v", merged)
	}
}
