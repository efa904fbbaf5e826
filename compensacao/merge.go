package compensacao

import (
	"slices"

	"github.com/mmdatafocus/compensacao_backend/models"
)

// MergeRecords concatenates tracked then orphaned records and sorts the
// result newest first. Equal timestamps keep their input order.
func MergeRecords(tracked, orphaned []models.ReconciliationRecord) []models.ReconciliationRecord {
	merged := make([]models.ReconciliationRecord, 0, len(tracked)+len(orphaned))
	merged = append(merged, tracked...)
	merged = append(merged, orphaned...)
	SortByCreatedAtDesc(merged)
	return merged
}

func SortByCreatedAtDesc(records []models.ReconciliationRecord) {
	slices.SortStableFunc(records, func(a, b models.ReconciliationRecord) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
}
