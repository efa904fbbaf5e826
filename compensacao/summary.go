package compensacao

import (
	"github.com/mmdatafocus/compensacao_backend/models"
	"github.com/shopspring/decimal"
)

type StatusTotal struct {
	Badge  models.StatusBadge `json:"badge"`
	Count  int                `json:"count"`
	Amount decimal.Decimal    `json:"amount"`
}

type StepTotal struct {
	Badge  models.StepBadge `json:"badge"`
	Count  int              `json:"count"`
	Amount decimal.Decimal  `json:"amount"`
}

// Summary backs the dashboard header tiles.
type Summary struct {
	Total       int             `json:"total"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
	Orphaned    int             `json:"orphaned"`
	ByStatus    []StatusTotal   `json:"byStatus"`
	ByStep      []StepTotal     `json:"byStep"`
}

// Summarize lists every status and step, zero counts included, in pipeline
// order.
func Summarize(records []models.ReconciliationRecord) Summary {
	statusIdx := make(map[models.RecordStatus]int, len(models.AllRecordStatuses))
	byStatus := make([]StatusTotal, len(models.AllRecordStatuses))
	for i, s := range models.AllRecordStatuses {
		statusIdx[s] = i
		byStatus[i] = StatusTotal{Badge: models.StatusBadgeFor(s), Amount: decimal.Zero}
	}
	stepIdx := make(map[models.PipelineStep]int, len(models.AllPipelineSteps))
	byStep := make([]StepTotal, len(models.AllPipelineSteps))
	for i, s := range models.AllPipelineSteps {
		stepIdx[s] = i
		byStep[i] = StepTotal{Badge: models.StepBadgeFor(s), Amount: decimal.Zero}
	}

	summary := Summary{TotalAmount: decimal.Zero}
	for _, r := range records {
		summary.Total++
		summary.TotalAmount = summary.TotalAmount.Add(r.Amount)
		if r.IsOrphaned() {
			summary.Orphaned++
		}

		i, ok := statusIdx[r.Status]
		if !ok {
			i = statusIdx[models.RecordStatusUnknown]
		}
		byStatus[i].Count++
		byStatus[i].Amount = byStatus[i].Amount.Add(r.Amount)

		j, ok := stepIdx[r.Step]
		if !ok {
			j = stepIdx[models.StepUnknown]
		}
		byStep[j].Count++
		byStep[j].Amount = byStep[j].Amount.Add(r.Amount)
	}
	summary.ByStatus = byStatus
	summary.ByStep = byStep
	return summary
}
