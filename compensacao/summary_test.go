package compensacao

import (
	"testing"

	"github.com/mmdatafocus/compensacao_backend/models"
	"github.com/shopspring/decimal"
)

func TestSummarize(t *testing.T) {
	records := []models.ReconciliationRecord{
		{Status: models.RecordStatusError, Step: models.StepCustodyDeposit, Amount: decimal.RequireFromString("10.50"), OriginKind: models.OriginTrackedDeposit},
		{Status: models.RecordStatusError, Step: models.StepPixDeposit, Amount: decimal.RequireFromString("4.50"), OriginKind: models.OriginTrackedDeposit},
		{Status: models.RecordStatusPendingRegistration, Step: models.StepUnknown, Amount: decimal.RequireFromString("100"), OriginKind: models.OriginOrphanedTransaction},
		{Status: models.RecordStatus("bogus"), Step: models.PipelineStep("bogus"), Amount: decimal.Zero, OriginKind: models.OriginTrackedDeposit},
	}

	s := Summarize(records)

	if s.Total != 4 || s.Orphaned != 1 {
		t.Fatalf("expected total 4 and 1 orphaned, got %d/%d", s.Total, s.Orphaned)
	}
	if !s.TotalAmount.Equal(decimal.RequireFromString("115")) {
		t.Fatalf("expected total amount 115, got %s", s.TotalAmount)
	}
	if len(s.ByStatus) != len(models.AllRecordStatuses) || len(s.ByStep) != len(models.AllPipelineSteps) {
		t.Fatalf("expected every status and step to be listed")
	}
	for _, st := range s.ByStatus {
		switch st.Badge.Status {
		case models.RecordStatusError:
			if st.Count != 2 || !st.Amount.Equal(decimal.RequireFromString("15")) {
				t.Fatalf("unexpected error totals %+v", st)
			}
		case models.RecordStatusUnknown:
			if st.Count != 1 {
				t.Fatalf("expected unrecognized status to count as unknown, got %d", st.Count)
			}
		case models.RecordStatusFinished, models.RecordStatusProcessing:
			if st.Count != 0 {
				t.Fatalf("expected zero for %s, got %d", st.Badge.Status, st.Count)
			}
		}
	}
	for _, st := range s.ByStep {
		if st.Badge.Step == models.StepUnknown && st.Count != 2 {
			t.Fatalf("expected 2 records at unknown step, got %d", st.Count)
		}
	}
}
