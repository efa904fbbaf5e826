package compensacao

import (
	"context"
	"strings"
	"time"

	"github.com/mmdatafocus/compensacao_backend/config"
	"github.com/mmdatafocus/compensacao_backend/models"
	"github.com/sirupsen/logrus"
)

type AnomalyQuerier interface {
	QueryAnomalies(ctx context.Context, q AnomalyQuery) (AnomaliesResponse, error)
}

// Refresher reloads the shared record set.
type Refresher interface {
	Refresh(ctx context.Context, dateRange *DateRange) ([]models.ReconciliationRecord, error)
}

type FetchOrchestrator struct {
	api           AnomalyQuerier
	mapper        *Mapper
	records       *RecordSet
	accountNumber string
	logger        *logrus.Logger
	now           func() time.Time
}

func NewFetchOrchestrator(api AnomalyQuerier, mapper *Mapper, records *RecordSet, accountNumber string, logger *logrus.Logger) *FetchOrchestrator {
	if mapper == nil {
		mapper = NewMapper(nil)
	}
	if logger == nil {
		logger = config.GetLogger()
	}
	return &FetchOrchestrator{
		api:           api,
		mapper:        mapper,
		records:       records,
		accountNumber: strings.TrimSpace(accountNumber),
		logger:        logger,
		now:           time.Now,
	}
}

// Fetch queries both anomaly collections and returns them merged, newest
// first. On failure it returns an empty (non-nil) slice with the error.
func (f *FetchOrchestrator) Fetch(ctx context.Context, dateRange *DateRange) ([]models.ReconciliationRecord, error) {
	start := time.Now()
	records, err := f.fetch(ctx, dateRange)
	result := "success"
	if err != nil {
		result = string(KindOf(err))
		f.logger.WithFields(logrus.Fields{
			"module":   "compensacao",
			"funcName": "Fetch",
			"kind":     KindOf(err),
		}).Error(err.Error())
	}
	FetchDuration.WithLabelValues(result).Observe(time.Since(start).Seconds())
	return records, err
}

func (f *FetchOrchestrator) fetch(ctx context.Context, dateRange *DateRange) ([]models.ReconciliationRecord, error) {
	empty := []models.ReconciliationRecord{}
	if f.accountNumber == "" {
		return empty, preconditionError("account number is not configured")
	}

	q := AnomalyQuery{AccountNumber: f.accountNumber}
	if dateRange != nil {
		q.StartDate = dateRange.StartDate()
		q.EndDate = dateRange.EndDate()
	}

	resp, err := f.api.QueryAnomalies(ctx, q)
	if err != nil {
		return empty, err
	}
	if !resp.Success {
		return empty, logicalError(resp.Message)
	}

	tracked := make([]models.ReconciliationRecord, 0, len(resp.Result.TrackedDepositsWithError))
	for _, raw := range resp.Result.TrackedDepositsWithError {
		tracked = append(tracked, f.mapper.MapTrackedDeposit(DecodeTrackedDeposit(raw)))
	}
	orphaned := make([]models.ReconciliationRecord, 0, len(resp.Result.OrphanedTransactions))
	for _, raw := range resp.Result.OrphanedTransactions {
		orphaned = append(orphaned, f.mapper.MapOrphanedTransaction(DecodeOrphanedTransaction(raw)))
	}

	Records.WithLabelValues(string(models.OriginTrackedDeposit)).Set(float64(len(tracked)))
	Records.WithLabelValues(string(models.OriginOrphanedTransaction)).Set(float64(len(orphaned)))

	f.logger.WithFields(logrus.Fields{
		"module":    "compensacao",
		"tracked":   len(tracked),
		"orphaned":  len(orphaned),
		"startDate": q.StartDate,
		"endDate":   q.EndDate,
	}).Debug("anomalies fetched")

	return MergeRecords(tracked, orphaned), nil
}

// Refresh fetches and, on success, replaces the shared record set. A failed
// fetch leaves the previous snapshot in place.
func (f *FetchOrchestrator) Refresh(ctx context.Context, dateRange *DateRange) ([]models.ReconciliationRecord, error) {
	records, err := f.Fetch(ctx, dateRange)
	if err != nil {
		return records, err
	}
	if f.records != nil {
		f.records.Replace(records, dateRange, f.now())
	}
	return records, nil
}
