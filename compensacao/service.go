package compensacao

import (
	"context"
	"net/http"

	"github.com/mmdatafocus/compensacao_backend/config"
	"github.com/sirupsen/logrus"
)

// Service is everything a binary needs, wired from Settings.
type Service struct {
	Settings    *config.Settings
	API         DiagnosticsAPI
	Records     *RecordSet
	Fetcher     *FetchOrchestrator
	Coordinator *Coordinator
	Dashboard   *Dashboard

	publisher *PubSubPublisher
}

// NewService wires the optional Redis lock, audit store and event publisher
// according to the feature flags. Redis and MySQL must already be
// connected for their flags to take effect; a missing backend is logged
// and the feature stays off.
func NewService(ctx context.Context, settings *config.Settings, logger *logrus.Logger) (*Service, error) {
	if settings == nil {
		settings = config.LoadSettings()
	}
	if logger == nil {
		logger = config.GetLogger()
	}

	api, err := NewHTTPClient(settings, &http.Client{Timeout: settings.HTTPTimeout})
	if err != nil {
		return nil, err
	}

	records := NewRecordSet()
	fetcher := NewFetchOrchestrator(api, NewMapper(nil), records, settings.AccountNumber, logger)

	guard := NewInFlightGuard(nil, settings.RemediationLockTTL)
	if config.DistributedRemediationLock() {
		if locker := config.GetRedisLock(); locker != nil {
			guard = NewInFlightGuard(locker, settings.RemediationLockTTL)
		} else {
			logger.WithFields(logrus.Fields{"field": "remediation_lock"}).Warn("redis not connected; remediation guard is local only")
		}
	}

	opts := CoordinatorOptions{Logger: logger, ConfirmTTL: settings.OverrideConfirmTTL}
	var auditReader AuditReader
	if config.RemediationAuditEnabled() {
		if db := config.GetDB(); db != nil {
			store := NewGormAuditStore(db)
			opts.Audit = store
			auditReader = store
		} else {
			logger.WithFields(logrus.Fields{"field": "remediation_audit"}).Warn("database not connected; remediation audit disabled")
		}
	}

	svc := &Service{Settings: settings, API: api, Records: records, Fetcher: fetcher}
	if config.RemediationEventsEnabled() {
		publisher, err := newPublisher(ctx, settings.EventsTopic)
		if err != nil {
			config.LogError(logger, "compensacao", "NewService", "pubsub publisher", settings.EventsTopic, err)
		} else {
			opts.Events = publisher
			svc.publisher = publisher
		}
	}

	svc.Coordinator = NewCoordinator(api, records, fetcher, guard, opts)
	svc.Dashboard = &Dashboard{
		Fetcher:     fetcher,
		Coordinator: svc.Coordinator,
		Records:     records,
		Audit:       auditReader,
		Location:    settings.Location,
	}
	return svc, nil
}

func newPublisher(ctx context.Context, topic string) (*PubSubPublisher, error) {
	client, err := config.GetPubSubClient(ctx)
	if err != nil {
		return nil, err
	}
	return NewPubSubPublisher(client, topic)
}

// Close flushes pending events.
func (s *Service) Close() {
	if s.publisher != nil {
		s.publisher.Stop()
	}
}
