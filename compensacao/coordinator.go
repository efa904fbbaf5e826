package compensacao

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mmdatafocus/compensacao_backend/config"
	"github.com/mmdatafocus/compensacao_backend/models"
	"github.com/mmdatafocus/compensacao_backend/utils"
	"github.com/sirupsen/logrus"
)

// RemediationAPI is the mutating half of DiagnosticsAPI.
type RemediationAPI interface {
	Reprocess(ctx context.Context, depositID int64) (ReprocessResponse, error)
	ManualOverride(ctx context.Context, req OverrideRequest) (OverrideResponse, error)
}

// Confirmer is the second step of a manual override: it is shown the diff
// and answers whether to go ahead.
type Confirmer interface {
	ConfirmOverride(ctx context.Context, preview OverridePreview) (bool, error)
}

type ConfirmerFunc func(ctx context.Context, preview OverridePreview) (bool, error)

func (f ConfirmerFunc) ConfirmOverride(ctx context.Context, preview OverridePreview) (bool, error) {
	return f(ctx, preview)
}

type OverrideForm struct {
	RecordID  string `json:"recordId" validate:"required"`
	NewUserID string `json:"newUserId" validate:"required,numeric"`
	NewStatus string `json:"newStatus" validate:"required"`
	NewStep   string `json:"newStep" validate:"required"`
}

type FieldChange struct {
	Field   string `json:"field"`
	Old     string `json:"old"`
	New     string `json:"new"`
	Changed bool   `json:"changed"`
}

type OverridePreview struct {
	Token     string          `json:"token"`
	RecordID  string          `json:"recordId"`
	Changes   []FieldChange   `json:"changes"`
	ExpiresAt time.Time       `json:"expiresAt"`
	Request   OverrideRequest `json:"request"`
}

type pendingOverride struct {
	preview OverridePreview
	form    OverrideForm
}

type CoordinatorOptions struct {
	Audit      AuditSink
	Events     EventPublisher
	Logger     *logrus.Logger
	ConfirmTTL time.Duration
	Now        func() time.Time
}

// Coordinator runs Reprocess and ManualOverride. Every command goes through
// the single InFlightGuard.
type Coordinator struct {
	api        RemediationAPI
	records    *RecordSet
	refresher  Refresher
	guard      *InFlightGuard
	audit      AuditSink
	events     EventPublisher
	logger     *logrus.Logger
	confirmTTL time.Duration
	now        func() time.Time

	mu      sync.Mutex
	pending map[string]pendingOverride
}

func NewCoordinator(api RemediationAPI, records *RecordSet, refresher Refresher, guard *InFlightGuard, opts CoordinatorOptions) *Coordinator {
	if guard == nil {
		guard = NewInFlightGuard(nil, 0)
	}
	if opts.Logger == nil {
		opts.Logger = config.GetLogger()
	}
	if opts.ConfirmTTL <= 0 {
		opts.ConfirmTTL = 5 * time.Minute
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Coordinator{
		api:        api,
		records:    records,
		refresher:  refresher,
		guard:      guard,
		audit:      opts.Audit,
		events:     opts.Events,
		logger:     opts.Logger,
		confirmTTL: opts.ConfirmTTL,
		now:        opts.Now,
		pending:    map[string]pendingOverride{},
	}
}

func (c *Coordinator) GuardStatus() GuardStatus {
	return c.guard.Status()
}

// Reprocess asks the server to retry the deposit's pipeline and, when it
// reports success for this deposit, reloads everything from the server.
func (c *Coordinator) Reprocess(ctx context.Context, recordID string) (Notification, error) {
	n, err := c.reprocess(ctx, strings.TrimSpace(recordID))
	observeRemediation(models.RemediationActionReprocess, n)
	return n, err
}

func (c *Coordinator) reprocess(ctx context.Context, recordID string) (Notification, error) {
	// commands run to completion even if the caller goes away
	ctx = context.WithoutCancel(ctx)

	release, err := c.guard.Begin(ctx, GuardReprocessing, recordID)
	if err != nil {
		return notificationFor(recordID, err)
	}
	defer release()

	record, ok := c.records.Get(recordID)
	if !ok {
		return notificationFor(recordID, preconditionError("record %s not found", recordID))
	}
	if record.IsOrphaned() {
		return notificationFor(recordID, preconditionError("orphaned transactions cannot be reprocessed"))
	}
	if record.Status == models.RecordStatusFinished {
		return Notification{Level: LevelInfo, Message: "deposit already finished; nothing to reprocess", RecordID: recordID}, nil
	}
	depositID, err := strconv.ParseInt(record.ID, 10, 64)
	if err != nil {
		return notificationFor(recordID, preconditionError("record %s has no numeric deposit id", recordID))
	}

	started := c.now()
	resp, err := c.api.Reprocess(ctx, depositID)
	if err == nil {
		err = reprocessOutcome(resp, record.ID)
	}
	if err != nil {
		n, rerr := notificationFor(recordID, err)
		c.recordAudit(ctx, models.RemediationActionReprocess, record, nil, n, started)
		c.logCommand(ctx, models.RemediationActionReprocess, n)
		return n, rerr
	}

	detail, _ := resp.DetailFor(record.ID)
	message := strings.TrimSpace(detail.Message)
	if message == "" {
		message = "deposit sent for reprocessing"
	}
	n := Notification{Level: LevelSuccess, Message: message, RecordID: recordID}
	c.recordAudit(ctx, models.RemediationActionReprocess, record, nil, n, started)

	// server truth decides the new status and step
	if c.refresher != nil {
		if _, ferr := c.refresher.Refresh(ctx, c.records.DateRange()); ferr != nil {
			n.Message = fmt.Sprintf("%s (refresh failed: %s)", n.Message, ferr.Error())
		}
	}
	var after *models.ReconciliationRecord
	if r, ok := c.records.Get(recordID); ok {
		after = &r
	}
	c.publish(ctx, models.RemediationActionReprocess, n, after)
	c.logCommand(ctx, models.RemediationActionReprocess, n)
	return n, nil
}

// reprocessOutcome reads the per-deposit entry. A response without one is
// a protocol error, never a silent success.
func reprocessOutcome(resp ReprocessResponse, depositID string) error {
	detail, found := resp.DetailFor(depositID)
	if !found {
		if !resp.Success {
			return logicalError(resp.Message)
		}
		return unexpectedShapeError("reprocess response has no result for deposit %s", depositID)
	}
	if !detail.Success {
		return logicalError(detail.Message)
	}
	return nil
}

// PrepareOverride is the first confirmation step: it validates the form and
// returns the old->new diff with a token for ConfirmOverride. Nothing is
// sent anywhere.
func (c *Coordinator) PrepareOverride(ctx context.Context, form OverrideForm) (OverridePreview, Notification, error) {
	form = OverrideForm{
		RecordID:  strings.TrimSpace(form.RecordID),
		NewUserID: strings.TrimSpace(form.NewUserID),
		NewStatus: strings.TrimSpace(form.NewStatus),
		NewStep:   strings.TrimSpace(form.NewStep),
	}

	if status := c.guard.Status(); status.State != GuardIdle {
		n, err := notificationFor(form.RecordID, &RemediationError{
			Kind:    KindInFlight,
			Message: fmt.Sprintf("remediation already in progress (%s %s)", status.State, status.RecordID),
			Err:     ErrInFlight,
		})
		observeRemediation(models.RemediationActionManualOverride, n)
		return OverridePreview{}, n, err
	}

	preview, err := c.buildPreview(form)
	if err != nil {
		n, rerr := notificationFor(form.RecordID, err)
		observeRemediation(models.RemediationActionManualOverride, n)
		return OverridePreview{}, n, rerr
	}

	c.mu.Lock()
	c.pruneExpiredLocked()
	c.pending[preview.Token] = pendingOverride{preview: preview, form: form}
	c.mu.Unlock()

	return preview, Notification{
		Level:    LevelInfo,
		Message:  fmt.Sprintf("confirm override of record %s", form.RecordID),
		RecordID: form.RecordID,
	}, nil
}

func (c *Coordinator) buildPreview(form OverrideForm) (OverridePreview, error) {
	if err := utils.Validator().Struct(form); err != nil {
		return OverridePreview{}, preconditionError("invalid override: %s", describeValidation(err))
	}
	userID, err := strconv.ParseInt(form.NewUserID, 10, 64)
	if err != nil {
		return OverridePreview{}, preconditionError("invalid override: newUserId must be an integer")
	}

	record, ok := c.records.Get(form.RecordID)
	if !ok {
		return OverridePreview{}, preconditionError("record %s not found", form.RecordID)
	}
	if !record.IsTrackedDeposit() {
		return OverridePreview{}, preconditionError("only tracked deposits can be overridden")
	}
	depositID, err := strconv.ParseInt(record.ID, 10, 64)
	if err != nil {
		return OverridePreview{}, preconditionError("record %s has no numeric deposit id", form.RecordID)
	}

	newStep := CoerceStep(form.NewStep)
	stepCode := form.NewStep
	if newStep != models.StepUnknown {
		stepCode = newStep.Code()
	}

	return OverridePreview{
		Token:     uuid.NewString(),
		RecordID:  record.ID,
		ExpiresAt: c.now().Add(c.confirmTTL),
		Changes: []FieldChange{
			change("userId", record.UserID, form.NewUserID),
			change("status", string(record.Status), form.NewStatus),
			change("step", string(record.Step), string(stepName(form.NewStep))),
		},
		Request: OverrideRequest{
			DepositID: depositID,
			UserID:    userID,
			Status:    form.NewStatus,
			Step:      stepCode,
		},
	}, nil
}

// ConfirmOverride is the second step: it sends the whole user/status/step
// triple and, on success, writes it into the local record without a
// refetch since the operator just confirmed those exact values.
func (c *Coordinator) ConfirmOverride(ctx context.Context, token string) (Notification, error) {
	n, err := c.confirmOverride(ctx, strings.TrimSpace(token))
	observeRemediation(models.RemediationActionManualOverride, n)
	return n, err
}

func (c *Coordinator) confirmOverride(ctx context.Context, token string) (Notification, error) {
	ctx = context.WithoutCancel(ctx)

	c.mu.Lock()
	p, ok := c.pending[token]
	if ok && c.now().After(p.preview.ExpiresAt) {
		delete(c.pending, token)
		ok = false
	}
	c.mu.Unlock()
	if !ok {
		return notificationFor("", preconditionError("override confirmation is unknown or expired"))
	}
	recordID := p.preview.RecordID

	release, err := c.guard.Begin(ctx, GuardOverriding, recordID)
	if err != nil {
		// the confirmation stays pending so the operator can retry
		return notificationFor(recordID, err)
	}
	defer release()

	c.mu.Lock()
	_, ok = c.pending[token]
	delete(c.pending, token)
	c.mu.Unlock()
	if !ok {
		return notificationFor(recordID, preconditionError("override confirmation was already used"))
	}

	before, ok := c.records.Get(recordID)
	if !ok {
		return notificationFor(recordID, preconditionError("record %s is no longer in the current result", recordID))
	}

	started := c.now()
	resp, err := c.api.ManualOverride(ctx, p.preview.Request)
	if err == nil && !resp.Success {
		err = logicalError(resp.Message)
	}
	if err != nil {
		n := Notification{
			Level:    LevelError,
			Kind:     KindOverrideFailed,
			Message:  "override failed: " + err.Error(),
			RecordID: recordID,
		}
		c.recordAudit(ctx, models.RemediationActionManualOverride, before, &p.form, n, started)
		c.logCommand(ctx, models.RemediationActionManualOverride, n)
		return n, &RemediationError{Kind: KindOverrideFailed, Message: n.Message, Err: err}
	}

	after, _ := c.records.Update(recordID, func(r *models.ReconciliationRecord) {
		r.UserID = p.form.NewUserID
		r.Status = CoerceStatus(p.form.NewStatus)
		r.Step = CoerceStep(p.form.NewStep)
	})

	message := strings.TrimSpace(resp.Message)
	if message == "" {
		message = fmt.Sprintf("record %s updated", recordID)
	}
	n := Notification{Level: LevelSuccess, Message: message, RecordID: recordID}
	c.recordAudit(ctx, models.RemediationActionManualOverride, before, &p.form, n, started)
	c.publish(ctx, models.RemediationActionManualOverride, n, &after)
	c.logCommand(ctx, models.RemediationActionManualOverride, n)
	return n, nil
}

// CancelOverride drops a pending confirmation.
func (c *Coordinator) CancelOverride(token string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.pending[token]
	delete(c.pending, token)
	return ok
}

// ManualOverride runs both confirmation steps, asking confirmer in between.
func (c *Coordinator) ManualOverride(ctx context.Context, form OverrideForm, confirmer Confirmer) (Notification, error) {
	preview, n, err := c.PrepareOverride(ctx, form)
	if err != nil || preview.Token == "" {
		return n, err
	}

	// no confirmer counts as a decline
	confirmed, cerr := false, error(nil)
	if confirmer != nil {
		confirmed, cerr = confirmer.ConfirmOverride(ctx, preview)
	}
	if cerr != nil || !confirmed {
		c.CancelOverride(preview.Token)
		message := "override cancelled by operator"
		if cerr != nil {
			message = "override cancelled: " + cerr.Error()
		}
		n := Notification{Level: LevelInfo, Message: message, RecordID: preview.RecordID}
		observeRemediation(models.RemediationActionManualOverride, n)
		return n, nil
	}
	return c.ConfirmOverride(ctx, preview.Token)
}

func (c *Coordinator) pruneExpiredLocked() {
	now := c.now()
	for token, p := range c.pending {
		if now.After(p.preview.ExpiresAt) {
			delete(c.pending, token)
		}
	}
}

func (c *Coordinator) recordAudit(ctx context.Context, action string, before models.ReconciliationRecord, form *OverrideForm, n Notification, started time.Time) {
	if c.audit == nil {
		return
	}
	operatorId, _ := utils.GetOperatorIdFromContext(ctx)
	operatorName, _ := utils.GetOperatorNameFromContext(ctx)
	correlationId, _ := utils.GetCorrelationIdFromContext(ctx)

	audit := &models.RemediationAudit{
		RecordId:      before.ID,
		Action:        action,
		Outcome:       models.RemediationOutcomeSucceeded,
		ErrorKind:     string(n.Kind),
		Message:       n.Message,
		OperatorId:    operatorId,
		OperatorName:  operatorName,
		CorrelationId: correlationId,
		OldUserId:     before.UserID,
		OldStatus:     string(before.Status),
		OldStep:       string(before.Step),
		DurationMs:    c.now().Sub(started).Milliseconds(),
	}
	if n.Failed() {
		audit.Outcome = models.RemediationOutcomeFailed
	}
	if form != nil {
		audit.NewUserId = form.NewUserID
		audit.NewStatus = form.NewStatus
		audit.NewStep = form.NewStep
	}
	if err := c.audit.RecordRemediation(ctx, audit); err != nil {
		config.LogError(c.logger, "compensacao", "recordAudit", action, audit.RecordId, err)
	}
}

func (c *Coordinator) publish(ctx context.Context, action string, n Notification, record *models.ReconciliationRecord) {
	if c.events == nil {
		return
	}
	operatorId, _ := utils.GetOperatorIdFromContext(ctx)
	correlationId, _ := utils.GetCorrelationIdFromContext(ctx)
	event := RemediationEvent{
		Action:        action,
		RecordId:      n.RecordID,
		Message:       n.Message,
		OperatorId:    operatorId,
		CorrelationId: correlationId,
		OccurredAt:    c.now(),
		Record:        record,
	}
	if err := c.events.PublishRemediation(ctx, event); err != nil {
		config.LogError(c.logger, "compensacao", "publish", action, n.RecordID, err)
	}
}

func (c *Coordinator) logCommand(ctx context.Context, action string, n Notification) {
	cid, _ := utils.GetCorrelationIdFromContext(ctx)
	entry := c.logger.WithFields(logrus.Fields{
		"module":         "compensacao",
		"action":         action,
		"record_id":      n.RecordID,
		"level":          n.Level,
		"kind":           n.Kind,
		"correlation_id": cid,
	})
	if n.Failed() {
		entry.Error(n.Message)
		return
	}
	entry.Info(n.Message)
}

func change(field, old, next string) FieldChange {
	return FieldChange{Field: field, Old: old, New: next, Changed: old != next}
}

// stepName shows a known step by its name whichever alias the operator typed.
func stepName(raw string) models.PipelineStep {
	if step := CoerceStep(raw); step != models.StepUnknown {
		return step
	}
	return models.PipelineStep(raw)
}

func describeValidation(err error) string {
	fields := utils.ProcessValidationErrors(err)
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+" "+fields[name])
	}
	return strings.Join(parts, ", ")
}
