package compensacao

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/mmdatafocus/compensacao_backend/models"
	"github.com/mmdatafocus/compensacao_backend/utils"
	"github.com/shopspring/decimal"
)

type fakeRemediationAPI struct {
	mu             sync.Mutex
	reprocessResp  ReprocessResponse
	reprocessErr   error
	overrideResp   OverrideResponse
	overrideErr    error
	reprocessCalls []int64
	overrideCalls  []OverrideRequest
	block          chan struct{}
	entered        chan struct{}
}

func (f *fakeRemediationAPI) Reprocess(ctx context.Context, depositID int64) (ReprocessResponse, error) {
	f.mu.Lock()
	f.reprocessCalls = append(f.reprocessCalls, depositID)
	f.mu.Unlock()
	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.block != nil {
		<-f.block
	}
	return f.reprocessResp, f.reprocessErr
}

func (f *fakeRemediationAPI) ManualOverride(ctx context.Context, req OverrideRequest) (OverrideResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.overrideCalls = append(f.overrideCalls, req)
	return f.overrideResp, f.overrideErr
}

type fakeRefresher struct {
	calls  int
	ranges []*DateRange
	err    error
	apply  func(*RecordSet)
	set    *RecordSet
}

func (f *fakeRefresher) Refresh(ctx context.Context, dateRange *DateRange) ([]models.ReconciliationRecord, error) {
	f.calls++
	f.ranges = append(f.ranges, dateRange)
	if f.err != nil {
		return []models.ReconciliationRecord{}, f.err
	}
	if f.apply != nil {
		f.apply(f.set)
	}
	return f.set.Snapshot(), nil
}

type fakeAudit struct {
	entries []*models.RemediationAudit
}

func (f *fakeAudit) RecordRemediation(ctx context.Context, audit *models.RemediationAudit) error {
	f.entries = append(f.entries, audit)
	return nil
}

type fakePublisher struct {
	events []RemediationEvent
}

func (f *fakePublisher) PublishRemediation(ctx context.Context, event RemediationEvent) error {
	f.events = append(f.events, event)
	return nil
}

type coordinatorFixture struct {
	api       *fakeRemediationAPI
	set       *RecordSet
	refresher *fakeRefresher
	audit     *fakeAudit
	events    *fakePublisher
	c         *Coordinator
	dateRange *DateRange
}

func newCoordinatorFixture() *coordinatorFixture {
	set := NewRecordSet()
	dr := NewDateRange(time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC))
	set.Replace([]models.ReconciliationRecord{
		{ID: "42", UserID: "1928", UserName: "Maria", Amount: decimal.RequireFromString("150"),
			Status: models.RecordStatusError, Step: models.StepCustodyDeposit, OriginKind: models.OriginTrackedDeposit},
		{ID: "43", UserID: "77", Status: models.RecordStatusFinished, Step: models.StepInternalTransferSettlement,
			OriginKind: models.OriginTrackedDeposit},
		{ID: "E2E-1", UserID: "unknown", Status: models.RecordStatusPendingRegistration, Step: models.StepUnknown,
			OriginKind: models.OriginOrphanedTransaction},
		{ID: "abc", UserID: "5", Status: models.RecordStatusError, Step: models.StepPixDeposit,
			OriginKind: models.OriginTrackedDeposit},
	}, dr, time.Now())

	f := &coordinatorFixture{
		api:       &fakeRemediationAPI{},
		set:       set,
		refresher: &fakeRefresher{set: set},
		audit:     &fakeAudit{},
		events:    &fakePublisher{},
		dateRange: dr,
	}
	f.c = NewCoordinator(f.api, set, f.refresher, NewInFlightGuard(nil, 0), CoordinatorOptions{
		Audit:  f.audit,
		Events: f.events,
		Logger: quietLogger(),
		Now:    func() time.Time { return fixedNow },
	})
	return f
}

func reprocessOK(id string, message string) ReprocessResponse {
	var resp ReprocessResponse
	resp.Success = true
	resp.Result.Details = []ReprocessDetail{{DepositID: FlexString(id), Success: true, Message: message}}
	return resp
}

func TestReprocess_SuccessRefreshesWithLastRange(t *testing.T) {
	f := newCoordinatorFixture()
	f.api.reprocessResp = reprocessOK("42", "depósito reprocessado")
	f.refresher.apply = func(s *RecordSet) {
		s.Update("42", func(r *models.ReconciliationRecord) { r.Status = models.RecordStatusProcessing })
	}

	ctx := utils.SetOperatorIdInContext(context.Background(), "9")
	n, err := f.c.Reprocess(ctx, "42")
	if err != nil {
		t.Fatalf("Reprocess error: %v", err)
	}
	if n.Level != LevelSuccess || n.Message != "depósito reprocessado" {
		t.Fatalf("unexpected notification %+v", n)
	}
	if len(f.api.reprocessCalls) != 1 || f.api.reprocessCalls[0] != 42 {
		t.Fatalf("expected one call for 42, got %v", f.api.reprocessCalls)
	}
	if f.refresher.calls != 1 || f.refresher.ranges[0] == nil || f.refresher.ranges[0].StartDate() != "2024-05-01" {
		t.Fatalf("expected refresh with last range, got %d calls %v", f.refresher.calls, f.refresher.ranges)
	}
	if r, _ := f.set.Get("42"); r.Status != models.RecordStatusProcessing {
		t.Fatalf("expected server state after refresh, got %s", r.Status)
	}
	if len(f.audit.entries) != 1 || f.audit.entries[0].Outcome != models.RemediationOutcomeSucceeded || f.audit.entries[0].OperatorId != "9" {
		t.Fatalf("unexpected audit %+v", f.audit.entries)
	}
	if len(f.events.events) != 1 || f.events.events[0].Record == nil {
		t.Fatalf("expected one event with the refreshed record, got %+v", f.events.events)
	}
	if ev := f.events.events[0]; ev.RecordId != "42" || ev.OperatorId != "9" || ev.Action != models.RemediationActionReprocess {
		t.Fatalf("unexpected event identity %+v", ev)
	}
	if f.c.GuardStatus().State != GuardIdle {
		t.Fatalf("guard must be idle after the command")
	}
}

func TestReprocess_PerDepositFailureKeepsServerMessage(t *testing.T) {
	f := newCoordinatorFixture()
	var resp ReprocessResponse
	resp.Success = false
	resp.Message = "falha no reprocessamento"
	resp.Result.Details = []ReprocessDetail{{DepositID: "42", Success: false, Message: "saldo insuficiente"}}
	f.api.reprocessResp = resp

	n, err := f.c.Reprocess(context.Background(), "42")
	if !errors.Is(err, ErrLogical) {
		t.Fatalf("expected logical failure, got %v", err)
	}
	if n.Level != LevelError || n.Kind != KindLogicalFailure || n.Message != "saldo insuficiente" {
		t.Fatalf("unexpected notification %+v", n)
	}
	if f.refresher.calls != 0 {
		t.Fatalf("failed reprocess must not refresh")
	}
	if r, _ := f.set.Get("42"); r.Status != models.RecordStatusError {
		t.Fatalf("record must be unchanged, got %s", r.Status)
	}
	if len(f.audit.entries) != 1 || f.audit.entries[0].Outcome != models.RemediationOutcomeFailed {
		t.Fatalf("expected failed audit entry, got %+v", f.audit.entries)
	}
	if len(f.events.events) != 0 {
		t.Fatalf("failed commands are not published")
	}
}

func TestReprocess_MissingDetail(t *testing.T) {
	cases := []struct {
		name   string
		resp   ReprocessResponse
		kind   ErrorKind
		target error
	}{
		{"success without detail", reprocessOK("99", "other deposit"), KindUnexpectedResponseShape, ErrUnexpectedShape},
		{"failure without detail", ReprocessResponse{Success: false, Message: "lote rejeitado"}, KindLogicalFailure, ErrLogical},
	}
	for _, tc := range cases {
		f := newCoordinatorFixture()
		f.api.reprocessResp = tc.resp
		n, err := f.c.Reprocess(context.Background(), "42")
		if n.Kind != tc.kind || !errors.Is(err, tc.target) {
			t.Fatalf("%s: expected %s, got %+v %v", tc.name, tc.kind, n, err)
		}
		if f.refresher.calls != 0 {
			t.Fatalf("%s: must not refresh", tc.name)
		}
	}
}

func TestReprocess_TransportFailure(t *testing.T) {
	f := newCoordinatorFixture()
	f.api.reprocessErr = transportErrorf("connection refused")
	n, err := f.c.Reprocess(context.Background(), "42")
	if !errors.Is(err, ErrTransport) || n.Kind != KindTransportFailure || n.Level != LevelError {
		t.Fatalf("expected transport failure, got %+v %v", n, err)
	}
}

func TestReprocess_RejectedWithoutNetworkCall(t *testing.T) {
	cases := []struct {
		name  string
		id    string
		level Level
		kind  ErrorKind
	}{
		{"orphaned", "E2E-1", LevelWarning, KindPreconditionViolation},
		{"unknown id", "nope", LevelWarning, KindPreconditionViolation},
		{"non numeric deposit id", "abc", LevelWarning, KindPreconditionViolation},
		{"already finished", "43", LevelInfo, ""},
	}
	for _, tc := range cases {
		f := newCoordinatorFixture()
		n, err := f.c.Reprocess(context.Background(), tc.id)
		if err != nil {
			t.Fatalf("%s: expected no error, got %v", tc.name, err)
		}
		if n.Level != tc.level || n.Kind != tc.kind {
			t.Fatalf("%s: unexpected notification %+v", tc.name, n)
		}
		if len(f.api.reprocessCalls) != 0 {
			t.Fatalf("%s: no network call expected", tc.name)
		}
		if len(f.audit.entries) != 0 {
			t.Fatalf("%s: client-side rejections are not audited", tc.name)
		}
	}
}

func TestReprocess_RefreshFailureStillSucceeds(t *testing.T) {
	f := newCoordinatorFixture()
	f.api.reprocessResp = reprocessOK("42", "ok")
	f.refresher.err = transportErrorf("timeout")

	n, err := f.c.Reprocess(context.Background(), "42")
	if err != nil || n.Level != LevelSuccess {
		t.Fatalf("expected success despite refresh failure, got %+v %v", n, err)
	}
	if n.Message != "ok (refresh failed: timeout)" {
		t.Fatalf("unexpected message %q", n.Message)
	}
}

func TestRemediation_InFlightRejectsEverything(t *testing.T) {
	f := newCoordinatorFixture()
	f.api.reprocessResp = reprocessOK("42", "ok")
	f.api.block = make(chan struct{})
	f.api.entered = make(chan struct{})

	done := make(chan Notification)
	go func() {
		n, _ := f.c.Reprocess(context.Background(), "42")
		done <- n
	}()
	<-f.api.entered

	if n, err := f.c.Reprocess(context.Background(), "42"); err != nil || n.Kind != KindInFlight || n.Level != LevelWarning {
		t.Fatalf("expected in-flight warning for same record, got %+v %v", n, err)
	}
	if n, err := f.c.Reprocess(context.Background(), "abc"); err != nil || n.Kind != KindInFlight {
		t.Fatalf("expected in-flight warning for other record, got %+v %v", n, err)
	}
	if _, n, err := f.c.PrepareOverride(context.Background(), OverrideForm{RecordID: "42", NewUserID: "1", NewStatus: "finished", NewStep: "pix_deposit"}); err != nil || n.Kind != KindInFlight {
		t.Fatalf("expected in-flight warning for override, got %+v %v", n, err)
	}

	close(f.api.block)
	if n := <-done; n.Level != LevelSuccess {
		t.Fatalf("expected first command to succeed, got %+v", n)
	}
	f.api.mu.Lock()
	calls := len(f.api.reprocessCalls)
	f.api.mu.Unlock()
	if calls != 1 {
		t.Fatalf("expected exactly one network call, got %d", calls)
	}
}

func TestManualOverride_ConfirmedAppliesOptimisticUpdate(t *testing.T) {
	f := newCoordinatorFixture()
	f.api.overrideResp = OverrideResponse{Success: true, Message: "atualizado"}

	var shown OverridePreview
	confirmer := ConfirmerFunc(func(ctx context.Context, p OverridePreview) (bool, error) {
		shown = p
		return true, nil
	})
	n, err := f.c.ManualOverride(context.Background(), OverrideForm{
		RecordID: "42", NewUserID: "2001", NewStatus: "finished", NewStep: "internal_transfer_partner",
	}, confirmer)
	if err != nil || n.Level != LevelSuccess {
		t.Fatalf("expected success, got %+v %v", n, err)
	}

	if len(shown.Changes) != 3 || !shown.Changes[0].Changed || shown.Changes[0].Old != "1928" || shown.Changes[0].New != "2001" {
		t.Fatalf("unexpected diff %+v", shown.Changes)
	}
	if len(f.api.overrideCalls) != 1 {
		t.Fatalf("expected one override call, got %d", len(f.api.overrideCalls))
	}
	req := f.api.overrideCalls[0]
	if req.DepositID != 42 || req.UserID != 2001 || req.Status != "finished" || req.Step != "02internal_transfer_b8cash" {
		t.Fatalf("unexpected request %+v", req)
	}

	r, _ := f.set.Get("42")
	if r.UserID != "2001" || r.Status != models.RecordStatusFinished || r.Step != models.StepInternalTransferPartner {
		t.Fatalf("expected optimistic update, got %+v", r)
	}
	if r.UserName != "Maria" || !r.Amount.Equal(decimal.RequireFromString("150")) {
		t.Fatalf("other fields must be untouched, got %+v", r)
	}
	if f.refresher.calls != 0 {
		t.Fatalf("override must not refetch")
	}
	if len(f.audit.entries) != 1 || f.audit.entries[0].NewUserId != "2001" || f.audit.entries[0].OldUserId != "1928" {
		t.Fatalf("unexpected audit %+v", f.audit.entries)
	}
}

func TestManualOverride_DeclinedMakesNoCall(t *testing.T) {
	cases := []struct {
		name      string
		confirmer Confirmer
	}{
		{"declined", ConfirmerFunc(func(ctx context.Context, p OverridePreview) (bool, error) { return false, nil })},
		{"confirmer error", ConfirmerFunc(func(ctx context.Context, p OverridePreview) (bool, error) { return true, errors.New("tty closed") })},
		{"no confirmer", nil},
	}
	for _, tc := range cases {
		f := newCoordinatorFixture()
		n, err := f.c.ManualOverride(context.Background(), OverrideForm{
			RecordID: "42", NewUserID: "2001", NewStatus: "finished", NewStep: "pix_deposit",
		}, tc.confirmer)
		if err != nil || n.Level != LevelInfo {
			t.Fatalf("%s: expected info notification, got %+v %v", tc.name, n, err)
		}
		if len(f.api.overrideCalls) != 0 {
			t.Fatalf("%s: declined override must not reach the api", tc.name)
		}
		if r, _ := f.set.Get("42"); r.UserID != "1928" {
			t.Fatalf("%s: record must be unchanged", tc.name)
		}
	}
}

func TestPrepareOverride_Gating(t *testing.T) {
	cases := []struct {
		name string
		form OverrideForm
	}{
		{"orphaned", OverrideForm{RecordID: "E2E-1", NewUserID: "1", NewStatus: "finished", NewStep: "pix_deposit"}},
		{"unknown record", OverrideForm{RecordID: "nope", NewUserID: "1", NewStatus: "finished", NewStep: "pix_deposit"}},
		{"missing user", OverrideForm{RecordID: "42", NewStatus: "finished", NewStep: "pix_deposit"}},
		{"non numeric user", OverrideForm{RecordID: "42", NewUserID: "abc", NewStatus: "finished", NewStep: "pix_deposit"}},
		{"blank status", OverrideForm{RecordID: "42", NewUserID: "1", NewStatus: "  ", NewStep: "pix_deposit"}},
		{"missing step", OverrideForm{RecordID: "42", NewUserID: "1", NewStatus: "finished"}},
	}
	for _, tc := range cases {
		f := newCoordinatorFixture()
		preview, n, err := f.c.PrepareOverride(context.Background(), tc.form)
		if err != nil {
			t.Fatalf("%s: expected warning without error, got %v", tc.name, err)
		}
		if preview.Token != "" || n.Kind != KindPreconditionViolation || n.Level != LevelWarning {
			t.Fatalf("%s: unexpected result %+v %+v", tc.name, preview, n)
		}
	}
}

func TestConfirmOverride_Failures(t *testing.T) {
	cases := []struct {
		name   string
		resp   OverrideResponse
		err    error
		target error
	}{
		{"rejected by server", OverrideResponse{Success: false, Message: "usuário inexistente"}, nil, ErrLogical},
		{"transport", OverrideResponse{}, transportErrorf("reset by peer"), ErrTransport},
	}
	for _, tc := range cases {
		f := newCoordinatorFixture()
		f.api.overrideResp = tc.resp
		f.api.overrideErr = tc.err

		preview, _, err := f.c.PrepareOverride(context.Background(), OverrideForm{RecordID: "42", NewUserID: "2001", NewStatus: "finished", NewStep: "01pix_deposit"})
		if err != nil || preview.Token == "" {
			t.Fatalf("%s: prepare failed: %v", tc.name, err)
		}
		n, err := f.c.ConfirmOverride(context.Background(), preview.Token)
		if n.Kind != KindOverrideFailed || n.Level != LevelError {
			t.Fatalf("%s: unexpected notification %+v", tc.name, n)
		}
		if !errors.Is(err, tc.target) {
			t.Fatalf("%s: expected cause %v, got %v", tc.name, tc.target, err)
		}
		if r, _ := f.set.Get("42"); r.UserID != "1928" || r.Status != models.RecordStatusError {
			t.Fatalf("%s: record must be unchanged, got %+v", tc.name, r)
		}
	}
}

func TestConfirmOverride_TokenIsSingleUseAndExpires(t *testing.T) {
	f := newCoordinatorFixture()
	f.api.overrideResp = OverrideResponse{Success: true}
	form := OverrideForm{RecordID: "42", NewUserID: "2001", NewStatus: "finished", NewStep: "pix_deposit"}

	preview, _, _ := f.c.PrepareOverride(context.Background(), form)
	if n, err := f.c.ConfirmOverride(context.Background(), preview.Token); err != nil || n.Level != LevelSuccess {
		t.Fatalf("first confirm failed: %+v %v", n, err)
	}
	if n, _ := f.c.ConfirmOverride(context.Background(), preview.Token); n.Kind != KindPreconditionViolation {
		t.Fatalf("expected reused token to be rejected, got %+v", n)
	}

	now := fixedNow
	f.c.now = func() time.Time { return now }
	preview, _, _ = f.c.PrepareOverride(context.Background(), form)
	now = now.Add(time.Hour)
	if n, _ := f.c.ConfirmOverride(context.Background(), preview.Token); n.Kind != KindPreconditionViolation {
		t.Fatalf("expected expired token to be rejected, got %+v", n)
	}
	if len(f.api.overrideCalls) != 1 {
		t.Fatalf("expected only the first confirm to reach the api, got %d", len(f.api.overrideCalls))
	}

	preview, _, _ = f.c.PrepareOverride(context.Background(), form)
	if !f.c.CancelOverride(preview.Token) || f.c.CancelOverride(preview.Token) {
		t.Fatalf("expected cancel to succeed exactly once")
	}
}
