package compensacao

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/compensacao_backend/middlewares"
	"github.com/mmdatafocus/compensacao_backend/models"
	"github.com/mmdatafocus/compensacao_backend/utils"
)

// Dashboard serves the reconciliation view and the remediation commands
// over HTTP.
type Dashboard struct {
	Fetcher     Refresher
	Coordinator *Coordinator
	Records     *RecordSet
	Audit       AuditReader
	Location    *time.Location
}

type RecordsQuery struct {
	StartDate string `form:"startDate" json:"startDate" validate:"omitempty,datetime=2006-01-02"`
	EndDate   string `form:"endDate" json:"endDate" validate:"omitempty,datetime=2006-01-02"`
	Status    string `form:"status" json:"status" validate:"omitempty,oneof=all processing error finished pending_registration unknown"`
	Step      string `form:"step" json:"step" validate:"omitempty,oneof=all pix_deposit internal_transfer_partner custody_deposit internal_transfer_settlement unknown_step"`
	Search    string `form:"search" json:"search" validate:"max=200"`
}

type RecordView struct {
	models.ReconciliationRecord
	StatusBadge  models.StatusBadge `json:"statusBadge"`
	StepBadge    models.StepBadge   `json:"stepBadge"`
	CanReprocess bool               `json:"canReprocess"`
	CanOverride  bool               `json:"canOverride"`
}

type RecordsResponse struct {
	Records  []RecordView `json:"records"`
	Total    int          `json:"total"`
	Loaded   int          `json:"loaded"`
	LoadedAt *time.Time   `json:"loadedAt,omitempty"`
	Guard    GuardStatus  `json:"guard"`
}

type overrideBody struct {
	NewUserID string `json:"newUserId"`
	NewStatus string `json:"newStatus"`
	NewStep   string `json:"newStep"`
}

func NewRecordView(r models.ReconciliationRecord) RecordView {
	return RecordView{
		ReconciliationRecord: r,
		StatusBadge:          models.StatusBadgeFor(r.Status),
		StepBadge:            models.StepBadgeFor(r.Step),
		CanReprocess:         r.IsTrackedDeposit() && r.Status != models.RecordStatusFinished,
		CanOverride:          r.IsTrackedDeposit(),
	}
}

func (d *Dashboard) RegisterRoutes(r gin.IRouter) {
	g := r.Group("/api/compensacao")
	g.GET("/records", d.RecordsHandler())
	g.GET("/records/:id", d.RecordDetailHandler())
	// reads may fall back to the service token; commands need an operator
	cmd := g.Group("", middlewares.RequireOperator())
	cmd.POST("/records/:id/reprocess", d.ReprocessHandler())
	cmd.POST("/records/:id/override", d.PrepareOverrideHandler())
	cmd.POST("/overrides/:token/confirm", d.ConfirmOverrideHandler())
	cmd.DELETE("/overrides/:token", d.CancelOverrideHandler())
	g.GET("/remediation", d.RemediationStatusHandler())
	g.GET("/audit", d.AuditHandler())
	g.GET("/summary", d.SummaryHandler())
}

// RecordsHandler refetches by default; refresh=false filters the current
// snapshot without touching the remote API.
func (d *Dashboard) RecordsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		criteria, ok := d.bindCriteria(c)
		if !ok {
			return
		}

		refresh := true
		if raw := strings.TrimSpace(c.Query("refresh")); raw != "" {
			v, err := strconv.ParseBool(raw)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "refresh must be a boolean"})
				return
			}
			refresh = v
		}

		records := d.Records.Snapshot()
		if refresh {
			fetched, err := d.Fetcher.Refresh(c.Request.Context(), criteria.DateRange)
			if err != nil {
				n, _ := notificationFor("", err)
				c.JSON(httpStatusFor(n, err), gin.H{
					"records":      []RecordView{},
					"notification": n,
				})
				return
			}
			records = fetched
		}

		c.JSON(http.StatusOK, d.recordsResponse(records, criteria))
	}
}

func (d *Dashboard) RecordDetailHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		record, ok := d.Records.Get(c.Param("id"))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "record not found"})
			return
		}
		c.JSON(http.StatusOK, NewRecordView(record))
	}
}

func (d *Dashboard) ReprocessHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		n, err := d.Coordinator.Reprocess(c.Request.Context(), id)
		d.respondNotification(c, n, err, id)
	}
}

func (d *Dashboard) PrepareOverrideHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var body overrideBody
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		form := OverrideForm{
			RecordID:  c.Param("id"),
			NewUserID: body.NewUserID,
			NewStatus: body.NewStatus,
			NewStep:   body.NewStep,
		}
		preview, n, err := d.Coordinator.PrepareOverride(c.Request.Context(), form)
		if preview.Token == "" {
			c.JSON(httpStatusFor(n, err), gin.H{"notification": n})
			return
		}
		c.JSON(http.StatusOK, gin.H{"notification": n, "preview": preview})
	}
}

func (d *Dashboard) ConfirmOverrideHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		n, err := d.Coordinator.ConfirmOverride(c.Request.Context(), c.Param("token"))
		d.respondNotification(c, n, err, n.RecordID)
	}
}

func (d *Dashboard) CancelOverrideHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !d.Coordinator.CancelOverride(c.Param("token")) {
			c.JSON(http.StatusNotFound, gin.H{"error": "override confirmation not found"})
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func (d *Dashboard) RemediationStatusHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, d.Coordinator.GuardStatus())
	}
}

func (d *Dashboard) AuditHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if d.Audit == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "remediation audit is disabled"})
			return
		}
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
		audits, err := d.Audit.ListRemediations(c.Request.Context(), strings.TrimSpace(c.Query("recordId")), limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if audits == nil {
			audits = []*models.RemediationAudit{}
		}
		c.JSON(http.StatusOK, gin.H{"audits": audits})
	}
}

// SummaryHandler totals the current snapshot under the same filters as the
// record list. It never refetches.
func (d *Dashboard) SummaryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		criteria, ok := d.bindCriteria(c)
		if !ok {
			return
		}
		c.JSON(http.StatusOK, Summarize(Filter(d.Records.Snapshot(), criteria)))
	}
}

func (d *Dashboard) bindCriteria(c *gin.Context) (Criteria, bool) {
	var q RecordsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid query"})
		return Criteria{}, false
	}
	if err := utils.Validator().Struct(q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid query", "fields": utils.ProcessValidationErrors(err)})
		return Criteria{}, false
	}
	dr, err := ParseDateRange(q.StartDate, q.EndDate, d.Location)
	if err != nil {
		n, _ := notificationFor("", err)
		c.JSON(httpStatusFor(n, err), gin.H{"notification": n})
		return Criteria{}, false
	}
	return Criteria{DateRange: dr, Status: q.Status, Step: q.Step, SearchTerm: q.Search}, true
}

func (d *Dashboard) recordsResponse(records []models.ReconciliationRecord, criteria Criteria) RecordsResponse {
	filtered := Filter(records, criteria)
	views := make([]RecordView, 0, len(filtered))
	for _, r := range filtered {
		view := NewRecordView(r)
		// the raw payload is only served by the detail route
		view.Raw = nil
		views = append(views, view)
	}
	resp := RecordsResponse{
		Records: views,
		Total:   len(views),
		Loaded:  len(records),
		Guard:   d.Coordinator.GuardStatus(),
	}
	if at := d.Records.LoadedAt(); !at.IsZero() {
		resp.LoadedAt = &at
	}
	return resp
}

func (d *Dashboard) respondNotification(c *gin.Context, n Notification, err error, recordID string) {
	body := gin.H{"notification": n}
	if record, ok := d.Records.Get(recordID); ok && recordID != "" {
		body["record"] = NewRecordView(record)
	}
	c.JSON(httpStatusFor(n, err), body)
}

func httpStatusFor(n Notification, err error) int {
	switch n.Kind {
	case "":
		return http.StatusOK
	case KindPreconditionViolation, KindLogicalFailure:
		return http.StatusUnprocessableEntity
	case KindInFlight:
		return http.StatusConflict
	case KindOverrideFailed:
		if errors.Is(err, ErrLogical) {
			return http.StatusUnprocessableEntity
		}
		return http.StatusBadGateway
	default:
		return http.StatusBadGateway
	}
}
