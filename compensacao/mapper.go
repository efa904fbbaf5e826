package compensacao

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/mmdatafocus/compensacao_backend/models"
	"github.com/mmdatafocus/compensacao_backend/utils"
	"github.com/shopspring/decimal"
)

const unknownUserID = "unknown"

var trackedStatuses = map[string]models.RecordStatus{
	string(models.RecordStatusProcessing): models.RecordStatusProcessing,
	string(models.RecordStatusError):      models.RecordStatusError,
	string(models.RecordStatusFinished):   models.RecordStatusFinished,
}

var stepAliases = func() map[string]models.PipelineStep {
	m := map[string]models.PipelineStep{}
	for _, step := range models.AllPipelineSteps {
		if step == models.StepUnknown {
			continue
		}
		m[step.Code()] = step
		m[string(step)] = step
	}
	return m
}()

// trailing digit run of an account reference, e.g. "PIX-0001xU1928" -> "1928"
var identifierUserID = regexp.MustCompile(`(\d+)\s*$`)

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// CoerceStatus keeps the statuses a tracked deposit can legitimately carry
// and degrades everything else to unknown.
func CoerceStatus(raw string) models.RecordStatus {
	if status, ok := trackedStatuses[raw]; ok {
		return status
	}
	return models.RecordStatusUnknown
}

// CoerceStep accepts the upstream codes ("02internal_transfer_b8cash") and
// the step names.
func CoerceStep(raw string) models.PipelineStep {
	if step, ok := stepAliases[raw]; ok {
		return step
	}
	return models.StepUnknown
}

// Mapper turns upstream payloads into records. Both map functions are
// total: malformed input degrades field by field, it never drops a record.
type Mapper struct {
	now func() time.Time
}

func NewMapper(now func() time.Time) *Mapper {
	if now == nil {
		now = time.Now
	}
	return &Mapper{now: now}
}

func (m *Mapper) MapTrackedDeposit(raw RawTrackedDeposit) models.ReconciliationRecord {
	createdAt, ok := parseTimestamp(raw.CreatedAt.String())
	if !ok {
		createdAt = m.now()
	}

	record := models.ReconciliationRecord{
		ID:                  raw.ID.String(),
		UserID:              raw.UserID.String(),
		UserName:            raw.PayerName.String(),
		Amount:              parseAmount(raw.Amount.String()),
		CreatedAt:           createdAt,
		Status:              CoerceStatus(raw.Status.String()),
		Step:                CoerceStep(raw.Step.String()),
		PixKey:              raw.PixKey.Ptr(),
		TxID:                trackedTxID(raw),
		OriginKind:          models.OriginTrackedDeposit,
		ErrorMessage:        raw.ErrorMessage.Ptr(),
		PartnerTransferID:   raw.PartnerTransferID.Ptr(),
		SettlementDepositID: raw.SettlementDepositID.Ptr(),
		Raw:                 rawPayload(raw.Payload, raw),
	}
	if errorAt, ok := parseTimestamp(raw.ErrorAt.String()); ok {
		record.ErrorAt = &errorAt
	}
	return record
}

func (m *Mapper) MapOrphanedTransaction(raw RawOrphanedTransaction) models.ReconciliationRecord {
	createdAt, ok := parseEpochSeconds(raw.Created.String())
	if !ok {
		createdAt, ok = parseTimestamp(raw.Created.String())
	}
	if !ok {
		createdAt = m.now()
	}

	id := raw.TransactionID.String()
	if id == "" {
		id = raw.ID.String()
	}

	return models.ReconciliationRecord{
		ID:         id,
		UserID:     userIDFromIdentifier(raw.Identifier.String()),
		UserName:   raw.Payer.Name.String(),
		Amount:     parseAmount(raw.Amount.String()),
		CreatedAt:  createdAt,
		Status:     models.RecordStatusPendingRegistration,
		Step:       models.StepUnknown,
		TxID:       raw.TransactionID.Ptr(),
		OriginKind: models.OriginOrphanedTransaction,
		Raw:        rawPayload(raw.Payload, raw),
	}
}

// trackedTxID prefers the id carried by the PIX webhook, then the partner
// transfer id, then the transaction id.
func trackedTxID(raw RawTrackedDeposit) *string {
	if txID := webhookTxID(raw.WebhookPayload.String()); txID != "" {
		return &txID
	}
	if p := raw.PartnerTransferID.Ptr(); p != nil {
		return p
	}
	return raw.TransactionID.Ptr()
}

// webhookTxID is best effort: an undecodable payload yields "".
func webhookTxID(payload string) string {
	if payload == "" {
		return ""
	}
	var body map[string]any
	if err := json.Unmarshal([]byte(payload), &body); err != nil {
		return ""
	}
	if id := firstID(body); id != "" {
		return id
	}
	// BACEN-style notification: {"pix":[{"endToEndId":"...","txid":"..."}]}
	if items, ok := body["pix"].([]any); ok && len(items) > 0 {
		if item, ok := items[0].(map[string]any); ok {
			return firstID(item)
		}
	}
	return ""
}

func firstID(body map[string]any) string {
	for _, key := range []string{"txid", "txId", "endToEndId"} {
		switch v := body[key].(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		}
	}
	return ""
}

func userIDFromIdentifier(identifier string) string {
	match := identifierUserID.FindStringSubmatch(identifier)
	if len(match) < 2 {
		return unknownUserID
	}
	return match[1]
}

func parseAmount(raw string) decimal.Decimal {
	amount, err := utils.ParseAmount(raw)
	if err != nil {
		return decimal.Zero
	}
	return amount
}

func parseTimestamp(raw string) (time.Time, bool) {
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func parseEpochSeconds(raw string) (time.Time, bool) {
	if raw == "" {
		return time.Time{}, false
	}
	secs, err := strconv.ParseFloat(raw, 64)
	if err != nil || secs <= 0 || math.IsInf(secs, 0) || math.IsNaN(secs) {
		return time.Time{}, false
	}
	whole, frac := math.Modf(secs)
	return time.Unix(int64(whole), int64(frac*1e9)).UTC(), true
}

// rawPayload keeps the upstream bytes for audit display, falling back to the
// decoded struct when the bytes are missing.
func rawPayload(payload json.RawMessage, decoded any) json.RawMessage {
	if len(payload) > 0 && json.Valid(payload) {
		return payload
	}
	b, err := json.Marshal(decoded)
	if err != nil {
		return nil
	}
	return b
}
