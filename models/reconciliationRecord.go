package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

type RecordStatus string

const (
	RecordStatusProcessing          RecordStatus = "processing"
	RecordStatusError               RecordStatus = "error"
	RecordStatusFinished            RecordStatus = "finished"
	RecordStatusPendingRegistration RecordStatus = "pending_registration"
	RecordStatusUnknown             RecordStatus = "unknown"
)

// AllRecordStatuses lists every status in display order.
var AllRecordStatuses = []RecordStatus{
	RecordStatusProcessing,
	RecordStatusError,
	RecordStatusFinished,
	RecordStatusPendingRegistration,
	RecordStatusUnknown,
}

type PipelineStep string

const (
	StepPixDeposit                 PipelineStep = "pix_deposit"
	StepInternalTransferPartner    PipelineStep = "internal_transfer_partner"
	StepCustodyDeposit             PipelineStep = "custody_deposit"
	StepInternalTransferSettlement PipelineStep = "internal_transfer_settlement"
	StepUnknown                    PipelineStep = "unknown_step"
)

var AllPipelineSteps = []PipelineStep{
	StepPixDeposit,
	StepInternalTransferPartner,
	StepCustodyDeposit,
	StepInternalTransferSettlement,
	StepUnknown,
}

// upstream step codes carry the pipeline ordinal as a prefix
var stepCodes = map[PipelineStep]string{
	StepPixDeposit:                 "01pix_deposit",
	StepInternalTransferPartner:    "02internal_transfer_b8cash",
	StepCustodyDeposit:             "03custody_deposit",
	StepInternalTransferSettlement: "04internal_transfer_settlement",
}

// Code returns the upstream code for the step, or the step name itself
// when there is no upstream equivalent.
func (s PipelineStep) Code() string {
	if code, ok := stepCodes[s]; ok {
		return code
	}
	return string(s)
}

type OriginKind string

const (
	OriginTrackedDeposit      OriginKind = "trackedDeposit"
	OriginOrphanedTransaction OriginKind = "orphanedTransaction"
)

// ReconciliationRecord is the unified view over a tracked deposit with an
// error and an orphaned PIX transaction.
type ReconciliationRecord struct {
	ID                  string          `json:"id"`
	UserID              string          `json:"userId"`
	UserName            string          `json:"userName"`
	Amount              decimal.Decimal `json:"amount"`
	CreatedAt           time.Time       `json:"createdAt"`
	Status              RecordStatus    `json:"status"`
	Step                PipelineStep    `json:"step"`
	PixKey              *string         `json:"pixKey"`
	TxID                *string         `json:"txId"`
	OriginKind          OriginKind      `json:"originKind"`
	ErrorMessage        *string         `json:"errorMessage"`
	ErrorAt             *time.Time      `json:"errorAt"`
	PartnerTransferID   *string         `json:"partnerTransferId"`
	SettlementDepositID *string         `json:"settlementDepositId"`
	Raw                 json.RawMessage `json:"raw,omitempty"`
}

func (r ReconciliationRecord) IsTrackedDeposit() bool {
	return r.OriginKind == OriginTrackedDeposit
}

func (r ReconciliationRecord) IsOrphaned() bool {
	return r.OriginKind == OriginOrphanedTransaction
}
