package compensacao

import (
	"bytes"
	"encoding/json"
	"strings"
)

// FlexString accepts any JSON scalar (and keeps objects/arrays as their raw
// text). Upstream payloads are not contractually closed, so a field that
// changes type must not fail the whole decode.
type FlexString string

func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			*f = ""
			return nil
		}
		*f = FlexString(s)
		return nil
	}
	*f = FlexString(data)
	return nil
}

func (f FlexString) String() string {
	return strings.TrimSpace(string(f))
}

// Ptr is nil for blank values.
func (f FlexString) Ptr() *string {
	s := f.String()
	if s == "" {
		return nil
	}
	return &s
}

// RawTrackedDeposit is a deposit known to the ledger but flagged with a
// processing error.
type RawTrackedDeposit struct {
	ID                  FlexString `json:"id"`
	UserID              FlexString `json:"user_id"`
	PayerName           FlexString `json:"payer_name"`
	Amount              FlexString `json:"amount"`
	Status              FlexString `json:"status_deposito"`
	Step                FlexString `json:"step"`
	PixKey              FlexString `json:"pix_key"`
	TransactionID       FlexString `json:"transaction_id"`
	OperationID         FlexString `json:"operation_id"`
	WebhookPayload      FlexString `json:"webhook_payload"`
	ErrorMessage        FlexString `json:"error_message"`
	ErrorAt             FlexString `json:"error_at"`
	CreatedAt           FlexString `json:"created_at"`
	PartnerTransferID   FlexString `json:"partner_transfer_id"`
	SettlementDepositID FlexString `json:"settlement_deposit_id"`

	Payload json.RawMessage `json:"-"`
}

type RawPayer struct {
	Name     FlexString `json:"name"`
	Document FlexString `json:"document"`
}

// UnmarshalJSON ignores payer blocks that are not objects.
func (p *RawPayer) UnmarshalJSON(data []byte) error {
	type payer RawPayer
	var out payer
	if err := json.Unmarshal(data, &out); err != nil {
		*p = RawPayer{}
		return nil
	}
	*p = RawPayer(out)
	return nil
}

// RawOrphanedTransaction is a PIX transaction seen on the payment rail with
// no internal deposit behind it.
type RawOrphanedTransaction struct {
	ID            FlexString `json:"id"`
	TransactionID FlexString `json:"transaction_id"`
	Payer         RawPayer   `json:"payer"`
	Amount        FlexString `json:"amount"`
	Identifier    FlexString `json:"identifier"`
	Created       FlexString `json:"created"`

	Payload json.RawMessage `json:"-"`
}

// DecodeTrackedDeposit never fails; whatever could not be decoded stays at
// its zero value and the original bytes are kept in Payload.
func DecodeTrackedDeposit(data json.RawMessage) RawTrackedDeposit {
	var raw RawTrackedDeposit
	_ = json.Unmarshal(data, &raw)
	raw.Payload = data
	return raw
}

func DecodeOrphanedTransaction(data json.RawMessage) RawOrphanedTransaction {
	var raw RawOrphanedTransaction
	_ = json.Unmarshal(data, &raw)
	raw.Payload = data
	return raw
}

type AnomalyQuery struct {
	AccountNumber string
	StartDate     string
	EndDate       string
}

type AnomaliesResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Result  struct {
		TrackedDepositsWithError []json.RawMessage `json:"trackedDepositsWithError"`
		OrphanedTransactions     []json.RawMessage `json:"orphanedTransactions"`
	} `json:"result"`
}

type ReprocessRequest struct {
	DepositID int64 `json:"depositId"`
}

type ReprocessDetail struct {
	DepositID FlexString `json:"depositId"`
	Success   bool       `json:"success"`
	Message   string     `json:"message"`
}

type ReprocessResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Result  struct {
		Details []ReprocessDetail `json:"details"`
	} `json:"result"`
}

// DetailFor finds the per-deposit outcome for depositID.
func (r ReprocessResponse) DetailFor(depositID string) (ReprocessDetail, bool) {
	for _, d := range r.Result.Details {
		if d.DepositID.String() == depositID {
			return d, true
		}
	}
	return ReprocessDetail{}, false
}

// OverrideRequest replaces all three fields at once; the endpoint does not
// accept partial patches.
type OverrideRequest struct {
	DepositID int64  `json:"depositId"`
	UserID    int64  `json:"userId"`
	Status    string `json:"status"`
	Step      string `json:"step"`
}

type OverrideResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}
