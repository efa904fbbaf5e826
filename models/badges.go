package models

type BadgeSeverity string

const (
	SeverityInfo          BadgeSeverity = "info"
	SeveritySuccess       BadgeSeverity = "success"
	SeverityWarning       BadgeSeverity = "warning"
	SeverityCritical      BadgeSeverity = "critical"
	SeverityIndeterminate BadgeSeverity = "indeterminate"
)

type StatusBadge struct {
	Status   RecordStatus  `json:"status"`
	Label    string        `json:"label"`
	Severity BadgeSeverity `json:"severity"`
}

type StepBadge struct {
	Step       PipelineStep `json:"step"`
	Label      string       `json:"label"`
	Ordinal    int          `json:"ordinal"`
	ColorClass string       `json:"colorClass"`
}

var statusBadges = map[RecordStatus]StatusBadge{
	RecordStatusProcessing:          {Status: RecordStatusProcessing, Label: "Processando", Severity: SeverityInfo},
	RecordStatusError:               {Status: RecordStatusError, Label: "Erro", Severity: SeverityCritical},
	RecordStatusFinished:            {Status: RecordStatusFinished, Label: "Finalizado", Severity: SeveritySuccess},
	RecordStatusPendingRegistration: {Status: RecordStatusPendingRegistration, Label: "Pendente de Cadastro", Severity: SeverityWarning},
}

var stepBadges = map[PipelineStep]StepBadge{
	StepPixDeposit:                 {Step: StepPixDeposit, Label: "Depósito PIX", Ordinal: 1, ColorClass: "step-pix"},
	StepInternalTransferPartner:    {Step: StepInternalTransferPartner, Label: "Transferência Parceiro", Ordinal: 2, ColorClass: "step-partner"},
	StepCustodyDeposit:             {Step: StepCustodyDeposit, Label: "Depósito Custódia", Ordinal: 3, ColorClass: "step-custody"},
	StepInternalTransferSettlement: {Step: StepInternalTransferSettlement, Label: "Transferência Liquidação", Ordinal: 4, ColorClass: "step-settlement"},
}

// StatusBadgeFor never fails: anything outside the known statuses,
// including RecordStatusUnknown, gets the indeterminate badge.
func StatusBadgeFor(status RecordStatus) StatusBadge {
	if badge, ok := statusBadges[status]; ok {
		return badge
	}
	return StatusBadge{Status: RecordStatusUnknown, Label: "Indeterminado", Severity: SeverityIndeterminate}
}

// StepBadgeFor returns ordinal 0 for steps outside the pipeline.
func StepBadgeFor(step PipelineStep) StepBadge {
	if badge, ok := stepBadges[step]; ok {
		return badge
	}
	return StepBadge{Step: StepUnknown, Label: "Etapa Indeterminada", Ordinal: 0, ColorClass: "step-indeterminate"}
}
