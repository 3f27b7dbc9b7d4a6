package nonce

// ReasonCode is the machine-checkable outcome of a nonce validation, so
// calling layers (rate limiting, alerting) can distinguish an expired nonce
// from a replay attack from a malformed request.
type ReasonCode string

const (
	CodeAccepted         ReasonCode = "ACCEPTED"
	CodeInvalidFormat    ReasonCode = "INVALID_FORMAT"
	CodeInvalidUser      ReasonCode = "INVALID_USER"
	CodeInvalidTimestamp ReasonCode = "INVALID_TIMESTAMP"
	CodeExpired          ReasonCode = "EXPIRED"
	CodeFutureTimestamp  ReasonCode = "FUTURE_TIMESTAMP"
	CodeAlreadyUsed      ReasonCode = "ALREADY_USED"
	CodeOutOfOrder       ReasonCode = "OUT_OF_ORDER"
)

// Result is the structured outcome of Validate. Rejections are expected,
// high-frequency outcomes of adversarial or buggy clients, so the guard
// reports them as values and never as errors.
type Result struct {
	Accepted bool       `json:"accepted"`
	Code     ReasonCode `json:"code"`
	Message  string     `json:"message,omitempty"`
}

func accepted() Result {
	return Result{Accepted: true, Code: CodeAccepted}
}

func rejected(code ReasonCode, message string) Result {
	return Result{Accepted: false, Code: code, Message: message}
}

// Stats reports running validation counters. Rejections is keyed by reason
// code; AcceptanceRate is a percentage of total processed.
type Stats struct {
	Processed      uint64                `json:"processed"`
	Accepted       uint64                `json:"accepted"`
	Rejections     map[ReasonCode]uint64 `json:"rejections"`
	AcceptanceRate float64               `json:"acceptance_rate"`
	Retained       int                   `json:"retained"`
}
