package types

// SuccessEnvelope wraps resource payloads as { "data": ... }.
type SuccessEnvelope struct {
	Data any `json:"data"`
}

// ErrorEnvelope is the single error body shape returned by the API.
type ErrorEnvelope struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Reason  string `json:"reason,omitempty"`
	Details any    `json:"details,omitempty"`
}

// Ack is returned by mutations that have nothing else to report.
type Ack struct {
	Success bool `json:"success"`
}
