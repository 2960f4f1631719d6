// Package types holds the wire envelopes shared by every ledger and payout
// API handler.
package types

// SuccessEnvelope wraps each successful response body under a data key.
type SuccessEnvelope struct {
	Data any `json:"data"`
}

// APIError carries a machine-readable code from the pkg/errors taxonomy so
// clients can branch without parsing the message.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}
