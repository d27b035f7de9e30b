package types

// SuccessEnvelope wraps every 2xx body.
type SuccessEnvelope struct {
	Data any `json:"data"`
}

// APIError is the machine-readable half of a failure. Details carries field
// errors on validation failures and retry_after_seconds on rate limits.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// ErrorEnvelope repeats the message at the top level; the storefront reads
// only `message`.
type ErrorEnvelope struct {
	Message string   `json:"message"`
	Error   APIError `json:"error"`
}
