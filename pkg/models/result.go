package models

// ExecutionResult is the outcome of one execution attempt. It is reported
// once and not persisted beyond logging.
type ExecutionResult struct {
	Signature string `json:"signature"`
	Confirmed bool   `json:"confirmed"`
	Err       error  `json:"-"`
}
