package service

import "errors"

// Sentinel errors classify failures for the HTTP layer. Wrap them with
// fmt.Errorf("...: %w", Err...) so errors.Is keeps working.
var (
	// ErrValidation marks malformed caller input.
	ErrValidation = errors.New("validation error")
	// ErrCapability marks a failed call to an external capability
	// (LLM, embeddings, web search).
	ErrCapability = errors.New("capability error")
	// ErrPersistence marks a failed database operation.
	ErrPersistence = errors.New("persistence error")
)

// Rejection reason codes. Rejections are ordinary result values: a rejected
// question is a handled outcome, not an error.
const (
	RejectTooShort       = "too_short"
	RejectTooLong        = "too_long"
	RejectMalicious      = "malicious_input"
	RejectNotMath        = "non_mathematical"
	RejectLowConfidence  = "low_confidence"
	RejectClassifierDown = "classifier_unavailable"
	RejectUnsafeOutput   = "unsafe_output"
	RejectIrrelevant     = "irrelevant_output"
)

// Rejection is the terminal outcome of a guardrail check that refused the
// request or the produced answer.
type Rejection struct {
	Code   string `json:"code"`
	Reason string `json:"reason"`
}
