package leads

import "errors"

var (
	// ErrMissingPhone is returned when a lead arrives without a phone number
	ErrMissingPhone = errors.New("phone is required")

	// ErrSummaryTooLong is returned when the conversation summary exceeds the stored limit
	ErrSummaryTooLong = errors.New("conversation summary is too long")

	// ErrLeadNotFound is returned when a lead is not found
	ErrLeadNotFound = errors.New("lead not found")

	// ErrSubmitFailed is returned by Submitter when the intake endpoint rejects or cannot be reached
	ErrSubmitFailed = errors.New("lead submission failed")
)
