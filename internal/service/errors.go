package service

import "errors"

var (
	// ErrNotFound covers unknown diet ids, unknown order ids, and
	// records owned by someone other than the requester.
	ErrNotFound = errors.New("diet record not found")

	// ErrNotPaid rejects operations that require a confirmed payment.
	ErrNotPaid = errors.New("diet is not paid")

	// ErrRegenerationQuota rejects regeneration past the per-diet limit.
	ErrRegenerationQuota = errors.New("regeneration limit reached")

	// ErrGenerationFailed marks a paid order whose content generation
	// exhausted all attempts. Distinguishable from payment failures so
	// stuck orders can be found.
	ErrGenerationFailed = errors.New("payment confirmed but generation failed")

	// ErrGatewayUnavailable is a transport-level gateway failure:
	// status unknown, local state must not change.
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
)
