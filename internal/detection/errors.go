package detection

import "errors"

// Sentinel errors for the detection pipeline. Callers classify failures with
// errors.Is; the HTTP layer maps each kind to a status code.
var (
	// ErrDataNotFound indicates no signal rows exist for the requested
	// scenario/asset/time window.
	ErrDataNotFound = errors.New("no signal data for requested selection")

	// ErrModelNotTrained indicates the anomaly model artifact is absent or
	// has never been fitted. Distinct from ErrDataNotFound.
	ErrModelNotTrained = errors.New("anomaly model not trained")

	// ErrInvalidConfiguration indicates compression parameters outside
	// their valid domain.
	ErrInvalidConfiguration = errors.New("invalid detection configuration")

	// ErrMalformedTimestamp indicates a window boundary timestamp that
	// could not be parsed.
	ErrMalformedTimestamp = errors.New("malformed timestamp")
)
