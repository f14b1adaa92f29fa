package resolver

import "errors"

// Lookup failure kinds. The scheduler wraps them with query context;
// callers branch with errors.Is.
var (
	// ErrTimeout is returned when every attempt of a query timed out.
	ErrTimeout = errors.New("dns query timed out")

	// ErrServfail is returned when the upstream server answered with a
	// server-side failure. Distinct from ErrNXDomain: the name may well
	// exist, the server just could not answer.
	ErrServfail = errors.New("dns server failure")

	// ErrNXDomain is returned when the name does not exist. This is a
	// valid answer, not a failure: it is never retried and never counts
	// toward the abort threshold.
	ErrNXDomain = errors.New("dns name does not exist")

	// ErrAborted is returned once the circuit breaker has tripped for a
	// (domain, record type) pair. No network traffic is generated.
	ErrAborted = errors.New("dns queries aborted for this domain")

	// ErrNetwork is returned for network-level failures that are neither
	// timeouts nor server responses.
	ErrNetwork = errors.New("dns network error")

	// ErrNoServers is returned when no upstream server could be
	// determined.
	ErrNoServers = errors.New("no dns servers configured")
)
