package config

import "errors"

// Configuration validation errors returned by Config.Validate. Callers
// match them with errors.Is.
var (
	// ErrNoTarget is returned when no scan target is specified.
	ErrNoTarget = errors.New("no target specified: provide a host, IP, CIDR or URL, or use --targets-file")

	// ErrInvalidScopeDistance is returned when a scope distance threshold is negative.
	ErrInvalidScopeDistance = errors.New("invalid scope distance: must be non-negative")

	// ErrInvalidThreads is returned when a worker pool cap is not positive.
	ErrInvalidThreads = errors.New("invalid thread count: must be positive")

	// ErrInvalidDNSTimeout is returned when the DNS timeout is not positive.
	ErrInvalidDNSTimeout = errors.New("invalid dns timeout: must be positive")

	// ErrInvalidDNSRetries is returned when the DNS retry count is negative.
	ErrInvalidDNSRetries = errors.New("invalid dns retries: must be non-negative")

	// ErrInvalidDNSRateLimit is returned when the DNS rate limit is negative.
	ErrInvalidDNSRateLimit = errors.New("invalid dns rate limit: must be non-negative, 0 disables")

	// ErrInvalidDNSCacheSize is returned when the DNS cache size is negative.
	ErrInvalidDNSCacheSize = errors.New("invalid dns cache size: must be non-negative, 0 disables")

	// ErrInvalidWildcardTests is returned when the wildcard probe count is not positive.
	ErrInvalidWildcardTests = errors.New("invalid wildcard test count: must be positive")

	// ErrInvalidAbortThreshold is returned when the abort threshold is negative.
	ErrInvalidAbortThreshold = errors.New("invalid dns abort threshold: must be non-negative, 0 disables")

	// ErrInvalidSpiderBounds is returned when a spider distance or depth is negative.
	ErrInvalidSpiderBounds = errors.New("invalid spider bounds: distance and depth must be non-negative")

	// ErrInvalidHTTPTimeout is returned when an HTTP timeout is not positive.
	ErrInvalidHTTPTimeout = errors.New("invalid http timeout: must be positive")

	// ErrInvalidMaxBody is returned when the HTTP body cap is negative.
	ErrInvalidMaxBody = errors.New("invalid http max body: must be non-negative")
)
