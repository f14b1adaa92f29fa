package config

import (
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values. Distances and DNS limits follow the
// scanner's conservative stance: nothing outside the declared scope is
// processed unless the operator raises a threshold.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "bbot"

	// DefaultScopeReportDistance limits output to exact scope matches.
	DefaultScopeReportDistance = 0

	// DefaultScopeSearchDistance stops derivation at exact scope matches.
	DefaultScopeSearchDistance = 0

	// DefaultScopeDNSSearchDistance lets DNS resolution look two hops past
	// the search distance, enough to cross one CNAME or NS indirection.
	DefaultScopeDNSSearchDistance = 2

	// DefaultMaxThreads caps the general processing pool.
	DefaultMaxThreads = 25

	// DefaultMaxDNSThreads caps the DNS lookup pool. DNS tasks are cheap
	// and latency-bound, so the cap is higher than the general pool.
	DefaultMaxDNSThreads = 100

	// DefaultDNSTimeout bounds a single lookup attempt.
	DefaultDNSTimeout = 5 * time.Second

	// DefaultDNSRetries is the number of retries after a failed lookup
	// attempt (timeout or SERVFAIL). NXDOMAIN is terminal and not retried.
	DefaultDNSRetries = 1

	// DefaultDNSCacheSize is the number of answers held by the resolver
	// cache.
	DefaultDNSCacheSize = 10000

	// DefaultDNSWildcardTests is the number of random-subdomain probes
	// used to establish wildcard DNS behavior for a domain.
	DefaultDNSWildcardTests = 5

	// DefaultDNSAbortThreshold is the number of consecutive failures for
	// a domain and record type before further lookups are short-circuited.
	// Zero disables the circuit breaker.
	DefaultDNSAbortThreshold = 10

	// DefaultWebSpiderDistance disables link following: discovered URLs
	// are recorded but their pages are never used to find more URLs.
	DefaultWebSpiderDistance = 0

	// DefaultWebSpiderDepth is the deepest URL path (in segments) the
	// spider will follow when spidering is enabled.
	DefaultWebSpiderDepth = 1

	// DefaultHTTPTimeout bounds a full page fetch.
	DefaultHTTPTimeout = 10 * time.Second

	// DefaultHTTPXTimeout bounds lightweight probe fetches of URLs that
	// are fetched but never spidered.
	DefaultHTTPXTimeout = 5 * time.Second

	// DefaultHTTPMaxBody limits the response body size read per fetch.
	// Larger responses are truncated.
	DefaultHTTPMaxBody = 5 * 1024 * 1024 // 5MB

	// DefaultUserAgent identifies the scanner in HTTP requests.
	DefaultUserAgent = "bbot/2.0 (+https://github.com/AnshumanSrivastavaGit/bbot)"
)

// DefaultURLExtensionBlacklist lists static-asset extensions that are
// never fetched: images, fonts, media, archives and office documents
// cannot contain followable links worth the bandwidth.
var DefaultURLExtensionBlacklist = []string{
	"png", "jpg", "jpeg", "gif", "bmp", "ico", "svg", "webp",
	"css", "woff", "woff2", "ttf", "eot",
	"mp3", "m4a", "wav", "flac",
	"mp4", "mkv", "avi", "wmv", "mov", "flv", "webm",
	"zip", "tar", "gz", "tgz", "rar", "7z",
	"exe", "msi", "pkg", "dmg", "iso",
	"pdf", "doc", "docx", "xls", "xlsx", "ppt", "pptx",
}

// DefaultURLExtensionHTTPXOnly lists extensions that are fetched for
// content analysis but never spidered for links.
var DefaultURLExtensionHTTPXOnly = []string{"js"}

// Config holds all configuration options for a scan. The struct is
// populated from defaults, an optional YAML file and CLI flags, then
// passed through the application by dependency injection rather than
// global state.
type Config struct {
	// ScanName labels the scan in logs, output and the asset database.
	// When empty, a name is generated from the first target.
	ScanName string

	// Targets seed the scan and define its scope. Each entry may be a
	// hostname, IP address, CIDR range, URL or email address.
	Targets []string

	// Whitelist narrows scope: when non-empty, only events matching one
	// of these patterns can be at scope distance zero. Targets are still
	// seeded even if the whitelist excludes them.
	Whitelist []string

	// Blacklist removes matching events entirely, regardless of distance.
	Blacklist []string

	// ScopeReportDistance is the maximum scope distance of reported
	// events. Reported events are always a subset of processed events.
	ScopeReportDistance int

	// ScopeSearchDistance is the maximum scope distance at which events
	// still produce children.
	ScopeSearchDistance int

	// ScopeDNSSearchDistance extends derivation for DNS resolution
	// results past ScopeSearchDistance. See the resolver package.
	ScopeDNSSearchDistance int

	// MaxThreads caps the general processing pool: graph insertion,
	// classification, spidering decisions.
	MaxThreads int

	// MaxDNSThreads caps the DNS lookup pool, kept separate so DNS
	// contention cannot starve general processing.
	MaxDNSThreads int

	// DNSResolution is the master switch for the resolution scheduler.
	// When false, name-like events are never resolved.
	DNSResolution bool

	// DNSServers are the upstream resolvers in "host:port" or bare
	// "host" form. When empty, the system resolv.conf is used, with a
	// public resolver set as the final fallback.
	DNSServers []string

	// DNSTimeout bounds a single lookup attempt.
	DNSTimeout time.Duration

	// DNSRetries is the retry count for retryable failures.
	DNSRetries int

	// DNSRateLimit caps outgoing queries per second across the whole
	// scan. Zero disables rate limiting.
	DNSRateLimit int

	// DNSCacheSize is the answer cache capacity in entries.
	DNSCacheSize int

	// DNSWildcardIgnore lists domain globs that bypass wildcard
	// detection and are always treated as non-wildcard.
	DNSWildcardIgnore []string

	// DNSWildcardTests is the number of random-subdomain probes per
	// wildcard check.
	DNSWildcardTests int

	// DNSAbortThreshold is the consecutive-failure count that circuit
	// breaks a (domain, record type) pair. Zero disables.
	DNSAbortThreshold int

	// DNSFilterPTRs drops PTR answers that merely embed the queried IP
	// (e.g. 1-2-3-4.dynamic.example.com), which carry no real discovery
	// signal.
	DNSFilterPTRs bool

	// WebSpiderDistance is the maximum number of link-follow hops from a
	// non-spidered URL. Zero disables spidering.
	WebSpiderDistance int

	// WebSpiderDepth is the maximum URL path depth the spider follows.
	WebSpiderDepth int

	// WebSpiderIgnore lists URL globs the spider never follows.
	WebSpiderIgnore []string

	// URLExtensionBlacklist lists extensions that are never fetched.
	URLExtensionBlacklist []string

	// URLExtensionHTTPXOnly lists extensions that are fetched but never
	// spidered.
	URLExtensionHTTPXOnly []string

	// HTTPTimeout bounds a full page fetch.
	HTTPTimeout time.Duration

	// HTTPXTimeout bounds probe-only fetches.
	HTTPXTimeout time.Duration

	// HTTPProxy routes fetches through a proxy. Supports http:// and
	// socks5:// URLs. Empty means direct connection.
	HTTPProxy string

	// SSLVerify enables TLS certificate verification. Scanners talk to
	// broken and self-signed endpoints as a matter of course, so this
	// defaults to off.
	SSLVerify bool

	// UserAgent is sent with every HTTP request.
	UserAgent string

	// HTTPMaxBody is the maximum response body size in bytes to read.
	HTTPMaxBody int64

	// InteractshServer, InteractshToken and InteractshDisable configure
	// the out-of-band detection service. The core only carries these
	// values for discovery modules; it never contacts the service.
	InteractshServer  string
	InteractshToken   string
	InteractshDisable bool

	// DBDir is the directory for the SQLite asset database. When empty,
	// the XDG data directory is used. Persistence is controlled by
	// SaveToDB.
	DBDir string

	// SaveToDB persists reported events to the asset database.
	SaveToDB bool

	// JSONOutput prints reported events as JSON lines instead of the
	// human-readable form.
	JSONOutput bool

	// Verbose enables debug-level log output.
	Verbose bool

	// ConfigFilePath is an explicit configuration file path. If empty,
	// the tool searches for .bbot.yml in the current directory and then
	// bbot.yml in the XDG config directory.
	ConfigFilePath string
}

// New creates a Config with default values. Callers override specific
// fields after creation, typically from a YAML file and CLI flags.
func New() *Config {
	return &Config{
		ScopeReportDistance:    DefaultScopeReportDistance,
		ScopeSearchDistance:    DefaultScopeSearchDistance,
		ScopeDNSSearchDistance: DefaultScopeDNSSearchDistance,
		DNSResolution:          true,
		MaxThreads:             DefaultMaxThreads,
		MaxDNSThreads:          DefaultMaxDNSThreads,
		DNSTimeout:             DefaultDNSTimeout,
		DNSRetries:             DefaultDNSRetries,
		DNSCacheSize:           DefaultDNSCacheSize,
		DNSWildcardTests:       DefaultDNSWildcardTests,
		DNSAbortThreshold:      DefaultDNSAbortThreshold,
		DNSFilterPTRs:          true,
		WebSpiderDistance:      DefaultWebSpiderDistance,
		WebSpiderDepth:         DefaultWebSpiderDepth,
		URLExtensionBlacklist:  append([]string(nil), DefaultURLExtensionBlacklist...),
		URLExtensionHTTPXOnly:  append([]string(nil), DefaultURLExtensionHTTPXOnly...),
		HTTPTimeout:            DefaultHTTPTimeout,
		HTTPXTimeout:           DefaultHTTPXTimeout,
		UserAgent:              DefaultUserAgent,
		HTTPMaxBody:            DefaultHTTPMaxBody,
		SaveToDB:               true,
	}
}

// XDGDataDir returns the XDG data directory for the scanner.
// On Linux: ~/.local/share/bbot
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for the scanner.
// On Linux: ~/.config/bbot
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// XDGCacheDir returns the XDG cache directory for the scanner.
// On Linux: ~/.cache/bbot
func XDGCacheDir() string {
	return filepath.Join(xdg.CacheHome, AppName)
}

// Validate checks the configuration and returns the first problem
// found as a sentinel error. It is called once after flag and file
// merging, before the scan starts.
func (c *Config) Validate() error {
	if len(c.Targets) == 0 {
		return ErrNoTarget
	}
	if c.ScopeReportDistance < 0 || c.ScopeSearchDistance < 0 || c.ScopeDNSSearchDistance < 0 {
		return ErrInvalidScopeDistance
	}
	if c.MaxThreads <= 0 || c.MaxDNSThreads <= 0 {
		return ErrInvalidThreads
	}
	if c.DNSTimeout <= 0 {
		return ErrInvalidDNSTimeout
	}
	if c.DNSRetries < 0 {
		return ErrInvalidDNSRetries
	}
	if c.DNSRateLimit < 0 {
		return ErrInvalidDNSRateLimit
	}
	if c.DNSCacheSize < 0 {
		return ErrInvalidDNSCacheSize
	}
	if c.DNSWildcardTests <= 0 {
		return ErrInvalidWildcardTests
	}
	if c.DNSAbortThreshold < 0 {
		return ErrInvalidAbortThreshold
	}
	if c.WebSpiderDistance < 0 || c.WebSpiderDepth < 0 {
		return ErrInvalidSpiderBounds
	}
	if c.HTTPTimeout <= 0 || c.HTTPXTimeout <= 0 {
		return ErrInvalidHTTPTimeout
	}
	if c.HTTPMaxBody < 0 {
		return ErrInvalidMaxBody
	}
	return nil
}
