package config

import (
	"errors"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the configuration file name searched for in the
// working directory.
const DefaultConfigFile = ".bbot.yml"

// ErrConfigNotFound is returned when the configuration file does not exist.
var ErrConfigNotFound = errors.New("configuration file not found")

// File mirrors the YAML configuration file. Every field is optional:
// nil means "not set" and leaves the corresponding Config value
// untouched, so file values layer cleanly between defaults and flags.
type File struct {
	ScanName  *string  `yaml:"scan_name,omitempty"`
	Targets   []string `yaml:"targets,omitempty"`
	Whitelist []string `yaml:"whitelist,omitempty"`
	Blacklist []string `yaml:"blacklist,omitempty"`

	ScopeReportDistance    *int `yaml:"scope_report_distance,omitempty"`
	ScopeSearchDistance    *int `yaml:"scope_search_distance,omitempty"`
	ScopeDNSSearchDistance *int `yaml:"scope_dns_search_distance,omitempty"`

	MaxThreads    *int `yaml:"max_threads,omitempty"`
	MaxDNSThreads *int `yaml:"max_dns_threads,omitempty"`

	DNSResolution     *bool          `yaml:"dns_resolution,omitempty"`
	DNSServers        []string       `yaml:"dns_servers,omitempty"`
	DNSTimeout        *time.Duration `yaml:"dns_timeout,omitempty"`
	DNSRetries        *int           `yaml:"dns_retries,omitempty"`
	DNSRateLimit      *int           `yaml:"dns_rate_limit,omitempty"`
	DNSCacheSize      *int           `yaml:"dns_cache_size,omitempty"`
	DNSWildcardIgnore []string       `yaml:"dns_wildcard_ignore,omitempty"`
	DNSWildcardTests  *int           `yaml:"dns_wildcard_tests,omitempty"`
	DNSAbortThreshold *int           `yaml:"dns_abort_threshold,omitempty"`
	DNSFilterPTRs     *bool          `yaml:"dns_filter_ptrs,omitempty"`

	WebSpiderDistance     *int     `yaml:"web_spider_distance,omitempty"`
	WebSpiderDepth        *int     `yaml:"web_spider_depth,omitempty"`
	WebSpiderIgnore       []string `yaml:"web_spider_ignore,omitempty"`
	URLExtensionBlacklist []string `yaml:"url_extension_blacklist,omitempty"`
	URLExtensionHTTPXOnly []string `yaml:"url_extension_httpx_only,omitempty"`

	HTTPTimeout  *time.Duration `yaml:"http_timeout,omitempty"`
	HTTPXTimeout *time.Duration `yaml:"httpx_timeout,omitempty"`
	HTTPProxy    *string        `yaml:"http_proxy,omitempty"`
	SSLVerify    *bool          `yaml:"ssl_verify,omitempty"`
	UserAgent    *string        `yaml:"user_agent,omitempty"`
	HTTPMaxBody  *int64         `yaml:"http_max_body,omitempty"`

	InteractshServer  *string `yaml:"interactsh_server,omitempty"`
	InteractshToken   *string `yaml:"interactsh_token,omitempty"`
	InteractshDisable *bool   `yaml:"interactsh_disable,omitempty"`

	DBDir    *string `yaml:"db_dir,omitempty"`
	SaveToDB *bool   `yaml:"save_to_db,omitempty"`
}

// LoadFile loads a configuration file from path. If the file does not
// exist, it returns ErrConfigNotFound; callers decide whether that is
// fatal based on whether the path was explicit.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // User-provided config path is intentional
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

// Apply copies every set field of the file onto the config. List-valued
// keys replace rather than append, so a file can shrink a default list.
func (f *File) Apply(c *Config) {
	if f.ScanName != nil {
		c.ScanName = *f.ScanName
	}
	if f.Targets != nil {
		c.Targets = f.Targets
	}
	if f.Whitelist != nil {
		c.Whitelist = f.Whitelist
	}
	if f.Blacklist != nil {
		c.Blacklist = f.Blacklist
	}
	if f.ScopeReportDistance != nil {
		c.ScopeReportDistance = *f.ScopeReportDistance
	}
	if f.ScopeSearchDistance != nil {
		c.ScopeSearchDistance = *f.ScopeSearchDistance
	}
	if f.ScopeDNSSearchDistance != nil {
		c.ScopeDNSSearchDistance = *f.ScopeDNSSearchDistance
	}
	if f.MaxThreads != nil {
		c.MaxThreads = *f.MaxThreads
	}
	if f.MaxDNSThreads != nil {
		c.MaxDNSThreads = *f.MaxDNSThreads
	}
	if f.DNSResolution != nil {
		c.DNSResolution = *f.DNSResolution
	}
	if f.DNSServers != nil {
		c.DNSServers = f.DNSServers
	}
	if f.DNSTimeout != nil {
		c.DNSTimeout = *f.DNSTimeout
	}
	if f.DNSRetries != nil {
		c.DNSRetries = *f.DNSRetries
	}
	if f.DNSRateLimit != nil {
		c.DNSRateLimit = *f.DNSRateLimit
	}
	if f.DNSCacheSize != nil {
		c.DNSCacheSize = *f.DNSCacheSize
	}
	if f.DNSWildcardIgnore != nil {
		c.DNSWildcardIgnore = f.DNSWildcardIgnore
	}
	if f.DNSWildcardTests != nil {
		c.DNSWildcardTests = *f.DNSWildcardTests
	}
	if f.DNSAbortThreshold != nil {
		c.DNSAbortThreshold = *f.DNSAbortThreshold
	}
	if f.DNSFilterPTRs != nil {
		c.DNSFilterPTRs = *f.DNSFilterPTRs
	}
	if f.WebSpiderDistance != nil {
		c.WebSpiderDistance = *f.WebSpiderDistance
	}
	if f.WebSpiderDepth != nil {
		c.WebSpiderDepth = *f.WebSpiderDepth
	}
	if f.WebSpiderIgnore != nil {
		c.WebSpiderIgnore = f.WebSpiderIgnore
	}
	if f.URLExtensionBlacklist != nil {
		c.URLExtensionBlacklist = f.URLExtensionBlacklist
	}
	if f.URLExtensionHTTPXOnly != nil {
		c.URLExtensionHTTPXOnly = f.URLExtensionHTTPXOnly
	}
	if f.HTTPTimeout != nil {
		c.HTTPTimeout = *f.HTTPTimeout
	}
	if f.HTTPXTimeout != nil {
		c.HTTPXTimeout = *f.HTTPXTimeout
	}
	if f.HTTPProxy != nil {
		c.HTTPProxy = *f.HTTPProxy
	}
	if f.SSLVerify != nil {
		c.SSLVerify = *f.SSLVerify
	}
	if f.UserAgent != nil {
		c.UserAgent = *f.UserAgent
	}
	if f.HTTPMaxBody != nil {
		c.HTTPMaxBody = *f.HTTPMaxBody
	}
	if f.InteractshServer != nil {
		c.InteractshServer = *f.InteractshServer
	}
	if f.InteractshToken != nil {
		c.InteractshToken = *f.InteractshToken
	}
	if f.InteractshDisable != nil {
		c.InteractshDisable = *f.InteractshDisable
	}
	if f.DBDir != nil {
		c.DBDir = *f.DBDir
	}
	if f.SaveToDB != nil {
		c.SaveToDB = *f.SaveToDB
	}
}

// FromConfig captures a Config as a fully populated File, used to dump
// the effective configuration back out as YAML.
func FromConfig(c *Config) *File {
	return &File{
		ScanName:  &c.ScanName,
		Targets:   c.Targets,
		Whitelist: c.Whitelist,
		Blacklist: c.Blacklist,

		ScopeReportDistance:    &c.ScopeReportDistance,
		ScopeSearchDistance:    &c.ScopeSearchDistance,
		ScopeDNSSearchDistance: &c.ScopeDNSSearchDistance,

		MaxThreads:    &c.MaxThreads,
		MaxDNSThreads: &c.MaxDNSThreads,

		DNSResolution:     &c.DNSResolution,
		DNSServers:        c.DNSServers,
		DNSTimeout:        &c.DNSTimeout,
		DNSRetries:        &c.DNSRetries,
		DNSRateLimit:      &c.DNSRateLimit,
		DNSCacheSize:      &c.DNSCacheSize,
		DNSWildcardIgnore: c.DNSWildcardIgnore,
		DNSWildcardTests:  &c.DNSWildcardTests,
		DNSAbortThreshold: &c.DNSAbortThreshold,
		DNSFilterPTRs:     &c.DNSFilterPTRs,

		WebSpiderDistance:     &c.WebSpiderDistance,
		WebSpiderDepth:        &c.WebSpiderDepth,
		WebSpiderIgnore:       c.WebSpiderIgnore,
		URLExtensionBlacklist: c.URLExtensionBlacklist,
		URLExtensionHTTPXOnly: c.URLExtensionHTTPXOnly,

		HTTPTimeout:  &c.HTTPTimeout,
		HTTPXTimeout: &c.HTTPXTimeout,
		HTTPProxy:    &c.HTTPProxy,
		SSLVerify:    &c.SSLVerify,
		UserAgent:    &c.UserAgent,
		HTTPMaxBody:  &c.HTTPMaxBody,

		InteractshServer:  &c.InteractshServer,
		InteractshToken:   &c.InteractshToken,
		InteractshDisable: &c.InteractshDisable,

		DBDir:    &c.DBDir,
		SaveToDB: &c.SaveToDB,
	}
}

// FindConfigFile resolves the configuration file location:
//  1. the explicit path, if given
//  2. .bbot.yml in the current directory
//  3. bbot.yml in the XDG config directory
//
// Returns the empty string when nothing is found.
func FindConfigFile(configPath string) string {
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
		return ""
	}

	cwd, err := os.Getwd()
	if err == nil {
		cwdConfig := filepath.Join(cwd, DefaultConfigFile)
		if _, err := os.Stat(cwdConfig); err == nil {
			return cwdConfig
		}
	}

	xdgConfig := filepath.Join(XDGConfigDir(), "bbot.yml")
	if _, err := os.Stat(xdgConfig); err == nil {
		return xdgConfig
	}

	return ""
}
