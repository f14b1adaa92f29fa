// Package config provides the configuration surface for the scanner:
// scope distance thresholds, DNS resolution policy, spider bounds and
// the HTTP client settings. Values are layered in order: defaults,
// optional YAML file, CLI flags.
package config
