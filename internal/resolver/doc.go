// Package resolver schedules concurrent DNS lookups for the scan. It
// bounds concurrency and query rate, retries transient failures,
// circuit-breaks domains whose servers keep failing, and filters
// answers through wildcard DNS detection so that a wildcard-configured
// domain cannot flood the event graph with fabricated hosts.
package resolver
