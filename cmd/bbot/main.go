// Package main provides the entry point for the bbot CLI.
//
// bbot maps the attack surface of a set of targets: it resolves names,
// follows links within configurable scope bounds, and records every
// discovered asset in an event graph.
//
// Usage:
//
//	bbot scan example.com
//	bbot assets --list
//
// See --help for all available options.
package main

// main is the entry point for bbot.
func main() {
	Execute()
}
