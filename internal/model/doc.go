// Package model defines the event vocabulary shared by every stage of a
// scan.
//
// An Event is a typed, normalized observation (a DNS name, an IP
// address, a URL) discovered during a scan. Events are immutable after
// creation except for derived tags, carry their parent's identifier so
// the graph can reconstruct discovery paths, and normalize their data
// on construction so equal observations always hash to the same
// identifier.
//
// The package also holds the normalization helpers (NormalizeHost,
// NormalizeURL, URLPathDepth and friends) used by the scope classifier
// and the spider, and EventRecord, the flat serializable snapshot
// written to outputs and the asset database.
package model
