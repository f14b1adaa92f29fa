// Package graph holds the event graph: the deduplicated DAG of
// everything a scan has discovered. It owns every event; parent
// references on events are weak back-links into this structure.
//
// The graph is striped into independent lock shards keyed by the
// normalized event value, so concurrent inserts of unrelated values do
// not contend. The dedup check and insert are atomic within a shard.
package graph
