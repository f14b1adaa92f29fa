// Package scan orchestrates a scan: it owns the event queues and
// worker pools, drives scope classification, DNS resolution and module
// dispatch for every discovered event, and decides when the scan is
// drained.
//
// Two pools run side by side so DNS latency cannot starve general
// processing: general workers classify events, fetch pages and run
// modules, while DNS workers only resolve. Discovered items re-enter
// through the queues as new tasks rather than nested calls, which keeps
// recursion depth flat and makes termination a queue-drain condition.
package scan
