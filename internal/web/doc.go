// Package web is the HTTP fetch service behind URL discovery. It owns
// the shared http.Client, its proxy and TLS configuration, redirect
// and body-size limits, and the distinction between a full fetch and a
// cheap probe.
package web
