// Package httpserver holds the http.Server defaults so main stays lean.
package httpserver

import (
	"net/http"
	"time"
)

// New builds an http.Server with timeouts suitable for a public edge
// service. Handler-level deadlines are enforced separately by the timeout
// middleware.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}
