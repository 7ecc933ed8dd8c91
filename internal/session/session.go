// Package session builds the HTTP session shared by listing fetches and PDF
// downloads within one run.
package session

import (
	"net"
	"net/http"
	"time"
)

// Session owns the single pooled transport used for every request of a run.
// It is safe for concurrent use.
type Session struct {
	transport *http.Transport
	userAgent string
}

// New creates a Session with a pooled transport sized for maxConnsPerHost
// concurrent connections to the source host. headerTimeout bounds the wait
// for response headers; zero disables it.
func New(userAgent string, maxConnsPerHost int, headerTimeout time.Duration) *Session {
	return &Session{
		transport: newHTTPTransport(maxConnsPerHost, headerTimeout),
		userAgent: userAgent,
	}
}

// Transport exposes the shared round tripper.
func (s *Session) Transport() http.RoundTripper {
	return s.transport
}

// UserAgent is the User-Agent header sent with every request.
func (s *Session) UserAgent() string {
	return s.userAgent
}

// Client returns an http.Client over the shared transport. It sets no overall
// timeout so large bodies can stream for as long as data keeps arriving;
// callers bound stalls themselves.
func (s *Session) Client() *http.Client {
	return &http.Client{Transport: s.transport}
}

// Close releases idle connections.
func (s *Session) Close() {
	s.transport.CloseIdleConnections()
}

func newHTTPTransport(maxConnsPerHost int, headerTimeout time.Duration) *http.Transport {
	if maxConnsPerHost <= 0 {
		maxConnsPerHost = 1
	}
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ResponseHeaderTimeout: headerTimeout,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   maxConnsPerHost + 1,
		MaxConnsPerHost:       maxConnsPerHost + 1,
		IdleConnTimeout:       90 * time.Second,
		ForceAttemptHTTP2:     true,
	}
}
