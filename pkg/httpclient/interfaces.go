package httpclient

import (
	"context"
	"net/http"
)

// Response is a minimal HTTP response contract.
type Response interface {
	Body() []byte
	StatusCode() int
	// FinalURL is the request URL after any redirects were followed.
	FinalURL() string
}

// Client abstracts HTTP calls so callers can inject mocks or different transports.
type Client interface {
	Get(ctx context.Context, url string, headers map[string]string) (Response, error)
}

// CookieReader exposes cookies accumulated by a session over its lifetime.
// The self-identity resolver inspects these as a last resort.
type CookieReader interface {
	Cookies(rawURL string) []*http.Cookie
}
