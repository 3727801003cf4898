package httpclient

import (
	"context"
	"net/http"
	"net/http/cookiejar"
	"net/url"

	"github.com/go-resty/resty/v2"
	"github.com/jadylc/inviter-scout/internal/domain"
)

const (
	defaultAccept         = "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"
	defaultAcceptLanguage = "zh-CN,zh;q=0.8,en-US;q=0.5,en;q=0.3"
	defaultUserAgent      = "Mozilla/5.0"
)

// SessionClient is a per-handler-instance HTTP session carrying the
// authenticated headers, cookie jar, and proxy for one site. It is rebuilt
// explicitly when credentials change rather than mutated in place.
type SessionClient struct {
	client *resty.Client
	jar    http.CookieJar
	key    sessionKey
	built  bool
}

// sessionKey identifies the credential set a session was built for.
type sessionKey struct {
	url       string
	cookie    string
	userAgent string
	proxy     string
	timeout   int
}

func keyFor(creds domain.SiteCredentials) sessionKey {
	return sessionKey{
		url:       creds.URL,
		cookie:    creds.Cookie,
		userAgent: creds.UserAgent,
		proxy:     creds.Proxy,
		timeout:   creds.TimeoutSeconds,
	}
}

// NewSession returns an empty session; the client is built on first use.
func NewSession() *SessionClient {
	return &SessionClient{}
}

// Rebuild ensures the underlying client matches the given credentials,
// constructing or replacing it when they differ from the prior use.
func (s *SessionClient) Rebuild(creds domain.SiteCredentials) {
	key := keyFor(creds)
	if s.built && key == s.key {
		return
	}

	jar, _ := cookiejar.New(nil)

	ua := creds.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}

	c := resty.New()
	c.SetTransport(newDialTransport())
	c.SetTimeout(creds.Timeout())
	c.SetCookieJar(jar)
	c.SetHeaders(map[string]string{
		"User-Agent":      ua,
		"Cookie":          creds.Cookie,
		"Referer":         creds.URL,
		"Accept":          defaultAccept,
		"Accept-Language": defaultAcceptLanguage,
	})
	if creds.Proxy != "" {
		c.SetProxy(creds.Proxy)
	}

	s.client = c
	s.jar = jar
	s.key = key
	s.built = true
}

// Get performs a GET through the session. Rebuild must have been called.
func (s *SessionClient) Get(ctx context.Context, rawURL string, headers map[string]string) (Response, error) {
	req := s.client.R().SetContext(ctx)
	if len(headers) > 0 {
		req.SetHeaders(headers)
	}
	resp, err := req.Get(rawURL)
	if err != nil {
		return nil, err
	}
	return &restyResponseAdapter{resp: resp}, nil
}

// Cookies returns the cookies the session has accumulated for the given URL.
func (s *SessionClient) Cookies(rawURL string) []*http.Cookie {
	if s.jar == nil {
		return nil
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil
	}
	return s.jar.Cookies(u)
}
