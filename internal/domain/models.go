package domain

import "time"

// Domain contains core models shared across packages.

// SiteCredentials carries everything needed to fetch authenticated pages
// from one tracker site. The cookie is an opaque pre-authenticated string;
// no login flow is performed.
type SiteCredentials struct {
	ID             string
	Name           string
	URL            string
	Cookie         string
	UserAgent      string
	Proxy          string
	TimeoutSeconds int
}

// Timeout returns the read timeout for page fetches against this site.
func (c SiteCredentials) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 20 * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// GetTimeLayout is the timestamp format used in persisted records.
const GetTimeLayout = "2006-01-02 15:04:05"

// InviterRecord is the extracted result for one site. Absent values are
// empty strings, never omitted keys, so downstream consumers stay simple.
type InviterRecord struct {
	InviterName  string `json:"inviter_name"`
	InviterID    string `json:"inviter_id"`
	InviterEmail string `json:"inviter_email"`
	GetTime      string `json:"get_time"`
}

// Stamp sets the retrieval timestamp on the record.
func (r *InviterRecord) Stamp(t time.Time) {
	r.GetTime = t.Format(GetTimeLayout)
}
