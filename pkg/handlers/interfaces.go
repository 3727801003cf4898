package handlers

import (
	"context"

	"github.com/jadylc/inviter-scout/internal/domain"
	"github.com/jadylc/inviter-scout/pkg/httpclient"
)

// Handler is one site-extraction strategy: a stateless URL predicate plus
// the inviter lookup for sites it claims. Instances own their HTTP session
// and live for a single site-processing pass.
type Handler interface {
	Name() string
	Match(siteURL string) bool
	InviterInfo(ctx context.Context, creds domain.SiteCredentials) (*domain.InviterRecord, error)
}

// HTTPClient aliases the shared httpclient.Client interface for clarity within handlers.
type HTTPClient = httpclient.Client
