package handlers

import (
	"context"
	"testing"

	"github.com/jadylc/inviter-scout/internal/domain"
)

func TestDefaultRegistrySelectsMTeamFirst(t *testing.T) {
	reg := DefaultRegistry(&stubClient{}, 1)

	h := reg.Select("https://kp.m-team.cc")
	if h == nil {
		t.Fatalf("expected a handler")
	}
	if h.Name() != "mteam" {
		t.Fatalf("handler = %q, want mteam", h.Name())
	}
}

func TestDefaultRegistrySelectsTTG(t *testing.T) {
	reg := DefaultRegistry(&stubClient{}, 1)

	h := reg.Select("https://totheglory.im")
	if h == nil || h.Name() != "totheglory" {
		t.Fatalf("expected totheglory handler, got %v", h)
	}
}

func TestDefaultRegistryFallsThroughToGeneric(t *testing.T) {
	reg := DefaultRegistry(&stubClient{}, 1)

	h := reg.Select("https://audiences.me")
	if h == nil || h.Name() != "nexusphp" {
		t.Fatalf("expected generic handler, got %v", h)
	}
}

func TestRegistrySelectReturnsNilWhenUnclaimed(t *testing.T) {
	reg := DefaultRegistry(&stubClient{}, 1)

	if h := reg.Select("https://example.org"); h != nil {
		t.Fatalf("expected nil, got %q", h.Name())
	}
}

type panickyHandler struct{}

func (panickyHandler) Name() string          { return "panicky" }
func (panickyHandler) Match(string) bool     { panic("boom") }
func (panickyHandler) InviterInfo(context.Context, domain.SiteCredentials) (*domain.InviterRecord, error) {
	return nil, nil
}

func TestRegistryTreatsPanickingMatchAsNonMatch(t *testing.T) {
	reg := NewRegistry(
		func() Handler { return panickyHandler{} },
		func() Handler { return NewGenericHandler(&stubClient{}, 1) },
	)

	h := reg.Select("https://audiences.me")
	if h == nil || h.Name() != "nexusphp" {
		t.Fatalf("expected generic handler after panic, got %v", h)
	}
}

func TestRegistryGenericReturnsLastFactory(t *testing.T) {
	reg := DefaultRegistry(&stubClient{}, 1)
	h := reg.Generic()
	if h == nil || h.Name() != "nexusphp" {
		t.Fatalf("Generic() = %v, want nexusphp", h)
	}
}

func TestGenericMatchRejectsSpecialSites(t *testing.T) {
	h := NewGenericHandler(&stubClient{}, 1)
	for _, u := range []string{"https://kp.m-team.cc", "https://totheglory.im", "https://hdchina.org"} {
		if h.Match(u) {
			t.Errorf("generic engine must not claim %s", u)
		}
	}
	if !h.Match("https://pt.example.php") {
		t.Errorf("generic engine should claim nexus-style urls")
	}
}
