package handlers

import (
	"context"
	"testing"
)

type memVerdictCache struct {
	verdicts map[string]bool
	sets     int
}

func newMemVerdictCache() *memVerdictCache {
	return &memVerdictCache{verdicts: make(map[string]bool)}
}

func (m *memVerdictCache) Verdict(siteURL string) (bool, bool, error) {
	v, ok := m.verdicts[siteURL]
	return v, ok, nil
}

func (m *memVerdictCache) SetVerdict(siteURL string, supported bool) error {
	m.verdicts[siteURL] = supported
	m.sets++
	return nil
}

const recognizablePage = `<html><body>
	<a href="userdetails.php?id=1">profile</a>
	<a href="torrents.php">torrents</a>
	<a href="my.php">cp</a>
	<td class="rowhead">Uploaded</td>
</body></html>`

func TestProberRecognizesEngineMarkup(t *testing.T) {
	base := "https://pt.example"
	client := &stubClient{pages: map[string]string{
		base + "/userdetails.php?id=0": recognizablePage,
	}}

	p := NewProber(NewPageFetcher(client, 1), nil)
	if !p.Supported(context.Background(), testCreds()) {
		t.Fatalf("expected a positive verdict")
	}
}

func TestProberRejectsUnrelatedSite(t *testing.T) {
	base := "https://pt.example"
	client := &stubClient{pages: map[string]string{
		base + "/": `<html><body><h1>A blog about gardening</h1></body></html>`,
	}}

	p := NewProber(NewPageFetcher(client, 1), nil)
	if p.Supported(context.Background(), testCreds()) {
		t.Fatalf("expected a negative verdict")
	}
}

func TestProberAcceptsHomepageSignature(t *testing.T) {
	base := "https://pt.example"
	client := &stubClient{pages: map[string]string{
		base + "/": `<html><script>var SITENAME = "PT Example";</script></html>`,
	}}

	p := NewProber(NewPageFetcher(client, 1), nil)
	if !p.Supported(context.Background(), testCreds()) {
		t.Fatalf("expected a positive verdict from the homepage signature")
	}
}

func TestProberMemoizesVerdicts(t *testing.T) {
	base := "https://pt.example"
	cache := newMemVerdictCache()
	client := &stubClient{pages: map[string]string{
		base + "/userdetails.php?id=0": recognizablePage,
	}}

	p := NewProber(NewPageFetcher(client, 1), cache)
	if !p.Supported(context.Background(), testCreds()) {
		t.Fatalf("expected a positive verdict")
	}
	if cache.sets != 1 {
		t.Fatalf("expected one cache write, got %d", cache.sets)
	}

	fetchedBefore := len(client.calls)
	if !p.Supported(context.Background(), testCreds()) {
		t.Fatalf("expected the cached verdict")
	}
	if len(client.calls) != fetchedBefore {
		t.Fatalf("cached verdict must not re-probe (calls %d -> %d)", fetchedBefore, len(client.calls))
	}
	if cache.sets != 1 {
		t.Fatalf("cached verdict must not be rewritten, got %d writes", cache.sets)
	}
}
