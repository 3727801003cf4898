package store

import (
	"path/filepath"
	"testing"
)

func TestProbeCacheRoundTrip(t *testing.T) {
	cache, err := NewProbeCache(filepath.Join(t.TempDir(), "probe.db"), Options{})
	if err != nil {
		t.Fatalf("NewProbeCache: %v", err)
	}
	defer cache.Close()

	if _, known, err := cache.Verdict("https://pt.example"); err != nil || known {
		t.Fatalf("fresh cache should be unknown (known=%v err=%v)", known, err)
	}

	if err := cache.SetVerdict("https://pt.example", true); err != nil {
		t.Fatalf("SetVerdict: %v", err)
	}
	if err := cache.SetVerdict("https://blog.example", false); err != nil {
		t.Fatalf("SetVerdict: %v", err)
	}

	supported, known, err := cache.Verdict("https://pt.example")
	if err != nil || !known || !supported {
		t.Fatalf("Verdict = (%v, %v, %v), want supported", supported, known, err)
	}

	supported, known, err = cache.Verdict("https://blog.example")
	if err != nil || !known || supported {
		t.Fatalf("Verdict = (%v, %v, %v), want known unsupported", supported, known, err)
	}
}

func TestProbeCachePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "probe.db")

	cache, err := NewProbeCache(path, Options{})
	if err != nil {
		t.Fatalf("NewProbeCache: %v", err)
	}
	if err := cache.SetVerdict("https://pt.example", true); err != nil {
		t.Fatalf("SetVerdict: %v", err)
	}
	if err := cache.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := NewProbeCache(path, Options{})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	supported, known, err := reopened.Verdict("https://pt.example")
	if err != nil || !known || !supported {
		t.Fatalf("Verdict = (%v, %v, %v), want supported", supported, known, err)
	}
}

func TestProbeCacheEmptyPathDisablesCaching(t *testing.T) {
	cache, err := NewProbeCache("", Options{})
	if err != nil {
		t.Fatalf("NewProbeCache: %v", err)
	}
	defer cache.Close()

	if err := cache.SetVerdict("https://pt.example", true); err != nil {
		t.Fatalf("SetVerdict: %v", err)
	}
	if _, known, err := cache.Verdict("https://pt.example"); err != nil || known {
		t.Fatalf("disabled cache must stay unknown (known=%v err=%v)", known, err)
	}
}
