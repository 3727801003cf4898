package sites

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/jadylc/inviter-scout/internal/domain"
	"gopkg.in/yaml.v3"
)

// Package sites loads the active-site credential registry (YAML/JSON).
// The registry is read-only input: this module never mutates site entries.

// Site is one configured tracker site entry as declared in the sites file.
type Site struct {
	ID             string `json:"id" yaml:"id"`
	Name           string `json:"name" yaml:"name"`
	URL            string `json:"url" yaml:"url"`
	Cookie         string `json:"cookie" yaml:"cookie"`
	UserAgent      string `json:"user_agent" yaml:"user_agent"`
	Proxy          string `json:"proxy" yaml:"proxy"`
	TimeoutSeconds int    `json:"timeout_seconds" yaml:"timeout_seconds"`
	Enabled        *bool  `json:"enabled" yaml:"enabled"`
}

// Credentials converts the registry entry to the per-attempt value passed
// into handlers.
func (s Site) Credentials() domain.SiteCredentials {
	return domain.SiteCredentials{
		ID:             s.ID,
		Name:           s.Name,
		URL:            s.URL,
		Cookie:         s.Cookie,
		UserAgent:      s.UserAgent,
		Proxy:          s.Proxy,
		TimeoutSeconds: s.TimeoutSeconds,
	}
}

// EnabledValue returns the enabled flag defaulting to true.
func (s Site) EnabledValue() bool {
	if s.Enabled == nil {
		return true
	}
	return *s.Enabled
}

type registryFile struct {
	Sites []Site `json:"sites" yaml:"sites"`
}

// Registry holds the loaded site entries.
type Registry struct {
	mu    sync.RWMutex
	sites []Site
	idx   map[string]Site
}

const defaultTimeoutSeconds = 20

// LoadRegistry loads the site registry from a YAML/JSON file.
func LoadRegistry(path string) (*Registry, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("sites file path is empty")
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open sites file: %w", err)
	}
	defer file.Close()

	raw, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("read sites file: %w", err)
	}

	fileReg, err := parseRegistry(raw, filepath.Ext(path))
	if err != nil {
		return nil, err
	}
	if len(fileReg.Sites) == 0 {
		return nil, errors.New("sites file contains no site entries")
	}

	reg := &Registry{
		sites: make([]Site, len(fileReg.Sites)),
		idx:   make(map[string]Site, len(fileReg.Sites)),
	}

	for i := range fileReg.Sites {
		s := sanitizeSite(fileReg.Sites[i])
		if err := validateSite(s); err != nil {
			return nil, fmt.Errorf("sites[%d]: %w", i, err)
		}
		if _, exists := reg.idx[s.ID]; exists {
			return nil, fmt.Errorf("duplicate site id %q", s.ID)
		}
		reg.sites[i] = s
		reg.idx[s.ID] = s
	}

	return reg, nil
}

type unmarshalFn func([]byte, any) error

// parseRegistry attempts to decode the sites file content.
func parseRegistry(data []byte, ext string) (registryFile, error) {
	ext = strings.ToLower(strings.TrimSpace(ext))
	decoders := []struct {
		name string
		ext  string
		fn   unmarshalFn
	}{
		{name: "yaml", ext: ".yaml", fn: yaml.Unmarshal},
		{name: "yaml", ext: ".yml", fn: yaml.Unmarshal},
		{name: "json", ext: ".json", fn: json.Unmarshal},
	}

	for _, d := range decoders {
		if ext != "" && ext != d.ext {
			continue
		}
		if reg, err := unmarshalRegistry(d.name, data, d.fn); err == nil {
			return reg, nil
		}
	}

	return registryFile{}, errors.New("sites file format not recognized (expected YAML or JSON)")
}

func unmarshalRegistry(name string, data []byte, fn unmarshalFn) (registryFile, error) {
	var reg registryFile
	if err := fn(data, &reg); err != nil {
		return registryFile{}, fmt.Errorf("decode %s sites: %w", name, err)
	}
	return reg, nil
}

func sanitizeSite(s Site) Site {
	s.ID = strings.TrimSpace(s.ID)
	s.Name = strings.TrimSpace(s.Name)
	s.URL = strings.TrimRight(strings.TrimSpace(s.URL), "/")
	s.Cookie = strings.TrimSpace(s.Cookie)
	s.UserAgent = strings.TrimSpace(s.UserAgent)
	s.Proxy = strings.TrimSpace(s.Proxy)

	if s.TimeoutSeconds <= 0 {
		s.TimeoutSeconds = defaultTimeoutSeconds
	}

	return s
}

func validateSite(s Site) error {
	if s.ID == "" {
		return errors.New("id is required")
	}
	if s.Name == "" {
		return fmt.Errorf("name is required for site %q", s.ID)
	}
	if s.URL == "" {
		return fmt.Errorf("url is required for site %q", s.ID)
	}
	return nil
}

// All returns a copy of the loaded site entries in file order.
func (r *Registry) All() []Site {
	if r == nil {
		return nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Site, len(r.sites))
	copy(out, r.sites)
	return out
}

// Active returns the enabled site entries in file order.
func (r *Registry) Active() []Site {
	all := r.All()
	if len(all) == 0 {
		return nil
	}

	out := make([]Site, 0, len(all))
	for _, s := range all {
		if s.EnabledValue() {
			out = append(out, s)
		}
	}
	return out
}

// ByID returns the site entry for the given id, if loaded.
func (r *Registry) ByID(id string) (Site, bool) {
	if r == nil {
		return Site{}, false
	}

	id = strings.TrimSpace(id)
	if id == "" {
		return Site{}, false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.idx[id]
	return s, ok
}
