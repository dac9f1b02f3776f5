package site

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	dErrors "github.com/gov-cy/govcy-express-services-sub001/pkg/domain-errors"
	"github.com/gov-cy/govcy-express-services-sub001/pkg/platform/sentinel"
)

// Registry holds the loaded services keyed by site id.
type Registry struct {
	mu     sync.RWMutex
	sites  map[string]*Site
	logger *slog.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger used while loading.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		r.logger = logger
	}
}

// NewRegistry returns an empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		sites:  make(map[string]*Site),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register validates and adds a site, replacing any site with the same id.
func (r *Registry) Register(s *Site) error {
	if err := validate(s); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sites[s.ID()] = s
	return nil
}

// Get returns the site with the given id.
func (r *Registry) Get(siteID string) (*Site, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sites[siteID]
	if !ok {
		return nil, dErrors.Wrap(sentinel.ErrNotFound, dErrors.CodeNotFound, "service not found: "+siteID)
	}
	return s, nil
}

// IDs returns the registered site ids, sorted.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.sites))
	for id := range r.sites {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// LoadDir reads every .yaml, .yml and .json file in dir. JSON is parsed by the
// YAML decoder, which accepts it as a subset.
func (r *Registry) LoadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeConfiguration, "read sites directory")
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".yaml", ".yml", ".json":
		default:
			continue
		}
		path := filepath.Join(dir, entry.Name())
		raw, err := os.ReadFile(path)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeConfiguration, "read "+path)
		}
		s, err := Parse(raw)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeConfiguration, "parse "+path)
		}
		if s.Site.ID == "" {
			s.Site.ID = strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))
		}
		if err := r.Register(s); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		r.logger.Info("site loaded", "site_id", s.ID(), "pages", len(s.Pages))
	}
	return nil
}

// Parse decodes one site document.
func Parse(raw []byte) (*Site, error) {
	var s Site
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	if err := dec.Decode(&s); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeConfiguration, "decode site")
	}
	return &s, nil
}

func validate(s *Site) error {
	if s == nil || strings.TrimSpace(s.Site.ID) == "" {
		return dErrors.New(dErrors.CodeConfiguration, "site id is required")
	}
	seen := make(map[string]struct{}, len(s.Pages))
	for _, p := range s.Pages {
		url := p.PageData.URL
		if url == "" {
			return dErrors.Newf(dErrors.CodeConfiguration, "site %s has a page without url", s.Site.ID)
		}
		if _, dup := seen[url]; dup {
			return dErrors.Newf(dErrors.CodeConfiguration, "site %s has duplicate page url %q", s.Site.ID, url)
		}
		seen[url] = struct{}{}
	}
	return nil
}
