package scanner

import (
	"context"
	"fmt"
	"sort"

	"SpaceDealScanner/internal/domain"
)

// Request carries all parameters required to execute a scan.
type Request struct {
	Source   domain.SourceType
	BaseURL  string
	Targets  []string
	MinYear  int
	MaxPages int
	PerPage  int
	Options  map[string]string
}

// Pages returns the page budget, at least one.
func (r Request) Pages() int {
	if r.MaxPages < 1 {
		return 1
	}
	return r.MaxPages
}

// Scanner captures a single provider strategy (WordPress REST, RSS, etc.).
// Scan may return articles together with an error when a later page failed;
// callers keep what was collected.
type Scanner interface {
	Name() string
	Scan(ctx context.Context, req Request) ([]domain.RawArticle, error)
}

// Registry keeps a mapping from scanner names to their implementations.
type Registry struct {
	scanners map[string]Scanner
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{scanners: map[string]Scanner{}}
}

// Register adds or replaces a scanner implementation.
func (r *Registry) Register(scanner Scanner) {
	if r.scanners == nil {
		r.scanners = map[string]Scanner{}
	}
	r.scanners[scanner.Name()] = scanner
}

// Resolve returns a scanner by name or an error if it is absent.
func (r *Registry) Resolve(name string) (Scanner, error) {
	if scanner, ok := r.scanners[name]; ok {
		return scanner, nil
	}
	return nil, fmt.Errorf("scanner %s is not registered", name)
}

// Names lists registered scanners in lexical order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.scanners))
	for name := range r.scanners {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
