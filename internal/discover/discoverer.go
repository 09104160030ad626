package discover

import (
	"context"
	"sort"
	"strings"

	"github.com/happycreater/binance-historical-data/internal/errors"
	"github.com/happycreater/binance-historical-data/internal/index"
	"github.com/happycreater/binance-historical-data/internal/vision"
)

// Lister enumerates directory children of a remote prefix
type Lister interface {
	ListChildDirs(ctx context.Context, prefix string) ([]string, error)
}

// SymbolSource provides the full symbol universe for a product, the
// degraded path when the listing service is unavailable.
type SymbolSource interface {
	FetchSymbols(ctx context.Context, product string) ([]string, error)
}

// Discoverer resolves symbol selectors to concrete symbol sets. Literal
// selectors pass through untouched; wildcard selectors are matched against
// the remote symbol directory listing, cached across runs.
type Discoverer struct {
	cache          index.Store
	lister         Lister
	symbolSource   SymbolSource
	useRemoteIndex bool
	refresh        bool
}

// Option configures a Discoverer
type Option func(*Discoverer)

// WithoutRemoteIndex disables listing-service use; wildcard resolution goes
// straight to the symbol API.
func WithoutRemoteIndex() Option {
	return func(d *Discoverer) { d.useRemoteIndex = false }
}

// WithRefresh bypasses cached listings, forcing a remote re-fetch
func WithRefresh() Option {
	return func(d *Discoverer) { d.refresh = true }
}

// NewDiscoverer creates a symbol discoverer
func NewDiscoverer(cache index.Store, lister Lister, symbolSource SymbolSource, opts ...Option) *Discoverer {
	d := &Discoverer{
		cache:          cache,
		lister:         lister,
		symbolSource:   symbolSource,
		useRemoteIndex: true,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Resolve expands selectors into a sorted, deduplicated symbol set.
// Literal selectors are trusted and never probed; an empty selector list
// means "every symbol the universe knows". Only wildcard selectors cost I/O.
func (d *Discoverer) Resolve(ctx context.Context, product, dataType string, byDay bool, selectors []string) ([]string, error) {
	upper := make([]string, 0, len(selectors))
	for _, s := range selectors {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s != "" {
			upper = append(upper, s)
		}
	}

	resolved := make(map[string]struct{})
	var patterns []*Pattern
	for _, selector := range upper {
		if IsWildcard(selector) {
			patterns = append(patterns, Compile(selector))
		} else {
			resolved[selector] = struct{}{}
		}
	}

	if len(patterns) > 0 || len(upper) == 0 {
		universe, err := d.universe(ctx, product, dataType, byDay)
		if err != nil {
			return nil, err
		}
		if len(upper) == 0 {
			for _, symbol := range universe {
				resolved[strings.ToUpper(symbol)] = struct{}{}
			}
		}
		for _, pattern := range patterns {
			for _, symbol := range pattern.MatchAny(universe) {
				resolved[strings.ToUpper(symbol)] = struct{}{}
			}
		}
	}

	symbols := make([]string, 0, len(resolved))
	for symbol := range resolved {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)
	return symbols, nil
}

// universe returns the candidate symbol set for wildcard matching,
// preferring the cached remote listing and degrading to the symbol API.
func (d *Discoverer) universe(ctx context.Context, product, dataType string, byDay bool) ([]string, error) {
	if d.useRemoteIndex {
		prefix := vision.SymbolParentPrefix(product, dataType, byDay)
		if d.refresh {
			// the stale entry goes away even if the re-fetch below fails
			_ = d.cache.Invalidate(prefix)
		} else if names, ok := d.cache.Lookup(prefix); ok {
			return names, nil
		}
		names, err := d.lister.ListChildDirs(ctx, prefix)
		if err == nil {
			// A store failure degrades the next run's warmth, not this one
			_ = d.cache.Store(prefix, names)
			return names, nil
		}
	}

	symbols, err := d.symbolSource.FetchSymbols(ctx, product)
	if err != nil {
		return nil, errors.NewCacheError("discover", "resolve_universe", err)
	}
	return symbols, nil
}
