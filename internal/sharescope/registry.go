// Package sharescope tracks which versions of each shared module are
// provided in a share scope and picks the one a consumer should load.
//
// A Registry is owned by the host and passed explicitly; there is no
// process-wide scope.
package sharescope

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/anvil-platform/federation/internal/resolver"
	"github.com/anvil-platform/federation/internal/semver"
)

// DefaultScope is used when a share config names no scope.
const DefaultScope = "default"

var (
	ErrNoProvider      = errors.New("no provider for shared module")
	ErrVersionMismatch = errors.New("no provided version satisfies requiredVersion")
)

// Provider is one container offering a shared module at a version.
type Provider struct {
	Name    string
	Version string
	Eager   bool
}

// Selection is the outcome of Select. Warning is set when a provider was
// chosen even though it does not satisfy the required version.
type Selection struct {
	Provider Provider
	Warning  string
}

type scopeKey struct {
	scope    string
	shareKey string
}

type provider struct {
	Provider
	version semver.Version
}

type Registry struct {
	mu        sync.RWMutex
	providers map[scopeKey][]provider
}

func New() *Registry {
	return &Registry{providers: map[scopeKey][]provider{}}
}

// Provide registers p for shareKey in scope. A provider with the same name
// replaces the previous registration.
func (r *Registry) Provide(scope, shareKey string, p Provider) error {
	v, err := semver.ParseVersion(p.Version)
	if err != nil {
		return fmt.Errorf("provide %s from %s: %w", shareKey, p.Name, err)
	}
	k := scopeKey{scope: normalizeScope(scope), shareKey: shareKey}

	r.mu.Lock()
	defer r.mu.Unlock()
	list := r.providers[k]
	for i := range list {
		if list[i].Name == p.Name {
			list[i] = provider{Provider: p, version: v}
			return nil
		}
	}
	r.providers[k] = append(list, provider{Provider: p, version: v})
	return nil
}

// ProvideMatched registers every bucketed config that declares a Version
// as provided by container name. Dual-inserted configs are registered once,
// under the unlayered key when one exists.
func (r *Registry) ProvideMatched(name string, m resolver.MatchedConfigs) error {
	var (
		order []*resolver.ShareConfig
		keyOf = map[*resolver.ShareConfig]string{}
	)
	for _, bucket := range []map[string]*resolver.ShareConfig{m.Resolved, m.Unresolved, m.Prefixed} {
		keys := make([]string, 0, len(bucket))
		for k := range bucket {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		for _, k := range keys {
			cfg := bucket[k]
			if cfg == nil || cfg.Version == "" {
				continue
			}
			prev, seen := keyOf[cfg]
			switch {
			case !seen:
				order = append(order, cfg)
				keyOf[cfg] = k
			case isLayered(prev) && !isLayered(k):
				keyOf[cfg] = k
			}
		}
	}

	var errs []error
	for _, cfg := range order {
		err := r.Provide(cfg.ShareScope, shareKeyFor(keyOf[cfg], cfg), Provider{
			Name:    name,
			Version: cfg.Version,
			Eager:   cfg.Eager,
		})
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Providers returns the providers of shareKey, highest version first.
func (r *Registry) Providers(scope, shareKey string) []Provider {
	sorted := r.sorted(scope, shareKey)
	out := make([]Provider, 0, len(sorted))
	for _, p := range sorted {
		out = append(out, p.Provider)
	}
	return out
}

// Select picks the provider a consumer with the given requirements loads.
//
// Without singleton the highest satisfying version wins. With singleton
// the highest provided version is used regardless, and a mismatch is an
// error only when strict. Equal versions tie-break on provider name.
func (r *Registry) Select(scope, shareKey, requiredVersion string, singleton, strict bool) (Selection, error) {
	constraint, err := semver.ParseConstraint(requiredVersion)
	if err != nil {
		return Selection{}, fmt.Errorf("select %s: %w", shareKey, err)
	}

	candidates := r.sorted(scope, shareKey)
	if len(candidates) == 0 {
		return Selection{}, fmt.Errorf("%w %q in scope %q", ErrNoProvider, shareKey, normalizeScope(scope))
	}

	if !singleton {
		versions := make([]semver.Version, 0, len(candidates))
		for _, p := range candidates {
			versions = append(versions, p.version)
		}
		if v, ok := semver.MaxSatisfying(constraint, versions); ok {
			// candidates are sorted, so the first equal version has the
			// lowest provider name.
			for _, p := range candidates {
				if semver.Compare(p.version, v) == 0 {
					return Selection{Provider: p.Provider}, nil
				}
			}
		}
	}

	best := candidates[0]
	if semver.Satisfies(best.version, constraint) {
		return Selection{Provider: best.Provider}, nil
	}
	if strict {
		return Selection{}, fmt.Errorf("%w: %s@%s from %s (required %s)",
			ErrVersionMismatch, shareKey, best.Version, best.Name, constraint)
	}
	kind := "shared"
	if singleton {
		kind = "shared singleton"
	}
	return Selection{
		Provider: best.Provider,
		Warning: fmt.Sprintf("unsatisfied version %s from %s of %s module %s (required %s)",
			best.Version, best.Name, kind, shareKey, constraint),
	}, nil
}

func (r *Registry) sorted(scope, shareKey string) []provider {
	r.mu.RLock()
	list := append([]provider(nil), r.providers[scopeKey{scope: normalizeScope(scope), shareKey: shareKey}]...)
	r.mu.RUnlock()

	// Deterministic ordering:
	// 1) Higher version wins
	// 2) Tie-break: provider name (ascending)
	sort.Slice(list, func(i, j int) bool {
		cmp := semver.Compare(list[i].version, list[j].version)
		if cmp != 0 {
			return cmp > 0
		}
		return list[i].Name < list[j].Name
	})
	return list
}

func normalizeScope(scope string) string {
	if strings.TrimSpace(scope) == "" {
		return DefaultScope
	}
	return scope
}

// shareKeyFor returns the identity a bucketed config is provided under:
// its ShareKey, else the bucket key without a "(layer)" qualifier.
func shareKeyFor(bucketKey string, cfg *resolver.ShareConfig) string {
	if cfg.ShareKey != "" {
		return cfg.ShareKey
	}
	if isLayered(bucketKey) {
		return bucketKey[strings.Index(bucketKey, ")")+1:]
	}
	return bucketKey
}

func isLayered(key string) bool {
	return strings.HasPrefix(key, "(") && strings.Index(key, ")") > 0
}
