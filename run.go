package main

import (
	"context"
	"fmt"
	"io"
	"sort"

	"gopkg.in/yaml.v3"
	"k8s.io/apimachinery/pkg/util/sets"
	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/anvil-platform/federation/internal/config"
	"github.com/anvil-platform/federation/internal/resolver"
	"github.com/anvil-platform/federation/internal/sharescope"
)

// container is one share config file; its name identifies it as a
// provider in the share scope.
type container struct {
	name string
	path string
}

type runner struct {
	containers []container
	context    string
	resolver   resolver.Resolver
	// trace accumulates every batch's dependency trace across runs.
	trace resolver.DependencyTrace
	out   io.Writer
}

type traceReport struct {
	Files    []string `yaml:"files"`
	Contexts []string `yaml:"contexts"`
	Missing  []string `yaml:"missing"`
}

type containerReport struct {
	Resolved   map[string]*resolver.ShareConfig `yaml:"resolved"`
	Unresolved map[string]*resolver.ShareConfig `yaml:"unresolved"`
	Prefixed   map[string]*resolver.ShareConfig `yaml:"prefixed"`
	Errors     []string                         `yaml:"errors,omitempty"`
}

type selectionReport struct {
	Container string `yaml:"container"`
	ShareKey  string `yaml:"shareKey"`
	Provider  string `yaml:"provider,omitempty"`
	Version   string `yaml:"version,omitempty"`
	Warning   string `yaml:"warning,omitempty"`
	Error     string `yaml:"error,omitempty"`
}

type report struct {
	Containers map[string]containerReport `yaml:"containers"`
	Selections []selectionReport          `yaml:"selections,omitempty"`
	Trace      traceReport                `yaml:"trace"`
}

// runOnce resolves every container, builds a share scope from what they
// provide and selects a provider for each versioned requirement. It
// reports false when any request could not be resolved.
func (r *runner) runOnce(ctx context.Context) (bool, error) {
	logger := log.FromContext(ctx)
	registry := sharescope.New()
	rep := report{Containers: map[string]containerReport{}}
	inputs := make(map[string][]resolver.Entry, len(r.containers))
	ok := true

	for _, c := range r.containers {
		entries, err := config.Load(c.path)
		if err != nil {
			return false, err
		}
		plan, err := r.resolver.Resolve(ctx, resolver.Input{Context: r.context, Configs: entries})
		if err != nil {
			return false, fmt.Errorf("resolve %s: %w", c.name, err)
		}
		if err := registry.ProvideMatched(c.name, plan.Matched); err != nil {
			return false, fmt.Errorf("provide %s: %w", c.name, err)
		}
		r.trace.Merge(plan.Trace)

		cr := containerReport{
			Resolved:   plan.Matched.Resolved,
			Unresolved: plan.Matched.Unresolved,
			Prefixed:   plan.Matched.Prefixed,
		}
		for _, e := range plan.Errors {
			cr.Errors = append(cr.Errors, e.Error())
			ok = false
		}
		if len(plan.Errors) > 0 {
			logger.Info("shared modules could not be resolved", "container", c.name, "count", len(plan.Errors))
		}
		rep.Containers[c.name] = cr
		inputs[c.name] = entries
	}

	for _, c := range r.containers {
		rep.Selections = append(rep.Selections, selections(registry, c.name, inputs[c.name])...)
	}
	rep.Trace = traceReport{
		Files:    sets.List(r.trace.Files),
		Contexts: sets.List(r.trace.Contexts),
		Missing:  sets.List(r.trace.Missing),
	}

	enc := yaml.NewEncoder(r.out)
	enc.SetIndent(2)
	if err := enc.Encode(rep); err != nil {
		return false, fmt.Errorf("write report: %w", err)
	}
	return ok, enc.Close()
}

// selections picks a provider for every bare entry with a requiredVersion.
func selections(registry *sharescope.Registry, name string, entries []resolver.Entry) []selectionReport {
	var out []selectionReport
	for _, e := range entries {
		cfg := e.Config
		if cfg.RequiredVersion == "" || resolver.Classify(e.Request) != resolver.ShapeBare {
			continue
		}
		shareKey := cfg.ShareKey
		if shareKey == "" {
			shareKey = e.Request
		}
		sr := selectionReport{Container: name, ShareKey: shareKey}
		sel, err := registry.Select(cfg.ShareScope, shareKey, cfg.RequiredVersion, cfg.Singleton, cfg.StrictVersion)
		if err != nil {
			sr.Error = err.Error()
		} else {
			sr.Provider, sr.Version, sr.Warning = sel.Provider.Name, sel.Provider.Version, sel.Warning
		}
		out = append(out, sr)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ShareKey < out[j].ShareKey
	})
	return out
}
