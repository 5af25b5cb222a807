// Package config loads share configuration files.
//
// A file is either a mapping from request to share config:
//
//	react:
//	  singleton: true
//	  requiredVersion: ^18.2.0
//	./src/store: {}
//	vendor/: {}
//
// or a sequence of items carrying the request inline, which allows the same
// request to appear more than once with different configs:
//
//	- request: react
//	  layer: ssr
//	- request: react
//	  layer: client
//
// Document order is preserved.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/anvil-platform/federation/internal/resolver"
)

// ErrUnsupportedDocument is returned for documents that are neither a
// mapping nor a sequence.
var ErrUnsupportedDocument = errors.New("share config must be a mapping or a sequence")

type sequenceItem struct {
	Request              string `yaml:"request"`
	resolver.ShareConfig `yaml:",inline"`
}

// Load reads and parses the share config file at path.
func Load(path string) ([]resolver.Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read share config %s: %w", path, err)
	}
	entries, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse share config %s: %w", path, err)
	}
	return entries, nil
}

// Parse decodes a share config document. Every config is validated and all
// validation failures are reported together.
func Parse(data []byte) ([]resolver.Entry, error) {
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, nil
	}
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if len(doc.Content) == 0 {
		return nil, nil
	}

	root := doc.Content[0]
	var (
		entries []resolver.Entry
		errs    []error
	)
	switch root.Kind {
	case yaml.MappingNode:
		for i := 0; i+1 < len(root.Content); i += 2 {
			keyNode, valueNode := root.Content[i], root.Content[i+1]
			cfg := &resolver.ShareConfig{}
			if err := valueNode.Decode(cfg); err != nil {
				errs = append(errs, fmt.Errorf("line %d: %q: %w", keyNode.Line, keyNode.Value, err))
				continue
			}
			entries = append(entries, resolver.Entry{Request: keyNode.Value, Config: cfg})
		}
	case yaml.SequenceNode:
		for _, itemNode := range root.Content {
			var item sequenceItem
			if err := itemNode.Decode(&item); err != nil {
				errs = append(errs, fmt.Errorf("line %d: %w", itemNode.Line, err))
				continue
			}
			if item.Request == "" {
				errs = append(errs, fmt.Errorf("line %d: missing request", itemNode.Line))
				continue
			}
			cfg := item.ShareConfig
			entries = append(entries, resolver.Entry{Request: item.Request, Config: &cfg})
		}
	default:
		return nil, ErrUnsupportedDocument
	}

	for _, e := range entries {
		if err := e.Config.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("%q: %w", e.Request, err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return entries, nil
}
