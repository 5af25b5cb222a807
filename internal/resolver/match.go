package resolver

import "strings"

// ConsumeRequest is an import encountered by the consuming side.
type ConsumeRequest struct {
	Request     string
	IssuerLayer string
	// ResolvedPath is the module's resolved file, if the host already has it.
	ResolvedPath string
}

// Match finds the share config that applies to req.
//
// Lookup order: resolved path, layered composite key, literal request,
// then the longest matching prefix. For prefix matches the second return
// value is the part of the request below the prefix. Configs with an
// IssuerLayer only match issuers in that layer.
func (m MatchedConfigs) Match(req ConsumeRequest) (*ShareConfig, string, bool) {
	if req.ResolvedPath != "" {
		if cfg, ok := m.Resolved[req.ResolvedPath]; ok && issuerAllowed(cfg, req.IssuerLayer) {
			return cfg, "", true
		}
	}

	if req.IssuerLayer != "" {
		if cfg, ok := m.Unresolved[layeredKey(req.IssuerLayer, req.Request)]; ok && issuerAllowed(cfg, req.IssuerLayer) {
			return cfg, "", true
		}
	}
	if cfg, ok := m.Unresolved[req.Request]; ok && issuerAllowed(cfg, req.IssuerLayer) {
		return cfg, "", true
	}

	var (
		best       *ShareConfig
		bestPrefix string
	)
	for prefix, cfg := range m.Prefixed {
		if !strings.HasPrefix(req.Request, prefix) || !issuerAllowed(cfg, req.IssuerLayer) {
			continue
		}
		if best == nil || len(prefix) > len(bestPrefix) {
			best, bestPrefix = cfg, prefix
		}
	}
	if best != nil {
		return best, strings.TrimPrefix(req.Request, bestPrefix), true
	}
	return nil, "", false
}

func issuerAllowed(cfg *ShareConfig, issuerLayer string) bool {
	return cfg.IssuerLayer == "" || cfg.IssuerLayer == issuerLayer
}
