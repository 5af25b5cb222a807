package resolver

// CompositeKey computes the dedup key for a bare request.
//
// Layered configs get "(<layer>)<key>" where key follows the alias chain
// (ShareKey, then Import, then the request). IssuerLayer takes precedence
// over Layer. Unlayered configs always key on the literal request; the
// shareKey/import divergence is covered by dual insertion instead.
func CompositeKey(request string, cfg ShareConfig) string {
	base := request
	if cfg.Import != "" && cfg.Import != request {
		base = cfg.Import
	}
	key := base
	if cfg.ShareKey != "" && cfg.ShareKey != request {
		key = cfg.ShareKey
	}

	switch {
	case cfg.IssuerLayer != "":
		return layeredKey(cfg.IssuerLayer, key)
	case cfg.Layer != "":
		return layeredKey(cfg.Layer, key)
	default:
		return request
	}
}

func layeredKey(layer, key string) string {
	return "(" + layer + ")" + key
}
