// Package pagination normalizes AIP-style page_size and order_by request
// fields against per-endpoint limits.
package pagination

import "fmt"

// PageSizeConfig bounds requested page sizes for one list endpoint.
type PageSizeConfig struct {
	Default int
	Max     int
}

// OrderByConfig whitelists order_by clauses for one list endpoint.
type OrderByConfig struct {
	Default string
	Allowed []string
}

// ClampPageSize resolves a requested size: non-positive requests take the
// default, oversized ones clamp to Max, and the result is never below one.
func ClampPageSize(requested int32, cfg PageSizeConfig) int {
	size := int(requested)
	if size <= 0 {
		size = cfg.Default
	}
	if cfg.Max > 0 && size > cfg.Max {
		size = cfg.Max
	}
	if size <= 0 {
		return 1
	}
	return size
}

// NormalizeOrderBy resolves an order_by clause against the allowed set,
// falling back to the default for empty input.
func NormalizeOrderBy(clause string, cfg OrderByConfig) (string, error) {
	if clause == "" {
		return cfg.Default, nil
	}
	for _, allowed := range cfg.Allowed {
		if clause == allowed {
			return clause, nil
		}
	}
	return "", fmt.Errorf("unsupported order_by %q", clause)
}
