package gemini

import "github.com/oljefondvakt/fundwatch/internal/domain"

// CleanGuidelines walks a decoded response and strips the section sign from
// every string inside a "guidelines" array, in place. It returns v.
func CleanGuidelines(v any) any {
	switch t := v.(type) {
	case []any:
		for _, e := range t {
			CleanGuidelines(e)
		}
	case map[string]any:
		for k, e := range t {
			if k == "guidelines" {
				if list, ok := e.([]any); ok {
					for i, g := range list {
						if s, ok := g.(string); ok {
							list[i] = domain.CleanGuideline(s)
						}
					}
					continue
				}
			}
			CleanGuidelines(e)
		}
	}
	return v
}
