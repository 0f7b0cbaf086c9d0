package bootstrap

import (
	"strings"

	"github.com/nixlim/storetimer/internal/timer"
)

// pageTypes maps the named page-type shortcuts to path predicates.
var pageTypes = map[string]func(path string) bool{
	"home": func(p string) bool { return p == "/" },
	"collection": func(p string) bool {
		return p == "/collections" || strings.HasPrefix(p, "/collections/")
	},
	"product": func(p string) bool {
		return strings.HasPrefix(p, "/products/") || strings.Contains(p, "/products/")
	},
	"cart": func(p string) bool {
		return p == "/cart" || strings.HasPrefix(p, "/cart/")
	},
	"checkout": func(p string) bool {
		return p == "/checkout" || strings.HasPrefix(p, "/checkout/") || strings.HasPrefix(p, "/checkouts/")
	},
	"page": func(p string) bool { return strings.HasPrefix(p, "/pages/") },
	"blog": func(p string) bool { return strings.HasPrefix(p, "/blogs/") },
}

func normalizePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if len(p) > 1 {
		p = strings.TrimRight(p, "/")
		if p == "" {
			return "/"
		}
	}
	return p
}

// MatchPattern reports whether path matches a targeting pattern: a named
// page type, a prefix ending in "*", or an exact path.
func MatchPattern(pattern, path string) bool {
	pattern = strings.TrimSpace(pattern)
	if pattern == "" {
		return false
	}
	if strings.HasSuffix(pattern, "*") {
		return strings.HasPrefix(strings.TrimSpace(path), strings.TrimSuffix(pattern, "*"))
	}
	path = normalizePath(path)
	if match, ok := pageTypes[strings.ToLower(pattern)]; ok {
		return match(path)
	}
	return normalizePath(pattern) == path
}

// MatchAny reports whether any pattern matches path.
func MatchAny(patterns []string, path string) bool {
	for _, p := range patterns {
		if MatchPattern(p, path) {
			return true
		}
	}
	return false
}

// Targeted applies a timer's page-targeting rules to path. Shown-everywhere
// timers are hidden only by an exclude match; others need an include match.
func Targeted(cfg timer.Config, path string) bool {
	if cfg.ShowEverywhere {
		return !MatchAny(cfg.ExcludePages, path)
	}
	return MatchAny(cfg.IncludePages, path)
}
