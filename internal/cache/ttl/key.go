package ttl

import (
	"net/url"
	"strings"
)

const (
	keyPrefix = "msf"
	// AllSelector stands for "no selector" in cache keys.
	AllSelector = "all"
)

// KeyFor derives the cache key for a resource kind, season and selector.
// Components are escaped so that separators inside a selector cannot make two
// different requests share a key. An empty selector is the same request as "all".
func KeyFor(kind, season, selector string) string {
	if selector == "" {
		selector = AllSelector
	}
	parts := []string{keyPrefix, url.QueryEscape(kind), url.QueryEscape(season), url.QueryEscape(selector)}
	return strings.Join(parts, ":")
}
