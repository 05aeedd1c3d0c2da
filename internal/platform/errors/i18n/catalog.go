// Package i18n renders error codes as localized, user-facing messages.
// Message templates come from the errors namespace of the locale catalogs
// and receive the error's metadata map.
package i18n

import (
	"strings"
	"sync"
	"text/template"

	i18ncatalog "github.com/louisbranch/mist-engine/internal/platform/i18n/catalog"
)

// Code mirrors the errors package code type; declared locally to avoid an
// import cycle.
type Code = string

// Catalog formats error codes for one locale. Templates are compiled once
// when the catalog is built, not on every Format call.
type Catalog struct {
	locale    string
	templates map[Code]*template.Template
	raw       map[Code]string
}

var registry = struct {
	sync.RWMutex
	byLocale map[string]*Catalog
}{byLocale: make(map[string]*Catalog)}

// GetCatalog returns the catalog serving locale, building it from the
// embedded bundle on first use. Unknown locales resolve to the base locale.
func GetCatalog(locale string) *Catalog {
	want := strings.TrimSpace(locale)
	if want == "" {
		want = i18ncatalog.BaseLocale
	}
	if c := cached(want); c != nil {
		return c
	}

	resolved, messages := i18ncatalog.Default().NamespaceMessagesWithFallback(want, "errors")
	if c := cached(resolved); c != nil {
		return c
	}
	return intern(NewCatalog(resolved, messages))
}

// NewCatalog compiles a message catalog for locale. Templates that fail to
// parse fall back to their raw text.
func NewCatalog(locale string, messages map[Code]string) *Catalog {
	c := &Catalog{
		locale:    locale,
		templates: make(map[Code]*template.Template, len(messages)),
		raw:       make(map[Code]string, len(messages)),
	}
	for code, text := range messages {
		c.raw[code] = text
		if tmpl, err := template.New(code).Parse(text); err == nil {
			c.templates[code] = tmpl
		}
	}
	return c
}

// RegisterCatalog installs a catalog for locale, replacing any cached one.
// Tests use this to inject fixed messages.
func RegisterCatalog(locale string, c *Catalog) {
	registry.Lock()
	registry.byLocale[locale] = c
	registry.Unlock()
}

// Locale reports which locale this catalog renders.
func (c *Catalog) Locale() string {
	return c.locale
}

// Format renders the template for code with the given metadata. Codes without
// a template render as the code itself so a missing translation still says
// something actionable. Nil metadata renders template variables empty rather
// than failing.
func (c *Catalog) Format(code Code, metadata map[string]string) string {
	tmpl, ok := c.templates[code]
	if !ok {
		if text, exists := c.raw[code]; exists {
			return text
		}
		return code
	}
	if metadata == nil {
		metadata = map[string]string{}
	}

	var out strings.Builder
	if err := tmpl.Execute(&out, metadata); err != nil {
		return c.raw[code]
	}
	return out.String()
}

func cached(locale string) *Catalog {
	registry.RLock()
	defer registry.RUnlock()
	return registry.byLocale[locale]
}

// intern caches the catalog unless a concurrent build won the race, in which
// case the winner is returned so all callers share one instance.
func intern(candidate *Catalog) *Catalog {
	registry.Lock()
	defer registry.Unlock()
	if existing := registry.byLocale[candidate.locale]; existing != nil {
		return existing
	}
	registry.byLocale[candidate.locale] = candidate
	return candidate
}
