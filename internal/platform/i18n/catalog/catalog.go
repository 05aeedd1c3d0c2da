// Package catalog loads the locale catalogs that back user-facing engine
// messages. Each catalog file is a small YAML document holding one namespace
// for one locale. Files are validated strictly at load time so a broken
// translation surfaces on startup instead of during a lookup.
package catalog

import (
	"bufio"
	"bytes"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// BaseLocale is the source locale every other catalog translates.
const BaseLocale = "en-US"

//go:embed locales/*/*.yaml
var localeFS embed.FS

// Bundle holds every loaded locale keyed by locale identifier.
type Bundle struct {
	tables map[string]*localeTable
}

// localeTable indexes one locale's messages both flat and per namespace.
// The flat index enforces key uniqueness across namespaces.
type localeTable struct {
	namespaces map[string]map[string]string
	flat       map[string]string
}

// entry preserves file order so duplicate detection reports the second
// occurrence, not a map-iteration-dependent one.
type entry struct {
	key   string
	value string
}

// document is one parsed catalog file before bundle validation.
type document struct {
	locale    string
	namespace string
	entries   []entry
}

var defaultBundle = func() *Bundle {
	bundle, err := LoadEmbedded()
	if err != nil {
		panic(fmt.Sprintf("catalog: %v", err))
	}
	if err := bundle.Register(); err != nil {
		panic(fmt.Sprintf("catalog: %v", err))
	}
	return bundle
}()

// Default returns the process-wide bundle built from the embedded catalogs.
func Default() *Bundle {
	return defaultBundle
}

// LoadEmbedded builds a bundle from the catalogs compiled into the binary.
func LoadEmbedded() (*Bundle, error) {
	return LoadFromFS(localeFS)
}

// LoadFromFS builds a bundle from catalog files under locales/<locale>/<namespace>.yaml.
func LoadFromFS(fsys fs.FS) (*Bundle, error) {
	paths, err := fs.Glob(fsys, "locales/*/*.yaml")
	if err != nil {
		return nil, fmt.Errorf("glob catalog files: %w", err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no catalog files under locales/")
	}
	sort.Strings(paths)

	bundle := &Bundle{tables: make(map[string]*localeTable)}
	for _, filePath := range paths {
		raw, err := fs.ReadFile(fsys, filePath)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", filePath, err)
		}
		doc, err := parseDocument(raw)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", filePath, err)
		}
		if err := bundle.merge(filePath, doc); err != nil {
			return nil, err
		}
	}

	if _, ok := bundle.tables[BaseLocale]; !ok {
		return nil, fmt.Errorf("base locale %s has no catalog files", BaseLocale)
	}
	return bundle, nil
}

// merge validates a document against its file path and folds it into the bundle.
func (b *Bundle) merge(filePath string, doc document) error {
	dirLocale := path.Base(path.Dir(filePath))
	fileNamespace := strings.TrimSuffix(path.Base(filePath), path.Ext(filePath))

	if doc.locale != dirLocale {
		return fmt.Errorf("%s: declares locale %q but lives under %q", filePath, doc.locale, dirLocale)
	}
	if doc.namespace != fileNamespace {
		return fmt.Errorf("%s: declares namespace %q but file is named %q", filePath, doc.namespace, fileNamespace)
	}

	table := b.tables[doc.locale]
	if table == nil {
		table = &localeTable{
			namespaces: make(map[string]map[string]string),
			flat:       make(map[string]string),
		}
		b.tables[doc.locale] = table
	}
	if _, dup := table.namespaces[doc.namespace]; dup {
		return fmt.Errorf("%s: namespace %q loaded twice for locale %q", filePath, doc.namespace, doc.locale)
	}

	section := make(map[string]string, len(doc.entries))
	for _, e := range doc.entries {
		if strings.HasPrefix(e.key, "core.") && doc.namespace != "core" {
			return fmt.Errorf("%s: key %q belongs to the core namespace", filePath, e.key)
		}
		if _, dup := table.flat[e.key]; dup {
			return fmt.Errorf("%s: key %q already defined for locale %q", filePath, e.key, doc.locale)
		}
		table.flat[e.key] = e.value
		section[e.key] = e.value
	}
	table.namespaces[doc.namespace] = section
	return nil
}

// Register installs every message into the x/text printer catalog. Messages
// are registered under the full tag and, when distinct, its parent so that
// printers built from a bare language still resolve.
func (b *Bundle) Register() error {
	if b == nil {
		return nil
	}
	for _, locale := range b.Locales() {
		tag, err := language.Parse(locale)
		if err != nil {
			return fmt.Errorf("locale %q: %w", locale, err)
		}
		tags := []language.Tag{tag}
		if parent := tag.Parent(); parent != language.Und && parent != tag {
			tags = append(tags, parent)
		}
		for key, value := range b.tables[locale].flat {
			for _, t := range tags {
				if err := message.SetString(t, key, value); err != nil {
					return fmt.Errorf("register %q for %s: %w", key, t, err)
				}
			}
		}
	}
	return nil
}

// HasLocale reports whether the bundle loaded catalogs for locale.
func (b *Bundle) HasLocale(locale string) bool {
	if b == nil {
		return false
	}
	_, ok := b.tables[strings.TrimSpace(locale)]
	return ok
}

// Locales lists loaded locale identifiers in sorted order.
func (b *Bundle) Locales() []string {
	if b == nil {
		return nil
	}
	names := make([]string, 0, len(b.tables))
	for name := range b.tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LocaleMessages returns a copy of every message for locale, across namespaces.
// Unknown locales yield an empty map.
func (b *Bundle) LocaleMessages(locale string) map[string]string {
	if b == nil {
		return map[string]string{}
	}
	table := b.tables[strings.TrimSpace(locale)]
	if table == nil {
		return map[string]string{}
	}
	out := make(map[string]string, len(table.flat))
	for key, value := range table.flat {
		out[key] = value
	}
	return out
}

// Message looks up one key for locale, falling back to the base locale.
func (b *Bundle) Message(locale, key string) (string, bool) {
	if b == nil {
		return "", false
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return "", false
	}
	locale = strings.TrimSpace(locale)
	if table := b.tables[locale]; table != nil {
		if value, ok := table.flat[key]; ok {
			return value, true
		}
	}
	if locale == BaseLocale {
		return "", false
	}
	if table := b.tables[BaseLocale]; table != nil {
		value, ok := table.flat[key]
		return value, ok
	}
	return "", false
}

// NamespaceMessagesWithFallback returns one namespace for locale, or the base
// locale's copy when the locale has none, along with the locale that answered.
func (b *Bundle) NamespaceMessagesWithFallback(locale, namespace string) (string, map[string]string) {
	locale = strings.TrimSpace(locale)
	namespace = strings.TrimSpace(namespace)
	if section := b.namespaceMessages(locale, namespace); len(section) > 0 {
		return locale, section
	}
	return BaseLocale, b.namespaceMessages(BaseLocale, namespace)
}

func (b *Bundle) namespaceMessages(locale, namespace string) map[string]string {
	if b == nil {
		return nil
	}
	table := b.tables[locale]
	if table == nil {
		return nil
	}
	section := table.namespaces[namespace]
	out := make(map[string]string, len(section))
	for key, value := range section {
		out[key] = value
	}
	return out
}

// parseDocument reads the restricted YAML shape catalog files use: a locale
// line, a namespace line, and a messages block of quoted key/value pairs.
// Anything outside that shape is an error.
func parseDocument(raw []byte) (document, error) {
	var doc document
	inMessages := false

	scanner := bufio.NewScanner(bytes.NewReader(raw))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		switch {
		case strings.HasPrefix(line, "locale:"):
			value, err := unquote(strings.TrimPrefix(line, "locale:"))
			if err != nil {
				return document{}, fmt.Errorf("locale: %w", err)
			}
			doc.locale = value
		case strings.HasPrefix(line, "namespace:"):
			value, err := unquote(strings.TrimPrefix(line, "namespace:"))
			if err != nil {
				return document{}, fmt.Errorf("namespace: %w", err)
			}
			doc.namespace = value
		case line == "messages:":
			inMessages = true
		case inMessages:
			key, value, err := parseEntry(line)
			if err != nil {
				return document{}, fmt.Errorf("entry %q: %w", line, err)
			}
			if key == "" {
				return document{}, fmt.Errorf("entry %q: blank key", line)
			}
			doc.entries = append(doc.entries, entry{key: key, value: value})
		default:
			return document{}, fmt.Errorf("unexpected line %q", line)
		}
	}
	if err := scanner.Err(); err != nil {
		return document{}, err
	}

	switch {
	case doc.locale == "":
		return document{}, fmt.Errorf("missing locale")
	case doc.namespace == "":
		return document{}, fmt.Errorf("missing namespace")
	case len(doc.entries) == 0:
		return document{}, fmt.Errorf("no messages")
	}
	return doc, nil
}

// parseEntry splits a `"key": "value"` line. Both sides are Go-quoted strings
// so translations can hold colons, braces, and escapes.
func parseEntry(line string) (string, string, error) {
	quotedKey, err := strconv.QuotedPrefix(line)
	if err != nil {
		return "", "", fmt.Errorf("key must be quoted")
	}
	key, err := strconv.Unquote(quotedKey)
	if err != nil {
		return "", "", fmt.Errorf("unquote key: %w", err)
	}

	rest := strings.TrimSpace(line[len(quotedKey):])
	rest, ok := strings.CutPrefix(rest, ":")
	if !ok {
		return "", "", fmt.Errorf("missing ':' after key")
	}
	value, err := unquote(rest)
	if err != nil {
		return "", "", fmt.Errorf("unquote value: %w", err)
	}
	return key, value, nil
}

func unquote(s string) (string, error) {
	return strconv.Unquote(strings.TrimSpace(s))
}
