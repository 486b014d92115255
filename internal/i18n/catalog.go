// Package i18n resolves user-facing texts by key and locale.
//
// Catalogs are YAML files embedded in the binary (locales/<code>.yaml).
// Nested maps are flattened to dotted keys, so
//
//	message_types:
//	  complaint:
//	    display: Complaint
//
// is looked up as "message_types.complaint.display". Placeholders of the form
// {name} are substituted from Params.
//
// Lookup never fails: an unsupported locale falls back to domain.DefaultLocale
// and an unknown key is returned verbatim.
package i18n

import (
	"embed"
	"fmt"
	"path"
	"strings"

	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"github.com/tbourn/go-feedback-bot/internal/domain"
)

//go:embed locales/*.yaml
var localeFS embed.FS

// Params carries placeholder values for Text.
type Params map[string]string

// Catalog holds the flattened texts of every supported locale. It is
// immutable after Load and safe for concurrent use.
type Catalog struct {
	texts map[domain.Locale]map[string]string
}

// Load parses the embedded catalogs. Every supported locale must have one.
func Load() (*Catalog, error) {
	c := &Catalog{texts: make(map[domain.Locale]map[string]string, len(domain.Locales))}
	for _, l := range domain.Locales {
		raw, err := localeFS.ReadFile(path.Join("locales", string(l)+".yaml"))
		if err != nil {
			return nil, fmt.Errorf("i18n: read %s catalog: %w", l, err)
		}
		flat, err := parse(raw)
		if err != nil {
			return nil, fmt.Errorf("i18n: parse %s catalog: %w", l, err)
		}
		c.texts[l] = flat
	}
	return c, nil
}

// MustLoad is like Load but panics on error. The catalogs are compiled in, so
// a failure is a build defect.
func MustLoad() *Catalog {
	c, err := Load()
	if err != nil {
		panic(err)
	}
	return c
}

// New builds a catalog from already-flattened texts. Used by tests.
func New(texts map[domain.Locale]map[string]string) *Catalog {
	return &Catalog{texts: texts}
}

// Text returns the text for key in locale l with params substituted.
func (c *Catalog) Text(key string, l domain.Locale, params Params) string {
	s, ok := c.lookup(key, l)
	if !ok {
		return key
	}
	if len(params) == 0 {
		return s
	}
	pairs := make([]string, 0, 2*len(params))
	for k, v := range params {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(s)
}

// Has reports whether key exists in l or in the fallback locale.
func (c *Catalog) Has(key string, l domain.Locale) bool {
	_, ok := c.lookup(key, l)
	return ok
}

// CategoryForButton maps a category button label shown in locale l back to
// its category.
func (c *Catalog) CategoryForButton(label string, l domain.Locale) (domain.Category, bool) {
	for _, cat := range domain.Categories {
		if c.Text("message_types."+string(cat)+".button", l, nil) == label {
			return cat, true
		}
	}
	return "", false
}

// CategoryName returns the localized display name of a category.
func (c *Catalog) CategoryName(cat domain.Category, l domain.Locale) string {
	return c.Text("message_types."+string(cat)+".display", l, nil)
}

func (c *Catalog) lookup(key string, l domain.Locale) (string, bool) {
	if m, ok := c.texts[l]; ok {
		if s, ok := m[key]; ok {
			return s, true
		}
	}
	if l != domain.DefaultLocale {
		if s, ok := c.texts[domain.DefaultLocale][key]; ok {
			return s, true
		}
	}
	return "", false
}

// ParseLocale normalizes a BCP 47 tag ("en-US", "ru_RU", "EN") to a supported
// locale. The second result is false when the base language is unsupported.
func ParseLocale(s string) (domain.Locale, bool) {
	tag, err := language.Parse(strings.ReplaceAll(strings.TrimSpace(s), "_", "-"))
	if err != nil {
		return domain.DefaultLocale, false
	}
	base, _ := tag.Base()
	l := domain.Locale(base.String())
	if !l.Valid() {
		return domain.DefaultLocale, false
	}
	return l, true
}

func parse(raw []byte) (map[string]string, error) {
	var tree map[string]any
	if err := yaml.Unmarshal(raw, &tree); err != nil {
		return nil, err
	}
	out := make(map[string]string)
	flatten("", tree, out)
	return out, nil
}

func flatten(prefix string, node map[string]any, out map[string]string) {
	for k, v := range node {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		switch val := v.(type) {
		case map[string]any:
			flatten(key, val, out)
		case string:
			out[key] = val
		default:
			out[key] = fmt.Sprint(val)
		}
	}
}
