// Package i18n holds the user-facing messages of the transport. Messages live in
// domain/locale bundles; the built-in "httpcore" domain ships English and German.
package i18n

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"

	"github.com/milan604/httpcore/pkg/json"
)

// Domain is the bundle domain holding the transport's own messages.
const Domain = "httpcore"

//go:embed locales/*.json
var builtinLocales embed.FS

// Translator is a thread-safe i18n catalog with interpolation, pluralization and fallbacks.
type Translator struct {
	mu            sync.RWMutex
	defaultLocale string
	fallbacks     []string
	// store: domain -> locale -> key -> message
	store map[string]map[string]map[string]string
}

// Option customizes Translator on creation.
type Option func(*Translator) error

// New creates a Translator. The built-in bundles are always loaded, so callers
// only add or override keys.
func New(opts ...Option) (*Translator, error) {
	tr := &Translator{
		defaultLocale: "en",
		store:         make(map[string]map[string]map[string]string),
	}
	if err := tr.loadFS(Domain, builtinLocales, "locales"); err != nil {
		return nil, fmt.Errorf("i18n: load built-in messages: %w", err)
	}
	for _, opt := range opts {
		if err := opt(tr); err != nil {
			return nil, err
		}
	}
	return tr, nil
}

var (
	defaultOnce sync.Once
	defaultTr   *Translator
)

// Default returns a shared Translator holding only the built-in bundles.
func Default() *Translator {
	defaultOnce.Do(func() {
		tr, err := New()
		if err != nil {
			panic(err) // embedded data is broken; caught by tests
		}
		defaultTr = tr
	})
	return defaultTr
}

// WithDefaultLocale sets the default locale (e.g., "en").
func WithDefaultLocale(locale string) Option {
	return func(t *Translator) error {
		if strings.TrimSpace(locale) != "" {
			t.defaultLocale = locale
		}
		return nil
	}
}

// WithFallbackLocales sets fallback locales in preferred order.
func WithFallbackLocales(locales ...string) Option {
	return func(t *Translator) error {
		t.fallbacks = append([]string{}, locales...)
		return nil
	}
}

// WithJSONDir loads <locale>.json files from dir into domain.
func WithJSONDir(domain, dir string) Option {
	return func(t *Translator) error {
		return t.loadFS(domain, os.DirFS(dir), ".")
	}
}

// WithFS is WithJSONDir for an fs.FS, typically an embed.FS.
func WithFS(domain string, fsys fs.FS, dir string) Option {
	return func(t *Translator) error {
		return t.loadFS(domain, fsys, dir)
	}
}

func (t *Translator) loadFS(domain string, fsys fs.FS, dir string) error {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		b, err := fs.ReadFile(fsys, path.Join(dir, name))
		if err != nil {
			return err
		}
		m := map[string]string{}
		if err := json.Unmarshal(b, &m); err != nil {
			return fmt.Errorf("i18n: %s: %w", name, err)
		}
		t.AddBundle(domain, strings.TrimSuffix(name, ".json"), m)
	}
	return nil
}

// AddBundle merges a bundle of key->message into domain/locale.
func (t *Translator) AddBundle(domain, locale string, bundle map[string]string) {
	if domain == "" {
		domain = "default"
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.store[domain]; !ok {
		t.store[domain] = make(map[string]map[string]string)
	}
	if _, ok := t.store[domain][locale]; !ok {
		t.store[domain][locale] = make(map[string]string)
	}
	for k, v := range bundle {
		t.store[domain][locale][k] = v
	}
}

// Add adds a single key/message into domain/locale.
func (t *Translator) Add(domain, locale, key, message string) {
	t.AddBundle(domain, locale, map[string]string{key: message})
}

// Locales returns the locales known for a domain.
func (t *Translator) Locales(domain string) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	m := t.store[domain]
	out := make([]string, 0, len(m))
	for loc := range m {
		out = append(out, loc)
	}
	sort.Strings(out)
	return out
}

// splitDomain extracts domain from a key of the form "domain:key".
func splitDomain(key string) (domain, k string) {
	if i := strings.IndexByte(key, ':'); i > 0 {
		return key[:i], key[i+1:]
	}
	return "default", key
}

var placeholderRe = regexp.MustCompile(`\{\{\s*([a-zA-Z0-9_\.]+)\s*\}\}`)

// T translates a key for a locale with optional data and pluralization.
// A numeric "count" in data (or n) selects key.one / key.other first.
func (t *Translator) T(locale, key string, data map[string]any, n ...int) string {
	msg, ok := t.resolve(locale, key, data, n...)
	if !ok {
		_, msg = splitDomain(key)
	}
	if len(data) == 0 {
		return msg
	}
	return interpolate(msg, data)
}

// Message resolves key for the locale carried by ctx. Unlike T it reports
// whether anything matched, so callers can pick their own fallback key.
func (t *Translator) Message(ctx context.Context, key string, data map[string]any) (string, bool) {
	msg, ok := t.resolve(LocaleFromContext(ctx), key, data)
	if !ok {
		return "", false
	}
	if len(data) > 0 {
		msg = interpolate(msg, data)
	}
	return msg, true
}

func (t *Translator) resolve(locale, key string, data map[string]any, n ...int) (string, bool) {
	if locale == "" {
		locale = t.defaultLocale
	}
	domain, k := splitDomain(key)

	keys := []string{k}
	if count := pluralCount(data, n); count == 1 {
		keys = []string{k + ".one", k}
	} else if count >= 0 {
		keys = []string{k + ".other", k}
	}

	// requested -> its base language -> fallbacks -> default
	locales := []string{locale}
	if base, _, found := strings.Cut(locale, "-"); found {
		locales = append(locales, base)
	}
	locales = append(locales, t.fallbacks...)
	if t.defaultLocale != "" {
		locales = append(locales, t.defaultLocale)
	}

	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, loc := range locales {
		bundle := t.store[domain][loc]
		if bundle == nil {
			continue
		}
		for _, kk := range keys {
			if v, ok := bundle[kk]; ok {
				return v, true
			}
		}
	}
	return "", false
}

func pluralCount(data map[string]any, n []int) int {
	if len(n) > 0 {
		return n[0]
	}
	switch vv := data["count"].(type) {
	case int:
		return vv
	case int64:
		return int(vv)
	case float64:
		return int(vv)
	case string:
		if i, err := strconv.Atoi(vv); err == nil {
			return i
		}
	}
	return -1
}

func interpolate(template string, data map[string]any) string {
	return placeholderRe.ReplaceAllStringFunc(template, func(m string) string {
		sub := placeholderRe.FindStringSubmatch(m)
		if len(sub) != 2 {
			return m
		}
		cur, ok := dig(data, sub[1])
		if !ok {
			return m
		}
		return fmt.Sprint(cur)
	})
}

// dig follows a dot path: a.b -> data[a][b]
func dig(m map[string]any, path string) (any, bool) {
	var cur any = m
	for _, p := range strings.Split(path, ".") {
		mm, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		v, ok := mm[p]
		if !ok {
			return nil, false
		}
		cur = v
	}
	return cur, true
}

// BestMatch returns the best locale match from an Accept-Language header.
func (t *Translator) BestMatch(acceptLang string) string {
	if strings.TrimSpace(acceptLang) == "" {
		return t.defaultLocale
	}
	t.mu.RLock()
	available := map[string]struct{}{}
	for _, locs := range t.store {
		for loc := range locs {
			available[loc] = struct{}{}
		}
	}
	t.mu.RUnlock()

	// e.g. "en-US,en;q=0.9,fr;q=0.8"
	for _, part := range strings.Split(acceptLang, ",") {
		lang := strings.TrimSpace(strings.Split(part, ";")[0])
		if lang == "" {
			continue
		}
		if _, ok := available[lang]; ok {
			return lang
		}
		base := strings.SplitN(lang, "-", 2)[0]
		for avail := range available {
			if strings.EqualFold(avail, base) || strings.HasPrefix(strings.ToLower(avail), strings.ToLower(base+"-")) {
				return avail
			}
		}
	}
	return t.defaultLocale
}

type ctxKey string

const localeCtxKey ctxKey = "i18n_locale"

// ContextWithLocale returns a child context with locale stored.
func ContextWithLocale(ctx context.Context, locale string) context.Context {
	return context.WithValue(ctx, localeCtxKey, locale)
}

// LocaleFromContext returns the stored locale or empty.
func LocaleFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	s, _ := ctx.Value(localeCtxKey).(string)
	return s
}

// GinMiddleware detects the caller's locale (?lang=, then Accept-Language) and
// stores it in the request context. Used by backends fronted by this client.
func (t *Translator) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		loc := strings.TrimSpace(c.Query("lang"))
		if loc == "" {
			loc = t.BestMatch(c.GetHeader("Accept-Language"))
		}
		c.Request = c.Request.WithContext(ContextWithLocale(c.Request.Context(), loc))
		c.Set(string(localeCtxKey), loc)
		c.Next()
	}
}

// ErrNotFound is returned by Lookup when a key is missing.
var ErrNotFound = errors.New("i18n: key not found")

// Lookup returns the raw message for a key without interpolation or plural logic.
func (t *Translator) Lookup(locale, key string) (string, error) {
	domain, k := splitDomain(key)
	t.mu.RLock()
	defer t.mu.RUnlock()
	if b := t.store[domain][locale]; b != nil {
		if v, ok := b[k]; ok {
			return v, nil
		}
	}
	return "", ErrNotFound
}
