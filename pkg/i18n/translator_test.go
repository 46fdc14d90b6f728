package i18n_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/milan604/httpcore/pkg/i18n"
)

func TestDefault_BuiltinMessages(t *testing.T) {
	tr := i18n.Default()

	assert.Equal(t, "The requested resource was not found.", tr.T("en", "httpcore:status.404", nil))
	assert.Equal(t, "Request timeout. Please try again.", tr.T("", "httpcore:timeout", nil))
	assert.Equal(t, "Die angeforderte Ressource wurde nicht gefunden.", tr.T("de", "httpcore:status.404", nil))
	assert.Equal(t, []string{"de", "en"}, tr.Locales(i18n.Domain))
}

func TestMessage_UsesContextLocale(t *testing.T) {
	tr := i18n.Default()

	ctx := i18n.ContextWithLocale(context.Background(), "de-AT")
	msg, ok := tr.Message(ctx, "httpcore:network", nil)
	require.True(t, ok)
	assert.Equal(t, "Netzwerkfehler. Bitte überprüfen Sie Ihre Internetverbindung.", msg)

	// unknown locale falls back to English
	ctx = i18n.ContextWithLocale(context.Background(), "fr")
	msg, ok = tr.Message(ctx, "httpcore:status.default", nil)
	require.True(t, ok)
	assert.Equal(t, "An unexpected error occurred. Please try again.", msg)

	_, ok = tr.Message(ctx, "httpcore:status.418", nil)
	assert.False(t, ok)
}

func TestT_InterpolationAndPlural(t *testing.T) {
	tr, err := i18n.New()
	require.NoError(t, err)
	tr.AddBundle("app", "en", map[string]string{
		"items.one":   "{{count}} item for {{user.name}}",
		"items.other": "{{count}} items for {{user.name}}",
	})

	data := map[string]any{"count": 1, "user": map[string]any{"name": "ana"}}
	assert.Equal(t, "1 item for ana", tr.T("en", "app:items", data))
	data["count"] = 3
	assert.Equal(t, "3 items for ana", tr.T("en", "app:items", data))
	assert.Equal(t, "missing", tr.T("en", "app:missing", nil))

	assert.Equal(t, "The request could not be sent: empty path",
		tr.T("en", "httpcore:request.invalid", map[string]any{"reason": "empty path"}))
}

func TestOverrideBuiltin(t *testing.T) {
	tr, err := i18n.New(i18n.WithFS(i18n.Domain, fstest.MapFS{
		"msgs/en.json": {Data: []byte(`{"status.404": "Nothing here."}`)},
	}, "msgs"))
	require.NoError(t, err)
	assert.Equal(t, "Nothing here.", tr.T("en", "httpcore:status.404", nil))
	assert.Equal(t, "Request timeout. Please try again.", tr.T("en", "httpcore:timeout", nil))
}

func TestWithJSONDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "es.json"), []byte(`{"hello":"hola"}`), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte(`ignored`), 0o600))

	tr, err := i18n.New(i18n.WithJSONDir("app", dir))
	require.NoError(t, err)

	got, err := tr.Lookup("es", "app:hello")
	require.NoError(t, err)
	assert.Equal(t, "hola", got)

	_, err = tr.Lookup("es", "app:bye")
	assert.ErrorIs(t, err, i18n.ErrNotFound)
}

func TestWithJSONDir_BadFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "en.json"), []byte(`{not json`), 0o600))
	_, err := i18n.New(i18n.WithJSONDir("app", dir))
	assert.Error(t, err)
}

func TestBestMatch(t *testing.T) {
	tr := i18n.Default()
	assert.Equal(t, "de", tr.BestMatch("de-CH,de;q=0.9"))
	assert.Equal(t, "en", tr.BestMatch("ja"))
	assert.Equal(t, "en", tr.BestMatch(""))
}

func TestGinMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(i18n.Default().GinMiddleware())
	r.GET("/locale", func(c *gin.Context) {
		c.String(http.StatusOK, i18n.LocaleFromContext(c.Request.Context()))
	})

	req := httptest.NewRequest(http.MethodGet, "/locale", nil)
	req.Header.Set("Accept-Language", "de-DE")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "de", w.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/locale?lang=en", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "en", w.Body.String())
}
