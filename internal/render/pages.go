package render

import (
	"fmt"
	"html/template"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/ieraasyl/Storefront/internal/models"
	"github.com/ieraasyl/Storefront/web"
	"github.com/rs/zerolog/log"
)

// Page names accepted by Page.
const (
	PageHome    = "home"
	PageLogin   = "login"
	PageAccount = "account"
	PageError   = "error"
)

// GenericErrorMessage is shown when a request fails unexpectedly.
const GenericErrorMessage = "Something went wrong. Please refresh the page."

// View is the data passed to every page template.
type View struct {
	User  *models.UserSession
	Year  int
	State models.AppState
	Grid  template.HTML

	// Login page
	Error          string
	GoogleClientID string
	LoginURI       string
	OAuthEnabled   bool

	// Error page
	Message string
}

type templateSet struct {
	base  *template.Template
	pages map[string]*template.Template
}

var (
	parsed    *templateSet
	parseOnce sync.Once
)

var pageNames = []string{PageHome, PageLogin, PageAccount, PageError}

var funcs = template.FuncMap{"title": titleCase}

// templates parses the embedded templates once. The templates are compiled
// into the binary, so a parse failure is a programming error.
func templates() *templateSet {
	parseOnce.Do(func() {
		base := template.Must(template.New("_root").Funcs(funcs).ParseFS(web.Templates(), "base.tmpl", "grid.tmpl"))
		set := &templateSet{base: base, pages: make(map[string]*template.Template, len(pageNames))}
		for _, name := range pageNames {
			clone := template.Must(base.Clone())
			set.pages[name] = template.Must(clone.ParseFS(web.Templates(), name+".tmpl"))
		}
		parsed = set
	})
	return parsed
}

// Page renders the named page inside the base layout.
func Page(w io.Writer, name string, view View) error {
	t, ok := templates().pages[name]
	if !ok {
		return fmt.Errorf("unknown page %q", name)
	}
	if view.Year == 0 {
		view.Year = time.Now().Year()
	}
	if err := t.ExecuteTemplate(w, "base", view); err != nil {
		return fmt.Errorf("failed to render %s page: %w", name, err)
	}
	return nil
}

// WritePage renders a page to an HTTP response with the given status.
// The page is buffered first so a template error can still produce a clean
// error response.
func WritePage(w http.ResponseWriter, status int, name string, view View) {
	var buf strings.Builder
	if err := Page(&buf, name, view); err != nil {
		log.Error().Err(err).Str("page", name).Msg("Failed to render page")
		WriteError(w, http.StatusInternalServerError, GenericErrorMessage)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, buf.String())
}

// WriteError renders the error page. If that fails too, a plain text body
// is written.
func WriteError(w http.ResponseWriter, status int, message string) {
	var buf strings.Builder
	if err := Page(&buf, PageError, View{Message: message}); err != nil {
		http.Error(w, message, status)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, buf.String())
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
