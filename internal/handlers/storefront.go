package handlers

import (
	"bytes"
	"errors"
	"net/http"
	"time"

	"github.com/ieraasyl/Storefront/internal/catalog"
	"github.com/ieraasyl/Storefront/internal/models"
	"github.com/ieraasyl/Storefront/internal/render"
	"github.com/ieraasyl/Storefront/pkg/config"
	"github.com/ieraasyl/Storefront/pkg/utils"
	"github.com/rs/zerolog/log"
)

// PageOpener returns the page session for an id, creating a new one when
// the id is empty or unknown.
type PageOpener interface {
	Open(id string) (page *catalog.Page, created bool)
}

// StorefrontHandler serves the catalog pages.
type StorefrontHandler struct {
	pages        PageOpener
	sessions     UserResolver
	clientScript []byte
	isProduction bool
}

// NewStorefrontHandler creates the catalog handler. The client config script
// is rendered once here; cc only holds public values.
func NewStorefrontHandler(pages PageOpener, sessions UserResolver, cc config.ClientConfig, isProduction bool) (*StorefrontHandler, error) {
	var script bytes.Buffer
	if err := config.WriteClientScript(&script, cc); err != nil {
		return nil, err
	}

	return &StorefrontHandler{
		pages:        pages,
		sessions:     sessions,
		clientScript: script.Bytes(),
		isProduction: isProduction,
	}, nil
}

// Home renders the full page: a fresh load of the current category, then the
// header and grid. Like a browser reload, it waits for that load.
func (h *StorefrontHandler) Home(w http.ResponseWriter, r *http.Request) {
	page := h.openPage(w, r)
	user := currentUser(w, r, h.sessions)

	page.Refresh(r.Context())
	if err := page.Wait(r.Context()); err != nil {
		log.Warn().Err(err).Str("page_id", page.ID).Msg("Client left before the catalog loaded")
		return
	}

	render.WritePage(w, http.StatusOK, render.PageHome, render.View{
		User:  user,
		State: page.State(),
		Grid:  page.Grid().HTML(),
	})
}

// Products switches the page to ?category= and returns the grid fragment.
//
// The status line and any load error travel in the X-Status-Text and
// X-Catalog-Error headers. Requests without the fetch marker header (no
// script) are redirected to the home page instead.
func (h *StorefrontHandler) Products(w http.ResponseWriter, r *http.Request) {
	page := h.openPage(w, r)

	category := r.URL.Query().Get("category")
	started, err := page.SwitchCategory(r.Context(), category)
	if errors.Is(err, catalog.ErrUnknownCategory) {
		http.Error(w, "Unknown category", http.StatusBadRequest)
		return
	}
	if !started {
		log.Debug().Str("page_id", page.ID).Str("category", category).Msg("Category switch ignored")
	}

	if r.Header.Get("X-Requested-With") == "" {
		http.Redirect(w, r, "/#products", http.StatusSeeOther)
		return
	}

	if err := page.Wait(r.Context()); err != nil {
		return
	}

	state := page.State()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("X-Category", state.CurrentCategory)
	if state.StatusText != "" {
		w.Header().Set("X-Status-Text", state.StatusText)
	}
	if state.ErrorFlag {
		w.Header().Set("X-Catalog-Error", state.ErrorMessage)
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(page.Grid().HTML()))
}

// ProductsResponse is the JSON view of a page session.
type ProductsResponse struct {
	Category  string                 `json:"category"`
	IsLoading bool                   `json:"is_loading"`
	Error     string                 `json:"error,omitempty"`
	Products  []models.ProductRecord `json:"products"`
}

// ProductsJSON returns the page state. With ?category= it switches first and
// waits for the load, like Products.
func (h *StorefrontHandler) ProductsJSON(w http.ResponseWriter, r *http.Request) {
	page := h.openPage(w, r)

	if category := r.URL.Query().Get("category"); category != "" {
		if _, err := page.SwitchCategory(r.Context(), category); err != nil {
			utils.RespondWithError(w, r, http.StatusBadRequest, "Unknown category")
			return
		}
	} else if page.State().CurrentCategory == "" {
		page.Refresh(r.Context())
	}

	if err := page.Wait(r.Context()); err != nil {
		return
	}

	state := page.State()
	products := state.Products
	if products == nil {
		products = []models.ProductRecord{}
	}
	utils.RespondWithJSON(w, r, http.StatusOK, ProductsResponse{
		Category:  state.CurrentCategory,
		IsLoading: state.IsLoading,
		Error:     state.ErrorMessage,
		Products:  products,
	})
}

// ClientConfig serves window.ENV for the browser.
func (h *StorefrontHandler) ClientConfig(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	_, _ = w.Write(h.clientScript)
}

// openPage resolves the sf_page cookie and refreshes it on every request so
// its lifetime follows the idle sweep.
func (h *StorefrontHandler) openPage(w http.ResponseWriter, r *http.Request) *catalog.Page {
	var id string
	if cookie, err := r.Cookie(PageCookie); err == nil {
		id = cookie.Value
	}

	page, created := h.pages.Open(id)
	if created {
		log.Debug().Str("page_id", page.ID).Msg("Page session created")
	}
	utils.SetCookie(w, PageCookie, page.ID, time.Time{}, h.isProduction)
	return page
}
