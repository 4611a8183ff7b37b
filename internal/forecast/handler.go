package forecast

import (
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/pricedesk/pricedesk/internal/auth"
	"github.com/pricedesk/pricedesk/internal/backend"
	"github.com/pricedesk/pricedesk/internal/catalog"
	"github.com/pricedesk/pricedesk/internal/chart"
	"github.com/pricedesk/pricedesk/internal/platform/httpx"
	"github.com/pricedesk/pricedesk/internal/shared"
	"github.com/pricedesk/pricedesk/internal/view"
)

// Handler serves the demand forecast dialog.
type Handler struct {
	logger         *slog.Logger
	service        *Service
	templates      *view.Engine
	csrf           *shared.CSRFManager
	onUnauthorized http.HandlerFunc
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, templates *view.Engine, csrf *shared.CSRFManager, onUnauthorized http.HandlerFunc) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if onUnauthorized == nil {
		onUnauthorized = auth.Expire
	}
	return &Handler{logger: logger, service: service, templates: templates, csrf: csrf, onUnauthorized: onUnauthorized}
}

// MountRoutes registers forecast routes. Callers wrap them in RequireLogin.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/pricing/forecast", h.open)
	r.Get("/pricing/forecast/{dialog}", h.show)
	r.Get("/pricing/forecast/{dialog}/series.json", h.seriesJSON)
}

// Page is the data behind the forecast dialog.
type Page struct {
	DialogID   string
	ProductIDs []int64
	Current    int64
	Series     Series
	Chart      template.HTML
	Error      string
}

func owner(r *http.Request) string {
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		return sess.ID
	}
	return ""
}

func (h *Handler) open(w http.ResponseWriter, r *http.Request) {
	st := auth.StoreFromContext(r.Context())
	if !auth.CanForecast(st.User().Role) {
		http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}
	ids := make([]int64, 0, len(r.PostForm["product_id"]))
	for _, raw := range r.PostForm["product_id"] {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			http.Error(w, "Invalid product ID", http.StatusBadRequest)
			return
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		ids = catalog.LoadState(shared.SessionFromContext(r.Context()), catalog.KindManage).Selected
	}

	dialogID, err := h.service.Open(r.Context(), st.Token(), owner(r), ids)
	switch {
	case errors.Is(err, ErrNoProducts):
		shared.Flash(r.Context(), "warning", "Select at least one product first.")
		http.Redirect(w, r, "/products", http.StatusSeeOther)
		return
	case backend.IsUnauthorized(err):
		h.onUnauthorized(w, r)
		return
	case err != nil:
		h.logger.Error("open forecast", slog.Int("products", len(ids)), slog.Any("error", err))
		shared.Flash(r.Context(), "danger", backend.DetailOf(err))
		http.Redirect(w, r, "/products", http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, "/pricing/forecast/"+dialogID, http.StatusSeeOther)
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	dialog, err := h.service.Load(r.Context(), chi.URLParam(r, "dialog"), owner(r))
	if err != nil {
		if !errors.Is(err, ErrDialogNotFound) {
			h.logger.Error("load forecast dialog", slog.Any("error", err))
		}
		shared.Flash(r.Context(), "warning", "The forecast is no longer available. Open it again.")
		http.Redirect(w, r, "/products", http.StatusSeeOther)
		return
	}

	page := Page{DialogID: dialog.ID, ProductIDs: dialog.ProductIDs}
	if len(dialog.ProductIDs) > 0 {
		page.Current = dialog.ProductIDs[0]
	}
	if raw := r.URL.Query().Get("product"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			http.Error(w, "Invalid product ID", http.StatusBadRequest)
			return
		}
		page.Current = id
	}

	status := http.StatusOK
	series, err := dialog.Find(page.Current)
	if err != nil {
		page.Error = "No forecast is available for this product."
		status = http.StatusNotFound
	} else {
		page.Series = series
		page.Chart, err = chart.Dual(chart.DefaultWidth, chart.DefaultHeight, series.Demand(), series.SellingPrice(), chart.DualOpts{
			Title:       "Product " + strconv.FormatInt(series.ProductID, 10),
			Description: "Forecast demand and selling price per step",
			LabelA:      "Demand",
			LabelB:      "Selling Price",
		})
		if err != nil {
			page.Error = "No forecast is available for this product."
		}
	}

	if err := h.templates.RenderStatus(w, status, "pages/forecast.html", auth.PageData(r, h.csrf, "Demand Forecast", page)); err != nil {
		h.logger.Error("render template", slog.Any("error", err), slog.String("template", "pages/forecast.html"))
	}
}

func (h *Handler) seriesJSON(w http.ResponseWriter, r *http.Request) {
	dialog, err := h.service.Load(r.Context(), chi.URLParam(r, "dialog"), owner(r))
	if err != nil {
		if errors.Is(err, ErrDialogNotFound) {
			httpx.RespondError(w, httpx.ErrNotFound)
			return
		}
		h.logger.Error("load forecast dialog", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if raw := r.URL.Query().Get("product"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "product must be an integer")
			return
		}
		series, err := dialog.Find(id)
		if err != nil {
			httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
			return
		}
		httpx.JSON(w, http.StatusOK, series)
		return
	}
	httpx.JSON(w, http.StatusOK, dialog.Series)
}
