package catalog

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/pricedesk/pricedesk/internal/auth"
	"github.com/pricedesk/pricedesk/internal/backend"
	"github.com/pricedesk/pricedesk/internal/shared"
	"github.com/pricedesk/pricedesk/internal/view"
)

// Table kinds; each keeps its own view state in the session.
const (
	KindManage  = "manage"
	KindPricing = "pricing"
)

// Enqueuer queues a background forecast refresh.
type Enqueuer interface {
	EnqueueForecastRefresh(ctx context.Context, token string, ids []int64) error
}

// Handler serves the product management and pricing tables.
type Handler struct {
	logger         *slog.Logger
	service        *Service
	templates      *view.Engine
	csrf           *shared.CSRFManager
	enqueuer       Enqueuer
	onUnauthorized http.HandlerFunc
}

// NewHandler builds Handler instance. enqueuer may be nil, in which case
// forecast refreshes run inline.
func NewHandler(logger *slog.Logger, service *Service, templates *view.Engine, csrf *shared.CSRFManager, enqueuer Enqueuer, onUnauthorized http.HandlerFunc) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if onUnauthorized == nil {
		onUnauthorized = auth.Expire
	}
	return &Handler{logger: logger, service: service, templates: templates, csrf: csrf, enqueuer: enqueuer, onUnauthorized: onUnauthorized}
}

// MountRoutes registers product routes. Callers wrap them in RequireLogin.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/products", h.manage)
	r.Post("/products/select", h.selectRows)
	r.Post("/products/forecast-refresh", h.refreshForecasts)
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireMutate)
		r.Post("/products", h.create)
		r.Post("/products/{id}", h.update)
		r.Post("/products/{id}/delete", h.remove)
	})
	r.Get("/pricing", h.pricing)
}

// Row is one rendered table row.
type Row struct {
	ID       int64
	Cells    []Cell
	Selected bool
}

// Cell is one formatted value.
type Cell struct {
	Key     string
	Value   string
	Numeric bool
}

// Dialog is the state of an open create, edit or delete dialog.
type Dialog struct {
	Mode   string
	ID     int64
	Form   ProductForm
	Errors map[string]string
	Error  string
}

// TablePage is the data behind both table pages.
type TablePage struct {
	Kind               string
	Path               string
	Columns            []Column
	Rows               []Row
	Page               Page
	State              ViewState
	Categories         []string
	RowsPerPageOptions []int
	SelectedCount      int
	Error              string
	Dialog             *Dialog
	CanMutate          bool
}

func stateKey(kind string) string { return "view:" + kind }

// LoadState reads the view state of table kind from the session.
func LoadState(sess *shared.Session, kind string) ViewState {
	state := DefaultViewState()
	if sess != nil {
		sess.GetJSON(stateKey(kind), &state)
	}
	return state
}

func saveState(sess *shared.Session, kind string, state ViewState) {
	if sess == nil {
		return
	}
	_ = sess.SetJSON(stateKey(kind), state)
}

func (h *Handler) controller(r *http.Request, kind string) *Controller {
	token := auth.StoreFromContext(r.Context()).Token()
	return NewController(h.service, token, LoadState(shared.SessionFromContext(r.Context()), kind))
}

func (h *Handler) manage(w http.ResponseWriter, r *http.Request) {
	h.table(w, r, KindManage, "/products", "Product Data", ManageColumns)
}

func (h *Handler) pricing(w http.ResponseWriter, r *http.Request) {
	h.table(w, r, KindPricing, "/pricing", "Pricing Optimization", PricingColumns)
}

func (h *Handler) table(w http.ResponseWriter, r *http.Request, kind, path, title string, cols []Column) {
	ctrl := h.controller(r, kind)
	q := r.URL.Query()
	if applyQuery(ctrl, q) {
		saveState(shared.SessionFromContext(r.Context()), kind, ctrl.State())
		http.Redirect(w, r, path+dialogQuery(q), http.StatusSeeOther)
		return
	}

	data := TablePage{Kind: kind, Path: path}
	if err := ctrl.Load(r.Context()); err != nil {
		if backend.IsUnauthorized(err) {
			h.onUnauthorized(w, r)
			return
		}
		h.logger.Error("load products", slog.String("table", kind), slog.Any("error", err))
		data.Error = backend.DetailOf(err)
	}

	if kind == KindManage {
		data.Dialog = h.dialogFromQuery(ctrl, q)
	}
	h.render(w, r, http.StatusOK, title, ctrl, cols, data)
}

// applyQuery runs the view-state operations named in q and reports whether
// any ran. Search and category are mutually overriding; category wins when a
// request carries both.
func applyQuery(ctrl *Controller, q url.Values) bool {
	changed := false
	ctrl.Update(func(t *Table) {
		if q.Has("q") {
			t.SetSearch(q.Get("q"))
			changed = true
		}
		if q.Has("category") {
			t.SetFilter(q.Get("category"))
			changed = true
		}
		if key := q.Get("sort"); key != "" {
			t.SetSort(key)
			changed = true
		}
		if n, err := strconv.Atoi(q.Get("rows")); err == nil {
			t.SetRowsPerPage(n)
			changed = true
		}
		if n, err := strconv.Atoi(q.Get("page")); err == nil {
			t.SetPage(n)
			changed = true
		}
	})
	return changed
}

func dialogQuery(q url.Values) string {
	mode := q.Get("dialog")
	if mode == "" {
		return ""
	}
	v := url.Values{"dialog": {mode}}
	if id := q.Get("id"); id != "" {
		v.Set("id", id)
	}
	return "?" + v.Encode()
}

func (h *Handler) dialogFromQuery(ctrl *Controller, q url.Values) *Dialog {
	switch mode := q.Get("dialog"); mode {
	case "create":
		return &Dialog{Mode: mode, Errors: map[string]string{}}
	case "edit", "delete":
		id, err := strconv.ParseInt(q.Get("id"), 10, 64)
		if err != nil {
			return nil
		}
		p, err := ctrl.Find(id)
		if err != nil {
			return nil
		}
		return &Dialog{Mode: mode, ID: id, Form: FormFromProduct(p), Errors: map[string]string{}}
	}
	return nil
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}
	ctrl := h.controller(r, KindManage)
	form := FormFromValues(r.PostForm)
	res := ctrl.SubmitCreate(r.Context(), form)
	if !res.OK {
		h.submitFailed(w, r, ctrl, &Dialog{Mode: "create", Form: form}, res)
		return
	}
	h.submitDone(w, r, ctrl, res, "Product created.")
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid product ID", http.StatusBadRequest)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}
	ctrl := h.controller(r, KindManage)
	form := FormFromValues(r.PostForm)
	res := ctrl.SubmitEdit(r.Context(), id, form)
	if !res.OK {
		h.submitFailed(w, r, ctrl, &Dialog{Mode: "edit", ID: id, Form: form}, res)
		return
	}
	h.submitDone(w, r, ctrl, res, "Product updated.")
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid product ID", http.StatusBadRequest)
		return
	}
	ctrl := h.controller(r, KindManage)
	res := ctrl.SubmitDelete(r.Context(), id)
	if !res.OK {
		h.submitFailed(w, r, ctrl, &Dialog{Mode: "delete", ID: id}, res)
		return
	}
	h.submitDone(w, r, ctrl, res, "Product deleted.")
}

func (h *Handler) submitDone(w http.ResponseWriter, r *http.Request, ctrl *Controller, res Result, message string) {
	saveState(shared.SessionFromContext(r.Context()), KindManage, ctrl.State())
	if res.Err != nil {
		h.logger.Warn("reload after submit", slog.Any("error", res.Err))
		shared.Flash(r.Context(), "warning", message+" The table could not be refreshed.")
	} else {
		shared.Flash(r.Context(), "success", message)
	}
	http.Redirect(w, r, "/products", http.StatusSeeOther)
}

// submitFailed re-renders the page with the dialog still open.
func (h *Handler) submitFailed(w http.ResponseWriter, r *http.Request, ctrl *Controller, dialog *Dialog, res Result) {
	if backend.IsUnauthorized(res.Err) {
		h.onUnauthorized(w, r)
		return
	}
	dialog.Errors = res.FieldErrors
	if dialog.Errors == nil {
		dialog.Errors = map[string]string{}
	}
	status := http.StatusUnprocessableEntity
	var verr *ValidationError
	if !errors.As(res.Err, &verr) {
		h.logger.Warn("product submit failed", slog.String("dialog", dialog.Mode), slog.Any("error", res.Err))
		dialog.Error = backend.DetailOf(res.Err)
		status = http.StatusBadGateway
		if code := backend.StatusOf(res.Err); code >= 400 && code < 500 {
			status = http.StatusBadRequest
		}
	}
	data := TablePage{Kind: KindManage, Path: "/products", Dialog: dialog}
	if err := ctrl.Load(r.Context()); err != nil {
		if backend.IsUnauthorized(err) {
			h.onUnauthorized(w, r)
			return
		}
		data.Error = backend.DetailOf(err)
	}
	h.render(w, r, status, "Product Data", ctrl, ManageColumns, data)
}

func (h *Handler) selectRows(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}
	ctrl := h.controller(r, KindManage)
	switch all := r.PostFormValue("all"); all {
	case "1", "0":
		if all == "1" {
			if err := ctrl.Load(r.Context()); err != nil {
				if backend.IsUnauthorized(err) {
					h.onUnauthorized(w, r)
					return
				}
				shared.Flash(r.Context(), "danger", backend.DetailOf(err))
				http.Redirect(w, r, "/products", http.StatusSeeOther)
				return
			}
		}
		ctrl.Update(func(t *Table) { t.SelectAll(all == "1") })
	default:
		id, err := strconv.ParseInt(r.PostFormValue("id"), 10, 64)
		if err != nil {
			http.Error(w, "Invalid product ID", http.StatusBadRequest)
			return
		}
		ctrl.Update(func(t *Table) { t.ToggleRowSelection(id) })
	}
	saveState(shared.SessionFromContext(r.Context()), KindManage, ctrl.State())
	http.Redirect(w, r, "/products", http.StatusSeeOther)
}

func (h *Handler) refreshForecasts(w http.ResponseWriter, r *http.Request) {
	st := auth.StoreFromContext(r.Context())
	if !auth.CanForecast(st.User().Role) {
		http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
		return
	}
	ctrl := h.controller(r, KindManage)
	ids := ctrl.Selected()
	if len(ids) == 0 {
		shared.Flash(r.Context(), "warning", "Select at least one product first.")
		http.Redirect(w, r, "/products", http.StatusSeeOther)
		return
	}

	var err error
	message := "Demand forecasts updated."
	if h.enqueuer != nil {
		err = h.enqueuer.EnqueueForecastRefresh(r.Context(), st.Token(), ids)
		message = "Demand forecast refresh queued."
	} else {
		err = ctrl.RefreshForecasts(r.Context())
	}
	switch {
	case backend.IsUnauthorized(err):
		h.onUnauthorized(w, r)
		return
	case err != nil:
		h.logger.Error("refresh forecasts", slog.Int("products", len(ids)), slog.Any("error", err))
		shared.Flash(r.Context(), "danger", backend.DetailOf(err))
	default:
		shared.Flash(r.Context(), "success", message)
	}
	http.Redirect(w, r, "/products", http.StatusSeeOther)
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, title string, ctrl *Controller, cols []Column, data TablePage) {
	canMutate := auth.StoreFromContext(r.Context()).CanMutate()
	data.CanMutate = canMutate && data.Kind == KindManage
	data.Columns = VisibleColumns(cols, canMutate)
	data.Page = ctrl.Visible()
	data.State = ctrl.State()
	data.Categories = ctrl.Categories()
	data.RowsPerPageOptions = RowsPerPageOptions
	data.SelectedCount = len(data.State.Selected)
	data.Rows = buildRows(data.Page.Rows, data.Columns, data.State.Selected)
	if err := h.templates.RenderStatus(w, status, "pages/products.html", auth.PageData(r, h.csrf, title, data)); err != nil {
		h.logger.Error("render template", slog.Any("error", err), slog.String("template", "pages/products.html"))
	}
}

func buildRows(products []Product, cols []Column, selected []int64) []Row {
	rows := make([]Row, 0, len(products))
	for _, p := range products {
		row := Row{ID: p.ID, Selected: indexOf(selected, p.ID) >= 0}
		for _, c := range cols {
			row.Cells = append(row.Cells, Cell{Key: c.Key, Value: format(p, c.Key), Numeric: c.Numeric})
		}
		rows = append(rows, row)
	}
	return rows
}

func format(p Product, key string) string {
	switch key {
	case ColName:
		return p.Name
	case ColCategory:
		return p.Category
	case ColDescription:
		return p.Description
	case ColCostPrice:
		return view.Money(p.CostPrice)
	case ColSellingPrice:
		return view.Money(p.SellingPrice)
	case ColOptimizedPrice:
		return view.OptionalMoney(p.OptimizedPrice)
	case ColStockAvailable:
		return view.Count(p.StockAvailable)
	case ColUnitsSold:
		return view.Count(p.UnitsSold)
	case ColCustomerRating:
		return view.Rating(p.CustomerRating)
	case ColDemandForecast:
		return view.Percent(p.DemandForecast)
	}
	return ""
}
