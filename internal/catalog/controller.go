package catalog

import (
	"context"
	"fmt"
	"sync"
)

// Controller drives one product table for one session: it loads the
// collection, applies view-state operations and dispatches mutations.
type Controller struct {
	service *Service
	token   string

	mu      sync.Mutex
	table   *Table
	started uint64
	applied uint64
}

// NewController builds a controller with the given view state and an empty
// collection. Call Load before reading rows.
func NewController(service *Service, token string, state ViewState) *Controller {
	return &Controller{service: service, token: token, table: NewTable(nil, state)}
}

// Load fetches the full collection and replaces the local one. On failure the
// previous collection is kept and the error returned. A load that finishes
// after a later one has been applied is discarded.
func (c *Controller) Load(ctx context.Context) error {
	return c.load(ctx, c.service.List)
}

// reload is Load after a mutation: it always issues a fresh backend call.
func (c *Controller) reload(ctx context.Context) error {
	return c.load(ctx, c.service.Fetch)
}

func (c *Controller) load(ctx context.Context, list func(context.Context, string) ([]Product, error)) error {
	gen := c.begin()
	rows, err := list(ctx, c.token)
	if err != nil {
		return err
	}
	c.apply(gen, rows)
	return nil
}

func (c *Controller) begin() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.started++
	return c.started
}

func (c *Controller) apply(gen uint64, rows []Product) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen < c.applied {
		return false
	}
	c.applied = gen
	c.table.Replace(rows)
	return true
}

// Update runs fn against the table under the controller lock.
func (c *Controller) Update(fn func(t *Table)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(c.table)
}

// State returns a copy of the view state.
func (c *Controller) State() ViewState {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := c.table.State()
	st.Selected = append([]int64(nil), st.Selected...)
	return st
}

// Visible returns the current page.
func (c *Controller) Visible() Page {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.table.Visible()
}

// Categories lists the categories of the loaded collection.
func (c *Controller) Categories() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.table.Categories()
}

// Selected returns the selected ids.
func (c *Controller) Selected() []int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.table.Selected()
}

// Find returns the loaded product with id.
func (c *Controller) Find(id int64) (Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, p := range c.table.Rows() {
		if p.ID == id {
			return p, nil
		}
	}
	return Product{}, fmt.Errorf("%w: %d", ErrNotFound, id)
}

// SubmitCreate coerces form, creates the product and reloads. A reload
// failure after a successful create still reports OK with Err set.
func (c *Controller) SubmitCreate(ctx context.Context, form ProductForm) Result {
	in, err := form.Coerce()
	if err != nil {
		return failed(err)
	}
	created, err := c.service.Create(ctx, c.token, in)
	if err != nil {
		return failed(err)
	}
	return Result{OK: true, Product: &created, Err: c.reload(ctx)}
}

// SubmitEdit coerces form, replaces product id, reloads and re-selects id.
func (c *Controller) SubmitEdit(ctx context.Context, id int64, form ProductForm) Result {
	in, err := form.Coerce()
	if err != nil {
		return failed(err)
	}
	updated, err := c.service.Update(ctx, c.token, id, in)
	if err != nil {
		return failed(err)
	}
	loadErr := c.reload(ctx)
	c.Update(func(t *Table) { t.Select(id) })
	return Result{OK: true, Product: &updated, Err: loadErr}
}

// SubmitDelete removes product id and reloads.
func (c *Controller) SubmitDelete(ctx context.Context, id int64) Result {
	if err := c.service.Delete(ctx, c.token, id); err != nil {
		return failed(err)
	}
	loadErr := c.reload(ctx)
	c.Update(func(t *Table) {
		if t.IsSelected(id) {
			t.ToggleRowSelection(id)
		}
	})
	return Result{OK: true, Err: loadErr}
}

// RefreshForecasts recomputes demand forecasts for the selection inline and
// reloads so the new figures show.
func (c *Controller) RefreshForecasts(ctx context.Context) error {
	if err := c.service.RefreshForecasts(ctx, c.token, c.Selected()); err != nil {
		return err
	}
	return c.reload(ctx)
}
