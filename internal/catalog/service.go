package catalog

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/singleflight"

	"github.com/pricedesk/pricedesk/internal/backend"
)

// ErrNoSelection is returned by bulk operations run on an empty selection.
var ErrNoSelection = errors.New("catalog: no products selected")

// Service calls the backend product endpoints on behalf of a bearer token.
type Service struct {
	client *backend.Client
	group  singleflight.Group
}

// NewService constructs a catalog service.
func NewService(client *backend.Client) *Service {
	return &Service{client: client}
}

// List fetches the full product collection. Concurrent lists for the same
// token share one backend call, which runs detached from any single caller's
// cancellation; callers must not mutate the returned slice.
func (s *Service) List(ctx context.Context, token string) ([]Product, error) {
	ch := s.group.DoChan(listKey(token), func() (interface{}, error) {
		return s.fetch(context.WithoutCancel(ctx), token)
	})
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("catalog: list products: %w", ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, fmt.Errorf("catalog: list products: %w", res.Err)
		}
		return res.Val.([]Product), nil
	}
}

// Fetch lists the collection with a call of its own. Reloads that follow a
// mutation use it so they never join a list that started before the change.
func (s *Service) Fetch(ctx context.Context, token string) ([]Product, error) {
	rows, err := s.fetch(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("catalog: list products: %w", err)
	}
	return rows, nil
}

func (s *Service) fetch(ctx context.Context, token string) ([]Product, error) {
	var rows []Product
	if err := s.client.WithToken(token).Get(ctx, "/products", &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func listKey(token string) string { return "list:" + token }

// changed drops any in-flight shared list for token so later lists start
// after the mutation.
func (s *Service) changed(token string) {
	s.group.Forget(listKey(token))
}

// Create posts a new product and returns it with its backend id.
func (s *Service) Create(ctx context.Context, token string, in ProductInput) (Product, error) {
	var created Product
	if err := s.client.WithToken(token).Post(ctx, "/products", in, &created); err != nil {
		return Product{}, fmt.Errorf("catalog: create product: %w", err)
	}
	s.changed(token)
	return created, nil
}

// Update replaces product id with in.
func (s *Service) Update(ctx context.Context, token string, id int64, in ProductInput) (Product, error) {
	var updated Product
	if err := s.client.WithToken(token).Put(ctx, backend.ProductPath(id), in, &updated); err != nil {
		return Product{}, fmt.Errorf("catalog: update product %d: %w", id, err)
	}
	s.changed(token)
	return updated, nil
}

// Delete removes product id.
func (s *Service) Delete(ctx context.Context, token string, id int64) error {
	if err := s.client.WithToken(token).Delete(ctx, backend.ProductPath(id), nil); err != nil {
		return fmt.Errorf("catalog: delete product %d: %w", id, err)
	}
	s.changed(token)
	return nil
}

type forecastRequest struct {
	ProductIDs []int64 `json:"product_ids"`
}

// RefreshForecasts asks the backend to recompute demand forecasts for ids.
// The backend stores the new figures on the products; the series it returns
// are discarded here.
func (s *Service) RefreshForecasts(ctx context.Context, token string, ids []int64) error {
	if len(ids) == 0 {
		return ErrNoSelection
	}
	if err := s.client.WithToken(token).Post(ctx, "/products/forecast", forecastRequest{ProductIDs: ids}, nil); err != nil {
		return fmt.Errorf("catalog: refresh forecasts: %w", err)
	}
	s.changed(token)
	return nil
}
