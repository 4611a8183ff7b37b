package forecast

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/pricedesk/pricedesk/internal/backend"
)

// Errors returned by the dialog cache.
var (
	ErrNoProducts     = errors.New("forecast: no products selected")
	ErrDialogNotFound = errors.New("forecast: dialog not found or expired")
	ErrNoSeries       = errors.New("forecast: no series for product")
)

// Point is one forecast step.
type Point struct {
	Demand       float64 `json:"demand"`
	SellingPrice float64 `json:"selling_price"`
}

// Series is the forecast of one product.
type Series struct {
	ProductID int64   `json:"product_id"`
	Forecasts []Point `json:"forecasts"`
}

// Demand returns the demand values in step order.
func (s Series) Demand() []float64 {
	out := make([]float64, len(s.Forecasts))
	for i, p := range s.Forecasts {
		out[i] = p.Demand
	}
	return out
}

// SellingPrice returns the selling price values in step order.
func (s Series) SellingPrice() []float64 {
	out := make([]float64, len(s.Forecasts))
	for i, p := range s.Forecasts {
		out[i] = p.SellingPrice
	}
	return out
}

// Dialog is one opened forecast dialog: every requested product's series,
// fetched once.
type Dialog struct {
	ID         string    `json:"id"`
	Owner      string    `json:"owner"`
	ProductIDs []int64   `json:"product_ids"`
	Series     []Series  `json:"series"`
	OpenedAt   time.Time `json:"opened_at"`
}

// Find returns the series for productID.
func (d Dialog) Find(productID int64) (Series, error) {
	for _, s := range d.Series {
		if s.ProductID == productID {
			return s, nil
		}
	}
	return Series{}, fmt.Errorf("%w %d", ErrNoSeries, productID)
}

// Service fetches forecasts from the backend and keeps each dialog's result
// in Redis so switching products never re-fetches.
type Service struct {
	client *backend.Client
	redis  *redis.Client
	ttl    time.Duration
	now    func() time.Time
}

// NewService constructs the forecast service.
func NewService(client *backend.Client, redisClient *redis.Client, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &Service{client: client, redis: redisClient, ttl: ttl, now: time.Now}
}

type forecastRequest struct {
	ProductIDs []int64 `json:"product_ids"`
}

// Open requests forecasts for ids once and caches them under a new dialog id
// owned by owner.
func (s *Service) Open(ctx context.Context, token, owner string, ids []int64) (string, error) {
	if len(ids) == 0 {
		return "", ErrNoProducts
	}
	var series []Series
	if err := s.client.WithToken(token).Post(ctx, "/products/forecast", forecastRequest{ProductIDs: ids}, &series); err != nil {
		return "", fmt.Errorf("forecast: request: %w", err)
	}
	dialog := Dialog{
		ID:         uuid.NewString(),
		Owner:      owner,
		ProductIDs: append([]int64(nil), ids...),
		Series:     series,
		OpenedAt:   s.now().UTC(),
	}
	raw, err := json.Marshal(dialog)
	if err != nil {
		return "", err
	}
	if err := s.redis.Set(ctx, key(dialog.ID), raw, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("forecast: cache dialog: %w", err)
	}
	return dialog.ID, nil
}

// Load returns the cached dialog. Dialogs of another owner are reported as
// not found.
func (s *Service) Load(ctx context.Context, dialogID, owner string) (Dialog, error) {
	if _, err := uuid.Parse(dialogID); err != nil {
		return Dialog{}, ErrDialogNotFound
	}
	raw, err := s.redis.Get(ctx, key(dialogID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Dialog{}, ErrDialogNotFound
	}
	if err != nil {
		return Dialog{}, fmt.Errorf("forecast: read dialog: %w", err)
	}
	var dialog Dialog
	if err := json.Unmarshal(raw, &dialog); err != nil {
		return Dialog{}, fmt.Errorf("forecast: decode dialog: %w", err)
	}
	if dialog.Owner != owner {
		return Dialog{}, ErrDialogNotFound
	}
	return dialog, nil
}

// Series returns one product's series from the cached dialog.
func (s *Service) Series(ctx context.Context, dialogID, owner string, productID int64) (Series, error) {
	dialog, err := s.Load(ctx, dialogID, owner)
	if err != nil {
		return Series{}, err
	}
	return dialog.Find(productID)
}

func key(dialogID string) string {
	return "forecast:" + dialogID
}
