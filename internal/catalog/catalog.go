// Package catalog imports the provider price list into local products.
package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/ditznesia/otpstore/internal/domain/products"
	"github.com/ditznesia/otpstore/internal/provider/otpclient"
	"github.com/ditznesia/otpstore/internal/storage"
)

// Lister is the slice of the provider client the sync needs.
type Lister interface {
	Countries(ctx context.Context) ([]otpclient.Country, error)
	Services(ctx context.Context, countryID string) (map[string]otpclient.Service, error)
}

type Syncer struct {
	log     *slog.Logger
	storage storage.ProductStorage
	lister  Lister
}

func NewSyncer(store storage.ProductStorage, lister Lister, opts ...Option) *Syncer {
	s := &Syncer{
		log:     slog.New(&slog.JSONHandler{}),
		storage: store,
		lister:  lister,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

type Option func(s *Syncer)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Syncer) {
		s.log = logger.With(slog.String("module", "catalog"))
	}
}

// Sync creates one product per provider service for the country, pricing
// each at the wholesale cost plus the markup. Re-syncing the same
// country appends new products rather than upserting; the admin reviews
// and deletes duplicates by hand.
func (s *Syncer) Sync(ctx context.Context, countryID string, markup decimal.Decimal) (int, error) {
	countries, err := s.lister.Countries(ctx)
	if err != nil {
		return 0, fmt.Errorf("lister.Countries: %w", err)
	}

	countryName := "Unknown"

	for _, country := range countries {
		if country.ID.String() == countryID {
			countryName = titleCase(country.Name)

			break
		}
	}

	services, err := s.lister.Services(ctx, countryID)
	if err != nil {
		return 0, fmt.Errorf("lister.Services: %w", err)
	}

	created := 0

	for code, svc := range services {
		product, err := products.NewProduct(
			titleCase(svc.Label),
			countryName,
			svc.Cost.Add(markup),
			svc.Stock,
			countryID,
			code,
		)
		if err != nil {
			s.log.Warn("Skipping provider service",
				slog.String("service_code", code),
				slog.Any("error", err),
			)

			continue
		}

		if err := s.storage.CreateProduct(ctx, product); err != nil {
			return created, fmt.Errorf("storage.CreateProduct: %w", err)
		}

		created++
	}

	s.log.Info("Catalog sync finished",
		slog.String("country_id", countryID),
		slog.String("country", countryName),
		slog.Int("created", created),
	)

	return created, nil
}

func titleCase(s string) string {
	if s == "" {
		return s
	}

	return strings.ToUpper(s[:1]) + s[1:]
}
