// Package postgres loads the shipping and payment tables from PostgreSQL.
package postgres

import (
	"context"
	"embed"
	"fmt"
	"io/fs"

	"github.com/utafrali/tgshop/internal/catalog"
	"github.com/utafrali/tgshop/internal/domain"
	"github.com/utafrali/tgshop/pkg/database"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Migrations returns the schema and seed migrations for database.RunMigrations.
func Migrations() fs.FS {
	sub, err := fs.Sub(migrationFiles, "migrations")
	if err != nil {
		panic(err)
	}
	return sub
}

const (
	shippingQuery = `SELECT id, name, cost_cents, estimated_days
FROM shipping_options
ORDER BY position, id`

	paymentQuery = `SELECT pm.id, pm.name, pm.description,
       COALESCE(array_agg(so.id ORDER BY so.position, so.id) FILTER (WHERE so.id IS NOT NULL), '{}')
FROM payment_methods pm
LEFT JOIN payment_method_shipping pms ON pms.payment_method_id = pm.id
LEFT JOIN shipping_options so ON so.id = pms.shipping_option_id
GROUP BY pm.id, pm.name, pm.description, pm.position
ORDER BY pm.position, pm.id`
)

// CatalogRepository implements repository.CatalogSource.
type CatalogRepository struct {
	db     database.DBTX
	tracer *database.QueryTracer
}

// NewCatalogRepository creates a loader over db.
func NewCatalogRepository(db database.DBTX, tracer *database.QueryTracer) *CatalogRepository {
	return &CatalogRepository{db: db, tracer: tracer}
}

// Load reads both tables and validates them into a Catalog.
func (r *CatalogRepository) Load(ctx context.Context) (*catalog.Catalog, error) {
	shipping, err := r.loadShipping(ctx)
	if err != nil {
		return nil, err
	}
	payment, err := r.loadPayment(ctx)
	if err != nil {
		return nil, err
	}
	c, err := catalog.New(shipping, payment)
	if err != nil {
		return nil, fmt.Errorf("postgres catalog: %w", err)
	}
	return c, nil
}

func (r *CatalogRepository) loadShipping(ctx context.Context) (out []domain.ShippingOption, err error) {
	ctx, end := r.tracer.Trace(ctx, "LoadShippingOptions", shippingQuery)
	defer func() { end(err) }()

	rows, err := r.db.Query(ctx, shippingQuery)
	if err != nil {
		return nil, fmt.Errorf("query shipping options: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			s    domain.ShippingOption
			cost int64
		)
		if err := rows.Scan(&s.ID, &s.DisplayName, &cost, &s.EstimatedDays); err != nil {
			return nil, fmt.Errorf("scan shipping option: %w", err)
		}
		s.Cost = domain.Money(cost)
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate shipping options: %w", err)
	}
	return out, nil
}

func (r *CatalogRepository) loadPayment(ctx context.Context) (out []domain.PaymentMethod, err error) {
	ctx, end := r.tracer.Trace(ctx, "LoadPaymentMethods", paymentQuery)
	defer func() { end(err) }()

	rows, err := r.db.Query(ctx, paymentQuery)
	if err != nil {
		return nil, fmt.Errorf("query payment methods: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var pm domain.PaymentMethod
		if err := rows.Scan(&pm.ID, &pm.DisplayName, &pm.Description, &pm.EligibleShippingIDs); err != nil {
			return nil, fmt.Errorf("scan payment method: %w", err)
		}
		out = append(out, pm)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate payment methods: %w", err)
	}
	return out, nil
}
