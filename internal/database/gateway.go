package database

import (
	"context"
	"fmt"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/sirupsen/logrus"

	"github.com/temcen/recoengine/pkg/models"
)

// DatabaseQuerier interface for database operations
type DatabaseQuerier interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
}

const productColumns = `product_id::text, category_name, total_sales, in_stock, bought_together`

// PostgresGateway reads user interaction and product records from the
// users_table and product_table relations. It never writes.
type PostgresGateway struct {
	db        DatabaseQuerier
	decoder   *RecordDecoder
	chunkSize int
	logger    *logrus.Logger
}

// NewPostgresGateway creates a gateway. chunkSize bounds id lists sent in a
// single query.
func NewPostgresGateway(db DatabaseQuerier, decoder *RecordDecoder, chunkSize int, logger *logrus.Logger) *PostgresGateway {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &PostgresGateway{
		db:        db,
		decoder:   decoder,
		chunkSize: chunkSize,
		logger:    logger,
	}
}

// FetchUserProfile returns nil, nil when the user has no record.
func (g *PostgresGateway) FetchUserProfile(ctx context.Context, userID string) (*models.UserProfile, error) {
	query := `
		SELECT events_json::text, purchased_json::text
		FROM users_table
		WHERE user_id = $1
		LIMIT 1`

	rows, err := g.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query user %s: %w", userID, err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("failed to read user %s: %w", userID, err)
		}
		return nil, nil
	}

	var events, purchases pgtype.Text
	if err := rows.Scan(&events, &purchases); err != nil {
		return nil, fmt.Errorf("failed to scan user %s: %w", userID, err)
	}

	profile := &models.UserProfile{
		UserID:    userID,
		Clicks:    g.decoder.ClickEvents(textBytes(events)),
		Purchases: g.decoder.Purchases(textBytes(purchases)),
	}
	return profile, rows.Err()
}

// FetchOtherUserProfiles reads up to maxRows users other than excludingUserID
// in one bounded query.
func (g *PostgresGateway) FetchOtherUserProfiles(ctx context.Context, excludingUserID string, maxRows int) ([]models.UserProfile, error) {
	query := `
		SELECT user_id::text, events_json::text, purchased_json::text
		FROM users_table
		WHERE user_id <> $1
		LIMIT $2`

	rows, err := g.db.Query(ctx, query, excludingUserID, maxRows)
	if err != nil {
		return nil, fmt.Errorf("failed to query peer users: %w", err)
	}
	defer rows.Close()

	var profiles []models.UserProfile
	for rows.Next() {
		var userID string
		var events, purchases pgtype.Text
		if err := rows.Scan(&userID, &events, &purchases); err != nil {
			g.logger.WithError(err).Warn("Failed to scan peer user row")
			continue
		}

		profiles = append(profiles, models.UserProfile{
			UserID:    userID,
			Clicks:    g.decoder.ClickEvents(textBytes(events)),
			Purchases: g.decoder.Purchases(textBytes(purchases)),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read peer users: %w", err)
	}

	return profiles, nil
}

// FetchProductsByIDs looks products up in chunks. The result order is
// whatever the store returns.
func (g *PostgresGateway) FetchProductsByIDs(ctx context.Context, ids []string) ([]models.Product, error) {
	query := `SELECT ` + productColumns + `
		FROM product_table
		WHERE product_id::text = ANY($1)`

	products, err := FetchChunked(ctx, ids, g.chunkSize, func(ctx context.Context, chunk []string) ([]models.Product, error) {
		return g.queryProducts(ctx, query, chunk)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch products by id: %w", err)
	}
	return products, nil
}

func (g *PostgresGateway) FetchProductsByCategory(ctx context.Context, category string, limit int) ([]models.Product, error) {
	query := `SELECT ` + productColumns + `
		FROM product_table
		WHERE category_name = $1
		ORDER BY total_sales DESC
		LIMIT $2`

	products, err := g.queryProducts(ctx, query, category, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch products for category %q: %w", category, err)
	}
	return products, nil
}

func (g *PostgresGateway) FetchProductsByCategories(ctx context.Context, categories []string, limit int) ([]models.Product, error) {
	if len(categories) == 0 {
		return nil, nil
	}

	query := `SELECT ` + productColumns + `
		FROM product_table
		WHERE category_name = ANY($1)
		ORDER BY total_sales DESC
		LIMIT $2`

	products, err := g.queryProducts(ctx, query, categories, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch products for categories: %w", err)
	}
	return products, nil
}

func (g *PostgresGateway) FetchGlobalPopular(ctx context.Context, limit int) ([]models.Product, error) {
	query := `SELECT ` + productColumns + `
		FROM product_table
		ORDER BY total_sales DESC
		LIMIT $1`

	products, err := g.queryProducts(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch popular products: %w", err)
	}
	return products, nil
}

// FetchBoughtTogether returns the co-purchase set of one product. An unknown
// product has an empty set.
func (g *PostgresGateway) FetchBoughtTogether(ctx context.Context, productID string) (mapset.Set[string], error) {
	query := `
		SELECT bought_together
		FROM product_table
		WHERE product_id::text = $1
		LIMIT 1`

	rows, err := g.db.Query(ctx, query, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to query bought_together for %s: %w", productID, err)
	}
	defer rows.Close()

	ids := models.NewIDSet()
	if rows.Next() {
		var raw interface{}
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("failed to scan bought_together for %s: %w", productID, err)
		}
		ids = g.decoder.BoughtTogether(raw)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read bought_together for %s: %w", productID, err)
	}

	return ids, nil
}

// FetchCategoriesForProducts returns the distinct non-empty category names
// of the given products in the order the store returns them.
func (g *PostgresGateway) FetchCategoriesForProducts(ctx context.Context, ids []string) ([]string, error) {
	query := `
		SELECT category_name
		FROM product_table
		WHERE product_id::text = ANY($1)`

	names, err := FetchChunked(ctx, ids, g.chunkSize, func(ctx context.Context, chunk []string) ([]string, error) {
		rows, err := g.db.Query(ctx, query, chunk)
		if err != nil {
			return nil, err
		}
		defer rows.Close()

		var names []string
		for rows.Next() {
			var name pgtype.Text
			if err := rows.Scan(&name); err != nil {
				return nil, err
			}
			if name.Valid && name.String != "" {
				names = append(names, name.String)
			}
		}
		return names, rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch categories: %w", err)
	}

	seen := make(map[string]struct{}, len(names))
	categories := make([]string, 0, len(names))
	for _, name := range names {
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		categories = append(categories, name)
	}
	return categories, nil
}

func (g *PostgresGateway) queryProducts(ctx context.Context, query string, args ...interface{}) ([]models.Product, error) {
	rows, err := g.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var products []models.Product
	for rows.Next() {
		var (
			product  models.Product
			category pgtype.Text
			sales    pgtype.Float8
			inStock  pgtype.Bool
			together interface{}
		)
		if err := rows.Scan(&product.ProductID, &category, &sales, &inStock, &together); err != nil {
			g.logger.WithError(err).Warn("Failed to scan product row")
			continue
		}

		product.CategoryName = category.String
		product.TotalSales = sales.Float64
		product.InStock = inStock.Bool
		product.BoughtTogether = mapset.Sorted(g.decoder.BoughtTogether(together))
		products = append(products, product)
	}

	return products, rows.Err()
}

func textBytes(t pgtype.Text) []byte {
	if !t.Valid {
		return nil
	}
	return []byte(t.String)
}
