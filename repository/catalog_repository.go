package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"marketplace-api/apperrors"
	"marketplace-api/models"
)

// CatalogRepository exposes the read side of shops and products that order
// creation needs.
type CatalogRepository struct {
	db *sql.DB
}

func NewCatalogRepository(db *sql.DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

func (r *CatalogRepository) GetShop(ctx context.Context, id int64) (*models.Shop, error) {
	var s models.Shop
	err := r.db.QueryRowContext(ctx, `
		SELECT id, owner_id, name, delivery_fee, is_active
		FROM shops WHERE id = ?`, id,
	).Scan(&s.ID, &s.OwnerID, &s.Name, &s.DeliveryFee, &s.IsActive)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.ErrShopNotFound
		}
		return nil, fmt.Errorf("get shop: %w", err)
	}
	return &s, nil
}

// GetProducts loads the given products keyed by id. Missing ids are simply
// absent from the result.
func (r *CatalogRepository) GetProducts(ctx context.Context, ids []int64) (map[int64]models.Product, error) {
	out := make(map[int64]models.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, shop_id, name, price, stock_quantity, in_stock
		FROM products WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("get products: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var p models.Product
		if err := rows.Scan(&p.ID, &p.ShopID, &p.Name, &p.Price, &p.StockQuantity, &p.InStock); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		out[p.ID] = p
	}
	return out, rows.Err()
}
