package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jhoicas/inventario-seriales/internal/domain/entity"
	"github.com/jhoicas/inventario-seriales/internal/domain/repository"
)

var _ repository.InventoryLevelRepository = (*InventoryLevelRepo)(nil)

// InventoryLevelRepo conteos por (producto, bodega) agregados desde la tabla units.
type InventoryLevelRepo struct {
	q Querier
}

// NewInventoryLevelRepository construye el adaptador. Acepta pool o tx (Querier).
func NewInventoryLevelRepository(q Querier) *InventoryLevelRepo {
	return &InventoryLevelRepo{q: q}
}

const levelSelect = `
	SELECT product_id, location_id,
		COUNT(*) FILTER (WHERE status = 'AVAILABLE'),
		COUNT(*) FILTER (WHERE status = 'RESERVED'),
		COUNT(*) FILTER (WHERE status = 'IN_TRANSIT'),
		COUNT(*) FILTER (WHERE status = 'SOLD'),
		COUNT(*) FILTER (WHERE status = 'DELIVERED'),
		COUNT(*) FILTER (WHERE status = 'CLAIMED'),
		COUNT(*) FILTER (WHERE status = 'DAMAGED'),
		COUNT(*) FILTER (WHERE sold_at BETWEEN $2 AND $3),
		COUNT(*),
		COALESCE(SUM(unit_cost) FILTER (WHERE status = 'AVAILABLE'), 0)
	FROM units`

func (r *InventoryLevelRepo) ListByProduct(ctx context.Context, productID string, soldFrom, soldTo time.Time) ([]*entity.InventoryLevel, error) {
	return r.list(ctx, levelSelect+` WHERE product_id = $1 GROUP BY product_id, location_id ORDER BY location_id`,
		productID, soldFrom, soldTo)
}

func (r *InventoryLevelRepo) ListByLocation(ctx context.Context, locationID string, soldFrom, soldTo time.Time) ([]*entity.InventoryLevel, error) {
	return r.list(ctx, levelSelect+` WHERE location_id = $1 GROUP BY product_id, location_id ORDER BY product_id`,
		locationID, soldFrom, soldTo)
}

func (r *InventoryLevelRepo) list(ctx context.Context, query string, args ...any) ([]*entity.InventoryLevel, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list inventory levels: %w", err)
	}
	defer rows.Close()
	var list []*entity.InventoryLevel
	for rows.Next() {
		var l entity.InventoryLevel
		if err := rows.Scan(&l.ProductID, &l.LocationID, &l.Available, &l.Reserved, &l.InTransit,
			&l.Sold, &l.Delivered, &l.Claimed, &l.Damaged, &l.SoldInPeriod, &l.Total, &l.AvailableCost); err != nil {
			return nil, fmt.Errorf("scan inventory level: %w", err)
		}
		list = append(list, &l)
	}
	return list, rows.Err()
}
