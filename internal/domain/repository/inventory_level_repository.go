package repository

import (
	"context"
	"time"

	"github.com/jhoicas/inventario-seriales/internal/domain/entity"
)

// InventoryLevelRepository agrega el registro de unidades por estado (lado de lectura).
// Nunca lee el libro mayor. SoldInPeriod cuenta unidades con sold_at en [soldFrom, soldTo).
type InventoryLevelRepository interface {
	// ListByProduct un InventoryLevel por bodega donde hay unidades del producto.
	ListByProduct(ctx context.Context, productID string, soldFrom, soldTo time.Time) ([]*entity.InventoryLevel, error)
	// ListByLocation un InventoryLevel por producto presente en la bodega.
	ListByLocation(ctx context.Context, locationID string, soldFrom, soldTo time.Time) ([]*entity.InventoryLevel, error)
}
