package repository

import (
	"context"

	"github.com/jhoicas/inventario-seriales/internal/domain/entity"
)

// WarehouseRepository puerto de solo lectura hacia el directorio de bodegas.
type WarehouseRepository interface {
	GetByID(ctx context.Context, id string) (*entity.Warehouse, error)
}
