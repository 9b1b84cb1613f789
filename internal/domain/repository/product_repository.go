package repository

import (
	"context"

	"github.com/jhoicas/inventario-seriales/internal/domain/entity"
)

// ProductRepository puerto de solo lectura hacia el catálogo de productos.
type ProductRepository interface {
	GetByID(ctx context.Context, id string) (*entity.Product, error)
}
