package repository

import (
	"context"

	"github.com/jhoicas/inventario-seriales/internal/domain/entity"
)

// ClaimRepository define el puerto de persistencia para reclamos.
type ClaimRepository interface {
	Create(ctx context.Context, c *entity.Claim) error
	GetByID(ctx context.Context, id string) (*entity.Claim, error)
	// GetOpenByUnit reclamo OPEN de la unidad, o nil.
	GetOpenByUnit(ctx context.Context, unitID string) (*entity.Claim, error)
	Update(ctx context.Context, c *entity.Claim) error
}
