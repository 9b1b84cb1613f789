package repository

import (
	"context"
	"time"

	"github.com/jhoicas/inventario-seriales/internal/domain/entity"
)

// TransferRepository define el puerto de persistencia para lotes de traslado.
type TransferRepository interface {
	Create(ctx context.Context, b *entity.TransferBatch) error
	GetByID(ctx context.Context, id string) (*entity.TransferBatch, error)
	Update(ctx context.Context, b *entity.TransferBatch) error
	// FindOpenByUnits lotes abiertos (no COMPLETED/CANCELLED) que contienen alguna de las unidades.
	FindOpenByUnits(ctx context.Context, unitIDs []string) ([]*entity.TransferBatch, error)
	// ListOpenUpdatedBefore lotes abiertos sin cambios desde antes de t.
	ListOpenUpdatedBefore(ctx context.Context, t time.Time) ([]*entity.TransferBatch, error)
}
