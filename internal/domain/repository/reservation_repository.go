package repository

import (
	"context"
	"time"

	"github.com/jhoicas/inventario-seriales/internal/domain/entity"
)

// ReservationRepository define el puerto de persistencia para reservas.
type ReservationRepository interface {
	Create(ctx context.Context, r *entity.Reservation) error
	GetByID(ctx context.Context, id string) (*entity.Reservation, error)
	// Update con control de versión (domain.ErrConcurrentModification si cambió).
	Update(ctx context.Context, r *entity.Reservation) error
	// ListExpired reservas ACTIVE con expires_at <= now. productID/locationID vacíos no filtran.
	ListExpired(ctx context.Context, productID, locationID string, now time.Time, limit int) ([]*entity.Reservation, error)
}
