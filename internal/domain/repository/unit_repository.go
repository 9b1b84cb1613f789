package repository

import (
	"context"

	"github.com/jhoicas/inventario-seriales/internal/domain/entity"
)

// UnitFilter criterios de listado del registro de unidades. Campos vacíos no filtran.
type UnitFilter struct {
	ProductID         string
	LocationID        string
	Status            entity.UnitStatus
	ExternalReference string
	Limit             int
	Offset            int
}

// UnitRepository define el puerto de persistencia del registro de unidades (DIP).
// Los métodos de lectura devuelven nil, nil cuando la unidad no existe.
type UnitRepository interface {
	// Create inserta la unidad; si el serial ya existe devuelve domain.ErrDuplicate.
	Create(ctx context.Context, unit *entity.Unit) error
	GetByID(ctx context.Context, id string) (*entity.Unit, error)
	GetBySerial(ctx context.Context, serialNumber string) (*entity.Unit, error)
	// GetForUpdate carga las unidades y las bloquea hasta el fin de la transacción
	// (SELECT FOR UPDATE ORDER BY id). Los ids inexistentes se omiten.
	GetForUpdate(ctx context.Context, ids []string) ([]*entity.Unit, error)
	// Update persiste la unidad solo si su versión no cambió desde que se leyó;
	// en caso contrario devuelve domain.ErrConcurrentModification. Incrementa unit.Version.
	Update(ctx context.Context, unit *entity.Unit) error
	// List devuelve unidades ordenadas de la más antigua a la más reciente (FIFO).
	List(ctx context.Context, f UnitFilter) ([]*entity.Unit, error)
}
