package inventory

import (
	"context"

	"github.com/jhoicas/inventario-seriales/internal/domain/entity"
	"github.com/jhoicas/inventario-seriales/internal/domain/repository"
)

// Repos repositorios atados a una misma transacción (o al pool, fuera de ella).
type Repos struct {
	Units        repository.UnitRepository
	Movements    repository.MovementRepository
	Reservations repository.ReservationRepository
	Transfers    repository.TransferRepository
	Claims       repository.ClaimRepository
}

// TxRunner ejecuta una función dentro de una transacción de BD, pasando repositorios atados a esa tx.
// Si fn devuelve error se hace Rollback; si no, Commit. Garantiza atomicidad registro + libro mayor.
type TxRunner interface {
	Run(ctx context.Context, fn func(repos Repos) error) error
}

// UnitLocker exclusión mutua por clave (id de unidad, lote, serial). Lock adquiere las claves
// en el orden recibido; el llamador las entrega ordenadas para evitar interbloqueos.
type UnitLocker interface {
	Lock(ctx context.Context, keys []string) (unlock func(), err error)
}

// MovementPublisher publica movimientos ya confirmados para consumidores externos
// (contabilidad, reportes). Se invoca siempre después del commit.
type MovementPublisher interface {
	Publish(ctx context.Context, entries []*entity.MovementEntry) error
}

// Catalog colaboradores de solo lectura: catálogo de productos y directorio de bodegas.
type Catalog struct {
	Products   repository.ProductRepository
	Warehouses repository.WarehouseRepository
}
