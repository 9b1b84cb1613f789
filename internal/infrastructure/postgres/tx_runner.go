package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jhoicas/inventario-seriales/internal/application/inventory"
)

var _ inventory.TxRunner = (*TxRunner)(nil)

// TxRunner ejecuta callbacks dentro de una transacción PostgreSQL.
type TxRunner struct {
	pool *pgxpool.Pool
}

// NewTxRunner construye el runner con el pool.
func NewTxRunner(pool *pgxpool.Pool) *TxRunner {
	return &TxRunner{pool: pool}
}

// Run inicia una transacción, ejecuta fn con repos atados a la tx y hace Commit o Rollback.
func (r *TxRunner) Run(ctx context.Context, fn func(repos inventory.Repos) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(NewRepos(tx)); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// NewRepos repositorios sobre q (pool para lecturas sueltas, tx dentro de Run).
func NewRepos(q Querier) inventory.Repos {
	return inventory.Repos{
		Units:        NewUnitRepository(q),
		Movements:    NewMovementRepository(q),
		Reservations: NewReservationRepository(q),
		Transfers:    NewTransferRepository(q),
		Claims:       NewClaimRepository(q),
	}
}

// NewCatalog catálogo de productos y bodegas sobre el pool.
func NewCatalog(q Querier) inventory.Catalog {
	return inventory.Catalog{
		Products:   NewProductRepository(q),
		Warehouses: NewWarehouseRepository(q),
	}
}
