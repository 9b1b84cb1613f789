package postgres_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/inventario-seriales/internal/application/inventory"
	"github.com/jhoicas/inventario-seriales/internal/domain"
	"github.com/jhoicas/inventario-seriales/internal/domain/entity"
	"github.com/jhoicas/inventario-seriales/internal/infrastructure/postgres"
	"github.com/jhoicas/inventario-seriales/pkg/config"
)

// openPool requiere TEST_DATABASE_URL; sin ella las pruebas se omiten.
func openPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL no definido")
	}
	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, config.DBConfig{DatabaseURL: url})
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	require.NoError(t, postgres.EnsureSchema(ctx, pool))
	return pool
}

func seed(t *testing.T, pool *pgxpool.Pool) (productID, locationID string) {
	t.Helper()
	ctx := context.Background()
	productID = uuid.New().String()
	locationID = "W-" + uuid.New().String()[:8]
	_, err := pool.Exec(ctx, `INSERT INTO products (id, sku, name) VALUES ($1, $2, 'Prueba')`, productID, "SKU-"+productID[:8])
	require.NoError(t, err)
	_, err = pool.Exec(ctx, `INSERT INTO warehouses (id, name) VALUES ($1, 'Bodega prueba')`, locationID)
	require.NoError(t, err)
	return productID, locationID
}

func TestUnitRepo_VersionedUpdate(t *testing.T) {
	pool := openPool(t)
	ctx := context.Background()
	productID, locationID := seed(t, pool)
	repos := postgres.NewRepos(pool)
	now := time.Now().UTC().Truncate(time.Microsecond)

	u := &entity.Unit{
		ID: uuid.New().String(), SerialNumber: "IT-" + uuid.New().String()[:8],
		ProductID: productID, LocationID: locationID, UnitCost: decimal.RequireFromString("99.90"),
		Status: entity.UnitStatusAvailable, CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, repos.Units.Create(ctx, u))
	assert.ErrorIs(t, repos.Units.Create(ctx, &entity.Unit{ID: uuid.New().String(), SerialNumber: u.SerialNumber,
		ProductID: productID, LocationID: locationID, Status: entity.UnitStatusAvailable, CreatedAt: now, UpdatedAt: now}),
		domain.ErrDuplicate)

	stale, err := repos.Units.GetByID(ctx, u.ID)
	require.NoError(t, err)
	u.Status = entity.UnitStatusSold
	require.NoError(t, repos.Units.Update(ctx, u))
	assert.Equal(t, int64(2), u.Version)
	assert.ErrorIs(t, repos.Units.Update(ctx, stale), domain.ErrConcurrentModification)

	got, err := repos.Units.GetBySerial(ctx, u.SerialNumber)
	require.NoError(t, err)
	assert.True(t, got.UnitCost.Equal(decimal.RequireFromString("99.90")))
}

func TestTxRunner_RollbackAndSequence(t *testing.T) {
	pool := openPool(t)
	ctx := context.Background()
	productID, locationID := seed(t, pool)
	runner := postgres.NewTxRunner(pool)
	now := time.Now().UTC()
	unitID := uuid.New().String()

	err := runner.Run(ctx, func(r inventory.Repos) error {
		u := &entity.Unit{ID: unitID, SerialNumber: "TX-" + unitID[:8], ProductID: productID, LocationID: locationID,
			Status: entity.UnitStatusAvailable, CreatedAt: now, UpdatedAt: now}
		if err := r.Units.Create(ctx, u); err != nil {
			return err
		}
		for range 2 {
			m := &entity.MovementEntry{UnitID: unitID, SerialNumber: u.SerialNumber, ProductID: productID,
				LocationID: locationID, Type: entity.MovementTypeReceive, Quantity: 1,
				ReferenceType: entity.ReferenceTypePurchase, ToStatus: entity.UnitStatusAvailable, CreatedAt: now}
			if err := r.Movements.Append(ctx, m); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)

	var seq []int64
	for m, err := range postgres.NewMovementRepository(pool).History(ctx, unitID) {
		require.NoError(t, err)
		seq = append(seq, m.Sequence)
	}
	assert.Equal(t, []int64{1, 2}, seq)

	err = runner.Run(ctx, func(r inventory.Repos) error {
		u, err := r.Units.GetByID(ctx, unitID)
		require.NoError(t, err)
		u.Status = entity.UnitStatusDamaged
		require.NoError(t, r.Units.Update(ctx, u))
		return domain.ErrInvalidInput
	})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	got, err := postgres.NewUnitRepository(pool).GetByID(ctx, unitID)
	require.NoError(t, err)
	assert.Equal(t, entity.UnitStatusAvailable, got.Status, "la tx fallida se revierte")
}
