package inventory_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/inventario-seriales/internal/application/inventory"
	"github.com/jhoicas/inventario-seriales/internal/domain/entity"
	"github.com/jhoicas/inventario-seriales/internal/infrastructure/lock"
	"github.com/jhoicas/inventario-seriales/internal/infrastructure/memory"
)

const (
	productID = "00000000-0000-0000-0000-0000000000a1"
	w1        = "W1"
	w2        = "W2"
)

// clock reloj manual para las pruebas de vencimiento.
type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// recorder MovementPublisher que guarda lo publicado.
type recorder struct {
	mu      sync.Mutex
	entries []*entity.MovementEntry
}

func (r *recorder) Publish(_ context.Context, entries []*entity.MovementEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entries...)
	return nil
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

type fixture struct {
	store     *memory.Store
	clock     *clock
	published *recorder
	engine    *inventory.Engine
	units     *inventory.UnitService
	reserve   *inventory.ReservationManager
	transfers *inventory.TransferCoordinator
	claims    *inventory.ClaimProcessor
	stock     *inventory.StockQueryService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore()
	store.AddProduct(&entity.Product{ID: productID, SKU: "TV55", Name: "Televisor 55"})
	store.AddWarehouse(&entity.Warehouse{ID: w1, Name: "Principal", IsActive: true})
	store.AddWarehouse(&entity.Warehouse{ID: w2, Name: "Sucursal", IsActive: true})
	store.AddWarehouse(&entity.Warehouse{ID: "W-OFF", Name: "Cerrada", IsActive: false})

	clk := &clock{t: time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)}
	pub := &recorder{}
	engine := inventory.NewEngine(store, lock.NewKeyedMutex(), pub, nil,
		inventory.EngineOptions{MaxRetries: 3, Now: clk.Now})
	repos := store.Repos()
	units := inventory.NewUnitService(engine, repos, store.Catalog(), nil)
	reserve := inventory.NewReservationManager(engine, repos, inventory.ReservationOptions{DefaultTTL: time.Minute, MaxTTL: time.Hour}, nil)
	return &fixture{
		store:     store,
		clock:     clk,
		published: pub,
		engine:    engine,
		units:     units,
		reserve:   reserve,
		transfers: inventory.NewTransferCoordinator(engine, repos, store.Catalog(), inventory.TransferOptions{}, nil),
		claims:    inventory.NewClaimProcessor(engine, units, repos, nil),
		stock:     inventory.NewStockQueryService(store.Levels(), repos.Units, reserve, clk.Now),
	}
}

func (f *fixture) receive(t *testing.T, location string, serials ...string) []*entity.Unit {
	t.Helper()
	out, err := f.units.Receive(context.Background(), inventory.ReceiveInput{
		ProductID:       productID,
		LocationID:      location,
		SerialNumbers:   serials,
		UnitCost:        decimal.NewFromInt(1500),
		ReferenceNumber: "OC-1",
		PerformedBy:     "bodega",
	})
	require.NoError(t, err)
	return out
}

func (f *fixture) unit(t *testing.T, serial string) *entity.Unit {
	t.Helper()
	u, err := f.units.Get(context.Background(), serial)
	require.NoError(t, err)
	return u
}

func (f *fixture) history(t *testing.T, serial string) []*entity.MovementEntry {
	t.Helper()
	_, h, err := f.units.History(context.Background(), serial)
	require.NoError(t, err)
	return h
}

func sale(ref string, serials ...string) inventory.WithdrawInput {
	return inventory.WithdrawInput{
		SerialNumbers:   serials,
		ReferenceType:   entity.ReferenceTypeSale,
		ReferenceNumber: ref,
		CounterpartyRef: "Cliente A",
		PerformedBy:     "caja-1",
	}
}
