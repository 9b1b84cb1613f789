package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/inventario-seriales/internal/domain"
	"github.com/jhoicas/inventario-seriales/internal/domain/entity"
	inv "github.com/jhoicas/inventario-seriales/internal/domain/inventory"
	"github.com/jhoicas/inventario-seriales/internal/domain/repository"
)

// defaultSoldPeriod período de ventas por defecto de Availability.
const defaultSoldPeriod = 30 * 24 * time.Hour

// StockQueryService lado de lectura: conteos derivados del registro de unidades, sin
// reconstruir el libro mayor ni mantener contadores propios.
type StockQueryService struct {
	levels  repository.InventoryLevelRepository
	units   repository.UnitRepository
	expirer Expirer
	now     func() time.Time
}

// Expirer libera las reservas vencidas de un producto/bodega. *ReservationManager lo implementa.
type Expirer interface {
	ExpireDue(ctx context.Context, productID, locationID string) (int, error)
}

// NewStockQueryService construye el servicio de consulta. Con expirer, las reservas
// vencidas se liberan antes de contar aunque el barrido no haya pasado.
func NewStockQueryService(levels repository.InventoryLevelRepository, units repository.UnitRepository, expirer Expirer, now func() time.Time) *StockQueryService {
	if now == nil {
		now = time.Now
	}
	return &StockQueryService{levels: levels, units: units, expirer: expirer, now: now}
}

// Availability resumen de disponibilidad de un producto.
type Availability struct {
	ProductID       string
	LocationID      string // vacío = todas las bodegas
	Available       int
	Reserved        int
	InTransit       int
	SoldInPeriod    int
	Total           int
	AverageUnitCost decimal.Decimal // costo promedio de las unidades disponibles
	SoldFrom        time.Time
	SoldTo          time.Time
}

// Availability cuenta unidades por estado. Sin fechas, el período de ventas son los
// últimos 30 días. locationID vacío agrega todas las bodegas.
func (s *StockQueryService) Availability(ctx context.Context, productID, locationID string, soldFrom, soldTo time.Time) (*Availability, error) {
	if productID == "" {
		return nil, fmt.Errorf("producto obligatorio: %w", domain.ErrInvalidInput)
	}
	if soldTo.IsZero() {
		soldTo = s.now()
	}
	if soldFrom.IsZero() {
		soldFrom = soldTo.Add(-defaultSoldPeriod)
	}
	if soldFrom.After(soldTo) {
		return nil, fmt.Errorf("período inválido: %w", domain.ErrInvalidInput)
	}
	if s.expirer != nil {
		if _, err := s.expirer.ExpireDue(ctx, productID, locationID); err != nil {
			return nil, fmt.Errorf("expire reservations: %w", err)
		}
	}

	levels, err := s.levels.ListByProduct(ctx, productID, soldFrom, soldTo)
	if err != nil {
		return nil, fmt.Errorf("list levels: %w", err)
	}
	out := &Availability{ProductID: productID, LocationID: locationID, SoldFrom: soldFrom, SoldTo: soldTo,
		AverageUnitCost: decimal.Zero}
	for _, l := range levels {
		if locationID != "" && l.LocationID != locationID {
			continue
		}
		// Costo promedio ponderado entre bodegas.
		out.AverageUnitCost = inv.CostCalculator(
			decimal.NewFromInt(int64(out.Available)), out.AverageUnitCost,
			decimal.NewFromInt(int64(l.Available)), inv.AverageUnitCost(l.Available, l.AvailableCost),
		)
		out.Available += l.Available
		out.Reserved += l.Reserved
		out.InTransit += l.InTransit
		out.SoldInPeriod += l.SoldInPeriod
		out.Total += l.Total
	}
	out.AverageUnitCost = out.AverageUnitCost.Round(2)
	return out, nil
}

// AvailabilityCheck respuesta de CheckAvailability. Es orientativa: la reserva
// posterior vuelve a validar.
type AvailabilityCheck struct {
	Available        int
	Sufficient       bool
	CandidateSerials []string // más antiguos primero, a lo sumo la cantidad pedida
}

// CheckAvailability indica si hay quantity unidades disponibles y cuáles se tomarían.
func (s *StockQueryService) CheckAvailability(ctx context.Context, productID, locationID string, quantity int) (*AvailabilityCheck, error) {
	if productID == "" || locationID == "" || quantity <= 0 {
		return nil, fmt.Errorf("producto, bodega y cantidad positiva son obligatorios: %w", domain.ErrInvalidInput)
	}
	a, err := s.Availability(ctx, productID, locationID, time.Time{}, time.Time{})
	if err != nil {
		return nil, err
	}
	cands, err := s.units.List(ctx, repository.UnitFilter{
		ProductID: productID, LocationID: locationID, Status: entity.UnitStatusAvailable, Limit: quantity,
	})
	if err != nil {
		return nil, fmt.Errorf("list candidates: %w", err)
	}
	out := &AvailabilityCheck{Available: a.Available, Sufficient: a.Available >= quantity}
	for _, u := range cands {
		out.CandidateSerials = append(out.CandidateSerials, u.SerialNumber)
	}
	return out, nil
}

// StockByLocation conteos por producto en una bodega.
func (s *StockQueryService) StockByLocation(ctx context.Context, locationID string) ([]*entity.InventoryLevel, error) {
	if locationID == "" {
		return nil, fmt.Errorf("bodega obligatoria: %w", domain.ErrInvalidInput)
	}
	now := s.now()
	levels, err := s.levels.ListByLocation(ctx, locationID, now.Add(-defaultSoldPeriod), now)
	if err != nil {
		return nil, fmt.Errorf("list levels by location: %w", err)
	}
	return levels, nil
}
