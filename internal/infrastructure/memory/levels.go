package memory

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/inventario-seriales/internal/domain/entity"
	"github.com/jhoicas/inventario-seriales/internal/domain/repository"
)

var _ repository.InventoryLevelRepository = (*LevelRepo)(nil)

// LevelRepo agrega el registro de unidades confirmado por (producto, bodega).
type LevelRepo struct{ s *Store }

func (r *LevelRepo) ListByProduct(_ context.Context, productID string, soldFrom, soldTo time.Time) ([]*entity.InventoryLevel, error) {
	return r.aggregate(func(u *entity.Unit) bool { return u.ProductID == productID }, soldFrom, soldTo), nil
}

func (r *LevelRepo) ListByLocation(_ context.Context, locationID string, soldFrom, soldTo time.Time) ([]*entity.InventoryLevel, error) {
	return r.aggregate(func(u *entity.Unit) bool { return u.LocationID == locationID }, soldFrom, soldTo), nil
}

func (r *LevelRepo) aggregate(match func(*entity.Unit) bool, soldFrom, soldTo time.Time) []*entity.InventoryLevel {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	type key struct{ product, location string }
	levels := map[key]*entity.InventoryLevel{}
	for _, u := range r.s.units {
		if !match(u) {
			continue
		}
		k := key{u.ProductID, u.LocationID}
		l := levels[k]
		if l == nil {
			l = &entity.InventoryLevel{ProductID: u.ProductID, LocationID: u.LocationID, AvailableCost: decimal.Zero}
			levels[k] = l
		}
		l.Total++
		switch u.Status {
		case entity.UnitStatusAvailable:
			l.Available++
			l.AvailableCost = l.AvailableCost.Add(u.UnitCost)
		case entity.UnitStatusReserved:
			l.Reserved++
		case entity.UnitStatusInTransit:
			l.InTransit++
		case entity.UnitStatusSold:
			l.Sold++
		case entity.UnitStatusDelivered:
			l.Delivered++
		case entity.UnitStatusClaimed:
			l.Claimed++
		case entity.UnitStatusDamaged:
			l.Damaged++
		}
		if u.SoldAt != nil && !u.SoldAt.Before(soldFrom) && !u.SoldAt.After(soldTo) {
			l.SoldInPeriod++
		}
	}

	out := make([]*entity.InventoryLevel, 0, len(levels))
	for _, l := range levels {
		out = append(out, l)
	}
	slices.SortFunc(out, func(a, b *entity.InventoryLevel) int {
		if c := strings.Compare(a.ProductID, b.ProductID); c != 0 {
			return c
		}
		return strings.Compare(a.LocationID, b.LocationID)
	})
	return out
}
