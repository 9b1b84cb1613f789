package http

import (
	"github.com/jhoicas/inventario-seriales/internal/application/dto"
	"github.com/jhoicas/inventario-seriales/internal/application/inventory"
	"github.com/jhoicas/inventario-seriales/internal/domain/entity"
)

func toUnitResponse(u *entity.Unit) dto.UnitResponse {
	return dto.UnitResponse{
		ID:                u.ID,
		SerialNumber:      u.SerialNumber,
		ProductID:         u.ProductID,
		WarehouseID:       u.LocationID,
		UnitCost:          u.UnitCost,
		Status:            string(u.Status),
		CounterpartyRef:   u.CounterpartyRef,
		ExternalReference: u.ExternalReference,
		SoldAt:            u.SoldAt,
		CreatedAt:         u.CreatedAt,
		UpdatedAt:         u.UpdatedAt,
	}
}

func toUnitResponses(units []*entity.Unit) []dto.UnitResponse {
	out := make([]dto.UnitResponse, 0, len(units))
	for _, u := range units {
		out = append(out, toUnitResponse(u))
	}
	return out
}

func toMovementResponse(e *entity.MovementEntry) dto.MovementResponse {
	return dto.MovementResponse{
		ID:              e.ID,
		Sequence:        e.Sequence,
		Type:            string(e.Type),
		WarehouseID:     e.LocationID,
		FromStatus:      string(e.FromStatus),
		ToStatus:        string(e.ToStatus),
		Quantity:        e.Quantity,
		UnitCost:        e.UnitCost,
		ReferenceType:   string(e.ReferenceType),
		ReferenceNumber: e.ReferenceNumber,
		Notes:           e.Notes,
		PerformedBy:     e.PerformedBy,
		CreatedAt:       e.CreatedAt,
	}
}

func toReservationResponse(r *entity.Reservation) dto.ReservationResponse {
	return dto.ReservationResponse{
		ID:          r.ID,
		ProductID:   r.ProductID,
		WarehouseID: r.LocationID,
		UnitIDs:     r.UnitIDs,
		ReservedBy:  r.ReservedBy,
		Status:      string(r.Status),
		CreatedAt:   r.CreatedAt,
		ExpiresAt:   r.ExpiresAt,
		ReleasedAt:  r.ReleasedAt,
	}
}

func toTransferResponse(b *entity.TransferBatch) dto.TransferResponse {
	return dto.TransferResponse{
		ID:                b.ID,
		SourceWarehouseID: b.SourceLocationID,
		TargetWarehouseID: b.TargetLocationID,
		UnitIDs:           b.UnitIDs,
		ExcludedUnitIDs:   b.ExcludedUnitIDs,
		Status:            string(b.Status),
		PerformedBy:       b.PerformedBy,
		Notes:             b.Notes,
		RequestedAt:       b.RequestedAt,
		ApprovedAt:        b.ApprovedAt,
		DispatchedAt:      b.DispatchedAt,
		CompletedAt:       b.CompletedAt,
		CancelledAt:       b.CancelledAt,
	}
}

func toTransferResult(r *inventory.TransferResult) dto.TransferResponse {
	out := toTransferResponse(r.Batch)
	out.Moved = r.Moved
	for _, p := range r.Pending {
		out.Pending = append(out.Pending, dto.ItemFailureResponse{SerialNumber: p.SerialNumber, Reason: p.Reason()})
	}
	return out
}

func toClaimResponse(c *entity.Claim) dto.ClaimResponse {
	out := dto.ClaimResponse{
		ID:          c.ID,
		ClaimNumber: c.ClaimNumber,
		UnitID:      c.UnitID,
		ClaimType:   string(c.ClaimType),
		Reason:      c.Reason,
		CustomerRef: c.CustomerRef,
		Status:      string(c.Status),
		Notes:       c.Notes,
		ProcessedBy: c.ProcessedBy,
		CreatedAt:   c.CreatedAt,
		ResolvedAt:  c.ResolvedAt,
	}
	if c.Resolution != nil {
		out.Resolution = string(*c.Resolution)
	}
	return out
}

func toStockLevelResponse(l *entity.InventoryLevel) dto.StockLevelResponse {
	return dto.StockLevelResponse{
		ProductID:     l.ProductID,
		WarehouseID:   l.LocationID,
		Available:     l.Available,
		Reserved:      l.Reserved,
		InTransit:     l.InTransit,
		Sold:          l.Sold,
		Delivered:     l.Delivered,
		Claimed:       l.Claimed,
		Damaged:       l.Damaged,
		Total:         l.Total,
		AvailableCost: l.AvailableCost,
	}
}
