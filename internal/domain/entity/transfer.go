package entity

import "time"

// TransferStatus estado de un lote de traslado entre bodegas.
type TransferStatus string

const (
	TransferStatusRequested TransferStatus = "REQUESTED"
	TransferStatusApproved  TransferStatus = "APPROVED"
	TransferStatusInTransit TransferStatus = "IN_TRANSIT"
	TransferStatusCompleted TransferStatus = "COMPLETED"
	TransferStatusCancelled TransferStatus = "CANCELLED"
)

// IsOpen indica si el lote aún no terminó (ni completado ni cancelado).
func (s TransferStatus) IsOpen() bool {
	return s != TransferStatusCompleted && s != TransferStatusCancelled
}

// TransferBatch traslado de un conjunto de unidades de SourceLocationID a TargetLocationID.
// Cada unidad termina en la bodega origen (cancelado) o en la destino (completado).
type TransferBatch struct {
	ID               string
	SourceLocationID string
	TargetLocationID string
	UnitIDs          []string
	ExcludedUnitIDs  []string // unidades retiradas del lote sin haber salido del origen
	Status           TransferStatus
	PerformedBy      string
	Notes            string
	RequestedAt      time.Time
	ApprovedAt       *time.Time
	DispatchedAt     *time.Time
	CompletedAt      *time.Time
	CancelledAt      *time.Time
	UpdatedAt        time.Time
	Version          int64
}

// Clone copia el lote incluyendo slices y timestamps opcionales.
func (b *TransferBatch) Clone() *TransferBatch {
	if b == nil {
		return nil
	}
	c := *b
	c.UnitIDs = append([]string(nil), b.UnitIDs...)
	c.ExcludedUnitIDs = append([]string(nil), b.ExcludedUnitIDs...)
	c.ApprovedAt = cloneTime(b.ApprovedAt)
	c.DispatchedAt = cloneTime(b.DispatchedAt)
	c.CompletedAt = cloneTime(b.CompletedAt)
	c.CancelledAt = cloneTime(b.CancelledAt)
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
