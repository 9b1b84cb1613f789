package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// ReceiveUnitsRequest body para POST /api/units/receive.
// Si serial_numbers viene vacío se generan quantity seriales a partir del SKU.
type ReceiveUnitsRequest struct {
	ProductID       string          `json:"product_id" validate:"required"`
	WarehouseID     string          `json:"warehouse_id" validate:"required"`
	SerialNumbers   []string        `json:"serial_numbers" validate:"omitempty,max=1000,dive,required,max=100"`
	Quantity        int             `json:"quantity" validate:"omitempty,min=1,max=1000"`
	UnitCost        decimal.Decimal `json:"unit_cost"`
	ReferenceType   string          `json:"reference_type" validate:"omitempty,oneof=PURCHASE RETURN ADJUSTMENT TRANSFER"`
	ReferenceNumber string          `json:"reference_number" validate:"max=100"`
	Notes           string          `json:"notes" validate:"max=500"`
}

// UnitResponse salida de una unidad serializada.
type UnitResponse struct {
	ID                string          `json:"id"`
	SerialNumber      string          `json:"serial_number"`
	ProductID         string          `json:"product_id"`
	WarehouseID       string          `json:"warehouse_id"`
	UnitCost          decimal.Decimal `json:"unit_cost"`
	Status            string          `json:"status"`
	CounterpartyRef   string          `json:"counterparty_ref,omitempty"`
	ExternalReference string          `json:"external_reference,omitempty"`
	SoldAt            *time.Time      `json:"sold_at,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// UnitListResponse lista paginada de unidades.
type UnitListResponse struct {
	Items []UnitResponse `json:"items"`
	Page  PageResponse   `json:"page"`
}

// MovementResponse fila del libro mayor.
type MovementResponse struct {
	ID              string          `json:"id"`
	Sequence        int64           `json:"sequence"`
	Type            string          `json:"type"`
	WarehouseID     string          `json:"warehouse_id"`
	FromStatus      string          `json:"from_status,omitempty"`
	ToStatus        string          `json:"to_status"`
	Quantity        int             `json:"quantity"`
	UnitCost        decimal.Decimal `json:"unit_cost"`
	ReferenceType   string          `json:"reference_type"`
	ReferenceNumber string          `json:"reference_number,omitempty"`
	Notes           string          `json:"notes,omitempty"`
	PerformedBy     string          `json:"performed_by,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}

// UnitHistoryResponse unidad con su historial completo.
type UnitHistoryResponse struct {
	Unit      UnitResponse       `json:"unit"`
	Movements []MovementResponse `json:"movements"`
}

// DeliverRequest body para POST /api/units/:serial/deliver.
type DeliverRequest struct {
	CounterpartyRef string `json:"counterparty_ref" validate:"max=200"`
}

// DamageRequest body para POST /api/units/:serial/damage.
type DamageRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

// ReconcileResponse resultado de reconciliar una unidad con su libro mayor.
type ReconcileResponse struct {
	Unit             UnitResponse `json:"unit"`
	Repaired         bool         `json:"repaired"`
	PreviousStatus   string       `json:"previous_status,omitempty"`
	PreviousLocation string       `json:"previous_warehouse_id,omitempty"`
}

// AvailabilityResponse conteo de unidades por estado de un producto.
type AvailabilityResponse struct {
	ProductID       string          `json:"product_id"`
	WarehouseID     string          `json:"warehouse_id,omitempty"`
	Available       int             `json:"available"`
	Reserved        int             `json:"reserved"`
	InTransit       int             `json:"in_transit"`
	SoldInPeriod    int             `json:"sold_in_period"`
	Total           int             `json:"total"`
	AverageUnitCost decimal.Decimal `json:"average_unit_cost"`
	SoldFrom        time.Time       `json:"sold_from"`
	SoldTo          time.Time       `json:"sold_to"`
}

// StockLevelResponse nivel de inventario de un producto en una bodega.
type StockLevelResponse struct {
	ProductID     string          `json:"product_id"`
	WarehouseID   string          `json:"warehouse_id"`
	Available     int             `json:"available"`
	Reserved      int             `json:"reserved"`
	InTransit     int             `json:"in_transit"`
	Sold          int             `json:"sold"`
	Delivered     int             `json:"delivered"`
	Claimed       int             `json:"claimed"`
	Damaged       int             `json:"damaged"`
	Total         int             `json:"total"`
	AvailableCost decimal.Decimal `json:"available_cost"`
}

// WithdrawRequest body para POST /api/sales/withdraw.
type WithdrawRequest struct {
	SerialNumbers   []string `json:"serial_numbers" validate:"required,min=1,max=500,dive,required"`
	ReferenceType   string   `json:"reference_type" validate:"required,oneof=SALE POS INSTALLMENT"`
	ReferenceNumber string   `json:"reference_number" validate:"required,max=100"`
	CounterpartyRef string   `json:"counterparty_ref" validate:"max=200"`
	ReservationID   string   `json:"reservation_id"`
	AllowPartial    bool     `json:"allow_partial"`
	Notes           string   `json:"notes" validate:"max=500"`
}

// ItemFailureResponse falla por serial en una operación por lote.
type ItemFailureResponse struct {
	SerialNumber string `json:"serial_number"`
	Reason       string `json:"reason"`
}

// BatchResponse resultado por serial de una operación por lote.
type BatchResponse struct {
	Succeeded []string              `json:"succeeded"`
	Failed    []ItemFailureResponse `json:"failed"`
}

// ReserveRequest body para POST /api/reservations.
type ReserveRequest struct {
	ProductID   string `json:"product_id" validate:"required"`
	WarehouseID string `json:"warehouse_id"` // por defecto la bodega del operador
	Quantity    int    `json:"quantity" validate:"required,min=1,max=500"`
	TTLSeconds  int    `json:"ttl_seconds" validate:"omitempty,min=1"`
}

// ReservationResponse salida de una reserva.
type ReservationResponse struct {
	ID          string     `json:"id"`
	ProductID   string     `json:"product_id"`
	WarehouseID string     `json:"warehouse_id"`
	UnitIDs     []string   `json:"unit_ids"`
	ReservedBy  string     `json:"reserved_by"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	ExpiresAt   time.Time  `json:"expires_at"`
	ReleasedAt  *time.Time `json:"released_at,omitempty"`
}

// ReleaseResponse resultado de liberar una reserva.
type ReleaseResponse struct {
	ReservationID string `json:"reservation_id"`
	Released      int    `json:"released"`
}

// InitiateTransferRequest body para POST /api/transfers.
type InitiateTransferRequest struct {
	SourceWarehouseID string   `json:"source_warehouse_id" validate:"required"`
	TargetWarehouseID string   `json:"target_warehouse_id" validate:"required,nefield=SourceWarehouseID"`
	SerialNumbers     []string `json:"serial_numbers" validate:"required,min=1,max=500,dive,required"`
	Notes             string   `json:"notes" validate:"max=500"`
}

// ExcludeUnitsRequest body para POST /api/transfers/:id/exclude.
type ExcludeUnitsRequest struct {
	SerialNumbers []string `json:"serial_numbers" validate:"required,min=1,dive,required"`
	Reason        string   `json:"reason" validate:"required,max=500"`
}

// TransferResponse estado del lote y avance por unidad.
type TransferResponse struct {
	ID                string                `json:"id"`
	SourceWarehouseID string                `json:"source_warehouse_id"`
	TargetWarehouseID string                `json:"target_warehouse_id"`
	UnitIDs           []string              `json:"unit_ids"`
	ExcludedUnitIDs   []string              `json:"excluded_unit_ids,omitempty"`
	Status            string                `json:"status"`
	PerformedBy       string                `json:"performed_by,omitempty"`
	Notes             string                `json:"notes,omitempty"`
	RequestedAt       time.Time             `json:"requested_at"`
	ApprovedAt        *time.Time            `json:"approved_at,omitempty"`
	DispatchedAt      *time.Time            `json:"dispatched_at,omitempty"`
	CompletedAt       *time.Time            `json:"completed_at,omitempty"`
	CancelledAt       *time.Time            `json:"cancelled_at,omitempty"`
	Moved             []string              `json:"moved,omitempty"`
	Pending           []ItemFailureResponse `json:"pending,omitempty"`
}

// StuckTransferResponse lote abierto sin avance.
type StuckTransferResponse struct {
	Transfer    TransferResponse `json:"transfer"`
	InTransit   []string         `json:"in_transit"`
	AtSource    []string         `json:"at_source"`
	IdleSeconds int64            `json:"idle_seconds"`
}

// FileClaimRequest body para POST /api/claims.
type FileClaimRequest struct {
	SerialNumber string `json:"serial_number" validate:"required"`
	ClaimType    string `json:"claim_type" validate:"required,oneof=RETURN WARRANTY DEFECTIVE EXCHANGE"`
	Reason       string `json:"reason" validate:"required,max=500"`
	CustomerRef  string `json:"customer_ref" validate:"max=200"`
}

// ResolveClaimRequest body para POST /api/claims/:id/resolve.
type ResolveClaimRequest struct {
	Resolution string `json:"resolution" validate:"required,oneof=EXCHANGE REFUND_RESTOCK REPAIR REJECT WRITE_OFF"`
	Notes      string `json:"notes" validate:"max=500"`
}

// ClaimResponse salida de un reclamo.
type ClaimResponse struct {
	ID          string     `json:"id"`
	ClaimNumber string     `json:"claim_number"`
	UnitID      string     `json:"unit_id"`
	ClaimType   string     `json:"claim_type"`
	Reason      string     `json:"reason"`
	CustomerRef string     `json:"customer_ref,omitempty"`
	Resolution  string     `json:"resolution,omitempty"`
	Status      string     `json:"status"`
	Notes       string     `json:"notes,omitempty"`
	ProcessedBy string     `json:"processed_by,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	ResolvedAt  *time.Time `json:"resolved_at,omitempty"`
}

// ResolveClaimResponse reclamo cerrado y estado final de la unidad.
type ResolveClaimResponse struct {
	Claim ClaimResponse `json:"claim"`
	Unit  UnitResponse  `json:"unit"`
}
