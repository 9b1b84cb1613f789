package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// MovementType tipo de movimiento del libro mayor de unidades.
type MovementType string

// Tipos de movimiento de inventario serializado.
const (
	MovementTypeReceive     MovementType = "RECEIVE"      // entrada por compra
	MovementTypeWithdraw    MovementType = "WITHDRAW"     // salida por venta
	MovementTypeTransferOut MovementType = "TRANSFER_OUT" // despacho en traslado
	MovementTypeTransferIn  MovementType = "TRANSFER_IN"  // llegada (o reversa) de traslado
	MovementTypeAdjustment  MovementType = "ADJUSTMENT"   // ajuste administrativo
	MovementTypeClaim       MovementType = "CLAIM"        // ingreso a reclamo
	MovementTypeReturn      MovementType = "RETURN"       // reintegro a stock tras reclamo
	MovementTypeReserve     MovementType = "RESERVE"
	MovementTypeRelease     MovementType = "RELEASE"
	MovementTypeDeliver     MovementType = "DELIVER"
)

// ReferenceType documento que origina el movimiento.
type ReferenceType string

const (
	ReferenceTypePurchase    ReferenceType = "PURCHASE"
	ReferenceTypeSale        ReferenceType = "SALE"
	ReferenceTypeTransfer    ReferenceType = "TRANSFER"
	ReferenceTypeAdjustment  ReferenceType = "ADJUSTMENT"
	ReferenceTypeClaim       ReferenceType = "CLAIM"
	ReferenceTypeReturn      ReferenceType = "RETURN"
	ReferenceTypePOS         ReferenceType = "POS"
	ReferenceTypeInstallment ReferenceType = "INSTALLMENT"
	ReferenceTypeReservation ReferenceType = "RESERVATION"
)

// Valid indica si el tipo de referencia es conocido.
func (r ReferenceType) Valid() bool {
	switch r {
	case ReferenceTypePurchase, ReferenceTypeSale, ReferenceTypeTransfer, ReferenceTypeAdjustment,
		ReferenceTypeClaim, ReferenceTypeReturn, ReferenceTypePOS, ReferenceTypeInstallment,
		ReferenceTypeReservation:
		return true
	}
	return false
}

// IsSale indica si la referencia corresponde a una venta (directa, POS o a crédito).
func (r ReferenceType) IsSale() bool {
	return r == ReferenceTypeSale || r == ReferenceTypePOS || r == ReferenceTypeInstallment
}

// MovementEntry fila inmutable del libro mayor. Nunca se actualiza ni se borra.
// LocationID es la ubicación de la unidad una vez aplicado el movimiento.
// Sequence es el orden de commit dentro de la historia de la unidad (desde 1).
type MovementEntry struct {
	ID              string
	UnitID          string
	SerialNumber    string
	ProductID       string
	LocationID      string
	Type            MovementType
	Quantity        int // siempre 1 para unidades serializadas
	UnitCost        decimal.Decimal
	ReferenceType   ReferenceType
	ReferenceNumber string
	Notes           string
	PerformedBy     string
	FromStatus      UnitStatus // vacío en RECEIVE
	ToStatus        UnitStatus
	Sequence        int64
	CreatedAt       time.Time
}
