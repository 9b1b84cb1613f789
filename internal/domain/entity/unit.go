package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// UnitStatus estado de una unidad serializada. Enumeración cerrada: solo el motor de
// transiciones la modifica.
type UnitStatus string

const (
	UnitStatusAvailable UnitStatus = "AVAILABLE"  // en bodega, vendible
	UnitStatusReserved  UnitStatus = "RESERVED"   // retenida por un carrito/cotización
	UnitStatusSold      UnitStatus = "SOLD"       // vendida o retirada
	UnitStatusInTransit UnitStatus = "IN_TRANSIT" // despachada en un traslado
	UnitStatusDelivered UnitStatus = "DELIVERED"  // entregada al cliente
	UnitStatusClaimed   UnitStatus = "CLAIMED"    // en proceso de reclamo
	UnitStatusDamaged   UnitStatus = "DAMAGED"    // dada de baja
)

// Valid indica si el estado pertenece a la enumeración.
func (s UnitStatus) Valid() bool {
	switch s {
	case UnitStatusAvailable, UnitStatusReserved, UnitStatusSold, UnitStatusInTransit,
		UnitStatusDelivered, UnitStatusClaimed, UnitStatusDamaged:
		return true
	}
	return false
}

// Unit representa una unidad física identificada por su número de serie.
// CounterpartyRef y ExternalReference solo tienen sentido en ciertos estados
// (vacíos cuando la unidad está AVAILABLE).
type Unit struct {
	ID                string
	SerialNumber      string
	ProductID         string
	LocationID        string // bodega/sucursal actual
	UnitCost          decimal.Decimal
	Status            UnitStatus
	CounterpartyRef   string     // comprador o destinatario (SOLD, DELIVERED, CLAIMED)
	ExternalReference string     // id de venta, reserva, traslado o reclamo que produjo el estado
	SoldAt            *time.Time // fecha de la venta vigente; nil fuera de SOLD/DELIVERED/CLAIMED
	Version           int64      // control de concurrencia optimista
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Clone devuelve una copia independiente de la unidad.
func (u *Unit) Clone() *Unit {
	if u == nil {
		return nil
	}
	c := *u
	if u.SoldAt != nil {
		t := *u.SoldAt
		c.SoldAt = &t
	}
	return &c
}
