package entity

import "time"

// ReservationStatus estado de una reserva temporal.
type ReservationStatus string

const (
	ReservationStatusActive   ReservationStatus = "ACTIVE"
	ReservationStatusReleased ReservationStatus = "RELEASED" // liberada por el cliente
	ReservationStatusConsumed ReservationStatus = "CONSUMED" // todas sus unidades se vendieron
	ReservationStatusExpired  ReservationStatus = "EXPIRED"  // liberada por vencimiento
)

// Reservation retención temporal de unidades disponibles (carrito POS, cotización).
type Reservation struct {
	ID         string
	UnitIDs    []string
	ProductID  string
	LocationID string
	ReservedBy string
	Status     ReservationStatus
	CreatedAt  time.Time
	ExpiresAt  time.Time
	ReleasedAt *time.Time
	Version    int64
}

// IsExpired indica si la reserva venció a la hora now.
func (r *Reservation) IsExpired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}

// IsOpen indica si la reserva sigue reteniendo unidades (activa y sin vencer).
func (r *Reservation) IsOpen(now time.Time) bool {
	return r.Status == ReservationStatusActive && !r.IsExpired(now)
}

// Clone copia la reserva incluyendo el slice de unidades.
func (r *Reservation) Clone() *Reservation {
	if r == nil {
		return nil
	}
	c := *r
	c.UnitIDs = append([]string(nil), r.UnitIDs...)
	if r.ReleasedAt != nil {
		t := *r.ReleasedAt
		c.ReleasedAt = &t
	}
	return &c
}
