package entity

import "time"

// ClaimType motivo comercial del reclamo.
type ClaimType string

const (
	ClaimTypeReturn    ClaimType = "RETURN"
	ClaimTypeWarranty  ClaimType = "WARRANTY"
	ClaimTypeDefective ClaimType = "DEFECTIVE"
	ClaimTypeExchange  ClaimType = "EXCHANGE"
)

// Valid indica si el tipo de reclamo es conocido.
func (t ClaimType) Valid() bool {
	switch t {
	case ClaimTypeReturn, ClaimTypeWarranty, ClaimTypeDefective, ClaimTypeExchange:
		return true
	}
	return false
}

// ClaimResolution forma de cerrar un reclamo.
type ClaimResolution string

const (
	ClaimResolutionExchange      ClaimResolution = "EXCHANGE"       // reintegra a stock; el cliente recibe otra unidad
	ClaimResolutionRefundRestock ClaimResolution = "REFUND_RESTOCK" // reembolso y reintegro a stock
	ClaimResolutionRepair        ClaimResolution = "REPAIR"         // se repara y vuelve al cliente
	ClaimResolutionReject        ClaimResolution = "REJECT"
	ClaimResolutionWriteOff      ClaimResolution = "WRITE_OFF"
)

// Valid indica si la resolución es conocida.
func (r ClaimResolution) Valid() bool {
	switch r {
	case ClaimResolutionExchange, ClaimResolutionRefundRestock, ClaimResolutionRepair,
		ClaimResolutionReject, ClaimResolutionWriteOff:
		return true
	}
	return false
}

// ClaimStatus estado del reclamo.
type ClaimStatus string

const (
	ClaimStatusOpen     ClaimStatus = "OPEN"
	ClaimStatusResolved ClaimStatus = "RESOLVED"
)

// Claim reclamo posventa (devolución, garantía, defecto, cambio) sobre una unidad vendida.
type Claim struct {
	ID          string
	ClaimNumber string // CLM-YYYYMMDD-XXXXXXXX
	UnitID      string
	ClaimType   ClaimType
	Reason      string
	CustomerRef string
	Resolution  *ClaimResolution // nil hasta resolver
	Status      ClaimStatus
	Notes       string
	ProcessedBy string
	CreatedAt   time.Time
	ResolvedAt  *time.Time
	Version     int64
}

// Clone copia el reclamo.
func (c *Claim) Clone() *Claim {
	if c == nil {
		return nil
	}
	v := *c
	if c.Resolution != nil {
		r := *c.Resolution
		v.Resolution = &r
	}
	v.ResolvedAt = cloneTime(c.ResolvedAt)
	return &v
}
