package entity

import "github.com/shopspring/decimal"

// InventoryLevel conteo de unidades de un producto en una bodega, por estado.
// Se deriva siempre del registro de unidades; nunca se mantiene como contador independiente.
type InventoryLevel struct {
	ProductID     string
	LocationID    string
	Available     int
	Reserved      int
	InTransit     int // despachadas desde esta bodega y aún no recibidas
	Sold          int
	Delivered     int
	Claimed       int
	Damaged       int
	SoldInPeriod  int             // vendidas/entregadas con sold_at dentro del período consultado
	Total         int             // todas las unidades registradas en la bodega, cualquier estado
	AvailableCost decimal.Decimal // suma del costo de las unidades disponibles
}
