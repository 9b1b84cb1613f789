package entity

import "time"

// Product representa un producto del catálogo (colaborador de solo lectura).
// El inventario serializado solo necesita identificarlo; precio e impuestos viven en otro módulo.
type Product struct {
	ID          string
	SKU         string // código único del catálogo, usado como prefijo de seriales generados
	Name        string
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
