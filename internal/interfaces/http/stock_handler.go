package http

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/inventario-seriales/internal/application/dto"
	"github.com/jhoicas/inventario-seriales/internal/application/inventory"
	"github.com/jhoicas/inventario-seriales/internal/domain"
)

// StockHandler consultas de disponibilidad (protegido).
type StockHandler struct {
	uc *inventory.StockQueryService
}

// NewStockHandler construye el handler.
func NewStockHandler(uc *inventory.StockQueryService) *StockHandler {
	return &StockHandler{uc: uc}
}

// Availability godoc
// @Summary      Disponibilidad de un producto
// @Description  Conteos por estado derivados del registro de unidades. Sin fechas, el período
//
//	de ventas son los últimos 30 días.
//
// @Tags         stock
// @Security     Bearer
// @Produce      json
// @Param        product_id    query  string  true   "Producto"
// @Param        warehouse_id  query  string  false  "Bodega. Vacío = todas."
// @Param        from          query  string  false  "Inicio del período (RFC3339)"
// @Param        to            query  string  false  "Fin del período (RFC3339)"
// @Success      200  {object}  dto.AvailabilityResponse
// @Failure      400  {object}  dto.ErrorResponse
// @Router       /api/stock/availability [get]
func (h *StockHandler) Availability(c *fiber.Ctx) error {
	from, err := parseTime(c.Query("from"))
	if err != nil {
		return respondError(c, err)
	}
	to, err := parseTime(c.Query("to"))
	if err != nil {
		return respondError(c, err)
	}
	a, err := h.uc.Availability(c.Context(), c.Query("product_id"), c.Query("warehouse_id"), from, to)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(dto.AvailabilityResponse{
		ProductID:       a.ProductID,
		WarehouseID:     a.LocationID,
		Available:       a.Available,
		Reserved:        a.Reserved,
		InTransit:       a.InTransit,
		SoldInPeriod:    a.SoldInPeriod,
		Total:           a.Total,
		AverageUnitCost: a.AverageUnitCost,
		SoldFrom:        a.SoldFrom,
		SoldTo:          a.SoldTo,
	})
}

// ByLocation godoc
// @Summary      Stock por bodega
// @Tags         stock
// @Security     Bearer
// @Produce      json
// @Param        id  path  string  true  "Bodega"
// @Success      200  {array}   dto.StockLevelResponse
// @Failure      400  {object}  dto.ErrorResponse
// @Router       /api/stock/locations/{id} [get]
func (h *StockHandler) ByLocation(c *fiber.Ctx) error {
	levels, err := h.uc.StockByLocation(c.Context(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	out := make([]dto.StockLevelResponse, 0, len(levels))
	for _, l := range levels {
		out = append(out, toStockLevelResponse(l))
	}
	return c.JSON(out)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		if t, err = time.Parse(time.DateOnly, s); err != nil {
			return time.Time{}, domain.ErrInvalidInput
		}
	}
	return t, nil
}
