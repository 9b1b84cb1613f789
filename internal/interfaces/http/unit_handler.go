package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/inventario-seriales/internal/application/dto"
	"github.com/jhoicas/inventario-seriales/internal/application/inventory"
	"github.com/jhoicas/inventario-seriales/internal/domain/entity"
	"github.com/jhoicas/inventario-seriales/internal/domain/repository"
)

// UnitHandler registro de unidades serializadas (protegido).
type UnitHandler struct {
	uc *inventory.UnitService
}

// NewUnitHandler construye el handler.
func NewUnitHandler(uc *inventory.UnitService) *UnitHandler {
	return &UnitHandler{uc: uc}
}

// Receive godoc
// @Summary      Recibir unidades serializadas
// @Tags         units
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.ReceiveUnitsRequest  true  "producto, bodega, seriales (o cantidad a generar) y costo"
// @Success      201   {array}   dto.UnitResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      404   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/units/receive [post]
func (h *UnitHandler) Receive(c *fiber.Ctx) error {
	var in dto.ReceiveUnitsRequest
	if err := bind(c, &in); err != nil {
		return respondError(c, err)
	}
	units, err := h.uc.Receive(c.Context(), inventory.ReceiveInput{
		ProductID:       in.ProductID,
		LocationID:      in.WarehouseID,
		SerialNumbers:   in.SerialNumbers,
		Quantity:        in.Quantity,
		UnitCost:        in.UnitCost,
		ReferenceType:   entity.ReferenceType(in.ReferenceType),
		ReferenceNumber: in.ReferenceNumber,
		Notes:           in.Notes,
		PerformedBy:     GetUserID(c),
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(toUnitResponses(units))
}

// ListUnitsQuery filtros de GET /api/units.
type ListUnitsQuery struct {
	ProductID   string `query:"product_id"`
	WarehouseID string `query:"warehouse_id"`
	Status      string `query:"status"`
	Reference   string `query:"reference"`
	Limit       int    `query:"limit"`
	Offset      int    `query:"offset"`
}

// List godoc
// @Summary      Listar unidades (FIFO)
// @Tags         units
// @Security     Bearer
// @Produce      json
// @Param        product_id    query  string  false  "Producto"
// @Param        warehouse_id  query  string  false  "Bodega"
// @Param        status        query  string  false  "AVAILABLE, RESERVED, SOLD, IN_TRANSIT, DELIVERED, CLAIMED, DAMAGED"
// @Param        limit         query  int     false  "Límite (máx. 500)"
// @Param        offset        query  int     false  "Desplazamiento"
// @Success      200  {object}  dto.UnitListResponse
// @Failure      400  {object}  dto.ErrorResponse
// @Router       /api/units [get]
func (h *UnitHandler) List(c *fiber.Ctx) error {
	var q ListUnitsQuery
	if err := c.QueryParser(&q); err != nil {
		return respondError(c, errInvalidBody)
	}
	page := dto.PageRequest{Limit: q.Limit, Offset: q.Offset}
	page.DefaultPage()
	units, err := h.uc.List(c.Context(), repository.UnitFilter{
		ProductID:         q.ProductID,
		LocationID:        q.WarehouseID,
		Status:            entity.UnitStatus(q.Status),
		ExternalReference: q.Reference,
		Limit:             page.Limit,
		Offset:            page.Offset,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(dto.UnitListResponse{
		Items: toUnitResponses(units),
		Page:  dto.PageResponse{Limit: page.Limit, Offset: page.Offset},
	})
}

// Get godoc
// @Summary      Consultar unidad por serial
// @Tags         units
// @Security     Bearer
// @Produce      json
// @Param        serial  path  string  true  "Número de serie o id"
// @Success      200  {object}  dto.UnitResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/units/{serial} [get]
func (h *UnitHandler) Get(c *fiber.Ctx) error {
	u, err := h.uc.Get(c.Context(), c.Params("serial"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(toUnitResponse(u))
}

// History godoc
// @Summary      Historial de movimientos de una unidad
// @Tags         units
// @Security     Bearer
// @Produce      json
// @Param        serial  path  string  true  "Número de serie"
// @Success      200  {object}  dto.UnitHistoryResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/units/{serial}/history [get]
func (h *UnitHandler) History(c *fiber.Ctx) error {
	u, entries, err := h.uc.History(c.Context(), c.Params("serial"))
	if err != nil {
		return respondError(c, err)
	}
	out := dto.UnitHistoryResponse{Unit: toUnitResponse(u), Movements: make([]dto.MovementResponse, 0, len(entries))}
	for _, e := range entries {
		out.Movements = append(out.Movements, toMovementResponse(e))
	}
	return c.JSON(out)
}

// Deliver godoc
// @Summary      Marcar unidad vendida como entregada
// @Tags         units
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        serial  path  string              true   "Número de serie"
// @Param        body    body  dto.DeliverRequest  false  "destinatario"
// @Success      200  {object}  dto.UnitResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Failure      409  {object}  dto.ErrorResponse
// @Router       /api/units/{serial}/deliver [post]
func (h *UnitHandler) Deliver(c *fiber.Ctx) error {
	var in dto.DeliverRequest
	if len(c.Body()) > 0 {
		if err := bind(c, &in); err != nil {
			return respondError(c, err)
		}
	}
	u, err := h.uc.Deliver(c.Context(), c.Params("serial"), in.CounterpartyRef, GetUserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(toUnitResponse(u))
}

// Damage godoc
// @Summary      Dar de baja una unidad (admin)
// @Tags         units
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        serial  path  string             true  "Número de serie"
// @Param        body    body  dto.DamageRequest  true  "motivo"
// @Success      200  {object}  dto.UnitResponse
// @Failure      400  {object}  dto.ErrorResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/units/{serial}/damage [post]
func (h *UnitHandler) Damage(c *fiber.Ctx) error {
	var in dto.DamageRequest
	if err := bind(c, &in); err != nil {
		return respondError(c, err)
	}
	u, err := h.uc.Damage(c.Context(), c.Params("serial"), in.Reason, GetUserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(toUnitResponse(u))
}

// Reconcile godoc
// @Summary      Reconciliar unidad con su libro mayor (admin)
// @Tags         units
// @Security     Bearer
// @Produce      json
// @Param        serial  path  string  true  "Número de serie"
// @Success      200  {object}  dto.ReconcileResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Failure      500  {object}  dto.ErrorResponse
// @Router       /api/units/{serial}/reconcile [post]
func (h *UnitHandler) Reconcile(c *fiber.Ctx) error {
	res, err := h.uc.Reconcile(c.Context(), c.Params("serial"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(dto.ReconcileResponse{
		Unit:             toUnitResponse(res.Unit),
		Repaired:         res.Repaired,
		PreviousStatus:   string(res.PreviousStatus),
		PreviousLocation: res.PreviousLocation,
	})
}
