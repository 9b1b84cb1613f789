package http

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/inventario-seriales/internal/application/dto"
	"github.com/jhoicas/inventario-seriales/internal/application/inventory"
	"github.com/jhoicas/inventario-seriales/internal/domain/entity"
)

// SalesHandler ventas y reservas de unidades (protegido).
type SalesHandler struct {
	units        *inventory.UnitService
	reservations *inventory.ReservationManager
}

// NewSalesHandler construye el handler.
func NewSalesHandler(units *inventory.UnitService, reservations *inventory.ReservationManager) *SalesHandler {
	return &SalesHandler{units: units, reservations: reservations}
}

// Withdraw godoc
// @Summary      Vender o retirar unidades por serial
// @Description  Por defecto todo o nada. Con allow_partial=true aplica las unidades válidas y
//
//	responde 207 con el detalle por serial.
//
// @Tags         sales
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.WithdrawRequest  true  "seriales, referencia de venta y reserva opcional"
// @Success      200  {object}  dto.BatchResponse
// @Success      207  {object}  dto.BatchResponse
// @Failure      400  {object}  dto.ErrorResponse
// @Failure      404  {object}  dto.BatchResponse
// @Failure      409  {object}  dto.BatchResponse
// @Failure      410  {object}  dto.ErrorResponse
// @Router       /api/sales/withdraw [post]
func (h *SalesHandler) Withdraw(c *fiber.Ctx) error {
	var in dto.WithdrawRequest
	if err := bind(c, &in); err != nil {
		return respondError(c, err)
	}
	res, err := h.units.Withdraw(c.Context(), inventory.WithdrawInput{
		SerialNumbers:   in.SerialNumbers,
		ReferenceType:   entity.ReferenceType(in.ReferenceType),
		ReferenceNumber: in.ReferenceNumber,
		CounterpartyRef: in.CounterpartyRef,
		Notes:           in.Notes,
		PerformedBy:     GetUserID(c),
		ReservationID:   in.ReservationID,
		AllowPartial:    in.AllowPartial,
	})
	if inventory.IsPartial(err) {
		return c.Status(fiber.StatusMultiStatus).JSON(batchResponse(res.Succeeded, res.Failed))
	}
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(batchResponse(res.Succeeded, nil))
}

// Reserve godoc
// @Summary      Reservar unidades disponibles
// @Description  Toma las unidades disponibles más antiguas del producto en la bodega.
// @Tags         reservations
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.ReserveRequest  true  "producto, bodega, cantidad y TTL opcional"
// @Success      201  {object}  dto.ReservationResponse
// @Failure      400  {object}  dto.ErrorResponse
// @Failure      409  {object}  dto.ErrorResponse
// @Router       /api/reservations [post]
func (h *SalesHandler) Reserve(c *fiber.Ctx) error {
	var in dto.ReserveRequest
	if err := bind(c, &in); err != nil {
		return respondError(c, err)
	}
	if in.WarehouseID == "" {
		in.WarehouseID = GetWarehouseID(c)
	}
	r, err := h.reservations.Reserve(c.Context(), inventory.ReserveInput{
		ProductID:  in.ProductID,
		LocationID: in.WarehouseID,
		Quantity:   in.Quantity,
		ReservedBy: GetUserID(c),
		TTL:        time.Duration(in.TTLSeconds) * time.Second,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(toReservationResponse(r))
}

// GetReservation godoc
// @Summary      Consultar reserva
// @Tags         reservations
// @Security     Bearer
// @Produce      json
// @Param        id  path  string  true  "Reserva"
// @Success      200  {object}  dto.ReservationResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/reservations/{id} [get]
func (h *SalesHandler) GetReservation(c *fiber.Ctx) error {
	r, err := h.reservations.Get(c.Context(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(toReservationResponse(r))
}

// Release godoc
// @Summary      Liberar reserva
// @Description  Idempotente: una reserva ya liberada responde released=0.
// @Tags         reservations
// @Security     Bearer
// @Produce      json
// @Param        id  path  string  true  "Reserva"
// @Success      200  {object}  dto.ReleaseResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/reservations/{id} [delete]
func (h *SalesHandler) Release(c *fiber.Ctx) error {
	id := c.Params("id")
	n, err := h.reservations.Release(c.Context(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(dto.ReleaseResponse{ReservationID: id, Released: n})
}
