package http

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/inventario-seriales/internal/application/dto"
	"github.com/jhoicas/inventario-seriales/internal/application/inventory"
)

// TransferHandler traslados entre bodegas (protegido).
type TransferHandler struct {
	uc *inventory.TransferCoordinator
}

// NewTransferHandler construye el handler.
func NewTransferHandler(uc *inventory.TransferCoordinator) *TransferHandler {
	return &TransferHandler{uc: uc}
}

// Initiate godoc
// @Summary      Solicitar traslado
// @Tags         transfers
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.InitiateTransferRequest  true  "origen, destino y seriales"
// @Success      201  {object}  dto.TransferResponse
// @Failure      400  {object}  dto.ErrorResponse
// @Failure      404  {object}  dto.BatchResponse
// @Failure      409  {object}  dto.BatchResponse
// @Router       /api/transfers [post]
func (h *TransferHandler) Initiate(c *fiber.Ctx) error {
	var in dto.InitiateTransferRequest
	if err := bind(c, &in); err != nil {
		return respondError(c, err)
	}
	res, err := h.uc.Initiate(c.Context(), inventory.InitiateTransferInput{
		SourceLocationID: in.SourceWarehouseID,
		TargetLocationID: in.TargetWarehouseID,
		SerialNumbers:    in.SerialNumbers,
		PerformedBy:      GetUserID(c),
		Notes:            in.Notes,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(toTransferResult(res))
}

// Get godoc
// @Summary      Consultar traslado
// @Tags         transfers
// @Security     Bearer
// @Produce      json
// @Param        id  path  string  true  "Lote"
// @Success      200  {object}  dto.TransferResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/transfers/{id} [get]
func (h *TransferHandler) Get(c *fiber.Ctx) error {
	b, err := h.uc.Get(c.Context(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(toTransferResponse(b))
}

// Approve godoc
// @Summary      Aprobar y despachar traslado (admin)
// @Tags         transfers
// @Security     Bearer
// @Produce      json
// @Param        id  path  string  true  "Lote"
// @Success      200  {object}  dto.TransferResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Failure      409  {object}  dto.ErrorResponse
// @Router       /api/transfers/{id}/approve [post]
func (h *TransferHandler) Approve(c *fiber.Ctx) error {
	res, err := h.uc.Approve(c.Context(), c.Params("id"), GetUserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(toTransferResult(res))
}

// Dispatch godoc
// @Summary      Reintentar despacho de las unidades pendientes
// @Tags         transfers
// @Security     Bearer
// @Produce      json
// @Param        id  path  string  true  "Lote"
// @Success      200  {object}  dto.TransferResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Failure      409  {object}  dto.ErrorResponse
// @Router       /api/transfers/{id}/dispatch [post]
func (h *TransferHandler) Dispatch(c *fiber.Ctx) error {
	res, err := h.uc.Dispatch(c.Context(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(toTransferResult(res))
}

// Confirm godoc
// @Summary      Confirmar recepción en destino
// @Tags         transfers
// @Security     Bearer
// @Produce      json
// @Param        id  path  string  true  "Lote"
// @Success      200  {object}  dto.TransferResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Failure      409  {object}  dto.ErrorResponse
// @Router       /api/transfers/{id}/confirm [post]
func (h *TransferHandler) Confirm(c *fiber.Ctx) error {
	res, err := h.uc.Confirm(c.Context(), c.Params("id"), GetUserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(toTransferResult(res))
}

// Cancel godoc
// @Summary      Cancelar traslado y devolver unidades al origen
// @Tags         transfers
// @Security     Bearer
// @Produce      json
// @Param        id  path  string  true  "Lote"
// @Success      200  {object}  dto.TransferResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Failure      409  {object}  dto.ErrorResponse
// @Router       /api/transfers/{id}/cancel [post]
func (h *TransferHandler) Cancel(c *fiber.Ctx) error {
	res, err := h.uc.Cancel(c.Context(), c.Params("id"), GetUserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(toTransferResult(res))
}

// Exclude godoc
// @Summary      Excluir unidades de un traslado
// @Tags         transfers
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id    path  string                   true  "Lote"
// @Param        body  body  dto.ExcludeUnitsRequest  true  "seriales y motivo"
// @Success      200  {object}  dto.TransferResponse
// @Failure      400  {object}  dto.ErrorResponse
// @Failure      409  {object}  dto.ErrorResponse
// @Router       /api/transfers/{id}/exclude [post]
func (h *TransferHandler) Exclude(c *fiber.Ctx) error {
	var in dto.ExcludeUnitsRequest
	if err := bind(c, &in); err != nil {
		return respondError(c, err)
	}
	res, err := h.uc.ExcludeUnits(c.Context(), c.Params("id"), in.SerialNumbers, in.Reason, GetUserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(toTransferResult(res))
}

// Stuck godoc
// @Summary      Traslados abiertos sin avance
// @Tags         transfers
// @Security     Bearer
// @Produce      json
// @Param        older_than_hours  query  int  false  "Umbral en horas (por defecto el configurado)"
// @Success      200  {array}  dto.StuckTransferResponse
// @Router       /api/transfers/stuck [get]
func (h *TransferHandler) Stuck(c *fiber.Ctx) error {
	olderThan := time.Duration(c.QueryInt("older_than_hours", 0)) * time.Hour
	list, err := h.uc.StuckTransfers(c.Context(), olderThan)
	if err != nil {
		return respondError(c, err)
	}
	out := make([]dto.StuckTransferResponse, 0, len(list))
	for _, st := range list {
		out = append(out, dto.StuckTransferResponse{
			Transfer:    toTransferResponse(st.Batch),
			InTransit:   st.InTransit,
			AtSource:    st.AtSource,
			IdleSeconds: int64(st.Idle.Seconds()),
		})
	}
	return c.JSON(out)
}
