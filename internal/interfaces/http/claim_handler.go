package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/inventario-seriales/internal/application/dto"
	"github.com/jhoicas/inventario-seriales/internal/application/inventory"
	"github.com/jhoicas/inventario-seriales/internal/domain/entity"
)

// ClaimHandler reclamos posventa (protegido).
type ClaimHandler struct {
	uc *inventory.ClaimProcessor
}

// NewClaimHandler construye el handler.
func NewClaimHandler(uc *inventory.ClaimProcessor) *ClaimHandler {
	return &ClaimHandler{uc: uc}
}

// File godoc
// @Summary      Abrir reclamo sobre una unidad vendida
// @Tags         claims
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.FileClaimRequest  true  "serial, tipo y motivo"
// @Success      201  {object}  dto.ClaimResponse
// @Failure      400  {object}  dto.ErrorResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Failure      409  {object}  dto.ErrorResponse
// @Router       /api/claims [post]
func (h *ClaimHandler) File(c *fiber.Ctx) error {
	var in dto.FileClaimRequest
	if err := bind(c, &in); err != nil {
		return respondError(c, err)
	}
	claim, err := h.uc.FileClaim(c.Context(), inventory.FileClaimInput{
		SerialNumber: in.SerialNumber,
		ClaimType:    entity.ClaimType(in.ClaimType),
		Reason:       in.Reason,
		CustomerRef:  in.CustomerRef,
		ProcessedBy:  GetUserID(c),
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(toClaimResponse(claim))
}

// Get godoc
// @Summary      Consultar reclamo
// @Tags         claims
// @Security     Bearer
// @Produce      json
// @Param        id  path  string  true  "Reclamo"
// @Success      200  {object}  dto.ClaimResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/claims/{id} [get]
func (h *ClaimHandler) Get(c *fiber.Ctx) error {
	claim, err := h.uc.Get(c.Context(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(toClaimResponse(claim))
}

// Resolve godoc
// @Summary      Resolver reclamo
// @Tags         claims
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id    path  string                   true  "Reclamo"
// @Param        body  body  dto.ResolveClaimRequest  true  "resolución"
// @Success      200  {object}  dto.ResolveClaimResponse
// @Failure      400  {object}  dto.ErrorResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Failure      409  {object}  dto.ErrorResponse
// @Router       /api/claims/{id}/resolve [post]
func (h *ClaimHandler) Resolve(c *fiber.Ctx) error {
	var in dto.ResolveClaimRequest
	if err := bind(c, &in); err != nil {
		return respondError(c, err)
	}
	unit, claim, err := h.uc.ResolveClaim(c.Context(), inventory.ResolveClaimInput{
		ClaimID:     c.Params("id"),
		Resolution:  entity.ClaimResolution(in.Resolution),
		Notes:       in.Notes,
		ProcessedBy: GetUserID(c),
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(dto.ResolveClaimResponse{Claim: toClaimResponse(claim), Unit: toUnitResponse(unit)})
}
