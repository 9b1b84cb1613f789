package http

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/jhoicas/inventario-seriales/internal/application/dto"
	"github.com/jhoicas/inventario-seriales/internal/domain"
)

var validate = validator.New()

var errInvalidBody = errors.New("cuerpo inválido")

// bind parsea el body JSON y valida los tags `validate`.
func bind(c *fiber.Ctx, out any) error {
	if err := c.BodyParser(out); err != nil {
		return errInvalidBody
	}
	return validate.Struct(out)
}

// validationFields campo -> regla incumplida.
func validationFields(ve validator.ValidationErrors) map[string]string {
	out := make(map[string]string, len(ve))
	for _, fe := range ve {
		out[fe.Field()] = fe.Tag()
	}
	return out
}

// respondError traduce errores de dominio a respuestas HTTP.
func respondError(c *fiber.Ctx, err error) error {
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "datos inválidos", Fields: validationFields(ve)})
	}
	if errors.Is(err, errInvalidBody) {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}

	var be *domain.BatchError
	if errors.As(err, &be) {
		status := fiber.StatusConflict
		if be.Applied {
			status = fiber.StatusMultiStatus
		} else if len(be.WrongState) == 0 {
			status = fiber.StatusNotFound
		}
		return c.Status(status).JSON(batchResponse(nil, be.Failures()))
	}

	switch {
	case errors.Is(err, domain.ErrReservationExpired):
		return c.Status(fiber.StatusGone).JSON(dto.ErrorResponse{Code: "RESERVATION_EXPIRED", Message: "la reserva expiró; las unidades fueron liberadas"})
	case errors.Is(err, domain.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_FOUND", Message: err.Error()})
	case errors.Is(err, domain.ErrInvalidInput):
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: err.Error()})
	case errors.Is(err, domain.ErrDuplicate):
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Code: "DUPLICATE", Message: err.Error()})
	case errors.Is(err, domain.ErrInvalidTransition):
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Code: "INVALID_TRANSITION", Message: err.Error()})
	case errors.Is(err, domain.ErrInsufficientStock):
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Code: "INSUFFICIENT_STOCK", Message: "el stock cambió, intente de nuevo"})
	case errors.Is(err, domain.ErrConcurrentModification):
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Code: "CONCURRENT_MODIFICATION", Message: "modificación concurrente, reintente", Retryable: true})
	case errors.Is(err, domain.ErrLedgerInconsistent):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(dto.ErrorResponse{Code: "LEDGER_INCONSISTENT", Message: err.Error()})
	case errors.Is(err, domain.ErrUnauthorized):
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "token inválido"})
	case errors.Is(err, domain.ErrForbidden):
		return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{Code: "FORBIDDEN", Message: "acceso denegado al recurso"})
	}
	log.Error().Err(err).Str("path", c.Path()).Msg("error interno")
	return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: "error interno"})
}

func batchResponse(succeeded []string, failed []domain.ItemFailure) dto.BatchResponse {
	out := dto.BatchResponse{Succeeded: succeeded, Failed: make([]dto.ItemFailureResponse, 0, len(failed))}
	if out.Succeeded == nil {
		out.Succeeded = []string{}
	}
	for _, f := range failed {
		out.Failed = append(out.Failed, dto.ItemFailureResponse{SerialNumber: f.SerialNumber, Reason: f.Reason()})
	}
	return out
}
