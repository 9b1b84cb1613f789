package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Errores de dominio (sin dependencias externas).
var (
	ErrNotFound               = errors.New("recurso no encontrado")
	ErrInvalidInput           = errors.New("entrada inválida")
	ErrDuplicate              = errors.New("recurso duplicado")
	ErrUnauthorized           = errors.New("no autorizado")
	ErrForbidden              = errors.New("acceso denegado")
	ErrInvalidTransition      = errors.New("transición de estado no permitida")
	ErrInsufficientStock      = errors.New("stock insuficiente")
	ErrReservationExpired     = errors.New("la reserva expiró")
	ErrConcurrentModification = errors.New("modificación concurrente, reintente")
	ErrPartialBatchFailure    = errors.New("el lote se aplicó parcialmente")
	ErrLedgerInconsistent     = errors.New("historial de movimientos inconsistente")
)

// TransitionError describe una transición rechazada: el sujeto existe pero su estado
// actual no permite la operación. Subject es "unit", "reservation", "transfer" o "claim".
type TransitionError struct {
	Subject  string
	ID       string
	Action   string
	Current  string
	Expected []string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s %s: %s no permitido (actual=%s, esperado=%s)",
		e.Subject, e.ID, e.Action, e.Current, strings.Join(e.Expected, "|"))
}

// Unwrap permite errors.Is(err, ErrInvalidTransition).
func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

// ItemFailure falla de un elemento dentro de una operación por lote.
type ItemFailure struct {
	SerialNumber string
	Err          error
}

// Reason texto legible de la falla.
func (f ItemFailure) Reason() string {
	if f.Err == nil {
		return ""
	}
	return f.Err.Error()
}

// BatchError resultado fallido (total o parcial) de una operación sobre varias unidades.
// NotFound y WrongState se reportan por separado; Applied indica que al menos un
// elemento sí se aplicó.
type BatchError struct {
	NotFound   []string
	WrongState []ItemFailure
	Applied    bool
}

func (e *BatchError) Error() string {
	var parts []string
	if e.Applied {
		parts = append(parts, ErrPartialBatchFailure.Error())
	}
	if len(e.NotFound) > 0 {
		parts = append(parts, "no encontrados: "+strings.Join(e.NotFound, ", "))
	}
	if len(e.WrongState) > 0 {
		serials := make([]string, 0, len(e.WrongState))
		for _, f := range e.WrongState {
			serials = append(serials, f.SerialNumber)
		}
		parts = append(parts, "estado inválido: "+strings.Join(serials, ", "))
	}
	return strings.Join(parts, "; ")
}

// Unwrap expone cada error individual y ErrPartialBatchFailure cuando hubo aplicación parcial,
// de modo que errors.Is / errors.As funcionan sobre el lote completo.
func (e *BatchError) Unwrap() []error {
	var errs []error
	if e.Applied {
		errs = append(errs, ErrPartialBatchFailure)
	}
	if len(e.NotFound) > 0 {
		errs = append(errs, ErrNotFound)
	}
	for _, f := range e.WrongState {
		if f.Err != nil {
			errs = append(errs, f.Err)
		}
	}
	return errs
}

// Failures devuelve todas las fallas (no encontrados primero) como ItemFailure.
func (e *BatchError) Failures() []ItemFailure {
	out := make([]ItemFailure, 0, len(e.NotFound)+len(e.WrongState))
	for _, sn := range e.NotFound {
		out = append(out, ItemFailure{SerialNumber: sn, Err: ErrNotFound})
	}
	return append(out, e.WrongState...)
}

// Empty indica que el lote no tuvo fallas.
func (e *BatchError) Empty() bool {
	return len(e.NotFound) == 0 && len(e.WrongState) == 0
}

// IsRetryable indica si el error es un conflicto de concurrencia que el llamador puede reintentar.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrentModification)
}
