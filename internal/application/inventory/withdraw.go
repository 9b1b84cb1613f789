package inventory

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/jhoicas/inventario-seriales/internal/domain"
	"github.com/jhoicas/inventario-seriales/internal/domain/entity"
	inv "github.com/jhoicas/inventario-seriales/internal/domain/inventory"
)

// WithdrawInput venta o retiro de unidades por serial.
type WithdrawInput struct {
	SerialNumbers   []string
	ReferenceType   entity.ReferenceType // SALE, POS o INSTALLMENT
	ReferenceNumber string
	CounterpartyRef string
	Notes           string
	PerformedBy     string
	// ReservationID si no está vacío, todas las unidades deben estar reservadas por ella.
	ReservationID string
	// AllowPartial aplica el subconjunto válido y devuelve ErrPartialBatchFailure con el detalle.
	// Por defecto se valida todo y no se aplica nada si alguna unidad falla.
	AllowPartial bool
}

// WithdrawResult detalle por serial de una venta.
type WithdrawResult struct {
	Succeeded []string
	Failed    []domain.ItemFailure
	Units     []*entity.Unit
}

// Withdraw vende las unidades (AVAILABLE, o RESERVED por la reserva indicada).
// Si la reserva venció, falla con ErrReservationExpired y libera sus unidades. Las unidades
// retenidas por otra reserva ya vencida se liberan antes y cuentan como disponibles.
func (s *UnitService) Withdraw(ctx context.Context, in WithdrawInput) (*WithdrawResult, error) {
	if !in.ReferenceType.IsSale() {
		return nil, fmt.Errorf("tipo de referencia %q no es una venta: %w", in.ReferenceType, domain.ErrInvalidInput)
	}
	if in.ReferenceNumber == "" {
		return nil, fmt.Errorf("número de referencia obligatorio: %w", domain.ErrInvalidInput)
	}
	r, err := resolveSerials(ctx, s.repos.Units, in.SerialNumbers)
	if err != nil {
		return nil, err
	}
	if len(r.serials) == 0 {
		be := &domain.BatchError{NotFound: r.notFound}
		return &WithdrawResult{Failed: be.Failures()}, be
	}
	if err := s.releaseExpiredHolds(ctx, r, in.ReservationID); err != nil {
		return nil, err
	}

	var (
		res     *WithdrawResult
		batch   *domain.BatchError
		expired bool
	)
	err = s.engine.Run(ctx, r.unitIDs(), func(w *Work) error {
		res = &WithdrawResult{}
		batch = &domain.BatchError{NotFound: r.notFound}
		expired = false

		var reservation *entity.Reservation
		if in.ReservationID != "" {
			rv, err := w.Repos.Reservations.GetByID(ctx, in.ReservationID)
			if err != nil {
				return fmt.Errorf("get reservation: %w", err)
			}
			if rv == nil {
				return fmt.Errorf("reserva %s: %w", in.ReservationID, domain.ErrNotFound)
			}
			switch {
			case rv.Status == entity.ReservationStatusExpired:
				return fmt.Errorf("reserva %s: %w", rv.ID, domain.ErrReservationExpired)
			case rv.Status == entity.ReservationStatusActive && rv.IsExpired(w.Now()):
				expired = true
				return fmt.Errorf("reserva %s: %w", rv.ID, domain.ErrReservationExpired)
			case rv.Status != entity.ReservationStatusActive:
				return &domain.TransitionError{
					Subject: "reservation", ID: rv.ID, Action: "WITHDRAW",
					Current: string(rv.Status), Expected: []string{string(entity.ReservationStatusActive)},
				}
			}
			reservation = rv
		}

		params := inv.Params{CounterpartyRef: in.CounterpartyRef, ExternalReference: in.ReferenceNumber}
		if reservation != nil {
			params.ExpectedReference = reservation.ID
		}
		var valid []string
		for _, sn := range r.serials {
			id := r.ids[sn]
			u := w.Unit(id)
			if u == nil {
				batch.NotFound = append(batch.NotFound, sn)
				continue
			}
			// Sin reserva, una unidad reservada por otro no se puede vender.
			if reservation == nil && u.Status == entity.UnitStatusReserved {
				batch.WrongState = append(batch.WrongState, domain.ItemFailure{SerialNumber: sn, Err: &domain.TransitionError{
					Subject: "unit", ID: sn, Action: string(inv.ActionSell),
					Current: string(u.Status), Expected: []string{string(entity.UnitStatusAvailable)},
				}})
				continue
			}
			if err := w.Check(id, inv.ActionSell, params); err != nil {
				batch.WrongState = append(batch.WrongState, domain.ItemFailure{SerialNumber: sn, Err: err})
				continue
			}
			valid = append(valid, id)
		}
		if len(valid) == 0 || (!batch.Empty() && !in.AllowPartial) {
			return batch
		}

		ref := Ref{Type: in.ReferenceType, Number: in.ReferenceNumber, Notes: in.Notes, PerformedBy: in.PerformedBy}
		for _, id := range valid {
			u, err := w.Apply(id, inv.ActionSell, params, ref)
			if err != nil {
				return err
			}
			res.Succeeded = append(res.Succeeded, u.SerialNumber)
			res.Units = append(res.Units, u)
		}
		if reservation != nil {
			reservation.UnitIDs = slices.DeleteFunc(reservation.UnitIDs, func(id string) bool {
				return slices.Contains(valid, id)
			})
			if len(reservation.UnitIDs) == 0 {
				now := w.Now()
				reservation.Status = entity.ReservationStatusConsumed
				reservation.ReleasedAt = &now
			}
			if err := w.Repos.Reservations.Update(ctx, reservation); err != nil {
				return fmt.Errorf("update reservation: %w", err)
			}
		}
		batch.Applied = !batch.Empty()
		return nil
	})
	if err != nil {
		if expired {
			n, relErr := releaseReservation(ctx, s.engine, s.repos, in.ReservationID, entity.ReservationStatusExpired)
			if relErr != nil {
				s.log.Error().Err(relErr).Str("reservation_id", in.ReservationID).Msg("no se pudo liberar la reserva vencida")
			} else {
				s.log.Info().Str("reservation_id", in.ReservationID).Int("released", n).Msg("reserva vencida liberada")
			}
		}
		if be := asBatch(err); be != nil {
			return &WithdrawResult{Failed: be.Failures()}, err
		}
		return nil, err
	}

	s.log.Info().Str("reference", in.ReferenceNumber).Strs("serials", res.Succeeded).Msg("unidades vendidas")
	if !batch.Empty() {
		res.Failed = batch.Failures()
		return res, batch
	}
	return res, nil
}

// releaseExpiredHolds libera las reservas vencidas que aún retienen unidades de la
// solicitud, salvo skip: esa la resuelve Withdraw con ErrReservationExpired.
func (s *UnitService) releaseExpiredHolds(ctx context.Context, r resolved, skip string) error {
	done := make(map[string]bool)
	for _, id := range r.holds {
		if id == skip || done[id] {
			continue
		}
		done[id] = true
		rv, err := s.repos.Reservations.GetByID(ctx, id)
		if err != nil {
			return fmt.Errorf("get reservation: %w", err)
		}
		if rv == nil || rv.Status != entity.ReservationStatusActive || !rv.IsExpired(s.engine.Now()) {
			continue
		}
		n, err := releaseReservation(ctx, s.engine, s.repos, id, entity.ReservationStatusExpired)
		if err != nil {
			return fmt.Errorf("reserva vencida %s: %w", id, err)
		}
		s.log.Info().Str("reservation_id", id).Int("released", n).Msg("reserva vencida liberada")
	}
	return nil
}

// IsPartial indica si err es un lote aplicado parcialmente.
func IsPartial(err error) bool {
	return errors.Is(err, domain.ErrPartialBatchFailure)
}
