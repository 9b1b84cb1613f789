package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jhoicas/inventario-seriales/internal/domain"
	"github.com/jhoicas/inventario-seriales/internal/domain/entity"
	inv "github.com/jhoicas/inventario-seriales/internal/domain/inventory"
	"github.com/jhoicas/inventario-seriales/internal/domain/repository"
	"github.com/jhoicas/inventario-seriales/pkg/logger"
)

const (
	reserveAttempts = 3
	sweepBatchSize  = 100
)

var errCandidateTaken = errors.New("unidad candidata ya no está disponible")

// ReservationOptions duración de las reservas.
type ReservationOptions struct {
	DefaultTTL time.Duration
	MaxTTL     time.Duration
}

// ReservationManager retenciones temporales sobre unidades disponibles. Las reservas
// siempre vencen: el vencimiento se verifica en cada acceso y, opcionalmente, un
// barrido periódico (Sweeper) las libera.
type ReservationManager struct {
	engine *Engine
	repos  Repos
	opts   ReservationOptions
	log    *logger.Logger
}

// NewReservationManager construye el gestor de reservas.
func NewReservationManager(engine *Engine, repos Repos, opts ReservationOptions, log *logger.Logger) *ReservationManager {
	if opts.DefaultTTL <= 0 {
		opts.DefaultTTL = 15 * time.Minute
	}
	if opts.MaxTTL < opts.DefaultTTL {
		opts.MaxTTL = opts.DefaultTTL
	}
	if log == nil {
		log = logger.Nop()
	}
	return &ReservationManager{engine: engine, repos: repos, opts: opts, log: log.Component("reservations")}
}

// ReserveInput solicitud de reserva de Quantity unidades de un producto en una bodega.
type ReserveInput struct {
	ProductID  string
	LocationID string
	Quantity   int
	ReservedBy string
	TTL        time.Duration // <= 0 usa el valor por defecto; se limita al máximo configurado
}

// Reserve toma las unidades AVAILABLE más antiguas. Antes de elegir libera las reservas
// vencidas del mismo producto y bodega. Puede devolver ErrInsufficientStock aunque una
// consulta de disponibilidad previa indicara stock suficiente.
func (m *ReservationManager) Reserve(ctx context.Context, in ReserveInput) (*entity.Reservation, error) {
	if in.ProductID == "" || in.LocationID == "" || in.ReservedBy == "" || in.Quantity <= 0 {
		return nil, fmt.Errorf("producto, bodega, cantidad y solicitante son obligatorios: %w", domain.ErrInvalidInput)
	}
	ttl := in.TTL
	if ttl <= 0 {
		ttl = m.opts.DefaultTTL
	}
	ttl = min(ttl, m.opts.MaxTTL)

	if _, err := m.ExpireDue(ctx, in.ProductID, in.LocationID); err != nil {
		m.log.Warn().Err(err).Str("product_id", in.ProductID).Msg("no se pudieron liberar reservas vencidas")
	}

	for attempt := 1; attempt <= reserveAttempts; attempt++ {
		candidates, err := m.repos.Units.List(ctx, repository.UnitFilter{
			ProductID:  in.ProductID,
			LocationID: in.LocationID,
			Status:     entity.UnitStatusAvailable,
			Limit:      in.Quantity,
		})
		if err != nil {
			return nil, fmt.Errorf("list candidates: %w", err)
		}
		if len(candidates) < in.Quantity {
			return nil, fmt.Errorf("disponibles %d de %d: %w", len(candidates), in.Quantity, domain.ErrInsufficientStock)
		}
		ids := make([]string, len(candidates))
		for i, u := range candidates {
			ids[i] = u.ID
		}

		var out *entity.Reservation
		err = m.engine.Run(ctx, ids, func(w *Work) error {
			for _, id := range ids {
				u := w.Unit(id)
				if u == nil || u.Status != entity.UnitStatusAvailable || u.LocationID != in.LocationID {
					return errCandidateTaken
				}
			}
			now := w.Now()
			r := &entity.Reservation{
				ID:         uuid.New().String(),
				UnitIDs:    ids,
				ProductID:  in.ProductID,
				LocationID: in.LocationID,
				ReservedBy: in.ReservedBy,
				Status:     entity.ReservationStatusActive,
				CreatedAt:  now,
				ExpiresAt:  now.Add(ttl),
			}
			if err := w.Repos.Reservations.Create(ctx, r); err != nil {
				return fmt.Errorf("create reservation: %w", err)
			}
			ref := Ref{Type: entity.ReferenceTypeReservation, Number: r.ID, PerformedBy: in.ReservedBy}
			for _, id := range ids {
				if _, err := w.Apply(id, inv.ActionReserve, inv.Params{ExternalReference: r.ID}, ref); err != nil {
					return err
				}
			}
			out = r
			return nil
		})
		if errors.Is(err, errCandidateTaken) {
			m.log.Debug().Int("attempt", attempt).Str("product_id", in.ProductID).Msg("candidatos tomados por otra operación")
			continue
		}
		if err != nil {
			return nil, err
		}
		m.log.Info().Str("reservation_id", out.ID).Str("reserved_by", in.ReservedBy).
			Int("units", len(ids)).Time("expires_at", out.ExpiresAt).Msg("reserva creada")
		return out.Clone(), nil
	}
	return nil, fmt.Errorf("las unidades cambiaron durante la reserva: %w", domain.ErrInsufficientStock)
}

// Release libera las unidades aún reservadas. Idempotente: devuelve 0 si la reserva ya
// fue liberada, consumida o vencida.
func (m *ReservationManager) Release(ctx context.Context, id string) (int, error) {
	r, err := m.repos.Reservations.GetByID(ctx, id)
	if err != nil {
		return 0, fmt.Errorf("get reservation: %w", err)
	}
	if r == nil {
		return 0, fmt.Errorf("reserva %s: %w", id, domain.ErrNotFound)
	}
	final := entity.ReservationStatusReleased
	if r.IsExpired(m.engine.Now()) {
		final = entity.ReservationStatusExpired
	}
	n, err := releaseReservation(ctx, m.engine, m.repos, id, final)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		m.log.Info().Str("reservation_id", id).Int("released", n).Msg("reserva liberada")
	}
	return n, nil
}

// Get devuelve la reserva. Una reserva ACTIVE vencida se informa como EXPIRED aunque
// el barrido aún no la haya procesado.
func (m *ReservationManager) Get(ctx context.Context, id string) (*entity.Reservation, error) {
	r, err := m.repos.Reservations.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get reservation: %w", err)
	}
	if r == nil {
		return nil, fmt.Errorf("reserva %s: %w", id, domain.ErrNotFound)
	}
	if r.Status == entity.ReservationStatusActive && r.IsExpired(m.engine.Now()) {
		r.Status = entity.ReservationStatusExpired
	}
	return r, nil
}

// ExpireDue libera las reservas vencidas (del producto/bodega indicados, o todas si están
// vacíos) y devuelve cuántas procesó.
func (m *ReservationManager) ExpireDue(ctx context.Context, productID, locationID string) (int, error) {
	due, err := m.repos.Reservations.ListExpired(ctx, productID, locationID, m.engine.Now(), sweepBatchSize)
	if err != nil {
		return 0, fmt.Errorf("list expired reservations: %w", err)
	}
	var errs []error
	count := 0
	for _, r := range due {
		n, err := releaseReservation(ctx, m.engine, m.repos, r.ID, entity.ReservationStatusExpired)
		if err != nil {
			errs = append(errs, fmt.Errorf("reserva %s: %w", r.ID, err))
			continue
		}
		count++
		m.log.Info().Str("reservation_id", r.ID).Int("released", n).Msg("reserva vencida liberada")
	}
	return count, errors.Join(errs...)
}

// releaseReservation devuelve a AVAILABLE las unidades que siguen reservadas por id y
// cierra la reserva con el estado final indicado. Exactamente una vez: si la reserva ya
// no está ACTIVE no hace nada y devuelve 0.
func releaseReservation(ctx context.Context, e *Engine, repos Repos, id string, final entity.ReservationStatus) (int, error) {
	r, err := repos.Reservations.GetByID(ctx, id)
	if err != nil {
		return 0, fmt.Errorf("get reservation: %w", err)
	}
	if r == nil {
		return 0, fmt.Errorf("reserva %s: %w", id, domain.ErrNotFound)
	}
	if r.Status != entity.ReservationStatusActive {
		return 0, nil
	}

	released := 0
	err = e.Run(ctx, r.UnitIDs, func(w *Work) error {
		released = 0
		cur, err := w.Repos.Reservations.GetByID(ctx, id)
		if err != nil {
			return fmt.Errorf("get reservation: %w", err)
		}
		if cur == nil || cur.Status != entity.ReservationStatusActive {
			return nil
		}
		note := "liberada"
		if final == entity.ReservationStatusExpired {
			note = "vencida"
		}
		ref := Ref{Type: entity.ReferenceTypeReservation, Number: id, Notes: note, PerformedBy: cur.ReservedBy}
		for _, uid := range cur.UnitIDs {
			u := w.Unit(uid)
			if u == nil || u.Status != entity.UnitStatusReserved || u.ExternalReference != id {
				continue
			}
			if _, err := w.Apply(uid, inv.ActionRelease, inv.Params{ExpectedReference: id}, ref); err != nil {
				return err
			}
			released++
		}
		now := w.Now()
		cur.Status = final
		cur.ReleasedAt = &now
		if err := w.Repos.Reservations.Update(ctx, cur); err != nil {
			return fmt.Errorf("update reservation: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return released, nil
}
