package inventory

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jhoicas/inventario-seriales/internal/domain"
	"github.com/jhoicas/inventario-seriales/internal/domain/entity"
	inv "github.com/jhoicas/inventario-seriales/internal/domain/inventory"
	"github.com/jhoicas/inventario-seriales/pkg/logger"
)

// TransferOptions comportamiento del coordinador de traslados.
type TransferOptions struct {
	RequireApproval bool          // si es false, Initiate aprueba y despacha de inmediato
	StuckAfter      time.Duration // umbral por defecto de StuckTransfers
}

// TransferCoordinator traslado en dos fases de un lote de unidades entre bodegas.
// Fase 1 (Dispatch): AVAILABLE -> IN_TRANSIT en origen, una transacción por unidad.
// Fase 2 (Confirm): IN_TRANSIT -> AVAILABLE en destino. Re-ejecutar cualquiera de las dos
// fases solo procesa las unidades pendientes; la lógica de reintento vive solo aquí.
type TransferCoordinator struct {
	engine  *Engine
	repos   Repos
	catalog Catalog
	opts    TransferOptions
	log     *logger.Logger
}

// NewTransferCoordinator construye el coordinador.
func NewTransferCoordinator(engine *Engine, repos Repos, catalog Catalog, opts TransferOptions, log *logger.Logger) *TransferCoordinator {
	if opts.StuckAfter <= 0 {
		opts.StuckAfter = 48 * time.Hour
	}
	if log == nil {
		log = logger.Nop()
	}
	return &TransferCoordinator{engine: engine, repos: repos, catalog: catalog, opts: opts, log: log.Component("transfers")}
}

// InitiateTransferInput solicitud de traslado.
type InitiateTransferInput struct {
	SourceLocationID string
	TargetLocationID string
	SerialNumbers    []string
	PerformedBy      string
	Notes            string
}

// TransferResult estado del lote tras una operación y detalle por unidad.
type TransferResult struct {
	Batch   *entity.TransferBatch
	Moved   []string             // seriales que avanzaron en esta llamada
	Pending []domain.ItemFailure // seriales que no avanzaron y por qué
}

// StuckTransfer lote abierto sin cambios más allá del umbral.
type StuckTransfer struct {
	Batch     *entity.TransferBatch
	InTransit []string // seriales aún en tránsito
	AtSource  []string // seriales que nunca salieron del origen
	Idle      time.Duration
}

func batchKey(id string) string { return "transfer:" + id }

// Initiate crea el lote REQUESTED. Todas las unidades deben existir, estar AVAILABLE en
// origen y no pertenecer a otro lote abierto; si alguna falla no se crea nada.
func (c *TransferCoordinator) Initiate(ctx context.Context, in InitiateTransferInput) (*TransferResult, error) {
	if in.SourceLocationID == "" || in.TargetLocationID == "" || in.PerformedBy == "" {
		return nil, fmt.Errorf("origen, destino y responsable son obligatorios: %w", domain.ErrInvalidInput)
	}
	if in.SourceLocationID == in.TargetLocationID {
		return nil, fmt.Errorf("origen y destino iguales: %w", domain.ErrInvalidInput)
	}
	for _, loc := range []string{in.SourceLocationID, in.TargetLocationID} {
		wh, err := c.catalog.Warehouses.GetByID(ctx, loc)
		if err != nil {
			return nil, fmt.Errorf("get warehouse: %w", err)
		}
		if wh == nil {
			return nil, fmt.Errorf("bodega %s: %w", loc, domain.ErrNotFound)
		}
		if !wh.IsActive {
			return nil, fmt.Errorf("bodega %s inactiva: %w", loc, domain.ErrInvalidInput)
		}
	}
	r, err := resolveSerials(ctx, c.repos.Units, in.SerialNumbers)
	if err != nil {
		return nil, err
	}
	if len(r.notFound) > 0 {
		return nil, &domain.BatchError{NotFound: r.notFound}
	}

	ids := r.unitIDs()
	var batch *entity.TransferBatch
	err = c.engine.Run(ctx, ids, func(w *Work) error {
		be := &domain.BatchError{}
		for _, sn := range r.serials {
			u := w.Unit(r.ids[sn])
			if u.LocationID != in.SourceLocationID {
				be.WrongState = append(be.WrongState, domain.ItemFailure{SerialNumber: sn,
					Err: fmt.Errorf("unidad en bodega %s, no en origen: %w", u.LocationID, domain.ErrInvalidTransition)})
				continue
			}
			if err := w.Check(u.ID, inv.ActionDispatch, inv.Params{}); err != nil {
				be.WrongState = append(be.WrongState, domain.ItemFailure{SerialNumber: sn, Err: err})
			}
		}
		open, err := w.Repos.Transfers.FindOpenByUnits(ctx, ids)
		if err != nil {
			return fmt.Errorf("find open transfers: %w", err)
		}
		for _, b := range open {
			for _, sn := range r.serials {
				if slices.Contains(b.UnitIDs, r.ids[sn]) {
					be.WrongState = append(be.WrongState, domain.ItemFailure{SerialNumber: sn,
						Err: fmt.Errorf("unidad en traslado abierto %s: %w", b.ID, domain.ErrInvalidTransition)})
				}
			}
		}
		if !be.Empty() {
			return be
		}
		now := w.Now()
		batch = &entity.TransferBatch{
			ID:               uuid.New().String(),
			SourceLocationID: in.SourceLocationID,
			TargetLocationID: in.TargetLocationID,
			UnitIDs:          ids,
			Status:           entity.TransferStatusRequested,
			PerformedBy:      in.PerformedBy,
			Notes:            in.Notes,
			RequestedAt:      now,
			UpdatedAt:        now,
		}
		if err := w.Repos.Transfers.Create(ctx, batch); err != nil {
			return fmt.Errorf("create transfer: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	c.log.Info().Str("batch_id", batch.ID).Str("source", batch.SourceLocationID).
		Str("target", batch.TargetLocationID).Int("units", len(ids)).Msg("traslado solicitado")

	if c.opts.RequireApproval {
		return &TransferResult{Batch: batch.Clone()}, nil
	}
	return c.Approve(ctx, batch.ID, in.PerformedBy)
}

// Approve REQUESTED -> APPROVED y despacha.
func (c *TransferCoordinator) Approve(ctx context.Context, id, performedBy string) (*TransferResult, error) {
	unlock, err := c.engine.Lock(ctx, batchKey(id))
	if err != nil {
		return nil, err
	}
	defer unlock()

	_, err = c.saveBatch(ctx, id, func(b *entity.TransferBatch, now time.Time) (bool, error) {
		if b.Status != entity.TransferStatusRequested {
			return false, transferTransition(b, "APPROVE", entity.TransferStatusRequested)
		}
		b.Status = entity.TransferStatusApproved
		b.ApprovedAt = &now
		if performedBy != "" && performedBy != b.PerformedBy {
			b.Notes = appendNote(b.Notes, "aprobado por "+performedBy)
		}
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return c.dispatchLocked(ctx, id)
}

// Dispatch fase 1. Solo procesa las unidades que aún no salieron del origen.
func (c *TransferCoordinator) Dispatch(ctx context.Context, id string) (*TransferResult, error) {
	unlock, err := c.engine.Lock(ctx, batchKey(id))
	if err != nil {
		return nil, err
	}
	defer unlock()
	return c.dispatchLocked(ctx, id)
}

func (c *TransferCoordinator) dispatchLocked(ctx context.Context, id string) (*TransferResult, error) {
	b, err := c.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if b.Status != entity.TransferStatusApproved && b.Status != entity.TransferStatusInTransit {
		return nil, transferTransition(b, "DISPATCH", entity.TransferStatusApproved, entity.TransferStatusInTransit)
	}

	res := &TransferResult{}
	inTransit := 0
	for _, uid := range b.UnitIDs {
		u, err := c.repos.Units.GetByID(ctx, uid)
		if err != nil {
			return nil, fmt.Errorf("get unit: %w", err)
		}
		if u == nil {
			continue
		}
		if isInTransitFor(u, b) {
			inTransit++
			continue
		}
		err = c.engine.Run(ctx, []string{uid}, func(w *Work) error {
			cur := w.Unit(uid)
			if cur.LocationID != b.SourceLocationID {
				return fmt.Errorf("unidad en bodega %s, no en origen: %w", cur.LocationID, domain.ErrInvalidTransition)
			}
			_, err := w.Apply(uid, inv.ActionDispatch,
				inv.Params{ExternalReference: b.ID, CounterpartyRef: b.TargetLocationID},
				Ref{Type: entity.ReferenceTypeTransfer, Number: b.ID, Notes: b.Notes, PerformedBy: b.PerformedBy})
			return err
		})
		if err != nil {
			res.Pending = append(res.Pending, domain.ItemFailure{SerialNumber: u.SerialNumber, Err: err})
			c.log.Warn().Err(err).Str("batch_id", b.ID).Str("serial", u.SerialNumber).Msg("unidad no despachada")
			continue
		}
		inTransit++
		res.Moved = append(res.Moved, u.SerialNumber)
	}

	res.Batch, err = c.saveBatch(ctx, id, func(b *entity.TransferBatch, now time.Time) (bool, error) {
		progressed := len(res.Moved) > 0
		if b.Status == entity.TransferStatusApproved && inTransit > 0 {
			b.Status = entity.TransferStatusInTransit
			b.DispatchedAt = &now
			progressed = true
		}
		return progressed, nil
	})
	if err != nil {
		return nil, err
	}
	c.log.Info().Str("batch_id", id).Int("dispatched", len(res.Moved)).Int("pending", len(res.Pending)).
		Str("status", string(res.Batch.Status)).Msg("despacho de traslado")
	return res, nil
}

// Confirm fase 2. El lote pasa a COMPLETED solo cuando todas sus unidades están en destino.
// Confirmar un lote COMPLETED no hace nada; uno CANCELLED o aún no despachado falla.
func (c *TransferCoordinator) Confirm(ctx context.Context, id, performedBy string) (*TransferResult, error) {
	unlock, err := c.engine.Lock(ctx, batchKey(id))
	if err != nil {
		return nil, err
	}
	defer unlock()

	b, err := c.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if b.Status == entity.TransferStatusCompleted {
		return &TransferResult{Batch: b}, nil
	}
	if b.Status != entity.TransferStatusInTransit {
		return nil, transferTransition(b, "CONFIRM", entity.TransferStatusInTransit)
	}
	if performedBy == "" {
		performedBy = b.PerformedBy
	}

	res := &TransferResult{}
	arrived := 0
	for _, uid := range b.UnitIDs {
		u, err := c.repos.Units.GetByID(ctx, uid)
		if err != nil {
			return nil, fmt.Errorf("get unit: %w", err)
		}
		if u == nil {
			continue
		}
		if hasArrived(u, b) {
			arrived++
			continue
		}
		if !isInTransitFor(u, b) {
			res.Pending = append(res.Pending, domain.ItemFailure{SerialNumber: u.SerialNumber,
				Err: fmt.Errorf("no salió del origen (estado %s): %w", u.Status, domain.ErrInvalidTransition)})
			continue
		}
		err = c.engine.Run(ctx, []string{uid}, func(w *Work) error {
			_, err := w.Apply(uid, inv.ActionReceiveTransfer,
				inv.Params{ExpectedReference: b.ID, LocationID: b.TargetLocationID},
				Ref{Type: entity.ReferenceTypeTransfer, Number: b.ID, PerformedBy: performedBy})
			return err
		})
		if err != nil {
			res.Pending = append(res.Pending, domain.ItemFailure{SerialNumber: u.SerialNumber, Err: err})
			c.log.Warn().Err(err).Str("batch_id", b.ID).Str("serial", u.SerialNumber).Msg("unidad no recibida")
			continue
		}
		arrived++
		res.Moved = append(res.Moved, u.SerialNumber)
	}

	complete := arrived == len(b.UnitIDs)
	res.Batch, err = c.saveBatch(ctx, id, func(b *entity.TransferBatch, now time.Time) (bool, error) {
		if !complete {
			return len(res.Moved) > 0, nil
		}
		b.Status = entity.TransferStatusCompleted
		b.CompletedAt = &now
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	c.log.Info().Str("batch_id", id).Int("received", len(res.Moved)).Int("pending", len(res.Pending)).
		Str("status", string(res.Batch.Status)).Msg("confirmación de traslado")
	return res, nil
}

// Cancel devuelve a AVAILABLE en origen las unidades en tránsito. Solo antes de que
// alguna unidad llegue al destino.
func (c *TransferCoordinator) Cancel(ctx context.Context, id, performedBy string) (*TransferResult, error) {
	unlock, err := c.engine.Lock(ctx, batchKey(id))
	if err != nil {
		return nil, err
	}
	defer unlock()

	b, err := c.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if b.Status == entity.TransferStatusCancelled {
		return &TransferResult{Batch: b}, nil
	}
	if b.Status == entity.TransferStatusCompleted {
		return nil, transferTransition(b, "CANCEL",
			entity.TransferStatusRequested, entity.TransferStatusApproved, entity.TransferStatusInTransit)
	}
	if performedBy == "" {
		performedBy = b.PerformedBy
	}

	members := make([]*entity.Unit, 0, len(b.UnitIDs))
	for _, uid := range b.UnitIDs {
		u, err := c.repos.Units.GetByID(ctx, uid)
		if err != nil {
			return nil, fmt.Errorf("get unit: %w", err)
		}
		if u == nil {
			continue
		}
		if hasArrived(u, b) {
			return nil, &domain.TransitionError{
				Subject: "transfer", ID: b.ID, Action: "CANCEL",
				Current:  fmt.Sprintf("%s (unidad %s ya en destino)", b.Status, u.SerialNumber),
				Expected: []string{"sin unidades en destino"},
			}
		}
		members = append(members, u)
	}

	res := &TransferResult{}
	for _, u := range members {
		if !isInTransitFor(u, b) {
			continue
		}
		err := c.engine.Run(ctx, []string{u.ID}, func(w *Work) error {
			_, err := w.Apply(u.ID, inv.ActionCancelTransfer,
				inv.Params{ExpectedReference: b.ID},
				Ref{Type: entity.ReferenceTypeTransfer, Number: b.ID, Notes: "traslado cancelado", PerformedBy: performedBy})
			return err
		})
		if err != nil {
			// El lote sigue abierto; volver a cancelar procesa las restantes.
			return nil, fmt.Errorf("cancelar unidad %s: %w", u.SerialNumber, err)
		}
		res.Moved = append(res.Moved, u.SerialNumber)
	}

	res.Batch, err = c.saveBatch(ctx, id, func(b *entity.TransferBatch, now time.Time) (bool, error) {
		b.Status = entity.TransferStatusCancelled
		b.CancelledAt = &now
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	c.log.Info().Str("batch_id", id).Int("returned", len(res.Moved)).Msg("traslado cancelado")
	return res, nil
}

// ExcludeUnits retira del lote unidades que nunca salieron del origen para que el resto
// pueda completarse. Todo o nada.
func (c *TransferCoordinator) ExcludeUnits(ctx context.Context, id string, serials []string, reason, performedBy string) (*TransferResult, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, fmt.Errorf("la exclusión requiere motivo: %w", domain.ErrInvalidInput)
	}
	unlock, err := c.engine.Lock(ctx, batchKey(id))
	if err != nil {
		return nil, err
	}
	defer unlock()

	b, err := c.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !b.Status.IsOpen() {
		return nil, transferTransition(b, "EXCLUDE",
			entity.TransferStatusRequested, entity.TransferStatusApproved, entity.TransferStatusInTransit)
	}
	r, err := resolveSerials(ctx, c.repos.Units, serials)
	if err != nil {
		return nil, err
	}
	be := &domain.BatchError{NotFound: r.notFound}
	var excluded []string
	for _, sn := range r.serials {
		uid := r.ids[sn]
		if !slices.Contains(b.UnitIDs, uid) {
			be.WrongState = append(be.WrongState, domain.ItemFailure{SerialNumber: sn,
				Err: fmt.Errorf("no pertenece al lote %s: %w", b.ID, domain.ErrInvalidInput)})
			continue
		}
		u, err := c.repos.Units.GetByID(ctx, uid)
		if err != nil {
			return nil, fmt.Errorf("get unit: %w", err)
		}
		if isInTransitFor(u, b) || hasArrived(u, b) {
			be.WrongState = append(be.WrongState, domain.ItemFailure{SerialNumber: sn,
				Err: &domain.TransitionError{Subject: "unit", ID: sn, Action: "EXCLUDE",
					Current: string(u.Status) + "@" + u.LocationID, Expected: []string{"no despachada"}}})
			continue
		}
		excluded = append(excluded, uid)
	}
	if !be.Empty() {
		return nil, be
	}

	res := &TransferResult{Moved: r.serials}
	res.Batch, err = c.saveBatch(ctx, id, func(b *entity.TransferBatch, now time.Time) (bool, error) {
		b.UnitIDs = slices.DeleteFunc(b.UnitIDs, func(uid string) bool { return slices.Contains(excluded, uid) })
		b.ExcludedUnitIDs = append(b.ExcludedUnitIDs, excluded...)
		b.Notes = appendNote(b.Notes, fmt.Sprintf("excluidas %s por %s: %s", strings.Join(r.serials, ", "), performedBy, reason))
		if len(b.UnitIDs) == 0 {
			b.Status = entity.TransferStatusCancelled
			b.CancelledAt = &now
		}
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	c.log.Info().Str("batch_id", id).Strs("serials", r.serials).Msg("unidades excluidas del traslado")
	return res, nil
}

// Get devuelve el lote.
func (c *TransferCoordinator) Get(ctx context.Context, id string) (*entity.TransferBatch, error) {
	return c.get(ctx, id)
}

// StuckTransfers lotes abiertos sin avance desde hace más de olderThan (<= 0 usa el
// umbral configurado), con el detalle de unidades en tránsito y en origen.
func (c *TransferCoordinator) StuckTransfers(ctx context.Context, olderThan time.Duration) ([]StuckTransfer, error) {
	if olderThan <= 0 {
		olderThan = c.opts.StuckAfter
	}
	now := c.engine.Now()
	batches, err := c.repos.Transfers.ListOpenUpdatedBefore(ctx, now.Add(-olderThan))
	if err != nil {
		return nil, fmt.Errorf("list stuck transfers: %w", err)
	}
	out := make([]StuckTransfer, 0, len(batches))
	for _, b := range batches {
		st := StuckTransfer{Batch: b, Idle: now.Sub(b.UpdatedAt)}
		for _, uid := range b.UnitIDs {
			u, err := c.repos.Units.GetByID(ctx, uid)
			if err != nil {
				return nil, fmt.Errorf("get unit: %w", err)
			}
			switch {
			case u == nil:
			case isInTransitFor(u, b):
				st.InTransit = append(st.InTransit, u.SerialNumber)
			case u.LocationID == b.SourceLocationID:
				st.AtSource = append(st.AtSource, u.SerialNumber)
			}
		}
		out = append(out, st)
	}
	return out, nil
}

func (c *TransferCoordinator) get(ctx context.Context, id string) (*entity.TransferBatch, error) {
	b, err := c.repos.Transfers.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get transfer: %w", err)
	}
	if b == nil {
		return nil, fmt.Errorf("traslado %s: %w", id, domain.ErrNotFound)
	}
	return b, nil
}

// saveBatch relee el lote dentro de una transacción, aplica mutate y lo guarda con control de versión.
// mutate informa si hubo avance (unidades movidas o cambio de estado); sin avance el lote no se
// reescribe y UpdatedAt conserva el último avance, que es el reloj de StuckTransfers.
func (c *TransferCoordinator) saveBatch(ctx context.Context, id string, mutate func(b *entity.TransferBatch, now time.Time) (bool, error)) (*entity.TransferBatch, error) {
	var out *entity.TransferBatch
	err := c.engine.RunKeys(ctx, nil, func(w *Work) error {
		b, err := w.Repos.Transfers.GetByID(ctx, id)
		if err != nil {
			return fmt.Errorf("get transfer: %w", err)
		}
		if b == nil {
			return fmt.Errorf("traslado %s: %w", id, domain.ErrNotFound)
		}
		progressed, err := mutate(b, w.Now())
		if err != nil {
			return err
		}
		out = b
		if !progressed {
			return nil
		}
		b.UpdatedAt = w.Now()
		if err := w.Repos.Transfers.Update(ctx, b); err != nil {
			return fmt.Errorf("update transfer: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func isInTransitFor(u *entity.Unit, b *entity.TransferBatch) bool {
	return u.Status == entity.UnitStatusInTransit && u.ExternalReference == b.ID
}

func hasArrived(u *entity.Unit, b *entity.TransferBatch) bool {
	return u.LocationID == b.TargetLocationID && !isInTransitFor(u, b)
}

func transferTransition(b *entity.TransferBatch, action string, expected ...entity.TransferStatus) error {
	exp := make([]string, len(expected))
	for i, s := range expected {
		exp[i] = string(s)
	}
	return &domain.TransitionError{Subject: "transfer", ID: b.ID, Action: action, Current: string(b.Status), Expected: exp}
}

func appendNote(notes, add string) string {
	if notes == "" {
		return add
	}
	return notes + "\n" + add
}
