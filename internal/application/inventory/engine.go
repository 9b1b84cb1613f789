package inventory

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/jhoicas/inventario-seriales/internal/domain"
	"github.com/jhoicas/inventario-seriales/internal/domain/entity"
	inv "github.com/jhoicas/inventario-seriales/internal/domain/inventory"
	"github.com/jhoicas/inventario-seriales/pkg/logger"
)

// EngineOptions parámetros del motor de transiciones.
type EngineOptions struct {
	MaxRetries int              // reintentos ante ErrConcurrentModification (0 = sin reintento)
	Now        func() time.Time // reloj inyectable; nil usa time.Now
}

// Engine motor de transiciones: bloquea las unidades, carga su estado dentro de una
// transacción, valida contra la máquina de estados, actualiza el registro y agrega al
// libro mayor en un único commit. Publica los movimientos solo después del commit.
type Engine struct {
	tx         TxRunner
	locker     UnitLocker
	publisher  MovementPublisher
	log        *logger.Logger
	now        func() time.Time
	maxRetries int
}

// NewEngine construye el motor. publisher puede ser nil.
func NewEngine(tx TxRunner, locker UnitLocker, publisher MovementPublisher, log *logger.Logger, opts EngineOptions) *Engine {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Engine{
		tx:         tx,
		locker:     locker,
		publisher:  publisher,
		log:        log.Component("engine"),
		now:        now,
		maxRetries: max(opts.MaxRetries, 0),
	}
}

// Now hora actual según el reloj del motor.
func (e *Engine) Now() time.Time { return e.now() }

// Ref metadatos que acompañan al movimiento en el libro mayor.
type Ref struct {
	Type        entity.ReferenceType
	Number      string
	Notes       string
	PerformedBy string
}

// Work unidad de trabajo abierta por Run. Las unidades cargadas están bloqueadas
// hasta el commit; Repos está atado a la misma transacción.
type Work struct {
	ctx     context.Context
	Repos   Repos
	now     time.Time
	units   map[string]*entity.Unit
	entries []*entity.MovementEntry
}

// Now hora fija de la unidad de trabajo (todas las entradas comparten timestamp).
func (w *Work) Now() time.Time { return w.now }

// Ctx contexto de la transacción.
func (w *Work) Ctx() context.Context { return w.ctx }

// Unit devuelve una copia de la unidad bloqueada, o nil si no existe.
func (w *Work) Unit(id string) *entity.Unit {
	return w.units[id].Clone()
}

// Check valida la acción sobre la unidad sin aplicarla.
func (w *Work) Check(id string, action inv.Action, p inv.Params) error {
	cur := w.units[id]
	if cur == nil {
		return fmt.Errorf("unidad %s: %w", id, domain.ErrNotFound)
	}
	_, _, err := inv.Transition(cur.Clone(), action, p)
	return err
}

// Apply aplica la acción, persiste la unidad y agrega la entrada al libro mayor.
// Si la transición es inválida la unidad no cambia.
func (w *Work) Apply(id string, action inv.Action, p inv.Params, ref Ref) (*entity.Unit, error) {
	cur := w.units[id]
	if cur == nil {
		return nil, fmt.Errorf("unidad %s: %w", id, domain.ErrNotFound)
	}
	next := cur.Clone()
	p.At = w.now
	rule, from, err := inv.Transition(next, action, p)
	if err != nil {
		return nil, err
	}
	if err := w.Repos.Units.Update(w.ctx, next); err != nil {
		return nil, fmt.Errorf("update unit %s: %w", next.SerialNumber, err)
	}
	entry := w.entry(next, rule.Movement, from, ref)
	if err := w.Repos.Movements.Append(w.ctx, entry); err != nil {
		return nil, fmt.Errorf("append movement %s: %w", next.SerialNumber, err)
	}
	w.units[id] = next
	w.entries = append(w.entries, entry)
	return next.Clone(), nil
}

// Receive registra una unidad nueva (AVAILABLE) y su entrada RECEIVE.
func (w *Work) Receive(u *entity.Unit, ref Ref) error {
	u.Status = entity.UnitStatusAvailable
	u.CreatedAt = w.now
	u.UpdatedAt = w.now
	if err := w.Repos.Units.Create(w.ctx, u); err != nil {
		return fmt.Errorf("create unit %s: %w", u.SerialNumber, err)
	}
	entry := w.entry(u, entity.MovementTypeReceive, "", ref)
	if err := w.Repos.Movements.Append(w.ctx, entry); err != nil {
		return fmt.Errorf("append movement %s: %w", u.SerialNumber, err)
	}
	w.units[u.ID] = u.Clone()
	w.entries = append(w.entries, entry)
	return nil
}

// Overwrite reescribe estado y ubicación sin agregar movimiento. Solo para reconciliar
// el registro con el libro mayor.
func (w *Work) Overwrite(u *entity.Unit) error {
	next := u.Clone()
	next.UpdatedAt = w.now
	if err := w.Repos.Units.Update(w.ctx, next); err != nil {
		return fmt.Errorf("overwrite unit %s: %w", next.SerialNumber, err)
	}
	w.units[next.ID] = next
	return nil
}

func (w *Work) entry(u *entity.Unit, mt entity.MovementType, from entity.UnitStatus, ref Ref) *entity.MovementEntry {
	return &entity.MovementEntry{
		ID:              uuid.New().String(),
		UnitID:          u.ID,
		SerialNumber:    u.SerialNumber,
		ProductID:       u.ProductID,
		LocationID:      u.LocationID,
		Type:            mt,
		Quantity:        1,
		UnitCost:        u.UnitCost,
		ReferenceType:   ref.Type,
		ReferenceNumber: ref.Number,
		Notes:           ref.Notes,
		PerformedBy:     ref.PerformedBy,
		FromStatus:      from,
		ToStatus:        u.Status,
		CreatedAt:       w.now,
	}
}

// Run bloquea las unidades (por id, en orden ascendente), las carga bajo exclusividad
// y ejecuta fn en una transacción. Reintenta ante ErrConcurrentModification; fn debe
// poder ejecutarse más de una vez.
func (e *Engine) Run(ctx context.Context, unitIDs []string, fn func(w *Work) error) error {
	ids := sortedKeys(unitIDs)
	return e.run(ctx, ids, ids, fn)
}

// RunKeys como Run pero bloquea claves arbitrarias y no carga unidades.
func (e *Engine) RunKeys(ctx context.Context, keys []string, fn func(w *Work) error) error {
	return e.run(ctx, sortedKeys(keys), nil, fn)
}

// Lock adquiere claves fuera de una transacción (p. ej. el lote de un traslado).
func (e *Engine) Lock(ctx context.Context, keys ...string) (func(), error) {
	return e.locker.Lock(ctx, sortedKeys(keys))
}

func (e *Engine) run(ctx context.Context, keys, ids []string, fn func(w *Work) error) error {
	for attempt := 1; ; attempt++ {
		entries, err := e.runOnce(ctx, keys, ids, fn)
		if err == nil {
			e.publish(ctx, entries)
			return nil
		}
		if !domain.IsRetryable(err) || attempt > e.maxRetries {
			return err
		}
		e.log.Warn().Err(err).Int("attempt", attempt).Strs("keys", keys).
			Msg("conflicto de concurrencia, reintentando")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * 5 * time.Millisecond):
		}
	}
}

func (e *Engine) runOnce(ctx context.Context, keys, ids []string, fn func(w *Work) error) ([]*entity.MovementEntry, error) {
	unlock, err := e.locker.Lock(ctx, keys)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var entries []*entity.MovementEntry
	err = e.tx.Run(ctx, func(repos Repos) error {
		w := &Work{ctx: ctx, Repos: repos, now: e.now(), units: make(map[string]*entity.Unit, len(ids))}
		if len(ids) > 0 {
			units, err := repos.Units.GetForUpdate(ctx, ids)
			if err != nil {
				return fmt.Errorf("lock units: %w", err)
			}
			for _, u := range units {
				w.units[u.ID] = u
			}
		}
		if err := fn(w); err != nil {
			return err
		}
		entries = w.entries
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// publish es best effort: el commit ya ocurrió y el libro mayor es la fuente de verdad.
func (e *Engine) publish(ctx context.Context, entries []*entity.MovementEntry) {
	if e.publisher == nil || len(entries) == 0 {
		return
	}
	if err := e.publisher.Publish(ctx, entries); err != nil {
		e.log.Warn().Err(err).Int("entries", len(entries)).Msg("no se pudieron publicar movimientos")
	}
}

func sortedKeys(keys []string) []string {
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if k != "" {
			out = append(out, k)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}
