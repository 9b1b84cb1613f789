package memory

import (
	"context"
	"fmt"
	"iter"
	"slices"
	"time"

	"github.com/jhoicas/inventario-seriales/internal/domain"
	"github.com/jhoicas/inventario-seriales/internal/domain/entity"
	"github.com/jhoicas/inventario-seriales/internal/domain/repository"
)

var (
	_ repository.UnitRepository        = (*unitRepo)(nil)
	_ repository.MovementRepository    = (*movementRepo)(nil)
	_ repository.ReservationRepository = (*reservationRepo)(nil)
	_ repository.TransferRepository    = (*transferRepo)(nil)
	_ repository.ClaimRepository       = (*claimRepo)(nil)
	_ repository.ProductRepository     = (*productRepo)(nil)
	_ repository.WarehouseRepository   = (*warehouseRepo)(nil)
)

// ── Unidades ────────────────────────────────────────────────────────────────

type unitRepo struct {
	s  *Store
	tx *tx
}

func (r *unitRepo) Create(ctx context.Context, u *entity.Unit) error {
	if r.tx == nil {
		return r.s.autocommit(func(t *tx) error { return (&unitRepo{s: r.s, tx: t}).Create(ctx, u) })
	}
	r.s.mu.RLock()
	_, taken := r.s.serials[u.SerialNumber]
	_, exists := r.s.units[u.ID]
	r.s.mu.RUnlock()
	if taken || exists {
		return fmt.Errorf("serial %s: %w", u.SerialNumber, domain.ErrDuplicate)
	}
	for _, st := range r.tx.units {
		if st.SerialNumber == u.SerialNumber {
			return fmt.Errorf("serial %s: %w", u.SerialNumber, domain.ErrDuplicate)
		}
	}
	u.Version = 1
	r.tx.units[u.ID] = u.Clone()
	r.tx.unitBase[u.ID] = createdVersion
	r.tx.newUnits = append(r.tx.newUnits, u.ID)
	return nil
}

// lookup devuelve la versión pendiente de la tx si existe, si no la confirmada.
func (r *unitRepo) lookup(id string) *entity.Unit {
	if r.tx != nil {
		if u, ok := r.tx.units[id]; ok {
			return u.Clone()
		}
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.s.units[id].Clone()
}

func (r *unitRepo) GetByID(_ context.Context, id string) (*entity.Unit, error) {
	return r.lookup(id), nil
}

func (r *unitRepo) GetBySerial(_ context.Context, serial string) (*entity.Unit, error) {
	if r.tx != nil {
		for _, u := range r.tx.units {
			if u.SerialNumber == serial {
				return u.Clone(), nil
			}
		}
	}
	r.s.mu.RLock()
	id, ok := r.s.serials[serial]
	r.s.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	return r.lookup(id), nil
}

// GetForUpdate en memoria no bloquea filas: el control de concurrencia lo hacen el
// locker y la verificación de versión al confirmar.
func (r *unitRepo) GetForUpdate(_ context.Context, ids []string) ([]*entity.Unit, error) {
	sorted := slices.Clone(ids)
	slices.Sort(sorted)
	out := make([]*entity.Unit, 0, len(sorted))
	for _, id := range slices.Compact(sorted) {
		if u := r.lookup(id); u != nil {
			out = append(out, u)
		}
	}
	return out, nil
}

func (r *unitRepo) Update(ctx context.Context, u *entity.Unit) error {
	if r.tx == nil {
		return r.s.autocommit(func(t *tx) error { return (&unitRepo{s: r.s, tx: t}).Update(ctx, u) })
	}
	next := u.Clone()
	next.Version = u.Version + 1
	err := stage(r.tx.units, r.tx.unitBase, u.ID, u.Version, next,
		func(x *entity.Unit) int64 { return x.Version },
		func() (*entity.Unit, bool) {
			r.s.mu.RLock()
			defer r.s.mu.RUnlock()
			cur, ok := r.s.units[u.ID]
			return cur, ok
		})
	if err != nil {
		return fmt.Errorf("unit %s: %w", u.SerialNumber, err)
	}
	u.Version = next.Version
	return nil
}

func (r *unitRepo) List(_ context.Context, f repository.UnitFilter) ([]*entity.Unit, error) {
	r.s.mu.RLock()
	ids := slices.Clone(r.s.order)
	r.s.mu.RUnlock()
	if r.tx != nil {
		ids = append(ids, r.tx.newUnits...)
	}
	var out []*entity.Unit
	skipped := 0
	for _, id := range ids {
		u := r.lookup(id)
		if u == nil || !matchUnit(u, f) {
			continue
		}
		if skipped < f.Offset {
			skipped++
			continue
		}
		out = append(out, u)
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out, nil
}

func matchUnit(u *entity.Unit, f repository.UnitFilter) bool {
	return (f.ProductID == "" || u.ProductID == f.ProductID) &&
		(f.LocationID == "" || u.LocationID == f.LocationID) &&
		(f.Status == "" || u.Status == f.Status) &&
		(f.ExternalReference == "" || u.ExternalReference == f.ExternalReference)
}

// ── Libro mayor ─────────────────────────────────────────────────────────────

type movementRepo struct {
	s  *Store
	tx *tx
}

func (r *movementRepo) Append(ctx context.Context, e *entity.MovementEntry) error {
	if err := r.s.takeAppendFailure(); err != nil {
		return err
	}
	if r.tx == nil {
		return r.s.autocommit(func(t *tx) error { return (&movementRepo{s: r.s, tx: t}).Append(ctx, e) })
	}
	r.s.mu.RLock()
	seq := int64(len(r.s.movements[e.UnitID]))
	r.s.mu.RUnlock()
	for _, m := range r.tx.movements {
		if m.UnitID == e.UnitID {
			seq++
		}
	}
	e.Sequence = seq + 1
	c := *e
	r.tx.movements = append(r.tx.movements, &c)
	return nil
}

func (r *movementRepo) History(_ context.Context, unitID string) iter.Seq2[*entity.MovementEntry, error] {
	r.s.mu.RLock()
	rows := slices.Clone(r.s.movements[unitID])
	r.s.mu.RUnlock()
	if r.tx != nil {
		for _, m := range r.tx.movements {
			if m.UnitID == unitID {
				rows = append(rows, m)
			}
		}
	}
	return func(yield func(*entity.MovementEntry, error) bool) {
		for _, m := range rows {
			c := *m
			if !yield(&c, nil) {
				return
			}
		}
	}
}

// ── Reservas ────────────────────────────────────────────────────────────────

type reservationRepo struct {
	s  *Store
	tx *tx
}

func (r *reservationRepo) Create(ctx context.Context, res *entity.Reservation) error {
	if r.tx == nil {
		return r.s.autocommit(func(t *tx) error { return (&reservationRepo{s: r.s, tx: t}).Create(ctx, res) })
	}
	if cur, _ := r.GetByID(ctx, res.ID); cur != nil {
		return fmt.Errorf("reservation %s: %w", res.ID, domain.ErrDuplicate)
	}
	res.Version = 1
	r.tx.reservations[res.ID] = res.Clone()
	r.tx.resBase[res.ID] = createdVersion
	return nil
}

func (r *reservationRepo) GetByID(_ context.Context, id string) (*entity.Reservation, error) {
	if r.tx != nil {
		if res, ok := r.tx.reservations[id]; ok {
			return res.Clone(), nil
		}
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.s.reservations[id].Clone(), nil
}

func (r *reservationRepo) Update(ctx context.Context, res *entity.Reservation) error {
	if r.tx == nil {
		return r.s.autocommit(func(t *tx) error { return (&reservationRepo{s: r.s, tx: t}).Update(ctx, res) })
	}
	next := res.Clone()
	next.Version = res.Version + 1
	err := stage(r.tx.reservations, r.tx.resBase, res.ID, res.Version, next,
		func(x *entity.Reservation) int64 { return x.Version },
		func() (*entity.Reservation, bool) {
			r.s.mu.RLock()
			defer r.s.mu.RUnlock()
			cur, ok := r.s.reservations[res.ID]
			return cur, ok
		})
	if err != nil {
		return fmt.Errorf("reservation %s: %w", res.ID, err)
	}
	res.Version = next.Version
	return nil
}

// ListExpired reservas ACTIVE vencidas, las que vencieron primero al inicio.
func (r *reservationRepo) ListExpired(_ context.Context, productID, locationID string, now time.Time, limit int) ([]*entity.Reservation, error) {
	r.s.mu.RLock()
	var out []*entity.Reservation
	for _, id := range sortedIDs(r.s.reservations) {
		res := r.s.reservations[id]
		if res.Status != entity.ReservationStatusActive || !res.IsExpired(now) {
			continue
		}
		if (productID != "" && res.ProductID != productID) || (locationID != "" && res.LocationID != locationID) {
			continue
		}
		out = append(out, res.Clone())
	}
	r.s.mu.RUnlock()
	slices.SortStableFunc(out, func(a, b *entity.Reservation) int { return a.ExpiresAt.Compare(b.ExpiresAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ── Traslados ───────────────────────────────────────────────────────────────

type transferRepo struct {
	s  *Store
	tx *tx
}

func (r *transferRepo) Create(ctx context.Context, b *entity.TransferBatch) error {
	if r.tx == nil {
		return r.s.autocommit(func(t *tx) error { return (&transferRepo{s: r.s, tx: t}).Create(ctx, b) })
	}
	if cur, _ := r.GetByID(ctx, b.ID); cur != nil {
		return fmt.Errorf("transfer %s: %w", b.ID, domain.ErrDuplicate)
	}
	b.Version = 1
	r.tx.transfers[b.ID] = b.Clone()
	r.tx.trBase[b.ID] = createdVersion
	return nil
}

func (r *transferRepo) GetByID(_ context.Context, id string) (*entity.TransferBatch, error) {
	if r.tx != nil {
		if b, ok := r.tx.transfers[id]; ok {
			return b.Clone(), nil
		}
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.s.transfers[id].Clone(), nil
}

func (r *transferRepo) Update(ctx context.Context, b *entity.TransferBatch) error {
	if r.tx == nil {
		return r.s.autocommit(func(t *tx) error { return (&transferRepo{s: r.s, tx: t}).Update(ctx, b) })
	}
	next := b.Clone()
	next.Version = b.Version + 1
	err := stage(r.tx.transfers, r.tx.trBase, b.ID, b.Version, next,
		func(x *entity.TransferBatch) int64 { return x.Version },
		func() (*entity.TransferBatch, bool) {
			r.s.mu.RLock()
			defer r.s.mu.RUnlock()
			cur, ok := r.s.transfers[b.ID]
			return cur, ok
		})
	if err != nil {
		return fmt.Errorf("transfer %s: %w", b.ID, err)
	}
	b.Version = next.Version
	return nil
}

// snapshot lotes confirmados con las escrituras pendientes de la tx superpuestas.
func (r *transferRepo) snapshot() []*entity.TransferBatch {
	r.s.mu.RLock()
	rows := make(map[string]*entity.TransferBatch, len(r.s.transfers))
	for id, b := range r.s.transfers {
		rows[id] = b
	}
	r.s.mu.RUnlock()
	if r.tx != nil {
		for id, b := range r.tx.transfers {
			rows[id] = b
		}
	}
	out := make([]*entity.TransferBatch, 0, len(rows))
	for _, id := range sortedIDs(rows) {
		out = append(out, rows[id].Clone())
	}
	return out
}

func (r *transferRepo) FindOpenByUnits(_ context.Context, unitIDs []string) ([]*entity.TransferBatch, error) {
	var out []*entity.TransferBatch
	for _, b := range r.snapshot() {
		if !b.Status.IsOpen() {
			continue
		}
		if slices.ContainsFunc(b.UnitIDs, func(id string) bool { return slices.Contains(unitIDs, id) }) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (r *transferRepo) ListOpenUpdatedBefore(_ context.Context, t time.Time) ([]*entity.TransferBatch, error) {
	var out []*entity.TransferBatch
	for _, b := range r.snapshot() {
		if b.Status.IsOpen() && b.UpdatedAt.Before(t) {
			out = append(out, b)
		}
	}
	slices.SortStableFunc(out, func(a, b *entity.TransferBatch) int { return a.UpdatedAt.Compare(b.UpdatedAt) })
	return out, nil
}

// ── Reclamos ────────────────────────────────────────────────────────────────

type claimRepo struct {
	s  *Store
	tx *tx
}

func (r *claimRepo) Create(ctx context.Context, c *entity.Claim) error {
	if r.tx == nil {
		return r.s.autocommit(func(t *tx) error { return (&claimRepo{s: r.s, tx: t}).Create(ctx, c) })
	}
	if cur, _ := r.GetByID(ctx, c.ID); cur != nil {
		return fmt.Errorf("claim %s: %w", c.ID, domain.ErrDuplicate)
	}
	if open, _ := r.GetOpenByUnit(ctx, c.UnitID); open != nil && c.Status == entity.ClaimStatusOpen {
		return fmt.Errorf("open claim for unit %s: %w", c.UnitID, domain.ErrDuplicate)
	}
	c.Version = 1
	r.tx.claims[c.ID] = c.Clone()
	r.tx.claimBase[c.ID] = createdVersion
	return nil
}

func (r *claimRepo) GetByID(_ context.Context, id string) (*entity.Claim, error) {
	if r.tx != nil {
		if c, ok := r.tx.claims[id]; ok {
			return c.Clone(), nil
		}
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.s.claims[id].Clone(), nil
}

func (r *claimRepo) GetOpenByUnit(_ context.Context, unitID string) (*entity.Claim, error) {
	if r.tx != nil {
		for _, c := range r.tx.claims {
			if c.UnitID == unitID && c.Status == entity.ClaimStatusOpen {
				return c.Clone(), nil
			}
		}
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, c := range r.s.claims {
		if c.UnitID != unitID || c.Status != entity.ClaimStatusOpen {
			continue
		}
		// Pendiente de cierre en esta tx.
		if r.tx != nil {
			if st, ok := r.tx.claims[c.ID]; ok && st.Status != entity.ClaimStatusOpen {
				continue
			}
		}
		return c.Clone(), nil
	}
	return nil, nil
}

func (r *claimRepo) Update(ctx context.Context, c *entity.Claim) error {
	if r.tx == nil {
		return r.s.autocommit(func(t *tx) error { return (&claimRepo{s: r.s, tx: t}).Update(ctx, c) })
	}
	next := c.Clone()
	next.Version = c.Version + 1
	err := stage(r.tx.claims, r.tx.claimBase, c.ID, c.Version, next,
		func(x *entity.Claim) int64 { return x.Version },
		func() (*entity.Claim, bool) {
			r.s.mu.RLock()
			defer r.s.mu.RUnlock()
			cur, ok := r.s.claims[c.ID]
			return cur, ok
		})
	if err != nil {
		return fmt.Errorf("claim %s: %w", c.ID, err)
	}
	c.Version = next.Version
	return nil
}

// ── Catálogo ────────────────────────────────────────────────────────────────

type productRepo struct{ s *Store }

func (r *productRepo) GetByID(_ context.Context, id string) (*entity.Product, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	p, ok := r.s.products[id]
	if !ok {
		return nil, nil
	}
	c := *p
	return &c, nil
}

type warehouseRepo struct{ s *Store }

func (r *warehouseRepo) GetByID(_ context.Context, id string) (*entity.Warehouse, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	w, ok := r.s.warehouses[id]
	if !ok {
		return nil, nil
	}
	c := *w
	return &c, nil
}
