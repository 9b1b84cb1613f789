package postgres

import (
	"context"
	"fmt"
	"iter"

	"github.com/google/uuid"

	"github.com/jhoicas/inventario-seriales/internal/domain"
	"github.com/jhoicas/inventario-seriales/internal/domain/entity"
	"github.com/jhoicas/inventario-seriales/internal/domain/repository"
)

var _ repository.MovementRepository = (*MovementRepo)(nil)

// MovementRepo libro mayor de unidades, solo inserción.
type MovementRepo struct {
	q Querier
}

// NewMovementRepository construye el adaptador. Pasar pool o tx (Querier).
func NewMovementRepository(q Querier) *MovementRepo {
	return &MovementRepo{q: q}
}

// Append inserta la entrada con la siguiente secuencia de la unidad. La fila de la unidad
// está bloqueada por la tx; el índice único (unit_id, sequence) cubre el resto.
func (r *MovementRepo) Append(ctx context.Context, m *entity.MovementEntry) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	query := `
		INSERT INTO unit_movements (id, unit_id, serial_number, product_id, location_id, type, quantity,
			unit_cost, reference_type, reference_number, notes, performed_by, from_status, to_status,
			sequence, created_at)
		SELECT $1::text, $2::text, $3::text, $4::text, $5::text, $6::text, $7::int, $8::numeric,
			$9::text, $10::text, $11::text, $12::text, $13::text, $14::text,
			COALESCE(MAX(sequence), 0) + 1, $15::timestamptz
		FROM unit_movements WHERE unit_id = $2
		RETURNING sequence`
	err := r.q.QueryRow(ctx, query,
		m.ID, m.UnitID, m.SerialNumber, m.ProductID, m.LocationID, m.Type, m.Quantity,
		m.UnitCost, m.ReferenceType, m.ReferenceNumber, m.Notes, m.PerformedBy, m.FromStatus, m.ToStatus,
		m.CreatedAt,
	).Scan(&m.Sequence)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("movement sequence %s: %w", m.SerialNumber, domain.ErrConcurrentModification)
		}
		return fmt.Errorf("append movement: %w", err)
	}
	return nil
}

// History recorre los movimientos de la unidad por secuencia. Las filas se leen bajo
// demanda; no se debe usar el mismo Querier hasta terminar de iterar.
func (r *MovementRepo) History(ctx context.Context, unitID string) iter.Seq2[*entity.MovementEntry, error] {
	return func(yield func(*entity.MovementEntry, error) bool) {
		rows, err := r.q.Query(ctx, `
			SELECT id, unit_id, serial_number, product_id, location_id, type, quantity, unit_cost,
				reference_type, reference_number, notes, performed_by, from_status, to_status,
				sequence, created_at
			FROM unit_movements WHERE unit_id = $1 ORDER BY sequence`, unitID)
		if err != nil {
			yield(nil, fmt.Errorf("list movements: %w", err))
			return
		}
		defer rows.Close()
		for rows.Next() {
			var m entity.MovementEntry
			if err := rows.Scan(
				&m.ID, &m.UnitID, &m.SerialNumber, &m.ProductID, &m.LocationID, &m.Type, &m.Quantity,
				&m.UnitCost, &m.ReferenceType, &m.ReferenceNumber, &m.Notes, &m.PerformedBy,
				&m.FromStatus, &m.ToStatus, &m.Sequence, &m.CreatedAt,
			); err != nil {
				yield(nil, fmt.Errorf("scan movement: %w", err))
				return
			}
			if !yield(&m, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(nil, fmt.Errorf("iterate movements: %w", err))
		}
	}
}
