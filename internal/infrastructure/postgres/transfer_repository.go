package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/inventario-seriales/internal/domain"
	"github.com/jhoicas/inventario-seriales/internal/domain/entity"
	"github.com/jhoicas/inventario-seriales/internal/domain/repository"
)

var _ repository.TransferRepository = (*TransferRepo)(nil)

const transferColumns = `id, source_location_id, target_location_id, unit_ids, excluded_unit_ids, status,
	performed_by, notes, requested_at, approved_at, dispatched_at, completed_at, cancelled_at,
	updated_at, version`

// TransferRepo lotes de traslado sobre PostgreSQL.
type TransferRepo struct {
	q Querier
}

// NewTransferRepository construye el adaptador. Pasar pool o tx (Querier).
func NewTransferRepository(q Querier) *TransferRepo {
	return &TransferRepo{q: q}
}

func (r *TransferRepo) Create(ctx context.Context, b *entity.TransferBatch) error {
	query := `INSERT INTO transfer_batches (` + transferColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, 1)`
	_, err := r.q.Exec(ctx, query,
		b.ID, b.SourceLocationID, b.TargetLocationID, b.UnitIDs, nonNil(b.ExcludedUnitIDs), b.Status,
		b.PerformedBy, b.Notes, b.RequestedAt, b.ApprovedAt, b.DispatchedAt, b.CompletedAt, b.CancelledAt,
		b.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("transfer %s: %w", b.ID, domain.ErrDuplicate)
		}
		return fmt.Errorf("insert transfer: %w", err)
	}
	b.Version = 1
	return nil
}

func (r *TransferRepo) GetByID(ctx context.Context, id string) (*entity.TransferBatch, error) {
	b, err := scanTransfer(r.q.QueryRow(ctx, `SELECT `+transferColumns+` FROM transfer_batches WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get transfer: %w", err)
	}
	return b, nil
}

// Update con control de versión.
func (r *TransferRepo) Update(ctx context.Context, b *entity.TransferBatch) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE transfer_batches SET unit_ids = $3, excluded_unit_ids = $4, status = $5, notes = $6,
			approved_at = $7, dispatched_at = $8, completed_at = $9, cancelled_at = $10,
			updated_at = $11, version = version + 1
		WHERE id = $1 AND version = $2`,
		b.ID, b.Version, b.UnitIDs, nonNil(b.ExcludedUnitIDs), b.Status, b.Notes,
		b.ApprovedAt, b.DispatchedAt, b.CompletedAt, b.CancelledAt, b.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update transfer: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("transfer %s: %w", b.ID, domain.ErrConcurrentModification)
	}
	b.Version++
	return nil
}

// FindOpenByUnits lotes abiertos que contienen alguna de las unidades.
func (r *TransferRepo) FindOpenByUnits(ctx context.Context, unitIDs []string) ([]*entity.TransferBatch, error) {
	return r.list(ctx, `
		SELECT `+transferColumns+` FROM transfer_batches
		WHERE status NOT IN ('COMPLETED', 'CANCELLED') AND unit_ids && $1::text[]
		ORDER BY id`, unitIDs)
}

// ListOpenUpdatedBefore lotes abiertos sin cambios desde t.
func (r *TransferRepo) ListOpenUpdatedBefore(ctx context.Context, t time.Time) ([]*entity.TransferBatch, error) {
	return r.list(ctx, `
		SELECT `+transferColumns+` FROM transfer_batches
		WHERE status NOT IN ('COMPLETED', 'CANCELLED') AND updated_at < $1
		ORDER BY updated_at`, t)
}

func (r *TransferRepo) list(ctx context.Context, query string, args ...any) ([]*entity.TransferBatch, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transfers: %w", err)
	}
	defer rows.Close()
	var out []*entity.TransferBatch
	for rows.Next() {
		b, err := scanTransfer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transfer: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func scanTransfer(row pgx.Row) (*entity.TransferBatch, error) {
	var b entity.TransferBatch
	err := row.Scan(
		&b.ID, &b.SourceLocationID, &b.TargetLocationID, &b.UnitIDs, &b.ExcludedUnitIDs, &b.Status,
		&b.PerformedBy, &b.Notes, &b.RequestedAt, &b.ApprovedAt, &b.DispatchedAt, &b.CompletedAt,
		&b.CancelledAt, &b.UpdatedAt, &b.Version,
	)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// nonNil evita NULL en columnas text[] NOT NULL.
func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
