package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/inventario-seriales/internal/domain"
	"github.com/jhoicas/inventario-seriales/internal/domain/entity"
	"github.com/jhoicas/inventario-seriales/internal/domain/repository"
)

var _ repository.UnitRepository = (*UnitRepo)(nil)

const unitColumns = `id, serial_number, product_id, location_id, unit_cost, status,
	counterparty_ref, external_reference, sold_at, version, created_at, updated_at`

// UnitRepo registro de unidades sobre PostgreSQL (usable con pool o tx).
type UnitRepo struct {
	q Querier
}

// NewUnitRepository construye el adaptador. Pasar pool o tx (Querier).
func NewUnitRepository(q Querier) *UnitRepo {
	return &UnitRepo{q: q}
}

// Create inserta la unidad con versión 1. Un serial existente devuelve ErrDuplicate.
func (r *UnitRepo) Create(ctx context.Context, u *entity.Unit) error {
	query := `
		INSERT INTO units (` + unitColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 1, $10, $11)`
	_, err := r.q.Exec(ctx, query,
		u.ID, u.SerialNumber, u.ProductID, u.LocationID, u.UnitCost, u.Status,
		u.CounterpartyRef, u.ExternalReference, u.SoldAt, u.CreatedAt, u.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("serial %s: %w", u.SerialNumber, domain.ErrDuplicate)
		}
		return fmt.Errorf("insert unit: %w", err)
	}
	u.Version = 1
	return nil
}

// GetByID obtiene una unidad por ID.
func (r *UnitRepo) GetByID(ctx context.Context, id string) (*entity.Unit, error) {
	u, err := scanUnit(r.q.QueryRow(ctx, `SELECT `+unitColumns+` FROM units WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get unit: %w", err)
	}
	return u, nil
}

// GetBySerial obtiene una unidad por número de serie (ya normalizado).
func (r *UnitRepo) GetBySerial(ctx context.Context, serial string) (*entity.Unit, error) {
	u, err := scanUnit(r.q.QueryRow(ctx, `SELECT `+unitColumns+` FROM units WHERE serial_number = $1`, serial))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get unit by serial: %w", err)
	}
	return u, nil
}

// GetForUpdate bloquea las filas en orden de id. Solo tiene efecto dentro de una tx.
func (r *UnitRepo) GetForUpdate(ctx context.Context, ids []string) ([]*entity.Unit, error) {
	rows, err := r.q.Query(ctx,
		`SELECT `+unitColumns+` FROM units WHERE id = ANY($1) ORDER BY id FOR UPDATE`, ids)
	if err != nil {
		return nil, fmt.Errorf("lock units: %w", err)
	}
	defer rows.Close()
	return collectUnits(rows)
}

// Update guarda la unidad si nadie la modificó desde que se leyó (misma versión) e
// incrementa u.Version. Si no, devuelve ErrConcurrentModification.
func (r *UnitRepo) Update(ctx context.Context, u *entity.Unit) error {
	query := `
		UPDATE units SET location_id = $3, unit_cost = $4, status = $5, counterparty_ref = $6,
			external_reference = $7, sold_at = $8, updated_at = $9, version = version + 1
		WHERE id = $1 AND version = $2`
	tag, err := r.q.Exec(ctx, query,
		u.ID, u.Version, u.LocationID, u.UnitCost, u.Status, u.CounterpartyRef,
		u.ExternalReference, u.SoldAt, u.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update unit: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("unit %s version %d: %w", u.SerialNumber, u.Version, domain.ErrConcurrentModification)
	}
	u.Version++
	return nil
}

// List filtra unidades, las recibidas primero al inicio.
func (r *UnitRepo) List(ctx context.Context, f repository.UnitFilter) ([]*entity.Unit, error) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.ProductID != "" {
		add("product_id = $%d", f.ProductID)
	}
	if f.LocationID != "" {
		add("location_id = $%d", f.LocationID)
	}
	if f.Status != "" {
		add("status = $%d", f.Status)
	}
	if f.ExternalReference != "" {
		add("external_reference = $%d", f.ExternalReference)
	}
	query := `SELECT ` + unitColumns + ` FROM units`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at, id"
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if f.Offset > 0 {
		args = append(args, f.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list units: %w", err)
	}
	defer rows.Close()
	return collectUnits(rows)
}

func scanUnit(row pgx.Row) (*entity.Unit, error) {
	var u entity.Unit
	err := row.Scan(
		&u.ID, &u.SerialNumber, &u.ProductID, &u.LocationID, &u.UnitCost, &u.Status,
		&u.CounterpartyRef, &u.ExternalReference, &u.SoldAt, &u.Version, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func collectUnits(rows pgx.Rows) ([]*entity.Unit, error) {
	var out []*entity.Unit
	for rows.Next() {
		u, err := scanUnit(rows)
		if err != nil {
			return nil, fmt.Errorf("scan unit: %w", err)
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate units: %w", err)
	}
	return out, nil
}
