package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/inventario-seriales/internal/domain"
	"github.com/jhoicas/inventario-seriales/internal/domain/entity"
	"github.com/jhoicas/inventario-seriales/internal/domain/repository"
)

var _ repository.ClaimRepository = (*ClaimRepo)(nil)

const claimColumns = `id, claim_number, unit_id, claim_type, reason, customer_ref, resolution, status,
	notes, processed_by, created_at, resolved_at, version`

// ClaimRepo reclamos sobre PostgreSQL. Un índice único parcial garantiza un solo
// reclamo OPEN por unidad.
type ClaimRepo struct {
	q Querier
}

// NewClaimRepository construye el adaptador. Pasar pool o tx (Querier).
func NewClaimRepository(q Querier) *ClaimRepo {
	return &ClaimRepo{q: q}
}

func (r *ClaimRepo) Create(ctx context.Context, c *entity.Claim) error {
	query := `INSERT INTO claims (` + claimColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, 1)`
	_, err := r.q.Exec(ctx, query,
		c.ID, c.ClaimNumber, c.UnitID, c.ClaimType, c.Reason, c.CustomerRef, c.Resolution, c.Status,
		c.Notes, c.ProcessedBy, c.CreatedAt, c.ResolvedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			if constraintName(err) == "claims_one_open_per_unit" {
				return fmt.Errorf("reclamo abierto para la unidad %s: %w", c.UnitID, domain.ErrDuplicate)
			}
			return fmt.Errorf("claim %s: %w", c.ClaimNumber, domain.ErrDuplicate)
		}
		return fmt.Errorf("insert claim: %w", err)
	}
	c.Version = 1
	return nil
}

func (r *ClaimRepo) GetByID(ctx context.Context, id string) (*entity.Claim, error) {
	return r.get(ctx, `SELECT `+claimColumns+` FROM claims WHERE id = $1`, id)
}

func (r *ClaimRepo) GetOpenByUnit(ctx context.Context, unitID string) (*entity.Claim, error) {
	return r.get(ctx, `SELECT `+claimColumns+` FROM claims WHERE unit_id = $1 AND status = 'OPEN'`, unitID)
}

// Update con control de versión.
func (r *ClaimRepo) Update(ctx context.Context, c *entity.Claim) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE claims SET resolution = $3, status = $4, notes = $5, processed_by = $6,
			resolved_at = $7, version = version + 1
		WHERE id = $1 AND version = $2`,
		c.ID, c.Version, c.Resolution, c.Status, c.Notes, c.ProcessedBy, c.ResolvedAt,
	)
	if err != nil {
		return fmt.Errorf("update claim: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("claim %s: %w", c.ClaimNumber, domain.ErrConcurrentModification)
	}
	c.Version++
	return nil
}

func (r *ClaimRepo) get(ctx context.Context, query string, arg string) (*entity.Claim, error) {
	var c entity.Claim
	err := r.q.QueryRow(ctx, query, arg).Scan(
		&c.ID, &c.ClaimNumber, &c.UnitID, &c.ClaimType, &c.Reason, &c.CustomerRef, &c.Resolution,
		&c.Status, &c.Notes, &c.ProcessedBy, &c.CreatedAt, &c.ResolvedAt, &c.Version,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get claim: %w", err)
	}
	return &c, nil
}
