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

var _ repository.ReservationRepository = (*ReservationRepo)(nil)

const reservationColumns = `id, unit_ids, product_id, location_id, reserved_by, status,
	created_at, expires_at, released_at, version`

// ReservationRepo reservas sobre PostgreSQL.
type ReservationRepo struct {
	q Querier
}

// NewReservationRepository construye el adaptador. Pasar pool o tx (Querier).
func NewReservationRepository(q Querier) *ReservationRepo {
	return &ReservationRepo{q: q}
}

func (r *ReservationRepo) Create(ctx context.Context, res *entity.Reservation) error {
	query := `INSERT INTO reservations (` + reservationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 1)`
	_, err := r.q.Exec(ctx, query,
		res.ID, res.UnitIDs, res.ProductID, res.LocationID, res.ReservedBy, res.Status,
		res.CreatedAt, res.ExpiresAt, res.ReleasedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("reservation %s: %w", res.ID, domain.ErrDuplicate)
		}
		return fmt.Errorf("insert reservation: %w", err)
	}
	res.Version = 1
	return nil
}

func (r *ReservationRepo) GetByID(ctx context.Context, id string) (*entity.Reservation, error) {
	res, err := scanReservation(r.q.QueryRow(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get reservation: %w", err)
	}
	return res, nil
}

// Update con control de versión, igual que UnitRepo.Update.
func (r *ReservationRepo) Update(ctx context.Context, res *entity.Reservation) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE reservations SET unit_ids = $3, status = $4, released_at = $5, version = version + 1
		WHERE id = $1 AND version = $2`,
		res.ID, res.Version, res.UnitIDs, res.Status, res.ReleasedAt,
	)
	if err != nil {
		return fmt.Errorf("update reservation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("reservation %s: %w", res.ID, domain.ErrConcurrentModification)
	}
	res.Version++
	return nil
}

// ListExpired reservas ACTIVE con expires_at <= now. productID/locationID vacíos no filtran.
func (r *ReservationRepo) ListExpired(ctx context.Context, productID, locationID string, now time.Time, limit int) ([]*entity.Reservation, error) {
	rows, err := r.q.Query(ctx, `
		SELECT `+reservationColumns+` FROM reservations
		WHERE status = 'ACTIVE' AND expires_at <= $1
			AND ($2 = '' OR product_id = $2) AND ($3 = '' OR location_id = $3)
		ORDER BY expires_at LIMIT $4`,
		now, productID, locationID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list expired reservations: %w", err)
	}
	defer rows.Close()
	var out []*entity.Reservation
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reservation: %w", err)
		}
		out = append(out, res)
	}
	return out, rows.Err()
}

func scanReservation(row pgx.Row) (*entity.Reservation, error) {
	var res entity.Reservation
	err := row.Scan(
		&res.ID, &res.UnitIDs, &res.ProductID, &res.LocationID, &res.ReservedBy, &res.Status,
		&res.CreatedAt, &res.ExpiresAt, &res.ReleasedAt, &res.Version,
	)
	if err != nil {
		return nil, err
	}
	return &res, nil
}
