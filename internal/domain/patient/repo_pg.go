package patient

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medisched/medisched/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const patientCols = `p.id, p.user_id, p.name, u.email, p.phone, p.birth_date, u.active,
	p.profile_completed, p.consecutive_no_shows, p.is_blocked, p.blocked_at, p.blocked_reason,
	p.created_at, p.updated_at`

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(&p.ID, &p.UserID, &p.Name, &p.Email, &p.Phone, &p.BirthDate, &p.UserActive,
		&p.ProfileCompleted, &p.ConsecutiveNoShows, &p.IsBlocked, &p.BlockedAt, &p.BlockedReason,
		&p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &p, err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return scanPatient(r.conn(ctx).QueryRow(ctx, `
		SELECT `+patientCols+`
		FROM patients p JOIN users u ON u.id = p.user_id
		WHERE p.id = $1`, id))
}

func (r *repoPG) List(ctx context.Context, onlyBlocked bool, limit, offset int) ([]*Patient, int, error) {
	where := ``
	if onlyBlocked {
		where = ` WHERE p.is_blocked`
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM patients p JOIN users u ON u.id = p.user_id`+where).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+patientCols+`
		FROM patients p JOIN users u ON u.id = p.user_id`+where+`
		ORDER BY p.name ASC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, p)
	}
	return items, total, rows.Err()
}

func (r *repoPG) UpdateReliability(ctx context.Context, p *Patient) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE patients SET consecutive_no_shows=$2, is_blocked=$3, blocked_at=$4, blocked_reason=$5,
			updated_at=NOW()
		WHERE id = $1`,
		p.ID, p.ConsecutiveNoShows, p.IsBlocked, p.BlockedAt, p.BlockedReason)
	return err
}
