package doctor

import (
	"context"
	"errors"
	"time"

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

const doctorCols = `d.id, d.user_id, d.name, u.email, d.specialty, d.active, u.active,
	d.created_at, d.updated_at`

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor
	err := row.Scan(&d.ID, &d.UserID, &d.Name, &d.Email, &d.Specialty, &d.Active, &d.UserActive,
		&d.CreatedAt, &d.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &d, err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	return scanDoctor(r.conn(ctx).QueryRow(ctx, `
		SELECT `+doctorCols+`
		FROM doctors d JOIN users u ON u.id = d.user_id
		WHERE d.id = $1`, id))
}

func (r *repoPG) List(ctx context.Context, onlyActive bool, limit, offset int) ([]*Doctor, int, error) {
	where := ``
	if onlyActive {
		where = ` WHERE d.active AND u.active`
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM doctors d JOIN users u ON u.id = d.user_id`+where).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+doctorCols+`
		FROM doctors d JOIN users u ON u.id = d.user_id`+where+`
		ORDER BY d.name ASC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Doctor
	for rows.Next() {
		d, err := scanDoctor(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, d)
	}
	return items, total, rows.Err()
}

type availabilityRepoPG struct{ pool *pgxpool.Pool }

func NewAvailabilityRepoPG(pool *pgxpool.Pool) AvailabilityRepository {
	return &availabilityRepoPG{pool: pool}
}

func (r *availabilityRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

func (r *availabilityRepoPG) WeeklySchedules(ctx context.Context, doctorID uuid.UUID) ([]WeeklySchedule, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, doctor_id, day_of_week, to_char(start_time, 'HH24:MI'), to_char(end_time, 'HH24:MI'), blocked
		FROM weekly_schedules
		WHERE doctor_id = $1
		ORDER BY day_of_week, start_time`, doctorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []WeeklySchedule
	for rows.Next() {
		var ws WeeklySchedule
		if err := rows.Scan(&ws.ID, &ws.DoctorID, &ws.DayOfWeek, &ws.StartTime, &ws.EndTime, &ws.Blocked); err != nil {
			return nil, err
		}
		items = append(items, ws)
	}
	return items, rows.Err()
}

func (r *availabilityRepoPG) BlocksForDate(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]ScheduleBlock, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, doctor_id, date, to_char(start_time, 'HH24:MI'), to_char(end_time, 'HH24:MI'), is_full_day, reason
		FROM schedule_blocks
		WHERE doctor_id = $1 AND date = $2::date
		ORDER BY start_time NULLS FIRST`, doctorID, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []ScheduleBlock
	for rows.Next() {
		var b ScheduleBlock
		if err := rows.Scan(&b.ID, &b.DoctorID, &b.Date, &b.StartTime, &b.EndTime, &b.IsFullDay, &b.Reason); err != nil {
			return nil, err
		}
		items = append(items, b)
	}
	return items, rows.Err()
}
