package appointment

import (
	"context"
	"errors"
	"fmt"
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

// PoolTxRunner is the production TxRunner backed by db.WithTx.
type PoolTxRunner struct{ Pool *pgxpool.Pool }

func (r PoolTxRunner) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return db.WithTx(ctx, r.Pool, fn)
}

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const apptCols = `id, patient_id, doctor_id, scheduled_at, duration_minutes, status, type,
	price, notes, cancel_reason, confirmed_at, cancelled_at, completed_at,
	created_by, created_at, updated_at`

func scanAppt(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(&a.ID, &a.PatientID, &a.DoctorID, &a.ScheduledAt, &a.DurationMinutes, &a.Status, &a.Type,
		&a.Price, &a.Notes, &a.CancelReason, &a.ConfirmedAt, &a.CancelledAt, &a.CompletedAt,
		&a.CreatedBy, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &a, err
}

func (r *repoPG) Create(ctx context.Context, a *Appointment) error {
	a.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO appointments (id, patient_id, doctor_id, scheduled_at, duration_minutes, status, type,
			price, notes, created_by)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		RETURNING created_at, updated_at`,
		a.ID, a.PatientID, a.DoctorID, a.ScheduledAt, a.DurationMinutes, a.Status, a.Type,
		a.Price, a.Notes, a.CreatedBy).Scan(&a.CreatedAt, &a.UpdatedAt)
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return scanAppt(r.conn(ctx).QueryRow(ctx, `SELECT `+apptCols+` FROM appointments WHERE id = $1`, id))
}

func (r *repoPG) Update(ctx context.Context, a *Appointment) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE appointments SET scheduled_at=$2, duration_minutes=$3, status=$4,
			price=$5, notes=$6, cancel_reason=$7, confirmed_at=$8, cancelled_at=$9, completed_at=$10,
			updated_at=NOW()
		WHERE id = $1`,
		a.ID, a.ScheduledAt, a.DurationMinutes, a.Status,
		a.Price, a.Notes, a.CancelReason, a.ConfirmedAt, a.CancelledAt, a.CompletedAt)
	return err
}

func (r *repoPG) List(ctx context.Context, f ListFilter, limit, offset int) ([]*Appointment, int, error) {
	where := ` WHERE 1=1`
	var args []interface{}
	idx := 1

	add := func(clause string, arg interface{}) {
		where += fmt.Sprintf(clause, idx)
		args = append(args, arg)
		idx++
	}
	if f.PatientID != nil {
		add(` AND patient_id = $%d`, *f.PatientID)
	}
	if f.DoctorID != nil {
		add(` AND doctor_id = $%d`, *f.DoctorID)
	}
	if f.Status != nil {
		add(` AND status = $%d`, *f.Status)
	}
	if f.From != nil {
		add(` AND scheduled_at >= $%d`, *f.From)
	}
	if f.To != nil {
		add(` AND scheduled_at < $%d`, *f.To)
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM appointments`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + apptCols + ` FROM appointments` + where +
		fmt.Sprintf(` ORDER BY scheduled_at DESC LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Appointment
	for rows.Next() {
		a, err := scanAppt(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, a)
	}
	return items, total, rows.Err()
}

func (r *repoPG) CountFutureActive(ctx context.Context, patientID uuid.UUID, now time.Time) (int, error) {
	var count int
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT COUNT(*) FROM appointments
		WHERE patient_id = $1 AND scheduled_at > $2 AND status IN ('pending','confirmed')`,
		patientID, now).Scan(&count)
	return count, err
}

func (r *repoPG) ExistsOverlapping(ctx context.Context, doctorID, patientID uuid.UUID, start, end time.Time, ignoreID *uuid.UUID) (bool, error) {
	// Half-open overlap: scheduled_at < end AND start < scheduled end.
	query := `
		SELECT EXISTS (
			SELECT 1 FROM appointments
			WHERE (doctor_id = $1 OR patient_id = $2)
			  AND status IN ('pending','confirmed')
			  AND scheduled_at < $4
			  AND $3 < scheduled_at + duration_minutes * interval '1 minute'`
	args := []interface{}{doctorID, patientID, start, end}
	if ignoreID != nil {
		query += ` AND id <> $5`
		args = append(args, *ignoreID)
	}
	query += `)`

	var exists bool
	err := r.conn(ctx).QueryRow(ctx, query, args...).Scan(&exists)
	return exists, err
}

func (r *repoPG) RecentOutcomes(ctx context.Context, patientID uuid.UUID, limit int) ([]*Appointment, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+apptCols+` FROM appointments
		WHERE patient_id = $1 AND status IN ('completed','no_show')
		ORDER BY scheduled_at DESC
		LIMIT $2`, patientID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*Appointment
	for rows.Next() {
		a, err := scanAppt(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, rows.Err()
}

// AcquireScheduleLocks takes transaction-scoped advisory locks on the doctor
// and patient, in a fixed order to avoid deadlock between concurrent
// bookings. They release automatically at commit or rollback.
func (r *repoPG) AcquireScheduleLocks(ctx context.Context, doctorID, patientID uuid.UUID) error {
	tx := db.TxFromContext(ctx)
	if tx == nil {
		return errors.New("schedule locks require a transaction")
	}
	for _, key := range []string{"doctor:" + doctorID.String(), "patient:" + patientID.String()} {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, key); err != nil {
			return fmt.Errorf("acquire schedule lock: %w", err)
		}
	}
	return nil
}

type logRepoPG struct{ pool *pgxpool.Pool }

func NewLogRepoPG(pool *pgxpool.Pool) LogRepository { return &logRepoPG{pool: pool} }

func (r *logRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const logCols = `id, appointment_id, action, old_status, new_status, actor_id, actor_role, detail, created_at`

func (r *logRepoPG) Append(ctx context.Context, l *Log) error {
	l.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO appointment_logs (id, appointment_id, action, old_status, new_status, actor_id, actor_role, detail)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING created_at`,
		l.ID, l.AppointmentID, l.Action, l.OldStatus, l.NewStatus, l.ActorID, l.ActorRole, l.Detail).Scan(&l.CreatedAt)
}

func (r *logRepoPG) ListByAppointment(ctx context.Context, appointmentID uuid.UUID) ([]*Log, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+logCols+` FROM appointment_logs
		WHERE appointment_id = $1
		ORDER BY created_at ASC`, appointmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*Log
	for rows.Next() {
		var l Log
		if err := rows.Scan(&l.ID, &l.AppointmentID, &l.Action, &l.OldStatus, &l.NewStatus,
			&l.ActorID, &l.ActorRole, &l.Detail, &l.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, &l)
	}
	return items, rows.Err()
}

func (r *logRepoPG) CountByAction(ctx context.Context, appointmentID uuid.UUID, action string) (int, error) {
	var count int
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT COUNT(*) FROM appointment_logs WHERE appointment_id = $1 AND action = $2`,
		appointmentID, action).Scan(&count)
	return count, err
}
