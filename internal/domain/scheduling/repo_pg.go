package scheduling

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ambulatorio/ambulatorio/internal/domain/clinic"
	"github.com/ambulatorio/ambulatorio/internal/platform/db"
)

type repoPG struct{ pool db.Pool }

func NewRepoPG(pool db.Pool) Repository { return &repoPG{pool: pool} }

const apptCols = `id, patient_id, patient_nome, patient_cognome, ambulatorio,
	to_char(data, 'YYYY-MM-DD'), ora, tipo, prestazioni, note, completed, created_at`

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var (
		a     Appointment
		procs []string
	)
	err := row.Scan(&a.ID, &a.PatientID, &a.PatientNome, &a.PatientCognome,
		(*string)(&a.Ambulatorio), &a.Data, &a.Ora, (*string)(&a.Tipo), &procs,
		&a.Note, &a.Completed, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	a.Prestazioni = make([]clinic.ProcedureCode, 0, len(procs))
	for _, p := range procs {
		a.Prestazioni = append(a.Prestazioni, clinic.ProcedureCode(p))
	}
	return &a, nil
}

func procedureStrings(codes []clinic.ProcedureCode) []string {
	out := make([]string, len(codes))
	for i, c := range codes {
		out[i] = string(c)
	}
	return out
}

// CreateChecked serialises bookings of the same slot with a transaction
// scoped advisory lock, so the count and the insert cannot interleave with a
// concurrent booking.
func (r *repoPG) CreateChecked(ctx context.Context, a *Appointment, capacity int) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, a.SlotKey()); err != nil {
			return fmt.Errorf("lock slot: %w", err)
		}

		var existing int
		err := tx.QueryRow(ctx, `
			SELECT COUNT(*) FROM appointments
			WHERE ambulatorio = $1 AND data = $2::date AND ora = $3 AND tipo = $4`,
			string(a.Ambulatorio), a.Data, a.Ora, string(a.Tipo)).Scan(&existing)
		if err != nil {
			return fmt.Errorf("count slot: %w", err)
		}
		if existing >= capacity {
			return ErrSlotFull
		}

		a.ID = uuid.New()
		err = tx.QueryRow(ctx, `
			INSERT INTO appointments (id, patient_id, patient_nome, patient_cognome, ambulatorio,
				data, ora, tipo, prestazioni, note)
			VALUES ($1,$2,$3,$4,$5,$6::date,$7,$8,$9,$10)
			RETURNING completed, created_at`,
			a.ID, a.PatientID, a.PatientNome, a.PatientCognome, string(a.Ambulatorio),
			a.Data, a.Ora, string(a.Tipo), procedureStrings(a.Prestazioni), a.Note,
		).Scan(&a.Completed, &a.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert appointment: %w", err)
		}
		return nil
	})
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return scanAppointment(r.pool.QueryRow(ctx, `SELECT `+apptCols+` FROM appointments WHERE id = $1`, id))
}

func (r *repoPG) Update(ctx context.Context, a *Appointment) error {
	tag, err := r.pool.Exec(ctx, `UPDATE appointments SET completed = $2, note = $3 WHERE id = $1`,
		a.ID, a.Completed, a.Note)
	if err != nil {
		return fmt.Errorf("update appointment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM appointments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete appointment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) List(ctx context.Context, f ListFilter) ([]*Appointment, error) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.Site != "" {
		add("ambulatorio = $%d", string(f.Site))
	}
	switch {
	case f.Date != "":
		add("data = $%d::date", f.Date)
	case f.From != "" && f.To != "":
		add("data >= $%d::date", f.From)
		add("data <= $%d::date", f.To)
	}
	if f.Type != "" {
		add("tipo = $%d", string(f.Type))
	}

	query := `SELECT ` + apptCols + ` FROM appointments`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY data, ora, created_at`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	defer rows.Close()

	items := []*Appointment{}
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, rows.Err()
}
