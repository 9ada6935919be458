package patient

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/ambulatorio/ambulatorio/internal/platform/db"
)

const uniqueViolation = "23505"

type repoPG struct{ pool db.Pool }

func NewRepoPG(pool db.Pool) Repository { return &repoPG{pool: pool} }

const patientCols = `id, nome, cognome, tipo, ambulatorio, status,
	to_char(data_nascita, 'YYYY-MM-DD'), codice_fiscale, telefono, email, medico_base,
	anamnesi, terapia_in_atto, allergie, discharge_reason, discharge_notes, suspend_notes,
	created_at, updated_at`

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(&p.ID, &p.Nome, &p.Cognome, (*string)(&p.Tipo), (*string)(&p.Ambulatorio),
		(*string)(&p.Status), &p.DataNascita, &p.CodiceFiscale, &p.Telefono, &p.Email,
		&p.MedicoBase, &p.Anamnesi, &p.TerapiaInAtto, &p.Allergie, &p.DischargeReason,
		&p.DischargeNotes, &p.SuspendNotes, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func mapWriteErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrDuplicate
	}
	return err
}

func (r *repoPG) Create(ctx context.Context, p *Patient) error {
	p.ID = uuid.New()
	err := r.pool.QueryRow(ctx, `
		INSERT INTO patients (id, nome, cognome, tipo, ambulatorio, status, data_nascita,
			codice_fiscale, telefono, email, medico_base, anamnesi, terapia_in_atto, allergie)
		VALUES ($1,$2,$3,$4,$5,$6,$7::date,$8,$9,$10,$11,$12,$13,$14)
		RETURNING created_at, updated_at`,
		p.ID, p.Nome, p.Cognome, string(p.Tipo), string(p.Ambulatorio), string(p.Status),
		p.DataNascita, p.CodiceFiscale, p.Telefono, p.Email, p.MedicoBase, p.Anamnesi,
		p.TerapiaInAtto, p.Allergie).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert patient: %w", mapWriteErr(err))
	}
	return nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return scanPatient(r.pool.QueryRow(ctx, `SELECT `+patientCols+` FROM patients WHERE id = $1`, id))
}

func (r *repoPG) Update(ctx context.Context, p *Patient) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE patients SET nome=$2, cognome=$3, tipo=$4, status=$5, data_nascita=$6::date,
			codice_fiscale=$7, telefono=$8, email=$9, medico_base=$10, anamnesi=$11,
			terapia_in_atto=$12, allergie=$13, discharge_reason=$14, discharge_notes=$15,
			suspend_notes=$16, updated_at=NOW()
		WHERE id = $1`,
		p.ID, p.Nome, p.Cognome, string(p.Tipo), string(p.Status), p.DataNascita,
		p.CodiceFiscale, p.Telefono, p.Email, p.MedicoBase, p.Anamnesi, p.TerapiaInAtto,
		p.Allergie, p.DischargeReason, p.DischargeNotes, p.SuspendNotes)
	if err != nil {
		return fmt.Errorf("update patient: %w", mapWriteErr(err))
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM patients WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete patient: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) List(ctx context.Context, f ListFilter) ([]*Patient, error) {
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
	if f.Status != "" {
		add("status = $%d", string(f.Status))
	}
	if f.Type != "" {
		add("tipo = $%d", string(f.Type))
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		args = append(args, "%"+s+"%")
		n := len(args)
		where = append(where, fmt.Sprintf("(nome ILIKE $%d OR cognome ILIKE $%d)", n, n))
	}

	query := `SELECT ` + patientCols + ` FROM patients`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY cognome, nome`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list patients: %w", err)
	}
	defer rows.Close()

	items := []*Patient{}
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	return items, rows.Err()
}
