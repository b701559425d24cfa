package patient

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medinexus/hms/internal/platform/db"
)

type patientRepoPG struct {
	pool *pgxpool.Pool
}

// NewPGRepo returns a repository over the tenant schemas created by
// db.CreateTenantSchema.
func NewPGRepo(pool *pgxpool.Pool) Repository {
	return &patientRepoPG{pool: pool}
}

const patientCols = `id, tenant_id, first_name, last_name, dob, gender, contact,
	patient_type, assigned_doctor_id, status, admission_date, created_at`

func (r *patientRepoPG) Create(ctx context.Context, p *Patient) error {
	dob, err := time.Parse(DateLayout, p.DOB)
	if err != nil {
		return fmt.Errorf("patient create: dob: %w", err)
	}
	admitted, err := time.Parse(DateLayout, p.AdmissionDate)
	if err != nil {
		return fmt.Errorf("patient create: admission_date: %w", err)
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}

	return db.WithTenant(ctx, r.pool, p.TenantID, func(q db.Querier) error {
		_, err := q.Exec(ctx, `
			INSERT INTO patient (`+patientCols+`)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
			p.ID, p.TenantID, p.FirstName, p.LastName, dob, string(p.Gender), p.Contact,
			string(p.Type), nullable(p.AssignedDoctorID), string(p.Status), admitted, p.CreatedAt)
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicate
		}
		if err != nil {
			return fmt.Errorf("patient create: %w", err)
		}
		return nil
	})
}

func (r *patientRepoPG) GetByID(ctx context.Context, tenantID, id string) (*Patient, error) {
	var p *Patient
	err := db.WithTenant(ctx, r.pool, tenantID, func(q db.Querier) error {
		var err error
		p, err = scanPatient(q.QueryRow(ctx,
			`SELECT `+patientCols+` FROM patient WHERE tenant_id = $1 AND id = $2`, tenantID, id))
		return err
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *patientRepoPG) List(ctx context.Context, tenantID string, f Filter, limit, offset int) ([]*Patient, int, error) {
	where, args := filterClause(tenantID, f)

	var (
		items []*Patient
		total int
	)
	err := db.WithTenant(ctx, r.pool, tenantID, func(q db.Querier) error {
		if err := q.QueryRow(ctx, `SELECT COUNT(*) FROM patient WHERE `+where, args...).Scan(&total); err != nil {
			return fmt.Errorf("count patients: %w", err)
		}

		sql := `SELECT ` + patientCols + ` FROM patient WHERE ` + where + ` ORDER BY created_at DESC, id DESC`
		pageArgs := append([]any{}, args...)
		if limit > 0 {
			pageArgs = append(pageArgs, limit)
			sql += fmt.Sprintf(" LIMIT $%d", len(pageArgs))
		}
		pageArgs = append(pageArgs, offset)
		sql += fmt.Sprintf(" OFFSET $%d", len(pageArgs))

		rows, err := q.Query(ctx, sql, pageArgs...)
		if err != nil {
			return fmt.Errorf("list patients: %w", err)
		}
		defer rows.Close()

		items = []*Patient{}
		for rows.Next() {
			p, err := scanPatient(rows)
			if err != nil {
				return err
			}
			items = append(items, p)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func filterClause(tenantID string, f Filter) (string, []any) {
	conds := []string{"tenant_id = $1"}
	args := []any{tenantID}

	if f.Type != "" {
		args = append(args, string(f.Type))
		conds = append(conds, fmt.Sprintf("patient_type = $%d", len(args)))
	}
	if f.Status != "" {
		args = append(args, string(f.Status))
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		args = append(args, "%"+escapeLike(q)+"%")
		n := len(args)
		conds = append(conds, fmt.Sprintf("(first_name ILIKE $%d OR last_name ILIKE $%d OR id ILIKE $%d)", n, n, n))
	}
	return strings.Join(conds, " AND "), args
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func scanPatient(row pgx.Row) (*Patient, error) {
	var (
		p                 Patient
		dob, admitted     time.Time
		gender, ptype, st string
		doctor            *string
	)
	err := row.Scan(&p.ID, &p.TenantID, &p.FirstName, &p.LastName, &dob, &gender, &p.Contact,
		&ptype, &doctor, &st, &admitted, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	p.DOB = dob.Format(DateLayout)
	p.AdmissionDate = admitted.Format(DateLayout)
	p.Gender = Gender(gender)
	p.Type = Type(ptype)
	p.Status = Status(st)
	if doctor != nil {
		p.AssignedDoctorID = *doctor
	}
	return &p, nil
}
