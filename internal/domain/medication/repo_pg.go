package medication

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/familyhealth/healthrecord/internal/platform/db"
)

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const medCols = `id, patient_id, name, dosage, frequency, instructions, start_date, end_date, status,
	prescribed_by, purpose, side_effects, recorded_by, recorded_at, is_visible_to_family`

func (r *repoPG) scanMed(row pgx.Row) (*Medication, error) {
	var m Medication
	err := row.Scan(&m.ID, &m.PatientID, &m.Name, &m.Dosage, &m.Frequency, &m.Instructions, &m.StartDate, &m.EndDate, &m.Status,
		&m.PrescribedBy, &m.Purpose, &m.SideEffects, &m.RecordedBy, &m.RecordedAt, &m.IsVisibleToFamily)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *repoPG) Create(ctx context.Context, m *Medication) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO medication (`+medCols+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`,
		m.ID, m.PatientID, m.Name, m.Dosage, m.Frequency, m.Instructions, m.StartDate, m.EndDate, m.Status,
		m.PrescribedBy, m.Purpose, m.SideEffects, m.RecordedBy, m.RecordedAt, m.IsVisibleToFamily)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Medication, error) {
	m, err := r.scanMed(r.conn(ctx).QueryRow(ctx, `SELECT `+medCols+` FROM medication WHERE id = $1`, id))
	return m, db.NotFound(err, "medication", id)
}

func (r *repoPG) Update(ctx context.Context, m *Medication) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE medication SET dosage=$2, frequency=$3, instructions=$4, end_date=$5, status=$6,
			side_effects=$7, is_visible_to_family=$8
		WHERE id = $1`,
		m.ID, m.Dosage, m.Frequency, m.Instructions, m.EndDate, m.Status,
		m.SideEffects, m.IsVisibleToFamily)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return db.NotFound(pgx.ErrNoRows, "medication", m.ID)
	}
	return nil
}

func (r *repoPG) Replace(ctx context.Context, m *Medication) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE medication SET patient_id=$2, name=$3, dosage=$4, frequency=$5, instructions=$6,
			start_date=$7, end_date=$8, status=$9, prescribed_by=$10, purpose=$11, side_effects=$12,
			recorded_by=$13, recorded_at=$14, is_visible_to_family=$15
		WHERE id = $1`,
		m.ID, m.PatientID, m.Name, m.Dosage, m.Frequency, m.Instructions, m.StartDate, m.EndDate, m.Status,
		m.PrescribedBy, m.Purpose, m.SideEffects, m.RecordedBy, m.RecordedAt, m.IsVisibleToFamily)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return db.NotFound(pgx.ErrNoRows, "medication", m.ID)
	}
	return nil
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, activeOnly bool) ([]*Medication, error) {
	q := `SELECT ` + medCols + ` FROM medication WHERE patient_id = $1`
	args := []interface{}{patientID}
	if activeOnly {
		q += ` AND status = $2`
		args = append(args, StatusActive)
	}
	q += ` ORDER BY start_date DESC`

	rows, err := r.conn(ctx).Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Medication
	for rows.Next() {
		m, err := r.scanMed(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, m)
	}
	return items, rows.Err()
}
