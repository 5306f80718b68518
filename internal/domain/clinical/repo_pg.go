package clinical

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/familyhealth/healthrecord/internal/platform/db"
)

// =========== Observation Repository ===========

type observationRepoPG struct {
	pool *pgxpool.Pool
}

func NewObservationRepo(pool *pgxpool.Pool) ObservationRepository {
	return &observationRepoPG{pool: pool}
}

func (r *observationRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const obsCols = `id, patient_id, observation_type, value, unit, recorded_at, recorded_by,
	category, notes, is_visible_to_family`

func (r *observationRepoPG) scanObs(row pgx.Row) (*Observation, error) {
	var o Observation
	err := row.Scan(&o.ID, &o.PatientID, &o.ObservationType, &o.Value, &o.Unit, &o.RecordedAt, &o.RecordedBy,
		&o.Category, &o.Notes, &o.IsVisibleToFamily)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *observationRepoPG) Create(ctx context.Context, o *Observation) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO clinical_observation (`+obsCols+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		o.ID, o.PatientID, o.ObservationType, o.Value, o.Unit, o.RecordedAt, o.RecordedBy,
		o.Category, o.Notes, o.IsVisibleToFamily)
	return err
}

func (r *observationRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Observation, error) {
	o, err := r.scanObs(r.conn(ctx).QueryRow(ctx, `SELECT `+obsCols+` FROM clinical_observation WHERE id = $1`, id))
	return o, db.NotFound(err, "observation", id)
}

func (r *observationRepoPG) Update(ctx context.Context, o *Observation) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE clinical_observation SET notes=$2, is_visible_to_family=$3 WHERE id = $1`,
		o.ID, o.Notes, o.IsVisibleToFamily)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return db.NotFound(pgx.ErrNoRows, "observation", o.ID)
	}
	return nil
}

func (r *observationRepoPG) Replace(ctx context.Context, o *Observation) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE clinical_observation SET patient_id=$2, observation_type=$3, value=$4, unit=$5,
			recorded_at=$6, recorded_by=$7, category=$8, notes=$9, is_visible_to_family=$10
		WHERE id = $1`,
		o.ID, o.PatientID, o.ObservationType, o.Value, o.Unit, o.RecordedAt, o.RecordedBy,
		o.Category, o.Notes, o.IsVisibleToFamily)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return db.NotFound(pgx.ErrNoRows, "observation", o.ID)
	}
	return nil
}

func (r *observationRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, from, to *time.Time) ([]*Observation, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+obsCols+` FROM clinical_observation
		WHERE patient_id = $1
		  AND ($2::timestamptz IS NULL OR recorded_at >= $2)
		  AND ($3::timestamptz IS NULL OR recorded_at <= $3)
		ORDER BY recorded_at DESC`, patientID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Observation
	for rows.Next() {
		o, err := r.scanObs(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, o)
	}
	return items, rows.Err()
}

// =========== Condition Repository ===========

type conditionRepoPG struct {
	pool *pgxpool.Pool
}

func NewConditionRepo(pool *pgxpool.Pool) ConditionRepository {
	return &conditionRepoPG{pool: pool}
}

func (r *conditionRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const condCols = `id, patient_id, name, description, onset_date, resolved_date, status, severity,
	treatment, recorded_by, recorded_at, is_visible_to_family`

func (r *conditionRepoPG) scanCond(row pgx.Row) (*Condition, error) {
	var c Condition
	err := row.Scan(&c.ID, &c.PatientID, &c.Name, &c.Description, &c.OnsetDate, &c.ResolvedDate, &c.Status, &c.Severity,
		&c.Treatment, &c.RecordedBy, &c.RecordedAt, &c.IsVisibleToFamily)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *conditionRepoPG) Create(ctx context.Context, c *Condition) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO condition (`+condCols+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		c.ID, c.PatientID, c.Name, c.Description, c.OnsetDate, c.ResolvedDate, c.Status, c.Severity,
		c.Treatment, c.RecordedBy, c.RecordedAt, c.IsVisibleToFamily)
	return err
}

func (r *conditionRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Condition, error) {
	c, err := r.scanCond(r.conn(ctx).QueryRow(ctx, `SELECT `+condCols+` FROM condition WHERE id = $1`, id))
	return c, db.NotFound(err, "condition", id)
}

func (r *conditionRepoPG) Update(ctx context.Context, c *Condition) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE condition SET description=$2, onset_date=$3, resolved_date=$4, status=$5, severity=$6,
			treatment=$7, is_visible_to_family=$8
		WHERE id = $1`,
		c.ID, c.Description, c.OnsetDate, c.ResolvedDate, c.Status, c.Severity,
		c.Treatment, c.IsVisibleToFamily)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return db.NotFound(pgx.ErrNoRows, "condition", c.ID)
	}
	return nil
}

func (r *conditionRepoPG) Replace(ctx context.Context, c *Condition) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE condition SET patient_id=$2, name=$3, description=$4, onset_date=$5, resolved_date=$6,
			status=$7, severity=$8, treatment=$9, recorded_by=$10, recorded_at=$11, is_visible_to_family=$12
		WHERE id = $1`,
		c.ID, c.PatientID, c.Name, c.Description, c.OnsetDate, c.ResolvedDate, c.Status, c.Severity,
		c.Treatment, c.RecordedBy, c.RecordedAt, c.IsVisibleToFamily)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return db.NotFound(pgx.ErrNoRows, "condition", c.ID)
	}
	return nil
}

func (r *conditionRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Condition, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+condCols+` FROM condition WHERE patient_id = $1 ORDER BY recorded_at DESC`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Condition
	for rows.Next() {
		c, err := r.scanCond(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, c)
	}
	return items, rows.Err()
}
