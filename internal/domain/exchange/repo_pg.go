package exchange

import (
	"context"
	"fmt"
	"strings"

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

const recordCols = `id, resource_type, resource_id, version_id, patient_id, content, status,
	last_updated, source, metadata`

func scanRecord(row pgx.Row) (*Record, error) {
	var rec Record
	err := row.Scan(&rec.ID, &rec.ResourceType, &rec.ResourceID, &rec.VersionID, &rec.PatientID, &rec.Content, &rec.Status,
		&rec.LastUpdated, &rec.Source, &rec.Metadata)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *repoPG) Create(ctx context.Context, rec *Record) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO exchange_record (`+recordCols+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		rec.ID, rec.ResourceType, rec.ResourceID, rec.VersionID, rec.PatientID, rec.Content, rec.Status,
		rec.LastUpdated, rec.Source, rec.Metadata)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Record, error) {
	rec, err := scanRecord(r.conn(ctx).QueryRow(ctx, `SELECT `+recordCols+` FROM exchange_record WHERE id = $1`, id))
	return rec, db.NotFound(err, "exchange record", id)
}

func (r *repoPG) Update(ctx context.Context, rec *Record) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE exchange_record SET version_id=$2, content=$3, status=$4, last_updated=$5, metadata=$6
		WHERE id = $1`,
		rec.ID, rec.VersionID, rec.Content, rec.Status, rec.LastUpdated, rec.Metadata)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return db.NotFound(pgx.ErrNoRows, "exchange record", rec.ID)
	}
	return nil
}

func (r *repoPG) FindByResource(ctx context.Context, patientID uuid.UUID, resourceType, resourceID string) (*Record, error) {
	rec, err := scanRecord(r.conn(ctx).QueryRow(ctx, `
		SELECT `+recordCols+` FROM exchange_record
		WHERE patient_id = $1 AND resource_type = $2 AND resource_id = $3 AND status <> $4
		ORDER BY last_updated DESC LIMIT 1`,
		patientID, resourceType, resourceID, StatusDeleted))
	return rec, db.NotFound(err, "exchange record", resourceType+"/"+resourceID)
}

func (r *repoPG) Search(ctx context.Context, p SearchParams, limit, offset int) ([]*Record, int, error) {
	where := []string{}
	args := []interface{}{}
	idx := 1

	if p.PatientID != uuid.Nil {
		where = append(where, fmt.Sprintf("patient_id = $%d", idx))
		args = append(args, p.PatientID)
		idx++
	}
	if p.ResourceType != "" {
		where = append(where, fmt.Sprintf("resource_type = $%d", idx))
		args = append(args, p.ResourceType)
		idx++
	}
	if p.Status != "" {
		where = append(where, fmt.Sprintf("status = $%d", idx))
		args = append(args, p.Status)
		idx++
	}

	whereClause := ""
	if len(where) > 0 {
		whereClause = "WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, "SELECT COUNT(*) FROM exchange_record "+whereClause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	q := fmt.Sprintf("SELECT %s FROM exchange_record %s ORDER BY last_updated DESC LIMIT $%d OFFSET $%d",
		recordCols, whereClause, idx, idx+1)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, q, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, rec)
	}
	return items, total, rows.Err()
}
