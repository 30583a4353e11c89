package forms

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ehr/anesthesia/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const formCols = `id, kind, patient_name, data, created_at, updated_at`

func (r *repoPG) scanRow(row pgx.Row) (*Record, error) {
	var rec Record
	var data []byte
	err := row.Scan(&rec.ID, &rec.Kind, &rec.PatientName, &data, &rec.CreatedAt, &rec.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	rec.Data = data
	return &rec, nil
}

func (r *repoPG) Upsert(ctx context.Context, rec *Record) error {
	row := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO anesthesia_forms (kind, patient_name, data)
		VALUES ($1, $2, $3)
		ON CONFLICT (kind, patient_name)
		DO UPDATE SET data = EXCLUDED.data, updated_at = NOW()
		RETURNING `+formCols,
		string(rec.Kind), rec.PatientName, []byte(rec.Data))
	saved, err := r.scanRow(row)
	if err != nil {
		return err
	}
	*rec = *saved
	return nil
}

// Get locks the row for the rest of the transaction when ctx carries one.
func (r *repoPG) Get(ctx context.Context, kind Kind, patient string) (*Record, error) {
	q := `SELECT ` + formCols + ` FROM anesthesia_forms WHERE kind = $1 AND patient_name = $2`
	if db.TxFromContext(ctx) != nil {
		q += ` FOR UPDATE`
	}
	return r.scanRow(r.conn(ctx).QueryRow(ctx, q, string(kind), patient))
}

func (r *repoPG) List(ctx context.Context, kind Kind, limit, offset int) ([]*Record, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM anesthesia_forms WHERE kind = $1`, string(kind)).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+formCols+` FROM anesthesia_forms WHERE kind = $1
		ORDER BY updated_at DESC, patient_name LIMIT $2 OFFSET $3`,
		string(kind), limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Record
	for rows.Next() {
		rec, err := r.scanRow(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, rec)
	}
	return items, total, rows.Err()
}

func (r *repoPG) Delete(ctx context.Context, kind Kind, patient string) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`DELETE FROM anesthesia_forms WHERE kind = $1 AND patient_name = $2`,
		string(kind), patient)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
