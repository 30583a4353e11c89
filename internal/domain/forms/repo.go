package forms

import (
	"context"
)

type Repository interface {
	// Upsert inserts the record or overwrites the payload stored under the
	// same kind and patient name. ID and timestamps are filled in.
	Upsert(ctx context.Context, r *Record) error
	Get(ctx context.Context, kind Kind, patient string) (*Record, error)
	List(ctx context.Context, kind Kind, limit, offset int) ([]*Record, int, error)
	Delete(ctx context.Context, kind Kind, patient string) error
}
