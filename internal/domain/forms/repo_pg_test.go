package forms

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ehr/anesthesia/internal/platform/db"
)

// newTestPool connects to TEST_DATABASE_URL and applies the migrations.
// Tests using it are skipped when the variable is unset.
func newTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := db.NewPool(ctx, url, 4, 1)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(pool.Close)

	_, filename, _, _ := runtime.Caller(0)
	dir := filepath.Join(filepath.Dir(filename), "..", "..", "..", "migrations")
	if _, err := db.NewMigrator(pool, dir).Up(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return pool
}

func uniquePatient(prefix string) string {
	return prefix + " " + uuid.New().String()[:8]
}

func TestRepoPG_UpsertGetDelete(t *testing.T) {
	pool := newTestPool(t)
	repo := NewRepoPG(pool)
	ctx := context.Background()
	patient := uniquePatient("Dupont")
	defer repo.Delete(ctx, KindConsent, patient)

	rec := &Record{Kind: KindConsent, PatientName: patient, Data: []byte(`{"given":false}`)}
	if err := repo.Upsert(ctx, rec); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if rec.ID == uuid.Nil || rec.CreatedAt.IsZero() {
		t.Fatalf("expected id and timestamps, got %+v", rec)
	}

	again := &Record{Kind: KindConsent, PatientName: patient, Data: []byte(`{"given":true}`)}
	if err := repo.Upsert(ctx, again); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if again.ID != rec.ID {
		t.Error("expected the upsert to keep the record id")
	}

	got, err := repo.Get(ctx, KindConsent, patient)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got.Data) != `{"given": true}` && string(got.Data) != `{"given":true}` {
		t.Errorf("expected last write to win, got %s", got.Data)
	}

	if err := repo.Delete(ctx, KindConsent, patient); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := repo.Get(ctx, KindConsent, patient); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected not found after delete, got %v", err)
	}
	if err := repo.Delete(ctx, KindConsent, patient); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected not found on second delete, got %v", err)
	}
}

func TestRepoPG_List(t *testing.T) {
	pool := newTestPool(t)
	repo := NewRepoPG(pool)
	ctx := context.Background()

	_, before, err := repo.List(ctx, KindRecovery, 1, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	for i := 0; i < 3; i++ {
		patient := uniquePatient("Martin")
		defer repo.Delete(ctx, KindRecovery, patient)
		if err := repo.Upsert(ctx, &Record{Kind: KindRecovery, PatientName: patient, Data: []byte(`{}`)}); err != nil {
			t.Fatalf("Upsert: %v", err)
		}
	}

	items, total, err := repo.List(ctx, KindRecovery, 2, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if total != before+3 {
		t.Errorf("expected total %d, got %d", before+3, total)
	}
	if len(items) != 2 {
		t.Errorf("expected a page of 2, got %d", len(items))
	}
}

func TestRepoPG_RollbackInTx(t *testing.T) {
	pool := newTestPool(t)
	repo := NewRepoPG(pool)
	ctx := context.Background()
	patient := uniquePatient("Bernard")

	boom := errors.New("abort")
	err := db.InTx(ctx, pool, func(ctx context.Context) error {
		if err := repo.Upsert(ctx, &Record{Kind: KindIntraop, PatientName: patient, Data: []byte(`{}`)}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected abort error, got %v", err)
	}
	if _, err := repo.Get(ctx, KindIntraop, patient); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected the insert to be rolled back, got %v", err)
	}
}

func TestService_ConcurrentPatchesInTx(t *testing.T) {
	pool := newTestPool(t)
	repo := NewRepoPG(pool)
	svc := NewService(repo)
	svc.SetTxFunc(func(ctx context.Context, fn func(context.Context) error) error {
		return db.InTx(ctx, pool, fn)
	})
	ctx := context.Background()
	patient := uniquePatient("Martin")
	defer repo.Delete(ctx, KindRecovery, patient)

	if _, err := svc.Save(ctx, KindRecovery, patient, []byte(`{}`)); err != nil {
		t.Fatalf("Save: %v", err)
	}

	const writers = 8
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.ApplyPatch(ctx, KindRecovery, patient, Patch{
				Vitals: &VitalsPatch{Append: []Vitals{{Time: fmt.Sprintf("10:%02d", i), SpO2: 97}}},
			})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("ApplyPatch: %v", err)
		}
	}

	f, err := svc.GetForm(ctx, KindRecovery, patient)
	if err != nil {
		t.Fatalf("GetForm: %v", err)
	}
	if got := len(f.(*Recovery).Vitals); got != writers {
		t.Errorf("expected %d vitals rows, got %d", writers, got)
	}
}
