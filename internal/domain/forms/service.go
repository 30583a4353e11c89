package forms

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ehr/anesthesia/internal/drawing"
	"github.com/ehr/anesthesia/internal/platform/rendercache"
)

const chartCachePrefix = "chart-png"

// TxFunc runs fn inside a transaction carried by the context it passes
// on, committing when fn returns nil.
type TxFunc func(ctx context.Context, fn func(ctx context.Context) error) error

func noTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type Service struct {
	repo   Repository
	inTx   TxFunc
	cache  rendercache.Cache
	ttl    time.Duration
	width  float64
	height float64
	logger zerolog.Logger
	now    func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{
		repo:   repo,
		inTx:   noTx,
		cache:  rendercache.NewNullCache(),
		ttl:    time.Hour,
		width:  900,
		height: 400,
		logger: zerolog.Nop(),
		now:    time.Now,
	}
}

// SetRenderCache attaches the cache used by RenderChart.
func (s *Service) SetRenderCache(c rendercache.Cache, ttl time.Duration) {
	s.cache = c
	s.ttl = ttl
}

// SetTxFunc sets how read-modify-write operations are made atomic.
func (s *Service) SetTxFunc(fn TxFunc) {
	s.inTx = fn
}

// SetChartSize sets the logical size of printed charts.
func (s *Service) SetChartSize(width, height float64) {
	s.width = width
	s.height = height
}

func (s *Service) SetLogger(logger zerolog.Logger) {
	s.logger = logger
}

func cleanPatient(patient string) (string, error) {
	patient = strings.TrimSpace(patient)
	if patient == "" {
		return "", invalid("patient name is required")
	}
	return patient, nil
}

// Save validates data as a form of the given kind and upserts it under the
// patient name. A payload without a patient name takes the one of the key;
// a different name is rejected.
func (s *Service) Save(ctx context.Context, kind Kind, patient string, data []byte) (*Record, error) {
	patient, err := cleanPatient(patient)
	if err != nil {
		return nil, err
	}
	f, err := Decode(kind, data)
	if err != nil {
		return nil, err
	}
	return s.store(ctx, patient, f)
}

func (s *Service) store(ctx context.Context, patient string, f Form) (*Record, error) {
	info := f.PatientInfo()
	switch {
	case info.Name == "":
		info.Name = patient
	case info.Name != patient:
		return nil, invalid("patient name %q does not match %q", info.Name, patient)
	}

	data, err := json.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", f.Kind(), err)
	}
	rec := &Record{Kind: f.Kind(), PatientName: patient, Data: data}
	if err := s.repo.Upsert(ctx, rec); err != nil {
		return nil, err
	}
	s.logger.Info().Str("kind", string(rec.Kind)).Str("patient", patient).Msg("form saved")
	return rec, nil
}

func (s *Service) Get(ctx context.Context, kind Kind, patient string) (*Record, error) {
	patient, err := cleanPatient(patient)
	if err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, kind, patient)
}

// GetForm loads and decodes a stored form.
func (s *Service) GetForm(ctx context.Context, kind Kind, patient string) (Form, error) {
	rec, err := s.Get(ctx, kind, patient)
	if err != nil {
		return nil, err
	}
	return Decode(kind, rec.Data)
}

func (s *Service) List(ctx context.Context, kind Kind, limit, offset int) ([]*Record, int, error) {
	return s.repo.List(ctx, kind, limit, offset)
}

func (s *Service) Delete(ctx context.Context, kind Kind, patient string) error {
	patient, err := cleanPatient(patient)
	if err != nil {
		return err
	}
	return s.repo.Delete(ctx, kind, patient)
}

// ApplyPatch applies a typed partial update to the stored form, starting
// from an empty form when none exists yet. The read and the write share
// one transaction.
func (s *Service) ApplyPatch(ctx context.Context, kind Kind, patient string, p Patch) (*Record, error) {
	patient, err := cleanPatient(patient)
	if err != nil {
		return nil, err
	}
	var rec *Record
	err = s.inTx(ctx, func(ctx context.Context) error {
		f, err := s.GetForm(ctx, kind, patient)
		if errors.Is(err, ErrNotFound) {
			f, err = New(kind)
		}
		if err != nil {
			return err
		}
		if err := f.apply(p); err != nil {
			return err
		}
		rec, err = s.store(ctx, patient, f)
		return err
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Export returns the stored form wrapped in an Envelope, indented for
// download.
func (s *Service) Export(ctx context.Context, kind Kind, patient string) ([]byte, error) {
	rec, err := s.Get(ctx, kind, patient)
	if err != nil {
		return nil, err
	}
	env := Envelope{
		Kind:       rec.Kind,
		Patient:    rec.PatientName,
		ExportedAt: s.now().UTC(),
		Data:       rec.Data,
	}
	return json.MarshalIndent(env, "", "  ")
}

// Import reads an exported Envelope, or a bare form payload, and saves it.
// The envelope kind must match kind.
func (s *Service) Import(ctx context.Context, kind Kind, r io.Reader) (*Record, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read import: %w", err)
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, invalid("import file is empty")
	}

	var head struct {
		Kind Kind            `json:"kind"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return nil, invalid("import file is not a JSON object: %v", err)
	}
	if head.Kind == "" && head.Data == nil {
		f, err := Decode(kind, raw)
		if err != nil {
			return nil, err
		}
		patient, err := cleanPatient(f.PatientInfo().Name)
		if err != nil {
			return nil, err
		}
		return s.store(ctx, patient, f)
	}

	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, invalid("import envelope: %v", err)
	}
	if env.Kind != kind {
		return nil, invalid("import file holds a %s form, not %s", env.Kind, kind)
	}
	f, err := Decode(kind, env.Data)
	if err != nil {
		return nil, err
	}
	patient := env.Patient
	if patient == "" {
		patient = f.PatientInfo().Name
	}
	patient, err = cleanPatient(patient)
	if err != nil {
		return nil, err
	}
	return s.store(ctx, patient, f)
}

// LoadChart returns the saved intraoperative chart of a patient.
func (s *Service) LoadChart(ctx context.Context, patient string) (drawing.Drawing, bool, error) {
	f, err := s.GetForm(ctx, KindIntraop, patient)
	if errors.Is(err, ErrNotFound) {
		return drawing.Drawing{}, false, nil
	}
	if err != nil {
		return drawing.Drawing{}, false, err
	}
	return f.(*Intraop).Chart, true, nil
}

// ChartLayout is the print layout used for a patient's chart.
func (s *Service) ChartLayout(f *Intraop) drawing.PrintLayout {
	l := drawing.DefaultPrintLayout(s.width, s.height)
	l.Title = f.Patient.Name
	if f.Procedure != "" {
		l.Title += " - " + f.Procedure
	}
	return l
}

// RenderChart returns the PNG of a saved intraoperative chart. Images are
// cached under a hash of the chart and its layout, so any edit to the
// chart misses the cache.
func (s *Service) RenderChart(ctx context.Context, patient string) ([]byte, error) {
	f, err := s.GetForm(ctx, KindIntraop, patient)
	if err != nil {
		return nil, err
	}
	intraop := f.(*Intraop)
	layout := s.ChartLayout(intraop)

	key, err := rendercache.Key(chartCachePrefix, intraop.Chart, layout)
	if err != nil {
		return nil, err
	}
	if data, ok, err := s.cache.Get(ctx, key); err != nil {
		s.logger.Warn().Err(err).Str("patient", patient).Msg("render cache get failed")
	} else if ok {
		return data, nil
	}

	var buf bytes.Buffer
	if err := drawing.RenderPrint(&buf, intraop.Chart, layout); err != nil {
		return nil, fmt.Errorf("render chart: %w", err)
	}
	if err := s.cache.Set(ctx, key, buf.Bytes(), s.ttl); err != nil {
		s.logger.Warn().Err(err).Str("patient", patient).Msg("render cache set failed")
	}
	return buf.Bytes(), nil
}
