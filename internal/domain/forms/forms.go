package forms

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"image/png"
	"strings"

	"github.com/ehr/anesthesia/internal/drawing"
)

var (
	ErrNotFound   = errors.New("form not found")
	ErrValidation = errors.New("invalid form")
)

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// ParseKind validates a form kind name.
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds() {
		if string(k) == s {
			return k, nil
		}
	}
	return "", invalid("unknown form kind %q", s)
}

// New returns an empty form of the given kind.
func New(kind Kind) (Form, error) {
	switch kind {
	case KindConsultation:
		return &Consultation{}, nil
	case KindConsent:
		return &Consent{}, nil
	case KindIntraop:
		return &Intraop{Chart: drawing.NewDrawing(drawing.ChartSeries()...)}, nil
	case KindRecovery:
		return &Recovery{}, nil
	}
	return nil, invalid("unknown form kind %q", string(kind))
}

// Decode parses data as a form of the given kind and normalizes it. Unknown
// fields are rejected.
func Decode(kind Kind, data []byte) (Form, error) {
	f, err := New(kind)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(f); err != nil {
		return nil, invalid("decode %s: %v", kind, err)
	}
	if err := f.normalize(); err != nil {
		return nil, err
	}
	return f, nil
}

// ValidateSignature accepts "" (no signature) or a PNG data URI.
func ValidateSignature(s string) error {
	if s == "" {
		return nil
	}
	if !strings.HasPrefix(s, drawing.PNGDataURIPrefix) {
		return invalid("signature must be a %s data URI", strings.TrimSuffix(drawing.PNGDataURIPrefix, ","))
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(s, drawing.PNGDataURIPrefix))
	if err != nil {
		return invalid("signature: %v", err)
	}
	if _, err := png.DecodeConfig(bytes.NewReader(raw)); err != nil {
		return invalid("signature is not a PNG image: %v", err)
	}
	return nil
}

func (p *Patient) normalize() error {
	p.Name = strings.TrimSpace(p.Name)
	if p.WeightKg < 0 || p.HeightCm < 0 {
		return invalid("patient weight and height must not be negative")
	}
	if p.ASA != 0 && (p.ASA < 1 || p.ASA > 5) {
		return invalid("ASA class must be between 1 and 5, got %d", p.ASA)
	}
	return nil
}

func (p *Patient) apply(pp *PatientPatch) {
	if pp.BirthDate != nil {
		p.BirthDate = *pp.BirthDate
	}
	if pp.WeightKg != nil {
		p.WeightKg = *pp.WeightKg
	}
	if pp.HeightCm != nil {
		p.HeightCm = *pp.HeightCm
	}
	if pp.ASA != nil {
		p.ASA = *pp.ASA
	}
}

func notApplicable(section string, kind Kind) error {
	return invalid("%s patch does not apply to %s", section, kind)
}

func (f *Consultation) normalize() error {
	if err := f.Patient.normalize(); err != nil {
		return err
	}
	if f.Mallampati != 0 && (f.Mallampati < 1 || f.Mallampati > 4) {
		return invalid("Mallampati class must be between 1 and 4, got %d", f.Mallampati)
	}
	if f.MouthOpeningCm < 0 {
		return invalid("mouth opening must not be negative")
	}
	return ValidateSignature(f.Signature)
}

func (f *Consultation) apply(p Patch) error {
	if p.Vitals != nil {
		return notApplicable("vitals", f.Kind())
	}
	if p.Consent != nil {
		return notApplicable("consent", f.Kind())
	}
	if p.Chart != nil {
		return notApplicable("chart", f.Kind())
	}
	if p.Patient != nil {
		f.Patient.apply(p.Patient)
	}
	if p.Signature != nil {
		f.Signature = p.Signature.Image
	}
	return f.normalize()
}

func (f *Consent) normalize() error {
	if err := f.Patient.normalize(); err != nil {
		return err
	}
	if err := ValidateSignature(f.Signature); err != nil {
		return err
	}
	if f.Given && f.Signature == "" {
		return invalid("consent given without a patient signature")
	}
	return nil
}

func (f *Consent) apply(p Patch) error {
	if p.Vitals != nil {
		return notApplicable("vitals", f.Kind())
	}
	if p.Chart != nil {
		return notApplicable("chart", f.Kind())
	}
	if p.Patient != nil {
		f.Patient.apply(p.Patient)
	}
	if c := p.Consent; c != nil {
		if c.Given != nil {
			f.Given = *c.Given
		}
		if c.RisksAcknowledged != nil {
			f.RisksAcknowledged = c.RisksAcknowledged
		}
		if c.Date != nil {
			f.Date = *c.Date
		}
		if c.Guardian != nil {
			f.Guardian = *c.Guardian
		}
	}
	if p.Signature != nil {
		f.Signature = p.Signature.Image
	}
	return f.normalize()
}

// normalize fills an absent chart with the four empty series and otherwise
// requires the saved keys to match them exactly.
func (f *Intraop) normalize() error {
	if err := f.Patient.normalize(); err != nil {
		return err
	}
	for _, d := range f.Drugs {
		if strings.TrimSpace(d.Name) == "" {
			return invalid("drug name is required")
		}
		if d.Dose < 0 {
			return invalid("drug %q: dose must not be negative", d.Name)
		}
	}
	if err := f.setChart(f.Chart); err != nil {
		return err
	}
	return ValidateSignature(f.Signature)
}

func (f *Intraop) setChart(d drawing.Drawing) error {
	if len(d.IDs()) == 0 {
		f.Chart = drawing.NewDrawing(drawing.ChartSeries()...)
		return nil
	}
	m := drawing.NewModel(drawing.ChartSeries()...)
	if err := m.Restore(d); err != nil {
		return invalid("chart: %v", err)
	}
	f.Chart = m.Snapshot()
	return nil
}

func (f *Intraop) apply(p Patch) error {
	if p.Vitals != nil {
		return notApplicable("vitals", f.Kind())
	}
	if p.Consent != nil {
		return notApplicable("consent", f.Kind())
	}
	if p.Patient != nil {
		f.Patient.apply(p.Patient)
	}
	if p.Chart != nil {
		if err := f.setChart(p.Chart.Chart); err != nil {
			return err
		}
	}
	if p.Signature != nil {
		f.Signature = p.Signature.Image
	}
	return f.normalize()
}

// Score validates the items and computes Total and DischargeReady.
func (a *Aldrete) Score() error {
	items := []struct {
		name  string
		value int
	}{
		{"activity", a.Activity},
		{"respiration", a.Respiration},
		{"circulation", a.Circulation},
		{"consciousness", a.Consciousness},
		{"saturation", a.Saturation},
	}
	total := 0
	for _, it := range items {
		if it.value < 0 || it.value > 2 {
			return invalid("aldrete %s must be between 0 and 2, got %d", it.name, it.value)
		}
		total += it.value
	}
	a.Total = total
	a.DischargeReady = total >= AldreteDischargeScore
	return nil
}

func (f *Recovery) normalize() error {
	if err := f.Patient.normalize(); err != nil {
		return err
	}
	for _, v := range f.Vitals {
		if v.SpO2 < 0 || v.SpO2 > 100 {
			return invalid("SpO2 must be between 0 and 100, got %d", v.SpO2)
		}
		if v.Pain < 0 || v.Pain > 10 {
			return invalid("pain score must be between 0 and 10, got %d", v.Pain)
		}
	}
	if err := f.Aldrete.Score(); err != nil {
		return err
	}
	return ValidateSignature(f.Signature)
}

func (f *Recovery) apply(p Patch) error {
	if p.Consent != nil {
		return notApplicable("consent", f.Kind())
	}
	if p.Chart != nil {
		return notApplicable("chart", f.Kind())
	}
	if p.Patient != nil {
		f.Patient.apply(p.Patient)
	}
	if v := p.Vitals; v != nil {
		f.Vitals = append(f.Vitals, v.Append...)
		if v.Aldrete != nil {
			f.Aldrete = *v.Aldrete
		}
	}
	if p.Signature != nil {
		f.Signature = p.Signature.Image
	}
	return f.normalize()
}
