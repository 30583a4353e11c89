package forms

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/ehr/anesthesia/internal/drawing"
)

// Kind names one of the four anesthesia forms.
type Kind string

const (
	KindConsultation Kind = "consultation"
	KindConsent      Kind = "consent"
	KindIntraop      Kind = "intraop"
	KindRecovery     Kind = "recovery"
)

// Kinds returns every form kind.
func Kinds() []Kind {
	return []Kind{KindConsultation, KindConsent, KindIntraop, KindRecovery}
}

// Record is one stored form: the JSON payload of a Form keyed by kind and
// patient name. Saving the same key again overwrites the payload.
type Record struct {
	ID          uuid.UUID       `db:"id" json:"id"`
	Kind        Kind            `db:"kind" json:"kind"`
	PatientName string          `db:"patient_name" json:"patient"`
	Data        json.RawMessage `db:"data" json:"data"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at" json:"updated_at"`
}

// Patient is the identification block shared by every form.
type Patient struct {
	Name      string  `json:"name"`
	BirthDate string  `json:"birth_date,omitempty"`
	WeightKg  float64 `json:"weight_kg,omitempty"`
	HeightCm  float64 `json:"height_cm,omitempty"`
	ASA       int     `json:"asa,omitempty"`
}

// Consultation is the pre-anesthesia consultation.
type Consultation struct {
	Patient         Patient  `json:"patient"`
	Allergies       []string `json:"allergies,omitempty"`
	Medications     []string `json:"medications,omitempty"`
	PriorAnesthesia string   `json:"prior_anesthesia,omitempty"`
	Mallampati      int      `json:"mallampati,omitempty"`
	MouthOpeningCm  float64  `json:"mouth_opening_cm,omitempty"`
	Dentition       string   `json:"dentition,omitempty"`
	Procedure       string   `json:"procedure,omitempty"`
	Technique       string   `json:"technique,omitempty"`
	Signature       string   `json:"signature"`
}

// Consent is the informed consent. The patient signature is required once
// consent is given.
type Consent struct {
	Patient           Patient  `json:"patient"`
	Procedure         string   `json:"procedure,omitempty"`
	Technique         string   `json:"technique,omitempty"`
	RisksAcknowledged []string `json:"risks_acknowledged,omitempty"`
	Given             bool     `json:"given"`
	Date              string   `json:"date,omitempty"`
	Guardian          string   `json:"guardian,omitempty"`
	Signature         string   `json:"signature"`
}

// Drug is one administration on the intraoperative record.
type Drug struct {
	Name string  `json:"name"`
	Dose float64 `json:"dose"`
	Unit string  `json:"unit"`
	Time string  `json:"time,omitempty"`
}

// Intraop is the intraoperative anesthesia record. Chart carries the four
// hand-drawn vital-sign series.
type Intraop struct {
	Patient       Patient         `json:"patient"`
	Procedure     string          `json:"procedure,omitempty"`
	InductionTime string          `json:"induction_time,omitempty"`
	EndTime       string          `json:"end_time,omitempty"`
	Drugs         []Drug          `json:"drugs,omitempty"`
	Chart         drawing.Drawing `json:"chart"`
	Signature     string          `json:"signature"`
}

// Vitals is one recovery-room measurement.
type Vitals struct {
	Time        string  `json:"time"`
	Systolic    int     `json:"systolic,omitempty"`
	Diastolic   int     `json:"diastolic,omitempty"`
	HeartRate   int     `json:"heart_rate,omitempty"`
	SpO2        int     `json:"spo2,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
	Pain        int     `json:"pain,omitempty"`
}

// Aldrete is the recovery discharge score. Each item scores 0 to 2; Total
// and DischargeReady are computed on save.
type Aldrete struct {
	Activity       int  `json:"activity"`
	Respiration    int  `json:"respiration"`
	Circulation    int  `json:"circulation"`
	Consciousness  int  `json:"consciousness"`
	Saturation     int  `json:"saturation"`
	Total          int  `json:"total"`
	DischargeReady bool `json:"discharge_ready"`
}

// AldreteDischargeScore is the minimum total for discharge from recovery.
const AldreteDischargeScore = 9

// Recovery is the post-anesthesia recovery room (SSPI) monitoring sheet.
type Recovery struct {
	Patient       Patient  `json:"patient"`
	ArrivalTime   string   `json:"arrival_time,omitempty"`
	DischargeTime string   `json:"discharge_time,omitempty"`
	Vitals        []Vitals `json:"vitals,omitempty"`
	Aldrete       Aldrete  `json:"aldrete"`
	Signature     string   `json:"signature"`
}

// Form is implemented by the four form payloads.
type Form interface {
	Kind() Kind
	PatientInfo() *Patient
	normalize() error
	apply(p Patch) error
}

func (f *Consultation) Kind() Kind            { return KindConsultation }
func (f *Consultation) PatientInfo() *Patient { return &f.Patient }
func (f *Consent) Kind() Kind                 { return KindConsent }
func (f *Consent) PatientInfo() *Patient      { return &f.Patient }
func (f *Intraop) Kind() Kind                 { return KindIntraop }
func (f *Intraop) PatientInfo() *Patient      { return &f.Patient }
func (f *Recovery) Kind() Kind                { return KindRecovery }
func (f *Recovery) PatientInfo() *Patient     { return &f.Patient }

// PatientPatch updates identification fields. The name is the record key and
// cannot be patched.
type PatientPatch struct {
	BirthDate *string  `json:"birth_date,omitempty"`
	WeightKg  *float64 `json:"weight_kg,omitempty"`
	HeightCm  *float64 `json:"height_cm,omitempty"`
	ASA       *int     `json:"asa,omitempty"`
}

// VitalsPatch appends recovery measurements and replaces the Aldrete items.
type VitalsPatch struct {
	Append  []Vitals `json:"append,omitempty"`
	Aldrete *Aldrete `json:"aldrete,omitempty"`
}

// ConsentPatch records the consent decision.
type ConsentPatch struct {
	Given             *bool    `json:"given,omitempty"`
	RisksAcknowledged []string `json:"risks_acknowledged,omitempty"`
	Date              *string  `json:"date,omitempty"`
	Guardian          *string  `json:"guardian,omitempty"`
}

// ChartPatch replaces the intraoperative chart.
type ChartPatch struct {
	Chart drawing.Drawing `json:"chart"`
}

// SignaturePatch replaces the form's signature image; "" clears it.
type SignaturePatch struct {
	Image string `json:"image"`
}

// Patch is a typed partial update. Only the sections that apply to the
// target form may be set.
type Patch struct {
	Patient   *PatientPatch   `json:"patient,omitempty"`
	Vitals    *VitalsPatch    `json:"vitals,omitempty"`
	Consent   *ConsentPatch   `json:"consent,omitempty"`
	Chart     *ChartPatch     `json:"chart,omitempty"`
	Signature *SignaturePatch `json:"signature,omitempty"`
}

// Envelope is the export file format.
type Envelope struct {
	Kind       Kind            `json:"kind"`
	Patient    string          `json:"patient"`
	ExportedAt time.Time       `json:"exported_at"`
	Data       json.RawMessage `json:"data"`
}
