package emissions

import (
	"github.com/odyssey-erp/odyssey-carbon/internal/platform/httpx"
)

// EntryInput is the request shape of an emission entry.
type EntryInput struct {
	Source               string       `json:"source" validate:"required,max=100"`
	Category             string       `json:"category" validate:"required"`
	Amount               *float64     `json:"amount" validate:"required,gte=0"`
	Unit                 string       `json:"unit" validate:"omitempty,oneof=kg tonnes lbs"`
	CO2eAmount           *float64     `json:"co2eAmount" validate:"required,gte=0"`
	ActivityData         *float64     `json:"activityData" validate:"required"`
	EmissionFactor       *float64     `json:"emissionFactor" validate:"required"`
	EmissionFactorSource string       `json:"emissionFactorSource" validate:"required,oneof=DEFRA EPA IEA IPCC Custom"`
	Description          string       `json:"description" validate:"max=500"`
	Location             Location     `json:"location"`
	Period               PeriodInput  `json:"period"`
	DataQuality          string       `json:"dataQuality" validate:"omitempty,oneof=measured calculated estimated"`
	VerificationStatus   string       `json:"verificationStatus" validate:"omitempty,oneof=unverified internal third-party"`
	Attachments          []Attachment `json:"attachments"`
}

// PeriodInput is the activity window of an entry.
type PeriodInput struct {
	StartDate httpx.Date `json:"startDate" validate:"required"`
	EndDate   httpx.Date `json:"endDate" validate:"required"`
}

// ReportingPeriodInput is the request shape of a reporting period.
type ReportingPeriodInput struct {
	Year    int  `json:"year" validate:"required,reportingyear"`
	Quarter *int `json:"quarter" validate:"omitempty,min=1,max=4"`
	Month   *int `json:"month" validate:"omitempty,min=1,max=12"`
}

// MethodologyInput is the request shape of a methodology block.
type MethodologyInput struct {
	Standard string `json:"standard" validate:"omitempty,oneof='GHG Protocol' 'ISO 14064-1' DEFRA Custom"`
	Version  string `json:"version"`
	Notes    string `json:"notes"`
}

// CreateRequest is the body of POST /emissions.
type CreateRequest struct {
	Scope           int                  `json:"scope" validate:"required,oneof=1 2 3"`
	ReportingPeriod ReportingPeriodInput `json:"reportingPeriod"`
	Entries         []EntryInput         `json:"entries" validate:"required,min=1,dive"`
	Status          string               `json:"status" validate:"omitempty,oneof=draft submitted verified published"`
	Methodology     *MethodologyInput    `json:"methodology" validate:"omitempty"`
}

// UpdateRequest is the body of PUT /emissions/{id}. Absent fields are left
// untouched.
type UpdateRequest struct {
	Scope           *int                  `json:"scope" validate:"omitempty,oneof=1 2 3"`
	ReportingPeriod *ReportingPeriodInput `json:"reportingPeriod" validate:"omitempty"`
	Entries         []EntryInput          `json:"entries" validate:"omitempty,min=1,dive"`
	Status          *string               `json:"status" validate:"omitempty,oneof=draft submitted verified published"`
	Methodology     *MethodologyInput     `json:"methodology" validate:"omitempty"`
}

// BulkRequest is the body of POST /emissions/bulk.
type BulkRequest struct {
	Emissions []CreateRequest `json:"emissions" validate:"required,min=1,dive"`
}

func (in EntryInput) entry() Entry {
	e := Entry{
		Source:               in.Source,
		Category:             in.Category,
		Unit:                 in.Unit,
		EmissionFactorSource: in.EmissionFactorSource,
		Description:          in.Description,
		Location:             in.Location,
		Period:               Period{StartDate: in.Period.StartDate, EndDate: in.Period.EndDate},
		DataQuality:          in.DataQuality,
		VerificationStatus:   in.VerificationStatus,
		Attachments:          in.Attachments,
	}
	if in.Amount != nil {
		e.Amount = *in.Amount
	}
	if in.CO2eAmount != nil {
		e.CO2eAmount = *in.CO2eAmount
	}
	if in.ActivityData != nil {
		e.ActivityData = *in.ActivityData
	}
	if in.EmissionFactor != nil {
		e.EmissionFactor = *in.EmissionFactor
	}
	if e.Unit == "" {
		e.Unit = "kg"
	}
	if e.DataQuality == "" {
		e.DataQuality = "calculated"
	}
	if e.VerificationStatus == "" {
		e.VerificationStatus = "unverified"
	}
	if e.Attachments == nil {
		e.Attachments = []Attachment{}
	}
	return e
}

func entries(in []EntryInput) []Entry {
	out := make([]Entry, 0, len(in))
	for _, e := range in {
		out = append(out, e.entry())
	}
	return out
}

func (in ReportingPeriodInput) period() ReportingPeriod {
	return ReportingPeriod{Year: in.Year, Quarter: in.Quarter, Month: in.Month}
}

func (in *MethodologyInput) methodology() Methodology {
	m := Methodology{Standard: "GHG Protocol"}
	if in == nil {
		return m
	}
	if in.Standard != "" {
		m.Standard = in.Standard
	}
	m.Version = in.Version
	m.Notes = in.Notes
	return m
}

// checkPeriods rejects entries whose activity window ends before it starts.
func checkPeriods(in []EntryInput, prefix string) error {
	var fields []httpx.FieldError
	for i, e := range in {
		if e.Period.EndDate.Before(e.Period.StartDate.Time) {
			fields = append(fields, httpx.FieldError{
				Field:   prefix + "entries[" + itoa(i) + "].period.endDate",
				Message: "must not be before startDate",
			})
		}
	}
	if len(fields) > 0 {
		return &httpx.ValidationError{Fields: fields}
	}
	return nil
}
