package reports

import (
	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-carbon/internal/platform/httpx"
)

// GenerateRequest is the body of POST /reports/generate.
type GenerateRequest struct {
	ReportType  string          `json:"reportType" validate:"required"`
	Title       string          `json:"title" validate:"required,max=200"`
	Description string          `json:"description" validate:"max=1000"`
	Parameters  ParametersInput `json:"parameters"`
	Format      string          `json:"format" validate:"omitempty,oneof=pdf excel csv json"`
	Schedule    *ScheduleInput  `json:"schedule" validate:"omitempty"`
}

type ParametersInput struct {
	ReportingPeriod     PeriodInput `json:"reportingPeriod"`
	Scopes              []int       `json:"scopes" validate:"omitempty,dive,oneof=1 2 3"`
	Locations           []string    `json:"locations"`
	Suppliers           []uuid.UUID `json:"suppliers"`
	IncludeVerifiedOnly bool        `json:"includeVerifiedOnly"`
	Currency            string      `json:"currency" validate:"omitempty,len=3"`
}

type PeriodInput struct {
	StartDate httpx.Date `json:"startDate" validate:"required"`
	EndDate   httpx.Date `json:"endDate" validate:"required"`
	Year      *int       `json:"year" validate:"omitempty,reportingyear"`
	Quarter   *int       `json:"quarter" validate:"omitempty,min=1,max=4"`
}

type ScheduleInput struct {
	IsScheduled bool        `json:"isScheduled"`
	Frequency   string      `json:"frequency" validate:"omitempty,oneof=weekly monthly quarterly annually"`
	NextRun     *httpx.Date `json:"nextRun"`
	Recipients  []string    `json:"recipients" validate:"omitempty,dive,email"`
}

// ShareRequest is the body of POST /reports/{id}/share.
type ShareRequest struct {
	IsPublic   *bool    `json:"isPublic"`
	Emails     []string `json:"emails" validate:"omitempty,dive,email"`
	Permission string   `json:"permission" validate:"omitempty,oneof=view download"`
}

// check covers the rules the struct tags cannot express.
func (r GenerateRequest) check() error {
	var fields []httpx.FieldError
	if r.ReportType != "" && !Type(r.ReportType).Valid() {
		fields = append(fields, httpx.FieldError{Field: "reportType", Message: "is not a known report type"})
	}
	period := r.Parameters.ReportingPeriod
	if !period.StartDate.IsZero() && !period.EndDate.IsZero() && period.EndDate.Before(period.StartDate.Time) {
		fields = append(fields, httpx.FieldError{Field: "parameters.reportingPeriod.endDate", Message: "must not be before startDate"})
	}
	if r.Schedule != nil && r.Schedule.IsScheduled && r.Schedule.Frequency == "" {
		fields = append(fields, httpx.FieldError{Field: "schedule.frequency", Message: "is required"})
	}
	if len(fields) > 0 {
		return &httpx.ValidationError{Fields: fields}
	}
	return nil
}

func (in ParametersInput) parameters() Parameters {
	p := Parameters{
		ReportingPeriod: PeriodRange{
			StartDate: in.ReportingPeriod.StartDate,
			EndDate:   in.ReportingPeriod.EndDate,
			Year:      in.ReportingPeriod.Year,
			Quarter:   in.ReportingPeriod.Quarter,
		},
		Scopes:              in.Scopes,
		Locations:           in.Locations,
		Suppliers:           in.Suppliers,
		IncludeVerifiedOnly: in.IncludeVerifiedOnly,
		Currency:            in.Currency,
	}
	if p.Scopes == nil {
		p.Scopes = []int{}
	}
	if p.Locations == nil {
		p.Locations = []string{}
	}
	if p.Suppliers == nil {
		p.Suppliers = []uuid.UUID{}
	}
	if p.Currency == "" {
		p.Currency = "USD"
	}
	return p
}

func (in *ScheduleInput) schedule() Schedule {
	if in == nil {
		return Schedule{Recipients: []string{}, IsActive: true}
	}
	s := Schedule{
		IsScheduled: in.IsScheduled,
		Frequency:   in.Frequency,
		NextRun:     in.NextRun,
		Recipients:  in.Recipients,
		IsActive:    true,
	}
	if s.Recipients == nil {
		s.Recipients = []string{}
	}
	return s
}
