// Package emissions stores emission records and owns their derived totals.
package emissions

import (
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-carbon/internal/platform/httpx"
)

// Scope is the GHG Protocol scope of a record.
type Scope int

const (
	Scope1 Scope = 1
	Scope2 Scope = 2
	Scope3 Scope = 3
)

// Valid reports whether s is one of the three GHG scopes.
func (s Scope) Valid() bool {
	return s >= Scope1 && s <= Scope3
}

// Status enumerates the review lifecycle of a record.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusSubmitted Status = "submitted"
	StatusVerified  Status = "verified"
	StatusPublished Status = "published"
)

var statusRank = map[Status]int{
	StatusDraft:     0,
	StatusSubmitted: 1,
	StatusVerified:  2,
	StatusPublished: 3,
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	_, ok := statusRank[s]
	return ok
}

// Advances reports whether moving from s to next keeps or advances the
// lifecycle.
func (s Status) Advances(next Status) bool {
	from, okFrom := statusRank[s]
	to, okTo := statusRank[next]
	return okFrom && okTo && to >= from
}

// Entry is a single measured or calculated emission line.
type Entry struct {
	Source               string       `json:"source"`
	Category             string       `json:"category"`
	Amount               float64      `json:"amount"`
	Unit                 string       `json:"unit"`
	CO2eAmount           float64      `json:"co2eAmount"`
	ActivityData         float64      `json:"activityData"`
	EmissionFactor       float64      `json:"emissionFactor"`
	EmissionFactorSource string       `json:"emissionFactorSource"`
	Description          string       `json:"description,omitempty"`
	Location             Location     `json:"location"`
	Period               Period       `json:"period"`
	DataQuality          string       `json:"dataQuality"`
	VerificationStatus   string       `json:"verificationStatus"`
	Attachments          []Attachment `json:"attachments"`
}

// Location places an entry at a facility.
type Location struct {
	Facility    string       `json:"facility,omitempty"`
	City        string       `json:"city,omitempty"`
	Country     string       `json:"country,omitempty"`
	Coordinates *Coordinates `json:"coordinates,omitempty"`
}

// Coordinates are WGS84 degrees.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Period is the activity window of an entry.
type Period struct {
	StartDate httpx.Date `json:"startDate"`
	EndDate   httpx.Date `json:"endDate"`
}

// Attachment references supporting evidence stored elsewhere.
type Attachment struct {
	Filename     string     `json:"filename"`
	OriginalName string     `json:"originalName,omitempty"`
	Path         string     `json:"path,omitempty"`
	Size         int64      `json:"size,omitempty"`
	UploadDate   httpx.Date `json:"uploadDate"`
}

// ReportingPeriod identifies the year and optionally the quarter or month
// a record reports on.
type ReportingPeriod struct {
	Year    int  `json:"year"`
	Quarter *int `json:"quarter,omitempty"`
	Month   *int `json:"month,omitempty"`
}

// Methodology names the accounting standard applied.
type Methodology struct {
	Standard string `json:"standard"`
	Version  string `json:"version,omitempty"`
	Notes    string `json:"notes,omitempty"`
}

// Record is a persisted emission document.
type Record struct {
	ID              uuid.UUID       `json:"id"`
	UserID          uuid.UUID       `json:"user"`
	Company         string          `json:"company"`
	Scope           Scope           `json:"scope"`
	ReportingPeriod ReportingPeriod `json:"reportingPeriod"`
	Entries         []Entry         `json:"entries"`
	TotalCO2e       float64         `json:"totalCo2e"`
	Status          Status          `json:"status"`
	Methodology     Methodology     `json:"methodology"`
	LastModified    time.Time       `json:"lastModified"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

// ListFilter narrows the owner's records.
type ListFilter struct {
	Scope  *Scope
	Year   *int
	Status *Status
	Page   int
	Limit  int
}

// ReportFilter selects the records feeding a report.
type ReportFilter struct {
	Start        time.Time
	End          time.Time
	Scopes       []Scope
	VerifiedOnly bool
}

// ScopeSummary aggregates an owner's records of one scope within a year.
type ScopeSummary struct {
	Scope       Scope      `json:"scope"`
	TotalCO2e   float64    `json:"totalCo2e"`
	EntryCount  int        `json:"entryCount"`
	LastUpdated *time.Time `json:"lastUpdated,omitempty"`
}

// MonthlyTotal aggregates records by scope and month. Month is nil for
// records that report on a whole year or quarter.
type MonthlyTotal struct {
	Scope     Scope   `json:"scope"`
	Month     *int    `json:"month"`
	TotalCO2e float64 `json:"totalCo2e"`
}

// Summary is the yearly rollup returned by the stats endpoint.
type Summary struct {
	Year           int            `json:"year"`
	TotalEmissions float64        `json:"totalEmissions"`
	ScopeSummary   []ScopeSummary `json:"scopeSummary"`
	MonthlyTrends  []MonthlyTotal `json:"monthlyTrends"`
}

var (
	// ErrRecordNotFound covers both missing records and records owned by someone else.
	ErrRecordNotFound = httpx.NewError(httpx.ErrNotFound, "Emission record not found")
	// ErrPublishedImmutable blocks non-admin writes to published records.
	ErrPublishedImmutable = httpx.NewError(httpx.ErrForbidden, "Cannot modify published emissions")
	// ErrPublishedUndeletable blocks non-admin deletes of published records.
	ErrPublishedUndeletable = httpx.NewError(httpx.ErrForbidden, "Cannot delete published emissions")
	// ErrStatusRegression rejects moving a record back in its lifecycle.
	ErrStatusRegression = httpx.NewError(httpx.ErrForbidden, "Emission status can only move forward")
)
