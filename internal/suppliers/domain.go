// Package suppliers manages the supplier records of the supply chain and
// their reported emissions.
package suppliers

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-carbon/internal/platform/httpx"
)

// State is the lifecycle of a supplier record. Deletion archives.
type State string

const (
	StateActive   State = "active"
	StateArchived State = "archived"
)

// Valid reports whether s is a known state.
func (s State) Valid() bool { return s == StateActive || s == StateArchived }

// ConnectionStatus tracks whether the supplier shares data through the platform.
type ConnectionStatus string

const (
	NotConnected ConnectionStatus = "not-connected"
	Invited      ConnectionStatus = "invited"
	Connected    ConnectionStatus = "connected"
	Disconnected ConnectionStatus = "disconnected"
)

// Valid reports whether c is a known connection status.
func (c ConnectionStatus) Valid() bool {
	switch c {
	case NotConnected, Invited, Connected, Disconnected:
		return true
	}
	return false
}

// RelationshipTypes lists the accepted relationship kinds.
var RelationshipTypes = []string{
	"Direct Supplier", "Transportation", "IT Services", "Materials",
	"Manufacturing", "Energy Provider", "Consulting", "Other",
}

// Document is the caller-editable part of a supplier record.
type Document struct {
	Company          Company          `json:"company"`
	ContactInfo      ContactInfo      `json:"contactInfo"`
	Relationship     Relationship     `json:"relationship"`
	Industry         Industry         `json:"industry"`
	Location         Location         `json:"location"`
	EmissionsData    EmissionsData    `json:"emissionsData"`
	ConnectionStatus ConnectionStatus `json:"connectionStatus" validate:"omitempty,oneof=not-connected invited connected disconnected"`
	PlatformData     PlatformData     `json:"platformData"`
	Performance      Performance      `json:"performance"`
	RiskAssessment   RiskAssessment   `json:"riskAssessment"`
	Documents        []Attachment     `json:"documents"`
	Notes            string           `json:"notes,omitempty"`
}

type Company struct {
	Name               string `json:"name" validate:"required,max=100"`
	RegistrationNumber string `json:"registrationNumber,omitempty"`
	Website            string `json:"website,omitempty"`
	Logo               string `json:"logo,omitempty"`
}

type ContactInfo struct {
	PrimaryContact Contact `json:"primaryContact"`
	Address        Address `json:"address"`
}

type Contact struct {
	Name     string `json:"name,omitempty"`
	Email    string `json:"email,omitempty" validate:"omitempty,email"`
	Phone    string `json:"phone,omitempty"`
	Position string `json:"position,omitempty"`
}

type Address struct {
	Street     string `json:"street,omitempty"`
	City       string `json:"city,omitempty"`
	State      string `json:"state,omitempty"`
	Country    string `json:"country,omitempty"`
	PostalCode string `json:"postalCode,omitempty"`
}

type Relationship struct {
	Type           string         `json:"type" validate:"required,oneof='Direct Supplier' Transportation 'IT Services' Materials Manufacturing 'Energy Provider' Consulting Other"`
	Tier           int            `json:"tier" validate:"omitempty,oneof=1 2 3"`
	ContractValue  ContractValue  `json:"contractValue"`
	ContractPeriod ContractPeriod `json:"contractPeriod"`
}

type ContractValue struct {
	Amount   *float64 `json:"amount,omitempty"`
	Currency string   `json:"currency"`
}

type ContractPeriod struct {
	StartDate httpx.Date `json:"startDate"`
	EndDate   httpx.Date `json:"endDate"`
}

type Industry struct {
	Sector    string `json:"sector,omitempty" validate:"omitempty,oneof=Manufacturing Technology 'Transportation & Logistics' 'Energy & Utilities' 'Materials & Mining' Construction Agriculture Services Other"`
	NAICSCode string `json:"naicsCode,omitempty"`
	SICCode   string `json:"sicCode,omitempty"`
}

type Location struct {
	Region             string       `json:"region,omitempty"`
	OperatingCountries []string     `json:"operatingCountries"`
	Headquarters       Headquarters `json:"headquarters"`
}

type Headquarters struct {
	Country string `json:"country,omitempty"`
	City    string `json:"city,omitempty"`
}

// EmissionsData holds the supplier's reported emissions. TotalCO2e is derived.
type EmissionsData struct {
	Scope1            float64    `json:"scope1" validate:"gte=0"`
	Scope2            float64    `json:"scope2" validate:"gte=0"`
	Scope3            float64    `json:"scope3" validate:"gte=0"`
	TotalCO2e         float64    `json:"totalCo2e"`
	DataSource        string     `json:"dataSource" validate:"omitempty,oneof=connected manual estimated"`
	LastUpdated       httpx.Date `json:"lastUpdated"`
	VerificationLevel string     `json:"verificationLevel" validate:"omitempty,oneof=unverified self-reported third-party-verified"`
}

type PlatformData struct {
	ConnectedUserID *uuid.UUID  `json:"connectedUserId,omitempty"`
	InvitationSent  *time.Time  `json:"invitationSent,omitempty"`
	LastSyncDate    *httpx.Date `json:"lastSyncDate,omitempty"`
	SyncFrequency   string      `json:"syncFrequency" validate:"omitempty,oneof=real-time daily weekly monthly"`
}

type Performance struct {
	EmissionsTrend      string          `json:"emissionsTrend" validate:"omitempty,oneof=improving stable declining unknown"`
	SustainabilityScore *float64        `json:"sustainabilityScore,omitempty" validate:"omitempty,min=0,max=100"`
	Certifications      []Certification `json:"certifications"`
	Targets             []Target        `json:"targets"`
}

type Certification struct {
	Name        string     `json:"name"`
	IssuingBody string     `json:"issuingBody,omitempty"`
	ValidUntil  httpx.Date `json:"validUntil"`
}

type Target struct {
	Type     string     `json:"type"`
	Target   string     `json:"target"`
	Deadline httpx.Date `json:"deadline"`
	Progress float64    `json:"progress"`
}

type RiskAssessment struct {
	EmissionRisk           string `json:"emissionRisk" validate:"omitempty,oneof=low medium high"`
	DataQualityRisk        string `json:"dataQualityRisk" validate:"omitempty,oneof=low medium high"`
	GeographicRisk         string `json:"geographicRisk" validate:"omitempty,oneof=low medium high"`
	BusinessContinuityRisk string `json:"businessContinuityRisk" validate:"omitempty,oneof=low medium high"`
}

type Attachment struct {
	Type       string     `json:"type"`
	Filename   string     `json:"filename"`
	Path       string     `json:"path,omitempty"`
	UploadDate httpx.Date `json:"uploadDate"`
}

// Supplier is a persisted supplier record.
type Supplier struct {
	ID     uuid.UUID `json:"id"`
	UserID uuid.UUID `json:"user"`
	Document
	State     State     `json:"-"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Active reports whether the supplier has not been archived.
func (s Supplier) Active() bool { return s.State == StateActive }

// MarshalJSON exposes the lifecycle state as isActive.
func (s Supplier) MarshalJSON() ([]byte, error) {
	type plain Supplier
	return json.Marshal(struct {
		plain
		IsActive bool `json:"isActive"`
	}{plain: plain(s), IsActive: s.Active()})
}

// ListFilter narrows the owner's active suppliers.
type ListFilter struct {
	ConnectionStatus *ConnectionStatus
	Tier             *int
	Type             string
	Page             int
	Limit            int
}

// Summary is the owner's supplier rollup shown on the dashboard.
type Summary struct {
	TotalSuppliers     int     `json:"totalSuppliers"`
	ConnectedSuppliers int     `json:"connectedSuppliers"`
	TotalEmissions     float64 `json:"totalSupplierEmissions"`
}

var (
	// ErrSupplierNotFound covers missing suppliers and suppliers owned by someone else.
	ErrSupplierNotFound = httpx.NewError(httpx.ErrNotFound, "Supplier not found")
)
