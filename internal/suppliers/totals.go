package suppliers

// RecomputeTotals returns s with EmissionsData.TotalCO2e set to the sum of
// the three scopes.
func RecomputeTotals(s Supplier) Supplier {
	e := &s.EmissionsData
	e.TotalCO2e = e.Scope1 + e.Scope2 + e.Scope3
	return s
}

func applyDefaults(doc *Document) {
	if doc.Relationship.Tier == 0 {
		doc.Relationship.Tier = 1
	}
	if doc.Relationship.ContractValue.Currency == "" {
		doc.Relationship.ContractValue.Currency = "USD"
	}
	if doc.EmissionsData.DataSource == "" {
		doc.EmissionsData.DataSource = "manual"
	}
	if doc.EmissionsData.VerificationLevel == "" {
		doc.EmissionsData.VerificationLevel = "unverified"
	}
	if doc.ConnectionStatus == "" {
		doc.ConnectionStatus = NotConnected
	}
	if doc.PlatformData.SyncFrequency == "" {
		doc.PlatformData.SyncFrequency = "monthly"
	}
	if doc.Performance.EmissionsTrend == "" {
		doc.Performance.EmissionsTrend = "unknown"
	}
	r := &doc.RiskAssessment
	if r.EmissionRisk == "" {
		r.EmissionRisk = "medium"
	}
	if r.DataQualityRisk == "" {
		r.DataQualityRisk = "medium"
	}
	if r.GeographicRisk == "" {
		r.GeographicRisk = "low"
	}
	if r.BusinessContinuityRisk == "" {
		r.BusinessContinuityRisk = "low"
	}
	if doc.Location.OperatingCountries == nil {
		doc.Location.OperatingCountries = []string{}
	}
	if doc.Performance.Certifications == nil {
		doc.Performance.Certifications = []Certification{}
	}
	if doc.Performance.Targets == nil {
		doc.Performance.Targets = []Target{}
	}
	if doc.Documents == nil {
		doc.Documents = []Attachment{}
	}
}
