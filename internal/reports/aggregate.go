package reports

import (
	"fmt"
	"time"

	"github.com/odyssey-erp/odyssey-carbon/internal/emissions"
	"github.com/odyssey-erp/odyssey-carbon/internal/suppliers"
)

// Payload is the computed content of a completed report.
type Payload struct {
	Emissions   EmissionTotals `json:"emissions"`
	Suppliers   []SupplierLine `json:"suppliers"`
	GeneratedAt time.Time      `json:"generatedAt"`
}

// EmissionTotals holds the per-scope and overall totals.
type EmissionTotals struct {
	Scope1     ScopeTotal `json:"scope1"`
	Scope2     ScopeTotal `json:"scope2"`
	Scope3     ScopeTotal `json:"scope3"`
	GrandTotal float64    `json:"grandTotal"`
}

// ScopeTotal is the bucket of one scope. Categories is reserved for a
// per-category breakdown and is currently always empty.
type ScopeTotal struct {
	Total      float64 `json:"total"`
	Categories []any   `json:"categories"`
}

// SupplierLine projects an active supplier into the payload.
type SupplierLine struct {
	Name      string                     `json:"name"`
	Type      string                     `json:"type"`
	Emissions float64                    `json:"emissions"`
	Status    suppliers.ConnectionStatus `json:"status"`
}

// Aggregate computes the report payload. records must already be filtered
// to the owner and date range; active must be the owner's active suppliers.
// A record outside scopes 1..3 fails the whole computation.
func Aggregate(records []emissions.Record, active []suppliers.Supplier, generatedAt time.Time) (Payload, error) {
	out := Payload{
		Emissions: EmissionTotals{
			Scope1: ScopeTotal{Categories: []any{}},
			Scope2: ScopeTotal{Categories: []any{}},
			Scope3: ScopeTotal{Categories: []any{}},
		},
		Suppliers:   make([]SupplierLine, 0, len(active)),
		GeneratedAt: generatedAt.UTC(),
	}
	for _, rec := range records {
		var bucket *ScopeTotal
		switch rec.Scope {
		case emissions.Scope1:
			bucket = &out.Emissions.Scope1
		case emissions.Scope2:
			bucket = &out.Emissions.Scope2
		case emissions.Scope3:
			bucket = &out.Emissions.Scope3
		default:
			return Payload{}, fmt.Errorf("reports: emission record %s has invalid scope %d", rec.ID, rec.Scope)
		}
		bucket.Total += rec.TotalCO2e
		out.Emissions.GrandTotal += rec.TotalCO2e
	}
	for _, s := range active {
		out.Suppliers = append(out.Suppliers, SupplierLine{
			Name:      s.Company.Name,
			Type:      s.Relationship.Type,
			Emissions: s.EmissionsData.TotalCO2e,
			Status:    s.ConnectionStatus,
		})
	}
	return out, nil
}
