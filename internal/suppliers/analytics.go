package suppliers

import "sort"

// NetworkNode is one node of the supply chain tree.
type NetworkNode struct {
	Name             string           `json:"name"`
	Type             string           `json:"type"`
	Relationship     string           `json:"relationship,omitempty"`
	Emissions        ScopeEmissions   `json:"emissions"`
	Total            float64          `json:"total"`
	ConnectionStatus ConnectionStatus `json:"connectionStatus,omitempty"`
	Children         []NetworkNode    `json:"children"`
}

type ScopeEmissions struct {
	Scope1 float64 `json:"scope1"`
	Scope2 float64 `json:"scope2"`
	Scope3 float64 `json:"scope3"`
}

// Network builds the tree rooted at the principal's company. The root
// carries no emissions of its own.
func Network(company string, active []Supplier) NetworkNode {
	root := NetworkNode{Name: company, Type: "root", Children: make([]NetworkNode, 0, len(active))}
	for _, s := range active {
		kind := "tier2"
		if s.Relationship.Tier == 1 {
			kind = "tier1"
		}
		root.Children = append(root.Children, NetworkNode{
			Name:         s.Company.Name,
			Type:         kind,
			Relationship: s.Relationship.Type,
			Emissions: ScopeEmissions{
				Scope1: s.EmissionsData.Scope1,
				Scope2: s.EmissionsData.Scope2,
				Scope3: s.EmissionsData.Scope3,
			},
			Total:            s.EmissionsData.TotalCO2e,
			ConnectionStatus: s.ConnectionStatus,
			Children:         []NetworkNode{},
		})
	}
	return root
}

// TypePerformance aggregates suppliers sharing a relationship type.
type TypePerformance struct {
	Type           string  `json:"type"`
	TotalSuppliers int     `json:"totalSuppliers"`
	TotalEmissions float64 `json:"totalEmissions"`
	AvgEmissions   float64 `json:"avgEmissions"`
	ConnectedCount int     `json:"connectedCount"`
	VerifiedCount  int     `json:"verifiedCount"`
}

// ConnectionGroup aggregates suppliers sharing a connection status.
type ConnectionGroup struct {
	Status         ConnectionStatus `json:"status"`
	Count          int              `json:"count"`
	TotalEmissions float64          `json:"totalEmissions"`
}

// PerformanceReport is the body of the supplier analytics endpoint.
type PerformanceReport struct {
	PerformanceByType []TypePerformance `json:"performanceByType"`
	ConnectionSummary []ConnectionGroup `json:"connectionSummary"`
}

// Analyse groups active suppliers by relationship type, sorted by total
// emissions descending, and by connection status.
func Analyse(active []Supplier) PerformanceReport {
	byType := map[string]*TypePerformance{}
	byStatus := map[ConnectionStatus]*ConnectionGroup{}
	for _, s := range active {
		tp, ok := byType[s.Relationship.Type]
		if !ok {
			tp = &TypePerformance{Type: s.Relationship.Type}
			byType[s.Relationship.Type] = tp
		}
		tp.TotalSuppliers++
		tp.TotalEmissions += s.EmissionsData.TotalCO2e
		if s.ConnectionStatus == Connected {
			tp.ConnectedCount++
		}
		if s.EmissionsData.VerificationLevel == "third-party-verified" {
			tp.VerifiedCount++
		}

		cg, ok := byStatus[s.ConnectionStatus]
		if !ok {
			cg = &ConnectionGroup{Status: s.ConnectionStatus}
			byStatus[s.ConnectionStatus] = cg
		}
		cg.Count++
		cg.TotalEmissions += s.EmissionsData.TotalCO2e
	}

	out := PerformanceReport{
		PerformanceByType: make([]TypePerformance, 0, len(byType)),
		ConnectionSummary: make([]ConnectionGroup, 0, len(byStatus)),
	}
	for _, tp := range byType {
		tp.AvgEmissions = tp.TotalEmissions / float64(tp.TotalSuppliers)
		out.PerformanceByType = append(out.PerformanceByType, *tp)
	}
	sort.Slice(out.PerformanceByType, func(i, j int) bool {
		a, b := out.PerformanceByType[i], out.PerformanceByType[j]
		if a.TotalEmissions != b.TotalEmissions {
			return a.TotalEmissions > b.TotalEmissions
		}
		return a.Type < b.Type
	})
	for _, cg := range byStatus {
		out.ConnectionSummary = append(out.ConnectionSummary, *cg)
	}
	sort.Slice(out.ConnectionSummary, func(i, j int) bool {
		return out.ConnectionSummary[i].Status < out.ConnectionSummary[j].Status
	})
	return out
}
