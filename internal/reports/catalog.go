package reports

// Type identifies one of the report kinds the platform can produce.
type Type string

// Category groups report types in the catalog.
type Category string

const (
	CategoryCore       Category = "core"
	CategoryCompliance Category = "compliance"
	CategoryManagement Category = "management"
	CategorySupplier   Category = "supplier"
	CategoryOffset     Category = "offset"
)

// CatalogEntry describes a report type.
type CatalogEntry struct {
	Type      Type     `json:"type"`
	Name      string   `json:"name"`
	Category  Category `json:"category"`
	Framework string   `json:"framework,omitempty"`
}

var catalog = []CatalogEntry{
	{Type: "annual-ghg", Name: "Annual GHG Inventory", Category: CategoryCore, Framework: "GHG Protocol"},
	{Type: "scope1", Name: "Scope 1 Direct Emissions", Category: CategoryCore, Framework: "GHG Protocol"},
	{Type: "scope2", Name: "Scope 2 Energy Indirect Emissions", Category: CategoryCore, Framework: "GHG Protocol"},
	{Type: "scope3", Name: "Scope 3 Value Chain Emissions", Category: CategoryCore, Framework: "GHG Protocol"},

	{Type: "csrd", Name: "CSRD Sustainability Statement", Category: CategoryCompliance, Framework: "CSRD"},
	{Type: "tcfd", Name: "TCFD Climate Disclosure", Category: CategoryCompliance, Framework: "TCFD"},
	{Type: "cdp", Name: "CDP Climate Questionnaire", Category: CategoryCompliance, Framework: "CDP"},
	{Type: "ghg-protocol", Name: "GHG Protocol Corporate Report", Category: CategoryCompliance, Framework: "GHG Protocol"},
	{Type: "gri-305", Name: "GRI 305 Emissions Disclosure", Category: CategoryCompliance, Framework: "GRI 305"},
	{Type: "iso-14064", Name: "ISO 14064-1 Inventory", Category: CategoryCompliance, Framework: "ISO 14064-1"},
	{Type: "sec-climate", Name: "SEC Climate Disclosure", Category: CategoryCompliance, Framework: "SEC"},

	{Type: "emission-trends", Name: "Emission Trends", Category: CategoryManagement},
	{Type: "carbon-intensity", Name: "Carbon Intensity", Category: CategoryManagement},
	{Type: "reduction-progress", Name: "Reduction Progress", Category: CategoryManagement},
	{Type: "forecasting", Name: "Emission Forecast", Category: CategoryManagement},
	{Type: "financial-impact", Name: "Financial Impact", Category: CategoryManagement},

	{Type: "supply-chain-map", Name: "Supply Chain Map", Category: CategorySupplier},
	{Type: "supplier-performance", Name: "Supplier Performance", Category: CategorySupplier},
	{Type: "connection-report", Name: "Supplier Connections", Category: CategorySupplier},

	{Type: "offset-ledger", Name: "Offset Ledger", Category: CategoryOffset},
	{Type: "net-emissions", Name: "Net Emissions", Category: CategoryOffset},
	{Type: "mitigation-projects", Name: "Mitigation Projects", Category: CategoryOffset},
}

var catalogIndex = func() map[Type]CatalogEntry {
	out := make(map[Type]CatalogEntry, len(catalog))
	for _, e := range catalog {
		out[e.Type] = e
	}
	return out
}()

// Valid reports whether t is in the catalog.
func (t Type) Valid() bool {
	_, ok := catalogIndex[t]
	return ok
}

// Describe returns the catalog entry of t.
func (t Type) Describe() (CatalogEntry, bool) {
	e, ok := catalogIndex[t]
	return e, ok
}

// CatalogGroup lists the report types of one category.
type CatalogGroup struct {
	Category Category       `json:"category"`
	Types    []CatalogEntry `json:"types"`
}

// Catalog returns the report types grouped by category in a fixed order.
func Catalog() []CatalogGroup {
	order := []Category{CategoryCore, CategoryCompliance, CategoryManagement, CategorySupplier, CategoryOffset}
	groups := make([]CatalogGroup, 0, len(order))
	for _, c := range order {
		g := CatalogGroup{Category: c}
		for _, e := range catalog {
			if e.Category == c {
				g.Types = append(g.Types, e)
			}
		}
		groups = append(groups, g)
	}
	return groups
}
