package reports

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-carbon/internal/emissions"
	"github.com/odyssey-erp/odyssey-carbon/internal/suppliers"
)

func emissionRecord(owner uuid.UUID, scope emissions.Scope, total float64) emissions.Record {
	return emissions.Record{
		ID:              uuid.New(),
		UserID:          owner,
		Scope:           scope,
		ReportingPeriod: emissions.ReportingPeriod{Year: 2024},
		TotalCO2e:       total,
		Status:          emissions.StatusVerified,
	}
}

func activeSupplier(owner uuid.UUID, name string, total float64) suppliers.Supplier {
	return suppliers.Supplier{
		ID:     uuid.New(),
		UserID: owner,
		Document: suppliers.Document{
			Company:          suppliers.Company{Name: name},
			Relationship:     suppliers.Relationship{Type: "Materials", Tier: 1},
			EmissionsData:    suppliers.EmissionsData{TotalCO2e: total},
			ConnectionStatus: suppliers.Connected,
		},
		State: suppliers.StateActive,
	}
}

func TestAggregateTotalsByScope(t *testing.T) {
	owner := uuid.New()
	records := []emissions.Record{
		emissionRecord(owner, emissions.Scope1, 100),
		emissionRecord(owner, emissions.Scope2, 50),
	}
	active := []suppliers.Supplier{activeSupplier(owner, "Northwind Metals", 35)}

	payload, err := Aggregate(records, active, fixedNow)
	require.NoError(t, err)
	assert.Equal(t, 100.0, payload.Emissions.Scope1.Total)
	assert.Equal(t, 50.0, payload.Emissions.Scope2.Total)
	assert.Equal(t, 0.0, payload.Emissions.Scope3.Total)
	assert.Equal(t, 150.0, payload.Emissions.GrandTotal)
	require.Len(t, payload.Suppliers, 1)
	assert.Equal(t, SupplierLine{Name: "Northwind Metals", Type: "Materials", Emissions: 35, Status: suppliers.Connected}, payload.Suppliers[0])
	assert.Equal(t, fixedNow, payload.GeneratedAt)
}

func TestAggregateIsDeterministic(t *testing.T) {
	owner := uuid.New()
	records := []emissions.Record{
		emissionRecord(owner, emissions.Scope3, 12.25),
		emissionRecord(owner, emissions.Scope1, 7.5),
	}
	active := []suppliers.Supplier{activeSupplier(owner, "A", 1), activeSupplier(owner, "B", 2)}

	first, err := Aggregate(records, active, fixedNow)
	require.NoError(t, err)
	second, err := Aggregate(records, active, fixedNow)
	require.NoError(t, err)

	a, err := json.Marshal(first)
	require.NoError(t, err)
	b, err := json.Marshal(second)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

func TestAggregateEmptyInputs(t *testing.T) {
	payload, err := Aggregate(nil, nil, time.Date(2025, 1, 1, 0, 0, 0, 0, time.FixedZone("WIB", 7*3600)))
	require.NoError(t, err)
	assert.Zero(t, payload.Emissions.GrandTotal)
	assert.Equal(t, time.UTC, payload.GeneratedAt.Location())

	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"categories":[]`)
	assert.Contains(t, string(raw), `"suppliers":[]`)
}

func TestAggregateRejectsInvalidScope(t *testing.T) {
	owner := uuid.New()
	records := []emissions.Record{emissionRecord(owner, emissions.Scope1, 10), emissionRecord(owner, emissions.Scope(4), 5)}
	_, err := Aggregate(records, nil, fixedNow)
	require.Error(t, err)
}
