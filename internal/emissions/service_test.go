package emissions

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-carbon/internal/auth"
	"github.com/odyssey-erp/odyssey-carbon/internal/platform/httpx"
)

var fixedNow = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

func newTestService(t *testing.T) (*Service, *memStore, *countingInvalidator) {
	t.Helper()
	store := newMemStore()
	cache := &countingInvalidator{}
	svc := NewService(store, cache, httpx.NewValidator(), nil)
	svc.WithClock(func() time.Time { return fixedNow })
	return svc, store, cache
}

func float(v float64) *float64 { return &v }

func entryInput(co2e float64) EntryInput {
	return EntryInput{
		Source:               "Fleet diesel",
		Category:             "mobile-combustion",
		Amount:               float(co2e),
		CO2eAmount:           float(co2e),
		ActivityData:         float(1000),
		EmissionFactor:       float(2.68),
		EmissionFactorSource: "DEFRA",
		Period: PeriodInput{
			StartDate: httpx.NewDate(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)),
			EndDate:   httpx.NewDate(time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)),
		},
	}
}

func createRequest(scope int, co2e ...float64) CreateRequest {
	req := CreateRequest{Scope: scope, ReportingPeriod: ReportingPeriodInput{Year: 2024}}
	for _, v := range co2e {
		req.Entries = append(req.Entries, entryInput(v))
	}
	return req
}

func principal(role string) auth.Principal {
	return auth.Principal{UserID: uuid.New(), Role: role, Company: "Acme"}
}

func TestCreateDerivesTotalAndDefaults(t *testing.T) {
	svc, _, cache := newTestService(t)
	p := principal(auth.RoleUser)

	rec, err := svc.Create(context.Background(), p, createRequest(1, 120.5, 79.5))
	require.NoError(t, err)
	assert.Equal(t, 200.0, rec.TotalCO2e)
	assert.Equal(t, StatusDraft, rec.Status)
	assert.Equal(t, "Acme", rec.Company)
	assert.Equal(t, p.UserID, rec.UserID)
	assert.Equal(t, "kg", rec.Entries[0].Unit)
	assert.Equal(t, "calculated", rec.Entries[0].DataQuality)
	assert.Equal(t, "unverified", rec.Entries[0].VerificationStatus)
	assert.Equal(t, "GHG Protocol", rec.Methodology.Standard)
	assert.Equal(t, fixedNow, rec.LastModified)
	assert.Equal(t, 1, cache.bumps[p.UserID])
}

func TestCreateRejectsInvalidInput(t *testing.T) {
	svc, store, _ := newTestService(t)
	p := principal(auth.RoleUser)

	cases := map[string]func(*CreateRequest){
		"scope":        func(r *CreateRequest) { r.Scope = 4 },
		"no entries":   func(r *CreateRequest) { r.Entries = nil },
		"year too old": func(r *CreateRequest) { r.ReportingPeriod.Year = 2019 },
		"year future":  func(r *CreateRequest) { r.ReportingPeriod.Year = 2027 },
		"negative":     func(r *CreateRequest) { r.Entries[0].CO2eAmount = float(-1) },
		"factor src":   func(r *CreateRequest) { r.Entries[0].EmissionFactorSource = "Guess" },
		"period order": func(r *CreateRequest) {
			r.Entries[0].Period.EndDate = httpx.NewDate(time.Date(2023, 12, 1, 0, 0, 0, 0, time.UTC))
		},
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			req := createRequest(1, 10)
			mutate(&req)
			_, err := svc.Create(context.Background(), p, req)
			require.ErrorIs(t, err, httpx.ErrValidation)
		})
	}
	require.Empty(t, store.records)
}

func TestUpdateRecomputesTotal(t *testing.T) {
	svc, _, _ := newTestService(t)
	p := principal(auth.RoleUser)
	rec, err := svc.Create(context.Background(), p, createRequest(2, 50))
	require.NoError(t, err)

	updated, err := svc.Update(context.Background(), p, rec.ID, UpdateRequest{Entries: []EntryInput{entryInput(30), entryInput(12.25)}})
	require.NoError(t, err)
	assert.Equal(t, 42.25, updated.TotalCO2e)
	assert.Len(t, updated.Entries, 2)
	assert.Equal(t, Scope2, updated.Scope)
}

func TestPublishedRecordsAreImmutableForNonAdmins(t *testing.T) {
	svc, store, _ := newTestService(t)
	p := principal(auth.RoleManager)
	req := createRequest(1, 10)
	req.Status = string(StatusPublished)
	rec, err := svc.Create(context.Background(), p, req)
	require.NoError(t, err)

	status := string(StatusDraft)
	_, err = svc.Update(context.Background(), p, rec.ID, UpdateRequest{Status: &status})
	require.ErrorIs(t, err, ErrPublishedImmutable)
	require.ErrorIs(t, err, httpx.ErrForbidden)
	require.ErrorIs(t, svc.Delete(context.Background(), p, rec.ID), ErrPublishedUndeletable)
	require.Zero(t, store.updates)

	admin := p
	admin.Role = auth.RoleAdmin
	updated, err := svc.Update(context.Background(), admin, rec.ID, UpdateRequest{Status: &status})
	require.NoError(t, err)
	require.Equal(t, StatusDraft, updated.Status)
}

func TestStatusOnlyMovesForwardForNonAdmins(t *testing.T) {
	svc, _, _ := newTestService(t)
	p := principal(auth.RoleUser)
	rec, err := svc.Create(context.Background(), p, createRequest(1, 10))
	require.NoError(t, err)

	verified := string(StatusVerified)
	rec, err = svc.Update(context.Background(), p, rec.ID, UpdateRequest{Status: &verified})
	require.NoError(t, err)
	require.Equal(t, StatusVerified, rec.Status)

	submitted := string(StatusSubmitted)
	_, err = svc.Update(context.Background(), p, rec.ID, UpdateRequest{Status: &submitted})
	require.ErrorIs(t, err, ErrStatusRegression)
}

func TestOwnershipIsolation(t *testing.T) {
	svc, store, _ := newTestService(t)
	owner := principal(auth.RoleUser)
	other := principal(auth.RoleAdmin)
	rec, err := svc.Create(context.Background(), owner, createRequest(3, 10))
	require.NoError(t, err)

	_, err = svc.Get(context.Background(), other, rec.ID)
	require.ErrorIs(t, err, ErrRecordNotFound)
	_, err = svc.Update(context.Background(), other, rec.ID, UpdateRequest{Entries: []EntryInput{entryInput(1)}})
	require.ErrorIs(t, err, httpx.ErrNotFound)
	require.ErrorIs(t, svc.Delete(context.Background(), other, rec.ID), ErrRecordNotFound)

	list, page, err := svc.List(context.Background(), other, ListFilter{Page: 1, Limit: 10})
	require.NoError(t, err)
	require.Empty(t, list)
	require.Zero(t, page.Total)
	require.Len(t, store.records, 1)
}

func TestBulkCreateValidatesEveryRecord(t *testing.T) {
	svc, store, _ := newTestService(t)
	p := principal(auth.RoleManager)

	bad := BulkRequest{Emissions: []CreateRequest{createRequest(1, 10), createRequest(5, 10)}}
	_, err := svc.BulkCreate(context.Background(), p, bad)
	var verr *httpx.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "emissions[1].scope", verr.Fields[0].Field)
	require.Empty(t, store.records)

	recs, err := svc.BulkCreate(context.Background(), p, BulkRequest{Emissions: []CreateRequest{createRequest(1, 10, 5), createRequest(2, 7)}})
	require.NoError(t, err)
	require.Len(t, recs, 2)
	require.Equal(t, 15.0, recs[0].TotalCO2e)
	require.Equal(t, 7.0, recs[1].TotalCO2e)
}

func TestSummaryTotalsScopes(t *testing.T) {
	svc, _, _ := newTestService(t)
	p := principal(auth.RoleUser)
	for _, req := range []CreateRequest{createRequest(1, 10), createRequest(1, 5), createRequest(3, 2.5)} {
		_, err := svc.Create(context.Background(), p, req)
		require.NoError(t, err)
	}
	summary, err := svc.Summary(context.Background(), p, 2024)
	require.NoError(t, err)
	require.Equal(t, 17.5, summary.TotalEmissions)
	require.Len(t, summary.ScopeSummary, 2)
	require.Equal(t, Scope1, summary.ScopeSummary[0].Scope)
	require.Equal(t, 15.0, summary.ScopeSummary[0].TotalCO2e)
	require.Equal(t, 2, summary.ScopeSummary[0].EntryCount)
}
