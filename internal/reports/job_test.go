package reports

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-carbon/internal/emissions"
	jobmetrics "github.com/odyssey-erp/odyssey-carbon/internal/jobs"
	"github.com/odyssey-erp/odyssey-carbon/internal/suppliers"
	"github.com/odyssey-erp/odyssey-carbon/jobs"
)

type jobFixture struct {
	serviceFixture
	job       *Job
	emissions *stubEmissions
	suppliers *stubSuppliers
}

func newJobFixture(t *testing.T) jobFixture {
	t.Helper()
	f := jobFixture{serviceFixture: newServiceFixture(t), emissions: &stubEmissions{}, suppliers: &stubSuppliers{}}
	f.job = NewJob(JobConfig{
		Store:      f.store,
		Emissions:  f.emissions,
		Suppliers:  f.suppliers,
		Queue:      f.queue,
		Metrics:    jobmetrics.NewMetrics(prometheus.NewRegistry()),
		Timeout:    time.Second,
		StaleAfter: 10 * time.Minute,
	}).WithClock(func() time.Time { return fixedNow })
	return f
}

func reportTask(t *testing.T, id uuid.UUID) *asynq.Task {
	t.Helper()
	task, err := jobs.NewReportGenerateTask(id.String())
	require.NoError(t, err)
	return task
}

func TestJobCompletesGeneratingReport(t *testing.T) {
	f := newJobFixture(t)
	p := principal()
	f.emissions.records = []emissions.Record{
		emissionRecord(p.UserID, emissions.Scope1, 100),
		emissionRecord(p.UserID, emissions.Scope2, 50),
		emissionRecord(uuid.New(), emissions.Scope1, 999),
	}
	f.suppliers.active = []suppliers.Supplier{activeSupplier(p.UserID, "Northwind Metals", 35)}

	rep, err := f.svc.Generate(context.Background(), p, generateRequest(), "")
	require.NoError(t, err)
	polled, err := f.svc.Get(context.Background(), p, rep.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusGenerating, polled.Status)
	assert.Nil(t, polled.Data)

	require.NoError(t, f.job.Handle(context.Background(), reportTask(t, rep.ID)))

	polled, err = f.svc.Get(context.Background(), p, rep.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, polled.Status)
	require.NotNil(t, polled.Data)
	assert.Equal(t, 150.0, polled.Data.Emissions.GrandTotal)
	assert.Equal(t, 100.0, polled.Data.Emissions.Scope1.Total)
	require.Len(t, polled.Data.Suppliers, 1)
	assert.Equal(t, 35.0, polled.Data.Suppliers[0].Emissions)
	assert.Equal(t, 3, polled.Metadata.DataPoints)
	assert.Equal(t, "GHG Protocol", polled.Metadata.Framework)

	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), f.emissions.filter.Start)
	assert.Equal(t, time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC), f.emissions.filter.End)
}

func TestJobPassesScopesAndSupplierSelection(t *testing.T) {
	f := newJobFixture(t)
	p := principal()
	keep := activeSupplier(p.UserID, "Kept", 10)
	f.suppliers.active = []suppliers.Supplier{keep, activeSupplier(p.UserID, "Dropped", 20)}

	req := generateRequest()
	req.Parameters.Scopes = []int{1, 3}
	req.Parameters.Suppliers = []uuid.UUID{keep.ID}
	req.Parameters.IncludeVerifiedOnly = true
	rep, err := f.svc.Generate(context.Background(), p, req, "")
	require.NoError(t, err)

	require.NoError(t, f.job.Generate(context.Background(), rep.ID))
	assert.Equal(t, []emissions.Scope{emissions.Scope1, emissions.Scope3}, f.emissions.filter.Scopes)
	assert.True(t, f.emissions.filter.VerifiedOnly)

	done, err := f.store.Load(context.Background(), rep.ID)
	require.NoError(t, err)
	require.Len(t, done.Data.Suppliers, 1)
	assert.Equal(t, "Kept", done.Data.Suppliers[0].Name)
}

func TestJobMarksFailure(t *testing.T) {
	f := newJobFixture(t)
	p := principal()
	f.emissions.err = errBoom
	rep, err := f.svc.Generate(context.Background(), p, generateRequest(), "")
	require.NoError(t, err)

	err = f.job.Handle(context.Background(), reportTask(t, rep.ID))
	require.Error(t, err)
	assert.True(t, errors.Is(err, asynq.SkipRetry))

	failed, err := f.store.Load(context.Background(), rep.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, failed.Status)
	assert.Contains(t, failed.Metadata.Error, "boom")
	assert.Nil(t, failed.Data)
}

func TestJobInvalidScopeFailsReport(t *testing.T) {
	f := newJobFixture(t)
	p := principal()
	f.emissions.records = []emissions.Record{emissionRecord(p.UserID, emissions.Scope(9), 1)}
	rep, err := f.svc.Generate(context.Background(), p, generateRequest(), "")
	require.NoError(t, err)

	require.Error(t, f.job.Generate(context.Background(), rep.ID))
	assert.Equal(t, StatusFailed, f.store.status(rep.ID))
}

func TestJobIgnoresResolvedReports(t *testing.T) {
	f := newJobFixture(t)
	p := principal()
	f.emissions.records = []emissions.Record{emissionRecord(p.UserID, emissions.Scope1, 100)}
	rep, err := f.svc.Generate(context.Background(), p, generateRequest(), "")
	require.NoError(t, err)
	require.NoError(t, f.job.Generate(context.Background(), rep.ID))

	// A redelivered task must not touch a completed report.
	f.emissions.records = []emissions.Record{emissionRecord(p.UserID, emissions.Scope1, 5)}
	require.NoError(t, f.job.Generate(context.Background(), rep.ID))
	done, err := f.store.Load(context.Background(), rep.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, done.Status)
	assert.Equal(t, 100.0, done.Data.Emissions.GrandTotal)

	require.NoError(t, f.store.MarkFailed(context.Background(), rep.ID, "late"))
	assert.Equal(t, StatusCompleted, f.store.status(rep.ID))
}

func TestJobSkipsBadPayloads(t *testing.T) {
	f := newJobFixture(t)

	err := f.job.Handle(context.Background(), asynq.NewTask(jobs.TaskTypeReportGenerate, []byte("{")))
	assert.True(t, errors.Is(err, asynq.SkipRetry))

	raw, _ := json.Marshal(jobs.ReportPayload{ReportID: "not-a-uuid"})
	err = f.job.Handle(context.Background(), asynq.NewTask(jobs.TaskTypeReportGenerate, raw))
	assert.True(t, errors.Is(err, asynq.SkipRetry))

	err = f.job.Handle(context.Background(), reportTask(t, uuid.New()))
	assert.True(t, errors.Is(err, asynq.SkipRetry))
}

func TestRecoverRequeuesStaleJobs(t *testing.T) {
	f := newJobFixture(t)
	p := principal()
	stale, err := f.svc.Generate(context.Background(), p, generateRequest(), "")
	require.NoError(t, err)
	fresh, err := f.svc.Generate(context.Background(), p, generateRequest(), "")
	require.NoError(t, err)
	f.store.setUpdatedAt(stale.ID, fixedNow.Add(-time.Hour))
	f.store.setUpdatedAt(fresh.ID, fixedNow.Add(-time.Minute))
	f.queue.ids = nil

	n, err := f.job.Recover(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []uuid.UUID{stale.ID}, f.queue.enqueued())

	f.queue.err = errBoom
	_, err = f.job.Recover(context.Background())
	require.ErrorIs(t, err, errBoom)
}

func TestJobLoadFailureMarksReportFailed(t *testing.T) {
	f := newJobFixture(t)
	p := principal()
	rep, err := f.svc.Generate(context.Background(), p, generateRequest(), "")
	require.NoError(t, err)

	f.store.loadErr = errBoom
	err = f.job.Generate(context.Background(), rep.ID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, asynq.SkipRetry))

	f.store.loadErr = nil
	failed, err := f.store.Load(context.Background(), rep.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, failed.Status)
	assert.Contains(t, failed.Metadata.Error, "load report")
}

func TestJobEmptyRangeRecordsZeroDataPoints(t *testing.T) {
	f := newJobFixture(t)
	rep, err := f.svc.Generate(context.Background(), principal(), generateRequest(), "")
	require.NoError(t, err)
	require.NoError(t, f.job.Generate(context.Background(), rep.ID))

	done, err := f.store.Load(context.Background(), rep.ID)
	require.NoError(t, err)
	raw, err := json.Marshal(done.Metadata)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"dataPoints":0`)
}

func TestRecoverRequeuesReportWithArchivedTask(t *testing.T) {
	f := newJobFixture(t)
	p := principal()
	stale, err := f.svc.Generate(context.Background(), p, generateRequest(), "")
	require.NoError(t, err)
	f.store.setUpdatedAt(stale.ID, fixedNow.Add(-time.Hour))

	srv := miniredis.RunT(t)
	opts := asynq.RedisClientOpt{Addr: srv.Addr()}
	client, err := jobs.NewClient(opts, jobs.ReportOptions{})
	require.NoError(t, err)
	inspector := asynq.NewInspector(opts)
	t.Cleanup(func() {
		_ = inspector.Close()
		_ = client.Close()
	})

	// First run died without a terminal write and asynq archived its task.
	require.NoError(t, client.EnqueueReport(context.Background(), stale.ID))
	require.NoError(t, inspector.ArchiveTask(jobs.QueueReports, stale.ID.String()))

	job := NewJob(JobConfig{
		Store:      f.store,
		Emissions:  f.emissions,
		Suppliers:  f.suppliers,
		Queue:      client,
		StaleAfter: 10 * time.Minute,
	}).WithClock(func() time.Time { return fixedNow })

	n, err := job.Recover(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	info, err := inspector.GetTaskInfo(jobs.QueueReports, stale.ID.String())
	require.NoError(t, err)
	assert.Equal(t, asynq.TaskStatePending, info.State)
}
