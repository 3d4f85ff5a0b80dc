package emissions

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRecomputeTotalsSumsEntries(t *testing.T) {
	rec := Record{TotalCO2e: 999, Entries: []Entry{{CO2eAmount: 120.5}, {CO2eAmount: 79.5}}}
	got := RecomputeTotals(rec)
	require.Equal(t, 200.0, got.TotalCO2e)
	require.Equal(t, 999.0, rec.TotalCO2e, "input must not be mutated")

	require.Zero(t, RecomputeTotals(Record{TotalCO2e: 5}).TotalCO2e)
}

func TestReportingPeriodBounds(t *testing.T) {
	month, quarter := 2, 3
	cases := []struct {
		name       string
		period     ReportingPeriod
		start, end time.Time
	}{
		{"year", ReportingPeriod{Year: 2024}, day(2024, 1, 1), day(2024, 12, 31)},
		{"quarter", ReportingPeriod{Year: 2024, Quarter: &quarter}, day(2024, 7, 1), day(2024, 9, 30)},
		{"leap february", ReportingPeriod{Year: 2024, Month: &month, Quarter: &quarter}, day(2024, 2, 1), day(2024, 2, 29)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			start, end := tc.period.Bounds()
			require.Equal(t, tc.start, start)
			require.Equal(t, tc.end, end)
		})
	}
}

func TestReportingPeriodWithin(t *testing.T) {
	month := 12
	period := ReportingPeriod{Year: 2024, Month: &month}
	require.True(t, period.Within(day(2024, 1, 1), day(2024, 12, 31)))
	require.True(t, period.Within(day(2024, 12, 1), time.Date(2024, 12, 31, 15, 0, 0, 0, time.UTC)))
	require.False(t, period.Within(day(2024, 1, 1), day(2024, 12, 30)))
	require.False(t, ReportingPeriod{Year: 2024}.Within(day(2024, 6, 1), day(2024, 12, 31)))
}

func TestStatusAdvances(t *testing.T) {
	require.True(t, StatusDraft.Advances(StatusSubmitted))
	require.True(t, StatusDraft.Advances(StatusPublished))
	require.True(t, StatusVerified.Advances(StatusVerified))
	require.False(t, StatusVerified.Advances(StatusDraft))
	require.False(t, StatusDraft.Advances(Status("archived")))
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
