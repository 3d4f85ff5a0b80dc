package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRespondErrorMapsKinds(t *testing.T) {
	cases := []struct {
		err    error
		status int
		msg    string
	}{
		{NewError(ErrNotFound, "Emission record not found"), http.StatusNotFound, "Emission record not found"},
		{fmt.Errorf("wrap: %w", NewError(ErrForbidden, "Cannot modify published emissions")), http.StatusForbidden, "Cannot modify published emissions"},
		{NewError(ErrNotReady, "Report is not ready for download"), http.StatusBadRequest, "Report is not ready for download"},
		{ErrDuplicate, http.StatusConflict, "Duplicate request"},
		{errors.New("boom"), http.StatusInternalServerError, "Server error"},
	}
	for _, tc := range cases {
		rr := httptest.NewRecorder()
		RespondError(rr, tc.err)
		require.Equal(t, tc.status, rr.Code)
		var body Envelope
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
		assert.False(t, body.Success)
		assert.Equal(t, tc.msg, body.Message)
	}
}

func TestRespondErrorValidationFields(t *testing.T) {
	rr := httptest.NewRecorder()
	RespondError(rr, Invalid("scope", "must be one of: 1 2 3"))
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.JSONEq(t, `{"success":false,"message":"Validation failed","errors":[{"field":"scope","message":"must be one of: 1 2 3"}]}`, rr.Body.String())
}

func TestPageParams(t *testing.T) {
	page, limit, err := PageParams(url.Values{})
	require.NoError(t, err)
	require.Equal(t, 1, page)
	require.Equal(t, DefaultLimit, limit)

	page, limit, err = PageParams(url.Values{"page": {"3"}, "limit": {"25"}})
	require.NoError(t, err)
	require.Equal(t, 3, page)
	require.Equal(t, 25, limit)
	require.Equal(t, 50, Offset(page, limit))

	_, _, err = PageParams(url.Values{"limit": {"101"}})
	require.ErrorIs(t, err, ErrValidation)
	_, _, err = PageParams(url.Values{"page": {"0"}})
	require.ErrorIs(t, err, ErrValidation)

	p := NewPagination(2, 10, 21)
	require.Equal(t, 3, p.Pages)
}

type yearInput struct {
	Year  int    `json:"year" validate:"reportingyear"`
	Email string `json:"email" validate:"omitempty,email"`
}

func TestValidatorReportingYear(t *testing.T) {
	v := NewValidator()
	v.WithNow(func() time.Time { return time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC) })

	require.NoError(t, v.Struct(yearInput{Year: 2026}))
	require.NoError(t, v.Struct(yearInput{Year: 2020}))

	err := v.Struct(yearInput{Year: 2019, Email: "nope"})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.Len(t, verr.Fields, 2)
	assert.Equal(t, "year", verr.Fields[0].Field)
	assert.Equal(t, "email", verr.Fields[1].Field)
}

func TestDateAcceptsBothLayouts(t *testing.T) {
	var got struct {
		Start Date `json:"start"`
		End   Date `json:"end"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"start":"2024-01-01","end":"2024-12-31T23:59:59Z"}`), &got))
	require.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), got.Start.Time)
	require.Equal(t, 2024, got.End.Year())

	raw, err := json.Marshal(got.Start)
	require.NoError(t, err)
	require.Equal(t, `"2024-01-01T00:00:00Z"`, string(raw))
}
