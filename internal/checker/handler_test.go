package checker

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/subhamkb4/Crunchyroll-api/internal/observability"
)

type stubChecker struct {
	calls   []string
	results map[string]CheckResult
}

func (s *stubChecker) Check(ctx context.Context, email, password string) CheckResult {
	s.calls = append(s.calls, email)
	if result, ok := s.results[email]; ok {
		return result
	}
	return formatFailure(email, "Invalid credentials or account not found")
}

func newStubHandler(stub *stubChecker) *Handler {
	return NewHandler(
		stub,
		NewRateLimiter(100, time.Minute, 100),
		NewRateLimiter(100, time.Minute, 100),
		NewGate(1),
		FixedDelayPacing(0),
		observability.NewLogger(),
	)
}

func postJSON(t *testing.T, handlerFunc http.HandlerFunc, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handlerFunc(rec, req)
	return rec
}

func decodeCheckResult(t *testing.T, rec *httptest.ResponseRecorder) CheckResult {
	t.Helper()
	var result CheckResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	return result
}

func TestCheckRejectsInvalidEmail(t *testing.T) {
	stub := &stubChecker{}
	h := newStubHandler(stub)

	for _, email := range []string{"nodotatall@com", "no-at-sign.com", "plainword"} {
		rec := postJSON(t, h.Check, `{"email":"`+email+`","password":"whatever"}`)

		assert.Equal(t, http.StatusBadRequest, rec.Code, "email %q", email)
		result := decodeCheckResult(t, rec)
		assert.Equal(t, "Invalid email format", result.Error, "email %q", email)
	}
	assert.Empty(t, stub.calls)
}

func TestCheckRejectsMissingCredentials(t *testing.T) {
	stub := &stubChecker{}
	h := newStubHandler(stub)

	for _, body := range []string{`{}`, `{"email":"a@b.com"}`, `{"email":"  ","password":"x"}`} {
		rec := postJSON(t, h.Check, body)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		result := decodeCheckResult(t, rec)
		assert.Equal(t, "Missing credentials", result.Error)
	}
	assert.Empty(t, stub.calls)
}

func TestCheckRejectsMalformedJSON(t *testing.T) {
	h := newStubHandler(&stubChecker{})

	rec := postJSON(t, h.Check, `not json`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	result := decodeCheckResult(t, rec)
	assert.Equal(t, "No data provided", result.Error)
}

func TestCheckReturnsCheckerResult(t *testing.T) {
	stub := &stubChecker{results: map[string]CheckResult{
		"user@mail.com": formatSuccess("user@mail.com", &AccountStatus{
			Country: "US", Plan: "Premium", PaymentMethod: "Credit Card",
			Status: "active", RenewalDate: "01-01-2027", DaysLeft: 118,
		}),
	}}
	h := newStubHandler(stub)

	rec := postJSON(t, h.Check, `{"email":"user@mail.com","password":"pw"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	result := decodeCheckResult(t, rec)
	assert.True(t, result.Success)
	require.NotNil(t, result.RawData)
	assert.Equal(t, "Premium", result.RawData.Plan)
	assert.Equal(t, []string{"user@mail.com"}, stub.calls)
}

func TestCheckDomainFailureIsHTTP200(t *testing.T) {
	h := newStubHandler(&stubChecker{})

	rec := postJSON(t, h.Check, `{"email":"user@mail.com","password":"bad"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	result := decodeCheckResult(t, rec)
	assert.False(t, result.Success)
	assert.Equal(t, "Invalid credentials or account not found", result.Error)
}

func TestCheckRateLimited(t *testing.T) {
	h := NewHandler(
		&stubChecker{},
		NewRateLimiter(1, time.Minute, 100),
		NewRateLimiter(100, time.Minute, 100),
		NewGate(1),
		FixedDelayPacing(0),
		observability.NewLogger(),
	)

	first := postJSON(t, h.Check, `{"email":"user@mail.com","password":"pw"}`)
	assert.Equal(t, http.StatusOK, first.Code)

	second := postJSON(t, h.Check, `{"email":"user@mail.com","password":"pw"}`)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.NotEmpty(t, second.Header().Get("Retry-After"))
	result := decodeCheckResult(t, second)
	assert.Equal(t, "Rate limit exceeded", result.Error)
	assert.Contains(t, result.FormattedResponse, "Rate Limited")
}

func TestBatchRejectsTooManyAccounts(t *testing.T) {
	stub := &stubChecker{}
	h := newStubHandler(stub)

	accounts := make([]string, 6)
	for i := range accounts {
		accounts[i] = `"a@b.com:pw"`
	}
	rec := postJSON(t, h.BatchCheck, `{"accounts":[`+strings.Join(accounts, ",")+`]}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	result := decodeCheckResult(t, rec)
	assert.Equal(t, "Too many accounts", result.Error)
	assert.Empty(t, stub.calls)
}

func TestBatchRejectsMissingAccounts(t *testing.T) {
	h := newStubHandler(&stubChecker{})

	rec := postJSON(t, h.BatchCheck, `{}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	result := decodeCheckResult(t, rec)
	assert.Equal(t, "No accounts provided", result.Error)
}

func TestBatchRejectsNonListAccounts(t *testing.T) {
	h := newStubHandler(&stubChecker{})

	for _, body := range []string{`{"accounts":"a@b.com:pw"}`, `{"accounts":null}`, `{"accounts":{"a":1}}`} {
		rec := postJSON(t, h.BatchCheck, body)

		assert.Equal(t, http.StatusBadRequest, rec.Code, "body %s", body)
		result := decodeCheckResult(t, rec)
		assert.Equal(t, "Invalid accounts format", result.Error, "body %s", body)
	}
}

func TestBatchReportsMalformedEntriesInline(t *testing.T) {
	stub := &stubChecker{results: map[string]CheckResult{
		"ok@mail.com": formatSuccess("ok@mail.com", &AccountStatus{
			Country: "US", Plan: "Premium", PaymentMethod: "Credit Card",
			Status: "active", RenewalDate: "01-01-2027", DaysLeft: 118,
		}),
	}}
	h := newStubHandler(stub)

	rec := postJSON(t, h.BatchCheck, `{"accounts":["noseparator","ok@mail.com:pw",42,"bademail:pw"]}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	var result BatchResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))

	require.Len(t, result.Results, 4)
	assert.Equal(t, "❌ Invalid Format\n\nLine 1: noseparator\nError: Use email:password format", result.Results[0])
	assert.Contains(t, result.Results[1], "✅ Premium Account")
	assert.Equal(t, "❌ Invalid Format\n\nLine 3: 42\nError: Use email:password format", result.Results[2])
	assert.Equal(t, "❌ Invalid Email\n\nAccount: bademail\nError: Invalid email format", result.Results[3])

	assert.True(t, result.Success)
	assert.Equal(t, 4, result.TotalChecked)
	assert.Equal(t, strings.Join(result.Results, "\n\n"), result.FormattedResponse)
	assert.Equal(t, []string{"ok@mail.com"}, stub.calls)
}

func TestBatchRateLimited(t *testing.T) {
	h := NewHandler(
		&stubChecker{},
		NewRateLimiter(100, time.Minute, 100),
		NewRateLimiter(1, time.Minute, 100),
		NewGate(1),
		FixedDelayPacing(0),
		observability.NewLogger(),
	)

	first := postJSON(t, h.BatchCheck, `{"accounts":["a@b.com:pw"]}`)
	assert.Equal(t, http.StatusOK, first.Code)

	second := postJSON(t, h.BatchCheck, `{"accounts":["a@b.com:pw"]}`)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	result := decodeCheckResult(t, second)
	assert.Equal(t, "Rate limit exceeded", result.Error)
}

func TestHealthEndpoint(t *testing.T) {
	h := newStubHandler(&stubChecker{})

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	h.Health(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "Crunchyroll Checker API", body["service"])
	assert.NotNil(t, body["timestamp"])
}

func TestHomeListsEndpoints(t *testing.T) {
	h := newStubHandler(&stubChecker{})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	h.Home(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "active", body["status"])
	endpoints, ok := body["endpoints"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, endpoints, "/api/check")
	assert.Contains(t, endpoints, "/api/batch-check")
}

func TestNotFoundShape(t *testing.T) {
	h := newStubHandler(&stubChecker{})

	req := httptest.NewRequest(http.MethodGet, "/nope", nil)
	rec := httptest.NewRecorder()
	h.NotFound(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "Endpoint not found", body["error"])
	assert.Equal(t, "Check / for available endpoints", body["message"])
}

func TestClientIPPrefersForwardedFor(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	assert.Equal(t, "10.0.0.1:1234", clientIP(req))

	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	assert.Equal(t, "203.0.113.9", clientIP(req))
}
