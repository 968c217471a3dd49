package checker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/subhamkb4/Crunchyroll-api/internal/observability"
)

const maxJSONBodyBytes = 1 << 20

const (
	serviceName  = "Crunchyroll Account Checker API"
	healthName   = "Crunchyroll Checker API"
	batchMaxSize = 5
)

type AccountChecker interface {
	Check(ctx context.Context, email, password string) CheckResult
}

type Handler struct {
	checker       AccountChecker
	singleLimiter *RateLimiter
	batchLimiter  *RateLimiter
	gate          *Gate
	pacing        PacingPolicy
	logger        *observability.Logger
}

func NewHandler(
	chk AccountChecker,
	singleLimiter *RateLimiter,
	batchLimiter *RateLimiter,
	gate *Gate,
	pacing PacingPolicy,
	logger *observability.Logger,
) *Handler {
	return &Handler{
		checker:       chk,
		singleLimiter: singleLimiter,
		batchLimiter:  batchLimiter,
		gate:          gate,
		pacing:        pacing,
		logger:        logger,
	}
}

func (h *Handler) Home(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "active",
		"service": serviceName,
		"version": "1.0.0",
		"endpoints": map[string]string{
			"/api/check":       "POST - Check single account",
			"/api/batch-check": "POST - Check multiple accounts (max 5)",
			"/api/health":      "GET - Health check",
		},
		"usage": map[string]string{
			"single_check": `Send POST with {"email": "email", "password": "password"}`,
			"batch_check":  `Send POST with {"accounts": ["email:pass", "email:pass"]}`,
		},
	})
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().Unix(),
		"service":   healthName,
	})
}

func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, map[string]any{
		"success": false,
		"error":   "Endpoint not found",
		"message": "Check / for available endpoints",
	})
}

type checkRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) Check(w http.ResponseWriter, r *http.Request) {
	ip := clientIP(r)

	if ok, retryAfter := h.singleLimiter.Allow(ip, time.Now().UTC()); !ok {
		w.Header().Set("Retry-After", strconv.Itoa(int(retryAfter.Seconds())))
		writeJSON(w, http.StatusTooManyRequests, CheckResult{
			Success:           false,
			FormattedResponse: "❌ Rate Limited\n\nPlease wait 60 seconds before making another request.",
			Error:             "Rate limit exceeded",
		})
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)
	var body checkRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, CheckResult{
			Success:           false,
			FormattedResponse: "❌ Invalid Request\n\nError: No JSON data provided",
			Error:             "No data provided",
		})
		return
	}

	email := strings.TrimSpace(body.Email)
	password := strings.TrimSpace(body.Password)
	if email == "" || password == "" {
		writeJSON(w, http.StatusBadRequest, CheckResult{
			Success:           false,
			FormattedResponse: "❌ Invalid Request\n\nError: Email and password are required",
			Error:             "Missing credentials",
		})
		return
	}

	if !validEmail(email) {
		writeJSON(w, http.StatusBadRequest, CheckResult{
			Success:           false,
			FormattedResponse: fmt.Sprintf("❌ Invalid Email\n\nAccount: %s\nError: Invalid email format", email),
			Error:             "Invalid email format",
		})
		return
	}

	h.logger.Info("check_account", map[string]any{"email": email, "ip": ip})

	if err := h.gate.Acquire(r.Context()); err != nil {
		// Caller went away while queued; nobody is listening anymore.
		return
	}
	defer h.gate.Release()

	// A check in flight is not abandoned when the caller disconnects.
	result := h.checker.Check(context.WithoutCancel(r.Context()), email, password)
	writeJSON(w, http.StatusOK, result)
}

type batchRequest struct {
	Accounts json.RawMessage `json:"accounts"`
}

func (h *Handler) BatchCheck(w http.ResponseWriter, r *http.Request) {
	ip := clientIP(r)

	if ok, retryAfter := h.batchLimiter.Allow(ip, time.Now().UTC()); !ok {
		w.Header().Set("Retry-After", strconv.Itoa(int(retryAfter.Seconds())))
		writeJSON(w, http.StatusTooManyRequests, CheckResult{
			Success:           false,
			FormattedResponse: "❌ Rate Limited\n\nPlease wait 2 minutes before making another batch request.",
			Error:             "Rate limit exceeded",
		})
		return
	}

	defer func() {
		if rec := recover(); rec != nil {
			sentry.CaptureException(fmt.Errorf("batch check panic: %v", rec))
			h.logger.Error("batch_check_panic", map[string]any{"panic": rec, "ip": ip})
			writeJSON(w, http.StatusInternalServerError, CheckResult{
				Success:           false,
				FormattedResponse: "❌ Server Error\n\nError: Internal server error",
				Error:             fmt.Sprint(rec),
			})
		}
	}()

	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)
	var body batchRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || len(body.Accounts) == 0 {
		writeJSON(w, http.StatusBadRequest, CheckResult{
			Success:           false,
			FormattedResponse: "❌ Invalid Request\n\nError: No accounts data provided",
			Error:             "No accounts provided",
		})
		return
	}

	// json "null" unmarshals into a nil slice without error; it is present
	// but still not a list.
	var entries []json.RawMessage
	if err := json.Unmarshal(body.Accounts, &entries); err != nil || string(bytes.TrimSpace(body.Accounts)) == "null" {
		writeJSON(w, http.StatusBadRequest, CheckResult{
			Success:           false,
			FormattedResponse: "❌ Invalid Request\n\nError: Accounts must be a list",
			Error:             "Invalid accounts format",
		})
		return
	}

	if len(entries) > batchMaxSize {
		writeJSON(w, http.StatusBadRequest, CheckResult{
			Success:           false,
			FormattedResponse: "❌ Too Many Accounts\n\nError: Maximum 5 accounts allowed per batch",
			Error:             "Too many accounts",
		})
		return
	}

	results := make([]string, 0, len(entries))
	ctx := context.WithoutCancel(r.Context())

	for i, entry := range entries {
		var account string
		if err := json.Unmarshal(entry, &account); err != nil {
			results = append(results, fmt.Sprintf("❌ Invalid Format\n\nLine %d: %s\nError: Use email:password format", i+1, string(entry)))
			continue
		}
		if !strings.Contains(account, ":") {
			results = append(results, fmt.Sprintf("❌ Invalid Format\n\nLine %d: %s\nError: Use email:password format", i+1, account))
			continue
		}

		parts := strings.SplitN(account, ":", 2)
		email := strings.TrimSpace(parts[0])
		password := strings.TrimSpace(parts[1])

		if !validEmail(email) {
			results = append(results, fmt.Sprintf("❌ Invalid Email\n\nAccount: %s\nError: Invalid email format", email))
			continue
		}

		h.logger.Info("batch_check_account", map[string]any{
			"email":    email,
			"position": fmt.Sprintf("%d/%d", i+1, len(entries)),
			"ip":       ip,
		})

		if delay := h.pacing(i); delay > 0 {
			time.Sleep(delay)
		}

		result := h.checker.Check(ctx, email, password)
		results = append(results, result.FormattedResponse)
	}

	writeJSON(w, http.StatusOK, BatchResult{
		Success:           true,
		Results:           results,
		TotalChecked:      len(results),
		FormattedResponse: strings.Join(results, "\n\n"),
	})
}

// The target only needs "@" and "." to be present; anything stricter would
// reject addresses the upstream login form accepts.
func validEmail(email string) bool {
	return strings.Contains(email, "@") && strings.Contains(email, ".")
}

func clientIP(r *http.Request) string {
	xForwardedFor := strings.TrimSpace(r.Header.Get("X-Forwarded-For"))
	if xForwardedFor != "" {
		parts := strings.Split(xForwardedFor, ",")
		if len(parts) > 0 {
			ip := strings.TrimSpace(parts[0])
			if ip != "" {
				return ip
			}
		}
	}

	if r.RemoteAddr != "" {
		return r.RemoteAddr
	}

	return "unknown"
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
