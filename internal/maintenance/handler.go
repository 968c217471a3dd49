package maintenance

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/subhamkb4/Crunchyroll-api/internal/checker"
	"github.com/subhamkb4/Crunchyroll-api/internal/observability"
)

// CleanupHandler evicts rate-limit clients whose whole window has elapsed.
// The limiter itself only prunes lazily when touched, so clients that stop
// sending requests would otherwise linger for the life of the process.
type CleanupHandler struct {
	stores     map[string]*checker.RateLimiter
	logger     *observability.Logger
	cronSecret string
}

func NewCleanupHandler(stores map[string]*checker.RateLimiter, logger *observability.Logger, cronSecret string) *CleanupHandler {
	return &CleanupHandler{
		stores:     stores,
		logger:     logger,
		cronSecret: strings.TrimSpace(cronSecret),
	}
}

func (h *CleanupHandler) Handle(w http.ResponseWriter, r *http.Request) {
	if h.cronSecret == "" {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}

	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	authHeader := strings.TrimSpace(r.Header.Get("Authorization"))
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) != h.cronSecret {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	now := time.Now().UTC()
	pruned := make(map[string]int, len(h.stores))
	for name, store := range h.stores {
		pruned[name] = store.PruneStale(now)
	}

	h.logger.Info("rate_limit_cleanup_completed", map[string]any{"pruned": pruned})

	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"pruned": pruned,
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
