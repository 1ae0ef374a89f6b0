package maintenance

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"auth-roles-api/internal/observability"
)

// TokenPurger drops invalidation records whose tokens have passed their
// natural expiry; the signature check alone rejects them afterwards.
type TokenPurger interface {
	PurgeExpiredBatch(ctx context.Context, batchSize int) (int64, error)
}

// CleanupHandler is meant for an external cron; it is hidden unless a
// cron secret is configured.
type CleanupHandler struct {
	purger     TokenPurger
	logger     *observability.Logger
	cronSecret string
	batchSize  int
}

func NewCleanupHandler(purger TokenPurger, logger *observability.Logger, cronSecret string, batchSize int) *CleanupHandler {
	return &CleanupHandler{
		purger:     purger,
		logger:     logger,
		cronSecret: strings.TrimSpace(cronSecret),
		batchSize:  batchSize,
	}
}

func (h *CleanupHandler) Handle(w http.ResponseWriter, r *http.Request) {
	if h.cronSecret == "" {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}

	authHeader := strings.TrimSpace(r.Header.Get("Authorization"))
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) != h.cronSecret {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	purged, err := h.purger.PurgeExpiredBatch(r.Context(), h.batchSize)
	if err != nil {
		h.logger.Error("token_cleanup_failed", map[string]any{"error": err.Error()})
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "cleanup failed"})
		return
	}

	h.logger.Info("token_cleanup_completed", map[string]any{"purged_revoked_tokens": purged})

	writeJSON(w, http.StatusOK, map[string]any{
		"status":                "ok",
		"purged_revoked_tokens": purged,
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
