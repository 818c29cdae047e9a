package auth

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fdg312/calorie-hub/internal/config"
	"github.com/fdg312/calorie-hub/internal/logger"
	"github.com/fdg312/calorie-hub/internal/storage"
)

const InitDataHeader = "X-Telegram-Init-Data"

// Middleware resolves the Telegram user of every API request and makes sure
// the user row exists, starting a trial for newcomers.
type Middleware struct {
	config *config.Config
	store  storage.Storage
	log    *zap.Logger
	now    func() time.Time
}

func NewMiddleware(cfg *config.Config, store storage.Storage, log *zap.Logger) *Middleware {
	return &Middleware{
		config: cfg,
		store:  store,
		log:    logger.OrNop(log).Named("auth"),
		now:    time.Now,
	}
}

// Resolve attaches the Telegram id to the request context. Requests without
// init-data run as the anonymous user 0. Init-data that fails verification
// also falls back to user 0, unless REQUIRE_AUTH is set, which answers 401.
func (m *Middleware) Resolve(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isPublicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		if m.config.RequireAuth && m.config.BotToken == "" {
			writeError(w, http.StatusInternalServerError, "misconfigured", "BOT_TOKEN required when REQUIRE_AUTH=true")
			return
		}

		var tgID int64
		if initData := r.Header.Get(InitDataHeader); initData != "" {
			id, err := Verify(initData, m.config.BotToken)
			if err != nil {
				m.log.Debug("init data rejected", zap.Error(err), zap.String("path", r.URL.Path))
				if m.config.RequireAuth {
					writeError(w, http.StatusUnauthorized, "unauthorized", "Invalid initData")
					return
				}
			}
			tgID = id
		}

		trialUntil := m.now().UTC().AddDate(0, 0, m.config.TrialDays)
		if _, err := m.store.EnsureUser(r.Context(), storage.User{
			TelegramID: tgID,
			DailyGoal:  m.config.DefaultGoalKcal,
			Plan:       storage.PlanTrial,
			TrialUntil: &trialUntil,
		}); err != nil {
			m.log.Error("ensure user failed", zap.Int64("telegram_id", tgID), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "internal_error", "Failed to resolve user")
			return
		}

		next.ServeHTTP(w, r.WithContext(WithTelegramID(r.Context(), tgID)))
	})
}

func isPublicPath(path string) bool {
	return path == "/healthz" || path == "/telegram/webhook" || strings.HasPrefix(path, "/uploads/")
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
	})
}
