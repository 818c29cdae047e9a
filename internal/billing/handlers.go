package billing

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/fdg312/calorie-hub/internal/auth"
)

// HandleStatus handles GET /api/subscribe/status
func HandleStatus(service *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status, err := service.Status(r.Context(), auth.TelegramID(r.Context()))
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				writeError(w, http.StatusNotFound, "user_not_found", err.Error())
				return
			}
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(status)
	}
}

// HandleCreate handles POST /api/subscribe/create
func HandleCreate(service *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp, err := service.Create(r.Context(), auth.TelegramID(r.Context()))
		if err != nil {
			if errors.Is(err, ErrUnauthorized) {
				writeError(w, http.StatusUnauthorized, "unauthorized", err.Error())
				return
			}
			if errors.Is(err, ErrTelegramAPI) {
				writeError(w, http.StatusBadGateway, "telegram_error", err.Error())
				return
			}
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(resp)
	}
}

// HandleWebhook handles POST /telegram/webhook
func HandleWebhook(service *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !service.webhookAuthorized(r.Header.Get(WebhookSecretHeader)) {
			writeError(w, http.StatusUnauthorized, "unauthorized", "invalid webhook secret")
			return
		}

		raw, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_body", "failed to read body")
			return
		}

		if err := service.HandleUpdate(r.Context(), raw); err != nil {
			if errors.Is(err, ErrInvalidUpdate) {
				writeError(w, http.StatusBadRequest, "invalid_update", err.Error())
				return
			}
			service.log.Error("webhook update failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]bool{"ok": true})
	}
}

// webhookAuthorized accepts any update when no secret is configured.
func (s *Service) webhookAuthorized(got string) bool {
	if s.webhookSecret == "" {
		return true
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(s.webhookSecret)) == 1
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
		},
	})
}
