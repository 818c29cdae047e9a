package meals

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/fdg312/calorie-hub/internal/auth"
	"github.com/fdg312/calorie-hub/internal/blob"
)

const multipartMemory = 8 << 20

// HandleProfile handles GET /api/profile
func HandleProfile(service *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		profile, err := service.Profile(r.Context(), auth.TelegramID(r.Context()))
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}
		writeJSON(w, http.StatusOK, profile)
	}
}

// HandleSummary handles GET /api/summary?period=day|month
func HandleSummary(service *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tgID := auth.TelegramID(r.Context())

		switch r.URL.Query().Get("period") {
		case PeriodDay:
			sum, err := service.DaySummary(r.Context(), tgID)
			if err != nil {
				writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
				return
			}
			writeJSON(w, http.StatusOK, sum)
		case PeriodMonth:
			sum, err := service.MonthSummary(r.Context(), tgID)
			if err != nil {
				writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
				return
			}
			writeJSON(w, http.StatusOK, sum)
		default:
			writeError(w, http.StatusBadRequest, "invalid_period", ErrInvalidPeriod.Error())
		}
	}
}

// HandleAddMeal handles POST /api/addmeal
func HandleAddMeal(service *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req AddMealRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
			return
		}

		if err := service.AddMeal(r.Context(), auth.TelegramID(r.Context()), req); err != nil {
			if errors.Is(err, ErrMissingCalories) {
				writeError(w, http.StatusBadRequest, "missing_calories", err.Error())
				return
			}
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}
		writeJSON(w, http.StatusOK, OKResponse{OK: true})
	}
}

// HandleAIAdd handles POST /api/aiadd
func HandleAIAdd(service *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req AIAddRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
			return
		}

		est, err := service.AIAdd(r.Context(), auth.TelegramID(r.Context()), req.Text)
		if err != nil {
			if errors.Is(err, ErrEmptyText) {
				writeError(w, http.StatusBadRequest, "empty_text", err.Error())
				return
			}
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}
		writeJSON(w, http.StatusOK, EstimateResponse(est))
	}
}

// HandleDeleteMeal handles DELETE /api/meal/{id}
func HandleDeleteMeal(service *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_id", "invalid meal id format")
			return
		}

		if err := service.DeleteMeal(r.Context(), auth.TelegramID(r.Context()), id); err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}
		writeJSON(w, http.StatusOK, OKResponse{OK: true})
	}
}

// HandleUpload handles POST /api/upload (multipart: type, file)
func HandleUpload(service *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(multipartMemory); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_form", "multipart form expected")
			return
		}

		file, header, err := r.FormFile("file")
		if err != nil {
			writeError(w, http.StatusBadRequest, "missing_file", "file is required")
			return
		}
		defer file.Close()

		// One byte past the limit is enough to reject the upload.
		data, err := io.ReadAll(io.LimitReader(file, int64(service.MaxUpload())+1))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_file", "failed to read file")
			return
		}

		resp, err := service.Upload(r.Context(), auth.TelegramID(r.Context()), r.FormValue("type"), header.Filename, data)
		if err != nil {
			switch {
			case errors.Is(err, ErrInvalidKind):
				writeError(w, http.StatusBadRequest, "invalid_type", err.Error())
			case errors.Is(err, ErrAccessDenied):
				writeError(w, http.StatusPaymentRequired, "payment_required", err.Error())
			case errors.Is(err, ErrFileTooLarge):
				writeError(w, http.StatusRequestEntityTooLarge, "file_too_large", err.Error())
			case errors.Is(err, ErrEmptyFile):
				writeError(w, http.StatusBadRequest, "empty_file", err.Error())
			default:
				writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			}
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// HandleCoach handles GET /api/coach
func HandleCoach(service *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		text, err := service.Coach(r.Context(), auth.TelegramID(r.Context()))
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}
		writeText(w, text)
	}
}

// HandleAnalyzeDay handles GET /api/analyze_day
func HandleAnalyzeDay(service *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		text, err := service.AnalyzeDay(r.Context(), auth.TelegramID(r.Context()))
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}
		writeText(w, text)
	}
}

// HandlePhoto handles GET /uploads/{key}
func HandlePhoto(service *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data, err := service.Photo(r.Context(), r.PathValue("key"))
		if err != nil {
			if errors.Is(err, blob.ErrNotFound) {
				writeError(w, http.StatusNotFound, "not_found", "photo not found")
				return
			}
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		w.Header().Set("Content-Type", http.DetectContentType(data))
		w.Header().Set("Cache-Control", "private, max-age=86400")
		w.WriteHeader(http.StatusOK)
		w.Write(data)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeText(w http.ResponseWriter, text string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, text)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
		},
	})
}
