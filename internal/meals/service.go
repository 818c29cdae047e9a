// Package meals serves the calorie diary of the devapi backend: profile,
// summaries, manual and AI-estimated entries, photo uploads and coaching.
package meals

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fdg312/calorie-hub/internal/ai"
	"github.com/fdg312/calorie-hub/internal/blob"
	"github.com/fdg312/calorie-hub/internal/config"
	"github.com/fdg312/calorie-hub/internal/logger"
	"github.com/fdg312/calorie-hub/internal/storage"
)

var (
	ErrInvalidPeriod   = errors.New("period must be 'day' or 'month'")
	ErrInvalidKind     = errors.New("type must be 'receipt' or 'dish'")
	ErrMissingCalories = errors.New("calories is required")
	ErrEmptyText       = errors.New("text is required")
	ErrEmptyFile       = errors.New("file is empty")
	ErrFileTooLarge    = errors.New("image too large")
	ErrAccessDenied    = errors.New("subscription required")
)

const (
	PeriodDay   = "day"
	PeriodMonth = "month"
)

const (
	maxDescriptionLen = 240
	photoDescription  = "from photo"
	photoDefaultName  = "Блюдо"
	receiptLayout     = "2006-01-02 15:04"
)

// Service handles diary business logic.
type Service struct {
	store       storage.Storage
	blobs       blob.Store
	ai          ai.Provider
	clock       clock
	defaultGoal int
	tzHours     int
	maxUpload   int
	log         *zap.Logger
}

// NewService creates a new diary service.
func NewService(cfg *config.Config, store storage.Storage, blobs blob.Store, provider ai.Provider, log *zap.Logger) *Service {
	return &Service{
		store:       store,
		blobs:       blobs,
		ai:          provider,
		clock:       clock{offset: time.Duration(cfg.UserTZOffsetHours) * time.Hour, now: time.Now},
		defaultGoal: cfg.DefaultGoalKcal,
		tzHours:     cfg.UserTZOffsetHours,
		maxUpload:   cfg.UploadMaxMB * 1_000_000,
		log:         logger.OrNop(log).Named("meals"),
	}
}

func (s *Service) goal(ctx context.Context, tgID int64) (int, error) {
	u, err := s.store.GetUser(ctx, tgID)
	if errors.Is(err, storage.ErrNotFound) {
		return s.defaultGoal, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get user: %w", err)
	}
	return u.DailyGoal, nil
}

func (s *Service) Profile(ctx context.Context, tgID int64) (ProfileDTO, error) {
	goal, err := s.goal(ctx, tgID)
	if err != nil {
		return ProfileDTO{}, err
	}
	return ProfileDTO{Goal: goal, TZOffset: s.tzHours}, nil
}

// DaySummary lists today's meals in local time. Remaining never goes
// below zero.
func (s *Service) DaySummary(ctx context.Context, tgID int64) (DaySummaryDTO, error) {
	goal, err := s.goal(ctx, tgID)
	if err != nil {
		return DaySummaryDTO{}, err
	}

	day, from, to := s.clock.dayBounds()
	rows, err := s.store.ListMeals(ctx, tgID, from, to)
	if err != nil {
		return DaySummaryDTO{}, fmt.Errorf("failed to list meals: %w", err)
	}

	total := 0
	items := make([]MealDTO, 0, len(rows))
	for _, m := range rows {
		total += m.Calories
		items = append(items, MealDTO{
			ID:   m.ID,
			Time: s.clock.local(m.TS).Format("15:04"),
			Kcal: m.Calories,
			Item: m.ItemName,
		})
	}

	return DaySummaryDTO{
		DateISO:   day.Format("2006-01-02"),
		Total:     total,
		Goal:      goal,
		Remaining: max(0, goal-total),
		Items:     items,
	}, nil
}

// MonthSummary averages over every day of the month, not just the elapsed ones.
func (s *Service) MonthSummary(ctx context.Context, tgID int64) (MonthSummaryDTO, error) {
	month, from, to, days := s.clock.monthBounds()
	rows, err := s.store.ListMeals(ctx, tgID, from, to)
	if err != nil {
		return MonthSummaryDTO{}, fmt.Errorf("failed to list meals: %w", err)
	}

	total := 0
	for _, m := range rows {
		total += m.Calories
	}
	avg := 0.0
	if days > 0 {
		avg = float64(total) / float64(days)
	}
	return MonthSummaryDTO{YM: month.Format("2006-01"), Total: total, AvgPerDay: avg}, nil
}

func (s *Service) AddMeal(ctx context.Context, tgID int64, req AddMealRequest) error {
	if req.Calories == nil {
		return ErrMissingCalories
	}
	desc := truncate(req.Description, maxDescriptionLen)
	meal := []storage.Meal{{
		TelegramID:  tgID,
		TS:          s.clock.now().UTC(),
		Calories:    *req.Calories,
		Description: desc,
		ItemName:    desc,
		Source:      storage.SourceManual,
	}}
	if err := s.store.InsertMeals(ctx, meal); err != nil {
		return fmt.Errorf("failed to insert meal: %w", err)
	}
	return nil
}

// AIAdd estimates text and records every estimated item as a meal.
func (s *Service) AIAdd(ctx context.Context, tgID int64, text string) (ai.Estimate, error) {
	if strings.TrimSpace(text) == "" {
		return ai.Estimate{}, ErrEmptyText
	}

	est, err := s.ai.Estimate(ctx, text)
	if err != nil {
		return ai.Estimate{}, fmt.Errorf("failed to estimate: %w", err)
	}

	raw, _ := json.Marshal(est)
	ts := s.clock.now().UTC()
	rows := make([]storage.Meal, 0, len(est.Items))
	for _, it := range est.Items {
		rows = append(rows, storage.Meal{
			TelegramID:  tgID,
			TS:          ts,
			Calories:    it.Kcal,
			Description: truncate(text, maxDescriptionLen),
			ItemName:    it.Name,
			Grams:       it.Grams,
			Source:      storage.SourceAI,
			RawJSON:     raw,
		})
	}
	if err := s.store.InsertMeals(ctx, rows); err != nil {
		return ai.Estimate{}, fmt.Errorf("failed to insert meals: %w", err)
	}
	return est, nil
}

// DeleteMeal is idempotent: unknown ids succeed. The photo behind the meal
// goes once no other meal refers to it.
func (s *Service) DeleteMeal(ctx context.Context, tgID, id int64) error {
	deleted, err := s.store.DeleteMeal(ctx, tgID, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to delete meal: %w", err)
	}

	if deleted.PhotoKey == "" {
		return nil
	}
	refs, err := s.store.CountPhotoRefs(ctx, deleted.PhotoKey)
	if err != nil || refs > 0 {
		return nil
	}
	if err := s.blobs.DeleteObject(ctx, deleted.PhotoKey); err != nil {
		s.log.Warn("orphan photo not deleted", zap.String("key", deleted.PhotoKey), zap.Error(err))
	}
	return nil
}

// discardPhoto removes a photo no meal was recorded for.
func (s *Service) discardPhoto(ctx context.Context, key string) {
	if err := s.blobs.DeleteObject(context.WithoutCancel(ctx), key); err != nil {
		s.log.Warn("orphan photo not deleted", zap.String("key", key), zap.Error(err))
	}
}

// Upload stores a receipt or dish photo, reads its items and records them.
// Receipts that carry a date and time are booked at that local time.
func (s *Service) Upload(ctx context.Context, tgID int64, kind, filename string, data []byte) (UploadResponse, error) {
	if kind != ai.PhotoReceipt && kind != ai.PhotoDish {
		return UploadResponse{}, ErrInvalidKind
	}

	u, err := s.store.GetUser(ctx, tgID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return UploadResponse{}, fmt.Errorf("failed to get user: %w", err)
	}
	if u == nil || !u.HasAccess(s.clock.now()) {
		return UploadResponse{}, ErrAccessDenied
	}

	if len(data) == 0 {
		return UploadResponse{}, ErrEmptyFile
	}
	if len(data) > s.maxUpload {
		return UploadResponse{}, ErrFileTooLarge
	}

	key := uuid.NewString() + photoExt(filename)
	if _, err := s.blobs.PutObject(ctx, key, data, http.DetectContentType(data)); err != nil {
		return UploadResponse{}, fmt.Errorf("failed to store photo: %w", err)
	}

	parsed, err := s.ai.ParsePhoto(ctx, kind, data)
	if err != nil {
		s.discardPhoto(ctx, key)
		return UploadResponse{}, fmt.Errorf("failed to parse photo: %w", err)
	}

	usedTime := "now"
	ts := s.clock.now().UTC()
	localTS := ""
	if kind == ai.PhotoReceipt && parsed.Date != "" && parsed.Time != "" {
		wall, err := time.Parse(receiptLayout, parsed.Date+" "+parsed.Time)
		if err == nil {
			ts = s.clock.fromLocal(wall)
			usedTime = "receipt"
			localTS = parsed.Date + " " + parsed.Time
		}
	}

	source := storage.SourceVision
	if kind == ai.PhotoReceipt {
		source = storage.SourceOCR
	}
	raw, _ := json.Marshal(parsed)

	rows := make([]storage.Meal, 0, len(parsed.Items))
	out := make([]UploadItemDTO, 0, len(parsed.Items))
	for _, it := range parsed.Items {
		name := it.Name
		if name == "" {
			name = photoDefaultName
		}
		name = truncate(name, 200)
		rows = append(rows, storage.Meal{
			TelegramID:  tgID,
			TS:          ts,
			Calories:    it.Kcal,
			Description: photoDescription,
			ItemName:    name,
			Grams:       it.Grams,
			Source:      source,
			PhotoKey:    key,
			RawJSON:     raw,
			LocalTS:     localTS,
		})
		out = append(out, UploadItemDTO{Name: name, Grams: it.Grams, Kcal: it.Kcal, TS: ts.Format(time.RFC3339)})
	}
	if err := s.store.InsertMeals(ctx, rows); err != nil {
		s.discardPhoto(ctx, key)
		return UploadResponse{}, fmt.Errorf("failed to insert meals: %w", err)
	}

	s.log.Info("photo recorded",
		zap.Int64("telegram_id", tgID),
		zap.String("type", kind),
		zap.String("used_time", usedTime),
		zap.Int("items", len(rows)),
	)
	return UploadResponse{
		OK:           true,
		InferredType: kind,
		UsedTime:     usedTime,
		PhotoURL:     "/uploads/" + key,
		Items:        out,
	}, nil
}

func (s *Service) Coach(ctx context.Context, tgID int64) (string, error) {
	day, err := s.snapshot(ctx, tgID)
	if err != nil {
		return "", err
	}
	return s.ai.Coach(ctx, day)
}

func (s *Service) AnalyzeDay(ctx context.Context, tgID int64) (string, error) {
	day, err := s.snapshot(ctx, tgID)
	if err != nil {
		return "", err
	}
	return s.ai.AnalyzeDay(ctx, day)
}

// Photo returns a stored upload.
func (s *Service) Photo(ctx context.Context, key string) ([]byte, error) {
	return s.blobs.GetObject(ctx, key)
}

func (s *Service) snapshot(ctx context.Context, tgID int64) (ai.DaySnapshot, error) {
	sum, err := s.DaySummary(ctx, tgID)
	if err != nil {
		return ai.DaySnapshot{}, err
	}
	day := ai.DaySnapshot{Date: sum.DateISO, Goal: sum.Goal, Total: sum.Total}
	for _, m := range sum.Items {
		day.Meals = append(day.Meals, ai.Item{Name: m.Item, Kcal: m.Kcal})
	}
	return day, nil
}

func photoExt(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".jpg", ".jpeg", ".png", ".webp", ".heic":
		return ext
	default:
		return ".jpg"
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// MaxUpload is the largest accepted photo in bytes.
func (s *Service) MaxUpload() int {
	return s.maxUpload
}
