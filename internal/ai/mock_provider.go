package ai

import (
	"context"
	"fmt"
	"strings"
)

type MockProvider struct{}

func NewMockProvider() *MockProvider {
	return &MockProvider{}
}

func (p *MockProvider) Estimate(ctx context.Context, text string) (Estimate, error) {
	_ = ctx
	return fallbackEstimate(text), nil
}

func (p *MockProvider) ParsePhoto(ctx context.Context, kind string, image []byte) (PhotoResult, error) {
	_, _, _ = ctx, kind, image
	return fallbackPhoto(), nil
}

func (p *MockProvider) Coach(ctx context.Context, day DaySnapshot) (string, error) {
	_ = ctx

	tips := make([]string, 0, 3)
	switch {
	case day.Total == 0:
		tips = append(tips, "Сегодня ещё ничего не записано. Начни с белкового завтрака.")
	case day.Total > day.Goal:
		tips = append(tips, fmt.Sprintf("Цель превышена на %d ккал. Ужин сделай лёгким: овощи и нежирный белок.", day.Total-day.Goal))
	default:
		tips = append(tips, fmt.Sprintf("До цели осталось %d ккал. Распредели их на 1-2 приёма пищи.", day.Goal-day.Total))
	}

	for _, m := range day.Meals {
		lowered := strings.ToLower(m.Name)
		if strings.Contains(lowered, "пицц") ||
			strings.Contains(lowered, "бургер") ||
			strings.Contains(lowered, "pizza") ||
			strings.Contains(lowered, "burger") {
			tips = append(tips, "Замена: вместо пиццы или бургера возьми курицу с гречкой.")
			break
		}
	}
	if hasSweets(day.Meals) {
		tips = append(tips, "Замена: сладкое к чаю можно заменить на греческий йогурт с ягодами.")
	}
	tips = append(tips, "Пей воду в течение дня. Это демо-режим, советы не являются медицинским заключением.")

	return "Mock-ответ: " + strings.Join(tips, " "), nil
}

func (p *MockProvider) AnalyzeDay(ctx context.Context, day DaySnapshot) (string, error) {
	_ = ctx

	if len(day.Meals) == 0 {
		return fmt.Sprintf("Mock-анализ за %s: записей нет.", day.Date), nil
	}
	biggest := day.Meals[0]
	for _, m := range day.Meals[1:] {
		if m.Kcal > biggest.Kcal {
			biggest = m
		}
	}
	share := 0
	if day.Total > 0 {
		share = biggest.Kcal * 100 / day.Total
	}
	return fmt.Sprintf(
		"Mock-анализ за %s: %d приёмов пищи, %d из %d ккал. Самый калорийный: %q (%d%% дня).",
		day.Date, len(day.Meals), day.Total, day.Goal, biggest.Name, share,
	), nil
}

func hasSweets(meals []Item) bool {
	for _, m := range meals {
		lowered := strings.ToLower(m.Name)
		if strings.Contains(lowered, "торт") ||
			strings.Contains(lowered, "шоколад") ||
			strings.Contains(lowered, "печень") ||
			strings.Contains(lowered, "cake") ||
			strings.Contains(lowered, "chocolate") {
			return true
		}
	}
	return false
}
