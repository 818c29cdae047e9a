// Package ai turns free text and meal photos into calorie estimates and
// writes short coaching notes for the dev backend.
package ai

import (
	"context"
)

const (
	PhotoReceipt = "receipt"
	PhotoDish    = "dish"
)

// maxNameLen caps item names coming back from a model.
const maxNameLen = 200

type Provider interface {
	Estimate(ctx context.Context, text string) (Estimate, error)
	ParsePhoto(ctx context.Context, kind string, image []byte) (PhotoResult, error)
	Coach(ctx context.Context, day DaySnapshot) (string, error)
	AnalyzeDay(ctx context.Context, day DaySnapshot) (string, error)
}

type Item struct {
	Name  string `json:"name"`
	Grams int    `json:"grams"`
	Kcal  int    `json:"kcal"`
}

type Estimate struct {
	Items     []Item `json:"items"`
	TotalKcal int    `json:"total_kcal"`
}

// PhotoResult is what a photo yields. Date and Time are only set for
// receipts that carry them, in the user's local time.
type PhotoResult struct {
	Date  string `json:"date,omitempty"`
	Time  string `json:"time,omitempty"`
	Items []Item `json:"items"`
}

type DaySnapshot struct {
	Date  string
	Goal  int
	Total int
	Meals []Item
}

// fallbackEstimate echoes the text back as a single zero-calorie item.
func fallbackEstimate(text string) Estimate {
	return Estimate{Items: []Item{{Name: truncate(text, maxNameLen)}}}
}

func fallbackPhoto() PhotoResult {
	return PhotoResult{Items: []Item{{Name: "Блюдо"}}}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// normalize trims names and fills a missing total from the items.
func (e Estimate) normalize(totalSet bool) Estimate {
	sum := 0
	for i := range e.Items {
		e.Items[i].Name = truncate(e.Items[i].Name, maxNameLen)
		sum += e.Items[i].Kcal
	}
	if e.Items == nil {
		e.Items = []Item{}
	}
	if !totalSet {
		e.TotalKcal = sum
	}
	return e
}
