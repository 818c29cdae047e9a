package meals

import "github.com/fdg312/calorie-hub/internal/ai"

type ProfileDTO struct {
	Goal     int `json:"goal"`
	TZOffset int `json:"tzOffset"`
}

type MealDTO struct {
	ID   int64  `json:"id"`
	Time string `json:"time"`
	Kcal int    `json:"kcal"`
	Item string `json:"item"`
}

type DaySummaryDTO struct {
	DateISO   string    `json:"dateISO"`
	Total     int       `json:"total"`
	Goal      int       `json:"goal"`
	Remaining int       `json:"remaining"`
	Items     []MealDTO `json:"items"`
}

type MonthSummaryDTO struct {
	YM        string  `json:"ym"`
	Total     int     `json:"total"`
	AvgPerDay float64 `json:"avgPerDay"`
}

type AddMealRequest struct {
	Calories    *int   `json:"calories"`
	Description string `json:"description"`
}

type AIAddRequest struct {
	Text string `json:"text"`
}

type UploadItemDTO struct {
	Name  string `json:"name"`
	Grams int    `json:"grams"`
	Kcal  int    `json:"kcal"`
	TS    string `json:"ts"`
}

type UploadResponse struct {
	OK           bool            `json:"ok"`
	InferredType string          `json:"inferred_type"`
	UsedTime     string          `json:"used_time"`
	PhotoURL     string          `json:"photo_url"`
	Items        []UploadItemDTO `json:"items"`
}

// EstimateResponse is the aiadd payload, the estimate as the model gave it.
type EstimateResponse = ai.Estimate

type OKResponse struct {
	OK bool `json:"ok"`
}

type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
