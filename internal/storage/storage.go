package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("not found")

const (
	PlanTrial = "trial"
	PlanPro   = "pro"
)

// Meal sources.
const (
	SourceManual = "manual"
	SourceAI     = "ai"
	SourceVision = "vision"
	SourceOCR    = "ocr"
)

// User is a Telegram user of the calorie app. TelegramID 0 is the anonymous
// user that unsigned requests resolve to.
type User struct {
	TelegramID int64
	DailyGoal  int
	Plan       string
	TrialUntil *time.Time
	RenewsAt   *time.Time
	CreatedAt  time.Time
}

// HasAccess reports whether paid features are open at now: a pro plan
// until it lapses, or a trial until it ends.
func (u User) HasAccess(now time.Time) bool {
	switch u.Plan {
	case PlanPro:
		return u.RenewsAt == nil || now.Before(*u.RenewsAt)
	case PlanTrial:
		return u.TrialUntil != nil && now.Before(*u.TrialUntil)
	default:
		return false
	}
}

// Meal is one diary entry. TS is stored in UTC; LocalTS keeps the receipt
// time as printed when the entry came from a receipt photo.
type Meal struct {
	ID          int64
	TelegramID  int64
	TS          time.Time
	Calories    int
	Description string
	ItemName    string
	Grams       int
	Source      string
	PhotoKey    string
	RawJSON     []byte
	LocalTS     string
}

// Payment records an issued invoice.
type Payment struct {
	ID           uuid.UUID
	TelegramID   int64
	CreatedAt    time.Time
	Provider     string
	Amount       int
	Currency     string
	PeriodMonths int
	Status       string
	Payload      string
}

// Storage is the devapi persistence layer.
type Storage interface {
	// EnsureUser creates the user from defaults unless it exists and
	// returns the stored row.
	EnsureUser(ctx context.Context, defaults User) (User, error)

	// GetUser returns ErrNotFound for unknown users.
	GetUser(ctx context.Context, telegramID int64) (*User, error)

	// InsertMeals stores meals in one go and fills in their IDs.
	InsertMeals(ctx context.Context, meals []Meal) error

	// ListMeals returns meals with from <= TS < to, oldest first.
	ListMeals(ctx context.Context, telegramID int64, from, to time.Time) ([]Meal, error)

	// DeleteMeal removes a meal owned by telegramID and returns it.
	DeleteMeal(ctx context.Context, telegramID, id int64) (*Meal, error)

	// CountPhotoRefs counts meals that still point at a stored photo.
	CountPhotoRefs(ctx context.Context, photoKey string) (int, error)

	CreatePayment(ctx context.Context, p *Payment) error

	// ActivatePro switches the user to the pro plan until renewsAt,
	// creating the user when needed.
	ActivatePro(ctx context.Context, telegramID int64, renewsAt time.Time) error

	// Close releases the connection pool, if any.
	Close() error
}
