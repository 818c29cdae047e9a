package syncstate

import (
	"github.com/fdg312/calorie-hub/internal/host"
	"github.com/fdg312/calorie-hub/internal/ring"
)

const (
	DefaultGoal      = 2200
	DefaultTrialDays = 7
)

type Plan string

const (
	PlanTrial Plan = "trial"
	PlanPro   Plan = "pro"
)

type PhotoKind string

const (
	PhotoReceipt PhotoKind = "receipt"
	PhotoDish    PhotoKind = "dish"
)

func (k PhotoKind) Valid() bool {
	return k == PhotoReceipt || k == PhotoDish
}

// Meal is one server-side meal record. It is never edited locally.
type Meal struct {
	ID   int64  `json:"id"`
	Time string `json:"time"`
	Kcal int    `json:"kcal"`
	Item string `json:"item"`
}

type AIItem struct {
	Name  string  `json:"name"`
	Grams float64 `json:"grams"`
	Kcal  int     `json:"kcal"`
}

// AIEstimate is the transient result of an estimate call.
type AIEstimate struct {
	Items     []AIItem `json:"items"`
	TotalKcal int      `json:"total_kcal"`
}

type Inputs struct {
	Description string
	Kcal        string
}

// State is the client aggregate. Remaining holds the server value as
// received; use DisplayRemaining for presentation.
type State struct {
	Goal       int
	DayTotal   int
	Remaining  int
	Meals      []Meal
	MonthTotal int
	AvgPerDay  float64

	Plan          Plan
	TrialDaysLeft *int

	AI        *AIEstimate
	CoachText string

	InvoiceURL    string
	InvoiceStatus host.InvoiceStatus

	Estimating bool
	Uploading  bool
	Loaded     bool

	Inputs Inputs
}

func initialState() State {
	return State{
		Goal:      DefaultGoal,
		Remaining: DefaultGoal,
		Meals:     []Meal{},
		Plan:      PlanTrial,
	}
}

// DisplayRemaining is max(0, goal - total).
func (s State) DisplayRemaining() int {
	return ring.Remaining(s.Goal, s.DayTotal)
}

// DayPercent is the ring ratio of today's total against the goal.
func (s State) DayPercent() float64 {
	return ring.Ratio(float64(s.DayTotal), float64(s.Goal))
}

// TrialDays is the trial days left for display, DefaultTrialDays when unknown.
func (s State) TrialDays() int {
	if s.TrialDaysLeft == nil {
		return DefaultTrialDays
	}
	return *s.TrialDaysLeft
}

func (s State) clone() State {
	c := s
	c.Meals = append([]Meal(nil), s.Meals...)
	if c.Meals == nil {
		c.Meals = []Meal{}
	}
	if s.TrialDaysLeft != nil {
		v := *s.TrialDaysLeft
		c.TrialDaysLeft = &v
	}
	if s.AI != nil {
		ai := *s.AI
		ai.Items = append([]AIItem(nil), s.AI.Items...)
		c.AI = &ai
	}
	return c
}
