package ring

import (
	"math"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestRatioBounds(t *testing.T) {
	cases := []struct {
		name       string
		value, max float64
		want       float64
	}{
		{"zero value", 0, 2200, 0},
		{"full", 2200, 2200, 100},
		{"half", 1100, 2200, 50},
		{"over goal clamps", 2500, 2000, 100},
		{"negative clamps", -300, 2000, 0},
		{"zero max", 500, 0, 0},
		{"negative max", 500, -10, 0},
		{"nan value", math.NaN(), 100, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.InDelta(t, tc.want, Ratio(tc.value, tc.max), 1e-9)
		})
	}
}

func TestRatioMonotonic(t *testing.T) {
	const max = 2000.0
	prev := -1.0
	for v := 0.0; v <= max; v += 50 {
		got := Ratio(v, max)
		assert.GreaterOrEqual(t, got, prev)
		assert.GreaterOrEqual(t, got, 0.0)
		assert.LessOrEqual(t, got, 100.0)
		prev = got
	}
}

func TestNewGauge(t *testing.T) {
	g := NewGauge(550, 2200)
	assert.InDelta(t, 25, g.Percent, 1e-9)
	assert.InDelta(t, Circumference/4, g.Dash, 1e-9)
	assert.InDelta(t, Circumference, g.Dash+g.Gap, 1e-9)

	over := NewGauge(5000, 2000)
	assert.InDelta(t, Circumference, over.Dash, 1e-9)
	assert.InDelta(t, 0, over.Gap, 1e-9)

	empty := NewGauge(100, 0)
	assert.Zero(t, empty.Dash)
	assert.False(t, math.IsNaN(empty.Dash))
}

func TestRemaining(t *testing.T) {
	assert.Equal(t, 700, Remaining(2200, 1500))
	assert.Equal(t, 0, Remaining(2000, 2500))
	assert.Equal(t, 0, Remaining(2000, 2000))
}

func TestBar(t *testing.T) {
	assert.Equal(t, "█████░░░░░", Bar(1000, 2000, 10))
	assert.Equal(t, "██████████", Bar(2500, 2000, 10))
	assert.Equal(t, 10, utf8.RuneCountInString(Bar(0, 0, 10)))
	assert.Empty(t, Bar(1, 2, 0))
}
