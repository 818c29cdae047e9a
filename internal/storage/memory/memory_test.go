package memory

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fdg312/calorie-hub/internal/storage"
)

func TestEnsureUserKeepsExisting(t *testing.T) {
	ctx := context.Background()
	m := New()

	first, err := m.EnsureUser(ctx, storage.User{TelegramID: 42, DailyGoal: 2000, Plan: storage.PlanTrial})
	require.NoError(t, err)
	assert.False(t, first.CreatedAt.IsZero())

	again, err := m.EnsureUser(ctx, storage.User{TelegramID: 42, DailyGoal: 1500, Plan: storage.PlanPro})
	require.NoError(t, err)
	assert.Equal(t, 2000, again.DailyGoal)
	assert.Equal(t, storage.PlanTrial, again.Plan)

	_, err = m.GetUser(ctx, 7)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestListMealsWindowAndOrder(t *testing.T) {
	ctx := context.Background()
	m := New()
	base := time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC)

	meals := []storage.Meal{
		{TelegramID: 1, TS: base.Add(10 * time.Hour), Calories: 300},
		{TelegramID: 1, TS: base.Add(2 * time.Hour), Calories: 200},
		{TelegramID: 1, TS: base.Add(24 * time.Hour), Calories: 999},
		{TelegramID: 2, TS: base.Add(3 * time.Hour), Calories: 100},
	}
	require.NoError(t, m.InsertMeals(ctx, meals))
	assert.Equal(t, int64(1), meals[0].ID)
	assert.Equal(t, int64(4), meals[3].ID)

	got, err := m.ListMeals(ctx, 1, base, base.Add(24*time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 200, got[0].Calories)
	assert.Equal(t, 300, got[1].Calories)
}

func TestDeleteMealChecksOwner(t *testing.T) {
	ctx := context.Background()
	m := New()
	meals := []storage.Meal{{TelegramID: 1, TS: time.Now(), PhotoKey: "p.jpg"}, {TelegramID: 1, TS: time.Now(), PhotoKey: "p.jpg"}}
	require.NoError(t, m.InsertMeals(ctx, meals))

	_, err := m.DeleteMeal(ctx, 2, meals[0].ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	deleted, err := m.DeleteMeal(ctx, 1, meals[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "p.jpg", deleted.PhotoKey)

	n, err := m.CountPhotoRefs(ctx, "p.jpg")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestHasAccess(t *testing.T) {
	now := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)
	later := now.Add(time.Hour)
	earlier := now.Add(-time.Hour)

	assert.True(t, storage.User{Plan: storage.PlanTrial, TrialUntil: &later}.HasAccess(now))
	assert.False(t, storage.User{Plan: storage.PlanTrial, TrialUntil: &earlier}.HasAccess(now))
	assert.False(t, storage.User{Plan: storage.PlanTrial}.HasAccess(now))
	assert.True(t, storage.User{Plan: storage.PlanPro}.HasAccess(now))
	assert.False(t, storage.User{Plan: storage.PlanPro, RenewsAt: &earlier}.HasAccess(now))
	assert.False(t, storage.User{}.HasAccess(now))
}

func TestCreatePaymentAssignsID(t *testing.T) {
	m := New()
	p := &storage.Payment{TelegramID: 1, Amount: 599, Currency: "XTR"}

	require.NoError(t, m.CreatePayment(context.Background(), p))

	assert.NotEqual(t, uuid.Nil, p.ID)
	assert.Len(t, m.Payments(), 1)
}

func TestActivateProKeepsGoal(t *testing.T) {
	ctx := context.Background()
	m := New()
	_, err := m.EnsureUser(ctx, storage.User{TelegramID: 8, DailyGoal: 1700, Plan: storage.PlanTrial})
	require.NoError(t, err)

	renews := time.Date(2026, 11, 14, 0, 0, 0, 0, time.UTC)
	require.NoError(t, m.ActivatePro(ctx, 8, renews))
	require.NoError(t, m.ActivatePro(ctx, 9, renews))

	u, err := m.GetUser(ctx, 8)
	require.NoError(t, err)
	assert.Equal(t, storage.PlanPro, u.Plan)
	assert.Equal(t, 1700, u.DailyGoal)
	assert.Equal(t, renews, *u.RenewsAt)

	u, err = m.GetUser(ctx, 9)
	require.NoError(t, err)
	assert.Equal(t, storage.PlanPro, u.Plan)
}
