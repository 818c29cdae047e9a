package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fdg312/calorie-hub/internal/storage"
)

// MemoryStorage is the in-memory Storage used when no database is configured.
type MemoryStorage struct {
	mu       sync.RWMutex
	users    map[int64]storage.User
	meals    map[int64]storage.Meal
	payments []storage.Payment
	nextID   int64
}

func New() *MemoryStorage {
	return &MemoryStorage{
		users: make(map[int64]storage.User),
		meals: make(map[int64]storage.Meal),
	}
}

func (m *MemoryStorage) EnsureUser(ctx context.Context, defaults storage.User) (storage.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if u, ok := m.users[defaults.TelegramID]; ok {
		return u, nil
	}
	if defaults.CreatedAt.IsZero() {
		defaults.CreatedAt = time.Now().UTC()
	}
	m.users[defaults.TelegramID] = defaults
	return defaults, nil
}

func (m *MemoryStorage) GetUser(ctx context.Context, telegramID int64) (*storage.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.users[telegramID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &u, nil
}

func (m *MemoryStorage) InsertMeals(ctx context.Context, meals []storage.Meal) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range meals {
		m.nextID++
		meals[i].ID = m.nextID
		meals[i].TS = meals[i].TS.UTC()
		m.meals[meals[i].ID] = meals[i]
	}
	return nil
}

func (m *MemoryStorage) ListMeals(ctx context.Context, telegramID int64, from, to time.Time) ([]storage.Meal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := []storage.Meal{}
	for _, meal := range m.meals {
		if meal.TelegramID != telegramID || meal.TS.Before(from) || !meal.TS.Before(to) {
			continue
		}
		result = append(result, meal)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].TS.Equal(result[j].TS) {
			return result[i].ID < result[j].ID
		}
		return result[i].TS.Before(result[j].TS)
	})
	return result, nil
}

func (m *MemoryStorage) DeleteMeal(ctx context.Context, telegramID, id int64) (*storage.Meal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	meal, ok := m.meals[id]
	if !ok || meal.TelegramID != telegramID {
		return nil, storage.ErrNotFound
	}
	delete(m.meals, id)
	return &meal, nil
}

func (m *MemoryStorage) CountPhotoRefs(ctx context.Context, photoKey string) (int, error) {
	if photoKey == "" {
		return 0, nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := 0
	for _, meal := range m.meals {
		if meal.PhotoKey == photoKey {
			n++
		}
	}
	return n, nil
}

func (m *MemoryStorage) CreatePayment(ctx context.Context, p *storage.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	m.payments = append(m.payments, *p)
	return nil
}

func (m *MemoryStorage) ActivatePro(ctx context.Context, telegramID int64, renewsAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[telegramID]
	if !ok {
		u = storage.User{TelegramID: telegramID, DailyGoal: 2000, CreatedAt: time.Now().UTC()}
	}
	renews := renewsAt.UTC()
	u.Plan = storage.PlanPro
	u.RenewsAt = &renews
	m.users[telegramID] = u
	return nil
}

// Payments returns a copy of the recorded payments.
func (m *MemoryStorage) Payments() []storage.Payment {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]storage.Payment(nil), m.payments...)
}

func (m *MemoryStorage) Close() error {
	return nil
}
