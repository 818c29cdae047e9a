package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fdg312/calorie-hub/internal/storage"
)

// PostgresStorage is the Postgres implementation of storage.Storage.
// The schema lives in the migrations package.
type PostgresStorage struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, databaseURL string) (*PostgresStorage, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStorage{pool: pool}, nil
}

func (p *PostgresStorage) EnsureUser(ctx context.Context, defaults storage.User) (storage.User, error) {
	query := `
		INSERT INTO users (telegram_id, daily_goal, plan, trial_until, renews_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (telegram_id) DO NOTHING
	`
	if _, err := p.pool.Exec(ctx, query,
		defaults.TelegramID,
		defaults.DailyGoal,
		defaults.Plan,
		defaults.TrialUntil,
		defaults.RenewsAt,
	); err != nil {
		return storage.User{}, err
	}

	u, err := p.GetUser(ctx, defaults.TelegramID)
	if err != nil {
		return storage.User{}, err
	}
	return *u, nil
}

func (p *PostgresStorage) GetUser(ctx context.Context, telegramID int64) (*storage.User, error) {
	query := `
		SELECT telegram_id, daily_goal, plan, trial_until, renews_at, created_at
		FROM users
		WHERE telegram_id = $1
	`

	var u storage.User
	err := p.pool.QueryRow(ctx, query, telegramID).Scan(
		&u.TelegramID,
		&u.DailyGoal,
		&u.Plan,
		&u.TrialUntil,
		&u.RenewsAt,
		&u.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (p *PostgresStorage) InsertMeals(ctx context.Context, meals []storage.Meal) error {
	if len(meals) == 0 {
		return nil
	}

	query := `
		INSERT INTO meals (telegram_id, ts, calories, description, item_name, grams, source, photo_key, raw_json, local_ts)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, m := range meals {
		var raw any
		if len(m.RawJSON) > 0 {
			raw = m.RawJSON
		}
		batch.Queue(query,
			m.TelegramID,
			m.TS.UTC(),
			m.Calories,
			m.Description,
			m.ItemName,
			m.Grams,
			m.Source,
			m.PhotoKey,
			raw,
			m.LocalTS,
		)
	}

	results := tx.SendBatch(ctx, batch)
	for i := range meals {
		if err := results.QueryRow().Scan(&meals[i].ID); err != nil {
			results.Close()
			return err
		}
	}
	if err := results.Close(); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (p *PostgresStorage) ListMeals(ctx context.Context, telegramID int64, from, to time.Time) ([]storage.Meal, error) {
	query := `
		SELECT id, telegram_id, ts, calories, description, item_name, grams, source, photo_key, raw_json, local_ts
		FROM meals
		WHERE telegram_id = $1 AND ts >= $2 AND ts < $3
		ORDER BY ts ASC, id ASC
	`

	rows, err := p.pool.Query(ctx, query, telegramID, from.UTC(), to.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	meals := []storage.Meal{}
	for rows.Next() {
		m, err := scanMeal(rows)
		if err != nil {
			return nil, err
		}
		meals = append(meals, m)
	}

	return meals, rows.Err()
}

func (p *PostgresStorage) DeleteMeal(ctx context.Context, telegramID, id int64) (*storage.Meal, error) {
	query := `
		DELETE FROM meals
		WHERE id = $1 AND telegram_id = $2
		RETURNING id, telegram_id, ts, calories, description, item_name, grams, source, photo_key, raw_json, local_ts
	`

	m, err := scanMeal(p.pool.QueryRow(ctx, query, id, telegramID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (p *PostgresStorage) CountPhotoRefs(ctx context.Context, photoKey string) (int, error) {
	if photoKey == "" {
		return 0, nil
	}

	var n int
	err := p.pool.QueryRow(ctx, `SELECT count(*) FROM meals WHERE photo_key = $1`, photoKey).Scan(&n)
	return n, err
}

func (p *PostgresStorage) CreatePayment(ctx context.Context, pay *storage.Payment) error {
	if pay.ID == uuid.Nil {
		pay.ID = uuid.New()
	}
	if pay.CreatedAt.IsZero() {
		pay.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO payments (id, telegram_id, created_at, provider, amount, currency, period_months, status, payload)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := p.pool.Exec(ctx, query,
		pay.ID,
		pay.TelegramID,
		pay.CreatedAt,
		pay.Provider,
		pay.Amount,
		pay.Currency,
		pay.PeriodMonths,
		pay.Status,
		pay.Payload,
	)
	return err
}

func (p *PostgresStorage) ActivatePro(ctx context.Context, telegramID int64, renewsAt time.Time) error {
	query := `
		INSERT INTO users (telegram_id, plan, renews_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (telegram_id) DO UPDATE SET plan = EXCLUDED.plan, renews_at = EXCLUDED.renews_at
	`
	_, err := p.pool.Exec(ctx, query, telegramID, storage.PlanPro, renewsAt.UTC())
	return err
}

func (p *PostgresStorage) Close() error {
	p.pool.Close()
	return nil
}

func scanMeal(row pgx.Row) (storage.Meal, error) {
	var m storage.Meal
	err := row.Scan(
		&m.ID,
		&m.TelegramID,
		&m.TS,
		&m.Calories,
		&m.Description,
		&m.ItemName,
		&m.Grams,
		&m.Source,
		&m.PhotoKey,
		&m.RawJSON,
		&m.LocalTS,
	)
	m.TS = m.TS.UTC()
	return m, err
}
