package auth

import "context"

type contextKey string

const telegramIDContextKey contextKey = "telegram_id"

func WithTelegramID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, telegramIDContextKey, id)
}

// TelegramID returns the resolved user, 0 for anonymous requests.
func TelegramID(ctx context.Context) int64 {
	id, _ := ctx.Value(telegramIDContextKey).(int64)
	return id
}
