package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/fdg312/calorie-hub/internal/storage"
)

// WebhookSecretHeader carries the secret_token set with setWebhook.
const WebhookSecretHeader = "X-Telegram-Bot-Api-Secret-Token"

var ErrInvalidUpdate = errors.New("invalid telegram update")

const (
	payloadPrefix = "sub_monthly:"
	statusPaid    = "paid"

	commandStart      = "/start"
	commandSubscribe  = "/subscribe"
	callbackSubscribe = "subscribe"
)

// HandleUpdate processes one Bot API update. Checkout queries are answered;
// a successful payment switches the payer to pro and records the payment.
// /start registers the user and /subscribe, or the matching button, sends
// the monthly invoice. Other updates are ignored.
func (s *Service) HandleUpdate(ctx context.Context, raw []byte) error {
	if !gjson.ValidBytes(raw) {
		return ErrInvalidUpdate
	}
	update := gjson.ParseBytes(raw)

	if q := update.Get("pre_checkout_query"); q.Exists() {
		return s.answerCheckout(ctx, q)
	}
	if cb := update.Get("callback_query"); cb.Exists() {
		return s.handleCallback(ctx, cb)
	}

	msg := update.Get("message")
	if !msg.Exists() {
		return nil
	}
	from := msg.Get("from.id").Int()
	chat := chatID(msg, from)
	if sp := msg.Get("successful_payment"); sp.Exists() {
		return s.recordPayment(ctx, from, chat, sp)
	}
	switch command(msg.Get("text").String()) {
	case commandStart:
		return s.start(ctx, from, chat)
	case commandSubscribe:
		return s.sendSubscription(ctx, from, chat)
	}
	return nil
}

// command returns the bot command a message starts with, without arguments
// or the @botname suffix.
func command(text string) string {
	if !strings.HasPrefix(text, "/") {
		return ""
	}
	name, _, _ := strings.Cut(strings.Fields(text)[0], "@")
	return name
}

func chatID(msg gjson.Result, fallback int64) int64 {
	if id := msg.Get("chat.id").Int(); id != 0 {
		return id
	}
	return fallback
}

// start makes sure the user exists with a trial and replies with the
// tracker and subscription buttons.
func (s *Service) start(ctx context.Context, tgID, chat int64) error {
	if tgID == 0 {
		return fmt.Errorf("%w: /start without sender", ErrInvalidUpdate)
	}
	trialUntil := s.now().UTC().AddDate(0, 0, s.trialDays)
	if _, err := s.store.EnsureUser(ctx, storage.User{
		TelegramID: tgID,
		DailyGoal:  s.defaultGoal,
		Plan:       storage.PlanTrial,
		TrialUntil: &trialUntil,
	}); err != nil {
		return fmt.Errorf("failed to ensure user: %w", err)
	}
	s.log.Info("bot user started", zap.Int64("telegram_id", tgID))

	if s.bot == nil {
		s.log.Warn("/start not answered, no bot token", zap.Int64("telegram_id", tgID))
		return nil
	}

	var rows [][]InlineButton
	if s.webAppURL != "" {
		rows = append(rows, []InlineButton{{Text: "Открыть трекер", WebApp: &WebAppInfo{URL: s.webAppURL}}})
	}
	rows = append(rows, []InlineButton{{
		Text:         fmt.Sprintf("Оформить PRO %d⭐", s.price),
		CallbackData: callbackSubscribe,
	}})
	text := fmt.Sprintf("Добро пожаловать! %d-дневный триал активирован.", s.trialDays)
	return s.bot.SendMessage(ctx, chat, text, rows...)
}

// sendSubscription posts the monthly invoice into the chat.
func (s *Service) sendSubscription(ctx context.Context, tgID, chat int64) error {
	if tgID == 0 {
		return fmt.Errorf("%w: /subscribe without sender", ErrInvalidUpdate)
	}
	if s.bot == nil {
		s.log.Warn("invoice not sent, no bot token", zap.Int64("telegram_id", tgID))
		return nil
	}
	if err := s.bot.SendInvoice(ctx, chat, s.monthlyInvoice(tgID)); err != nil {
		return err
	}
	s.log.Info("invoice sent", zap.Int64("telegram_id", tgID), zap.Int("amount", s.price))
	return nil
}

func (s *Service) handleCallback(ctx context.Context, cb gjson.Result) error {
	if s.bot == nil {
		return nil
	}
	if err := s.bot.AnswerCallbackQuery(ctx, cb.Get("id").String()); err != nil {
		return err
	}
	if cb.Get("data").String() != callbackSubscribe {
		return nil
	}
	from := cb.Get("from.id").Int()
	return s.sendSubscription(ctx, from, chatID(cb.Get("message"), from))
}

func (s *Service) answerCheckout(ctx context.Context, q gjson.Result) error {
	id := q.Get("id").String()
	payload := q.Get("invoice_payload").String()
	ok := strings.HasPrefix(payload, payloadPrefix) &&
		q.Get("currency").String() == currencyStars &&
		int(q.Get("total_amount").Int()) == s.price

	if s.bot == nil {
		s.log.Warn("pre-checkout query not answered, no bot token", zap.String("id", id))
		return nil
	}

	msg := ""
	if !ok {
		msg = "Счёт устарел, оформите подписку заново."
	}
	if err := s.bot.AnswerPreCheckoutQuery(ctx, id, ok, msg); err != nil {
		return err
	}
	s.log.Info("pre-checkout answered", zap.String("id", id), zap.Bool("ok", ok))
	return nil
}

func (s *Service) recordPayment(ctx context.Context, tgID, chat int64, sp gjson.Result) error {
	if tgID == 0 {
		return fmt.Errorf("%w: payment without sender", ErrInvalidUpdate)
	}

	renewsAt := s.now().UTC().AddDate(0, 0, s.subscriptionDays)
	if err := s.store.ActivatePro(ctx, tgID, renewsAt); err != nil {
		return fmt.Errorf("failed to activate plan: %w", err)
	}

	if err := s.store.CreatePayment(ctx, &storage.Payment{
		TelegramID:   tgID,
		Provider:     providerStars,
		Amount:       int(sp.Get("total_amount").Int()),
		Currency:     sp.Get("currency").String(),
		PeriodMonths: 1,
		Status:       statusPaid,
		Payload:      sp.Raw,
	}); err != nil {
		return fmt.Errorf("failed to record payment: %w", err)
	}

	s.log.Info("subscription activated",
		zap.Int64("telegram_id", tgID),
		zap.Time("renews_at", renewsAt),
		zap.String("charge_id", sp.Get("telegram_payment_charge_id").String()),
	)

	if s.bot != nil {
		if err := s.bot.SendMessage(ctx, chat, "Спасибо! Подписка PRO активирована на 1 месяц ✅"); err != nil {
			s.log.Warn("payment confirmation not sent", zap.Int64("telegram_id", tgID), zap.Error(err))
		}
	}
	return nil
}
