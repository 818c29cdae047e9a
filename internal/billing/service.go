// Package billing reports the subscription state and issues Telegram Stars
// invoices for the monthly plan.
package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fdg312/calorie-hub/internal/config"
	"github.com/fdg312/calorie-hub/internal/logger"
	"github.com/fdg312/calorie-hub/internal/storage"
)

var (
	ErrUnauthorized = errors.New("telegram user required")
	ErrNotFound     = errors.New("user not found")
)

const (
	invoiceTitle       = "Calories PRO — 1 месяц"
	invoiceDescription = "ИИ-распознавание фото, отчёты и мониторинг."
	invoiceLabel       = "Monthly PRO"
	currencyStars      = "XTR"
	providerStars      = "stars"
	statusPending      = "pending"
	stubInvoiceBase    = "https://t.me/$invoice/dev-"
)

type Service struct {
	store            storage.Storage
	bot              *BotClient
	price            int
	subscriptionDays int
	webhookSecret    string
	defaultGoal      int
	trialDays        int
	webAppURL        string
	log              *zap.Logger
	now              func() time.Time
}

// NewService wires the Bot API client only when a bot token is configured.
// Without one, invoices are stub links so the payment flow can be exercised
// locally.
func NewService(cfg *config.Config, store storage.Storage, log *zap.Logger) *Service {
	s := &Service{
		store:            store,
		price:            cfg.InvoicePriceStars,
		subscriptionDays: cfg.SubscriptionDays,
		webhookSecret:    cfg.TelegramWebhookSecret,
		defaultGoal:      cfg.DefaultGoalKcal,
		trialDays:        cfg.TrialDays,
		webAppURL:        cfg.WebAppURL,
		log:              logger.OrNop(log).Named("billing"),
		now:              time.Now,
	}
	if s.subscriptionDays <= 0 {
		s.subscriptionDays = 30
	}
	if s.defaultGoal <= 0 {
		s.defaultGoal = 2000
	}
	if s.trialDays <= 0 {
		s.trialDays = 7
	}
	if cfg.BotToken != "" {
		s.bot = NewBotClient(cfg.TelegramAPIBase, cfg.BotToken)
	}
	return s
}

// Status reports the plan. trial_days_left counts whole days left, floored
// at zero, for any user with a trial end date, pro included.
func (s *Service) Status(ctx context.Context, tgID int64) (StatusResponse, error) {
	u, err := s.store.GetUser(ctx, tgID)
	if errors.Is(err, storage.ErrNotFound) {
		return StatusResponse{}, ErrNotFound
	}
	if err != nil {
		return StatusResponse{}, fmt.Errorf("failed to get user: %w", err)
	}

	resp := StatusResponse{
		Plan:       u.Plan,
		TrialUntil: u.TrialUntil,
		RenewsAt:   u.RenewsAt,
	}
	if u.TrialUntil != nil {
		left := max(0, int(u.TrialUntil.Sub(s.now())/(24*time.Hour)))
		resp.TrialDaysLeft = &left
	}
	return resp, nil
}

// Create issues a one-month invoice and records it as a pending payment.
func (s *Service) Create(ctx context.Context, tgID int64) (CreateResponse, error) {
	if s.bot != nil && tgID == 0 {
		return CreateResponse{}, ErrUnauthorized
	}

	inv := s.monthlyInvoice(tgID)

	var link string
	if s.bot == nil {
		link = stubInvoiceBase + uuid.NewString()
	} else {
		var err error
		link, err = s.bot.CreateInvoiceLink(ctx, inv)
		if err != nil {
			return CreateResponse{}, err
		}
	}

	if err := s.store.CreatePayment(ctx, &storage.Payment{
		TelegramID:   tgID,
		Provider:     providerStars,
		Amount:       s.price,
		Currency:     currencyStars,
		PeriodMonths: 1,
		Status:       statusPending,
		Payload:      inv.Payload,
	}); err != nil {
		return CreateResponse{}, fmt.Errorf("failed to record payment: %w", err)
	}

	s.log.Info("invoice created",
		zap.Int64("telegram_id", tgID),
		zap.Int("amount", s.price),
		zap.Bool("stub", s.bot == nil),
	)
	return CreateResponse{InvoiceURL: link}, nil
}

// monthlyInvoice describes one month of PRO for tgID.
func (s *Service) monthlyInvoice(tgID int64) InvoiceRequest {
	return InvoiceRequest{
		Title:       invoiceTitle,
		Description: invoiceDescription,
		Payload:     fmt.Sprintf("sub_monthly:%d:%d", tgID, s.now().Unix()),
		Currency:    currencyStars,
		Prices:      []LabeledPrice{{Label: invoiceLabel, Amount: s.price}},
	}
}
