// Package host adapts the embedding chat-platform container: theme, identity
// credential and the native invoice dialog. When no host is present the
// no-op adapter supplies fallbacks; that is the normal non-embedded path.
package host

import (
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/fdg312/calorie-hub/internal/config"
	"github.com/fdg312/calorie-hub/internal/logger"
)

// ErrNoHost is returned by capabilities only an embedding host provides.
var ErrNoHost = errors.New("no embedding host")

// InvoiceStatus is the terminal status the host reports for an invoice.
type InvoiceStatus string

const (
	InvoicePaid      InvoiceStatus = "paid"
	InvoiceCancelled InvoiceStatus = "cancelled"
	InvoiceFailed    InvoiceStatus = "failed"
	InvoicePending   InvoiceStatus = "pending"
)

// Adapter is what the client needs from its host.
type Adapter interface {
	Embedded() bool
	Theme() ThemeTokens
	// InitData is the opaque per-session identity string. It is never parsed here.
	InitData() string
	Expand()
	// OpenInvoice hands url to the host's invoice UI. onStatus is called once,
	// from another goroutine, when the host reports a status.
	OpenInvoice(url string, onStatus func(InvoiceStatus)) error
}

// Snapshot is what an embedding host hands over at launch.
type Snapshot struct {
	InitData    string
	ThemeParams map[string]string
	Invoices    InvoiceOpener
	// OnExpand is invoked on each expand request; may be nil.
	OnExpand func()
}

// Noop is the adapter for a non-embedded context.
type Noop struct{}

// NewNoop applies the fallback theme to scope (DefaultScope when nil).
func NewNoop(scope *Scope) Noop {
	if scope == nil {
		scope = DefaultScope
	}
	scope.Apply(FallbackTheme())
	return Noop{}
}

func (Noop) Embedded() bool { return false }

func (Noop) Theme() ThemeTokens { return FallbackTheme() }

func (Noop) InitData() string { return "" }

func (Noop) Expand() {}

func (Noop) OpenInvoice(string, func(InvoiceStatus)) error { return ErrNoHost }

// Telegram is the adapter for the chat-platform WebApp container.
type Telegram struct {
	initData string
	invoices InvoiceOpener
	onExpand func()
	scope    *Scope
	log      *zap.Logger

	mu       sync.RWMutex
	theme    ThemeTokens
	expanded atomic.Bool
}

// NewTelegram builds the embedded adapter, requests a full-viewport expand
// and publishes the projected theme to scope (DefaultScope when nil).
func NewTelegram(snap Snapshot, scope *Scope, log *zap.Logger) *Telegram {
	if scope == nil {
		scope = DefaultScope
	}
	if snap.Invoices == nil {
		snap.Invoices = ViewOpener{}
	}
	t := &Telegram{
		initData: snap.InitData,
		invoices: snap.Invoices,
		onExpand: snap.OnExpand,
		scope:    scope,
		log:      logger.OrNop(log),
	}
	t.Expand()
	t.SetThemeParams(snap.ThemeParams)
	return t
}

func (t *Telegram) Embedded() bool { return true }

func (t *Telegram) InitData() string { return t.initData }

func (t *Telegram) Theme() ThemeTokens {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.theme
}

// Expand is idempotent and fire-and-forget.
func (t *Telegram) Expand() {
	t.expanded.Store(true)
	if t.onExpand != nil {
		t.onExpand()
	}
}

// Expanded reports whether an expand was requested.
func (t *Telegram) Expanded() bool { return t.expanded.Load() }

// SetThemeParams handles a theme change signalled by the host. Tokens are
// re-derived from fallback plus the new params and written to the scope.
func (t *Telegram) SetThemeParams(params map[string]string) {
	theme := projectTheme(params)
	t.mu.Lock()
	t.theme = theme
	t.mu.Unlock()
	t.scope.Apply(theme)
}

func (t *Telegram) OpenInvoice(url string, onStatus func(InvoiceStatus)) error {
	if strings.TrimSpace(url) == "" {
		return errors.New("empty invoice url")
	}
	go func() {
		status, err := t.invoices.Open(url)
		if err != nil {
			t.log.Warn("invoice presentation failed", zap.Error(err))
			status = InvoiceFailed
		}
		if onStatus != nil {
			onStatus(status)
		}
	}()
	return nil
}

// FromEnv picks the adapter from config: an explicit HOST_MODE, otherwise the
// presence of init-data or theme params marks an embedded launch.
func FromEnv(cfg *config.Config, scope *Scope, log *zap.Logger) Adapter {
	log = logger.OrNop(log)
	params := parseThemeParams(cfg.TelegramThemeParams, log)

	var embedded bool
	switch cfg.HostMode {
	case config.HostModeTelegram:
		embedded = true
	case config.HostModeNone:
	default:
		embedded = cfg.TelegramInitData != "" || len(params) > 0
	}

	if !embedded {
		log.Info("host: not embedded, using fallback theme")
		return NewNoop(scope)
	}

	var opener InvoiceOpener = ViewOpener{}
	if cfg.InvoiceOpener != "" {
		opener = CommandOpener{Command: cfg.InvoiceOpener}
	}
	log.Info("host: embedded",
		zap.String("init_data", config.SetOrNot(cfg.TelegramInitData)),
		zap.Int("theme_params", len(params)))
	return NewTelegram(Snapshot{
		InitData:    cfg.TelegramInitData,
		ThemeParams: params,
		Invoices:    opener,
	}, scope, log)
}

func parseThemeParams(raw string, log *zap.Logger) map[string]string {
	if raw == "" {
		return nil
	}
	var params map[string]string
	if err := json.Unmarshal([]byte(raw), &params); err != nil {
		log.Warn("host: ignoring malformed TELEGRAM_THEME_PARAMS", zap.Error(err))
		return nil
	}
	return params
}
