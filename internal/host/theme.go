package host

import "sync"

// ThemeTokens is the presentation-ready colour set.
type ThemeTokens struct {
	Background      string
	Foreground      string
	MutedForeground string
	Button          string
}

// FallbackTheme is used when no host is present or a host omits a token.
func FallbackTheme() ThemeTokens {
	return ThemeTokens{
		Background:      "#ffffff",
		Foreground:      "#111827",
		MutedForeground: "#6b7280",
		Button:          "#111827",
	}
}

// Style variable names written into a Scope.
const (
	VarBackground = "--tg-bg"
	VarText       = "--tg-text"
	VarHint       = "--tg-hint"
	VarButton     = "--tg-button"
)

// projectTheme maps host theme params onto the fallback tokens.
// Params the host does not supply (or sends empty) keep the fallback.
func projectTheme(params map[string]string) ThemeTokens {
	t := FallbackTheme()
	set := func(dst *string, key string) {
		if v := params[key]; v != "" {
			*dst = v
		}
	}
	set(&t.Background, "bg_color")
	set(&t.Foreground, "text_color")
	set(&t.MutedForeground, "hint_color")
	set(&t.Button, "button_color")
	return t
}

// Scope is a process-wide table of style variables, so presentation code can
// read resolved tokens without being handed the adapter.
type Scope struct {
	mu   sync.RWMutex
	vars map[string]string
}

// DefaultScope is the scope adapters write to unless given another one.
var DefaultScope = NewScope()

// NewScope returns a scope preloaded with the fallback tokens.
func NewScope() *Scope {
	s := &Scope{vars: make(map[string]string, 4)}
	s.Apply(FallbackTheme())
	return s
}

// Set writes one variable. Empty values are ignored.
func (s *Scope) Set(name, value string) {
	if value == "" {
		return
	}
	s.mu.Lock()
	s.vars[name] = value
	s.mu.Unlock()
}

// Get reads one variable.
func (s *Scope) Get(name string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.vars[name]
}

// Apply writes every token of t.
func (s *Scope) Apply(t ThemeTokens) {
	s.Set(VarBackground, t.Background)
	s.Set(VarText, t.Foreground)
	s.Set(VarHint, t.MutedForeground)
	s.Set(VarButton, t.Button)
}

// Theme reads the tokens back.
func (s *Scope) Theme() ThemeTokens {
	return ThemeTokens{
		Background:      s.Get(VarBackground),
		Foreground:      s.Get(VarText),
		MutedForeground: s.Get(VarHint),
		Button:          s.Get(VarButton),
	}
}
