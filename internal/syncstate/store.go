// Package syncstate owns the client aggregate and the rules that keep it in
// step with the backend. Every mutation is confirmed by the server and then
// followed by a re-fetch of the day summary; nothing is predicted locally.
package syncstate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/fdg312/calorie-hub/internal/apiclient"
	"github.com/fdg312/calorie-hub/internal/host"
	"github.com/fdg312/calorie-hub/internal/logger"
)

const (
	pathProfile      = "/api/profile"
	pathDay          = "/api/summary?period=day"
	pathMonth        = "/api/summary?period=month"
	pathSubStatus    = "/api/subscribe/status"
	pathSubCreate    = "/api/subscribe/create"
	pathAddMeal      = "/api/addmeal"
	pathAIAdd        = "/api/aiadd"
	pathMeal         = "/api/meal/"
	pathCoach        = "/api/coach"
	pathAnalyzeDay   = "/api/analyze_day"
	pathUpload       = "/api/upload"
	uploadFileField  = "file"
	uploadKindField  = "type"
	defaultPhotoName = "photo.jpg"
)

// Caller sends one backend request. *apiclient.Client satisfies it.
type Caller interface {
	Call(ctx context.Context, path string, opts apiclient.Options) (*http.Response, error)
}

// Photo is a selected image. Reset clears the selection control and is
// called once the upload attempt is over, whatever its outcome.
type Photo struct {
	Name  string
	Data  io.Reader
	Reset func()
}

// Store holds the aggregate. Operations may overlap; each one touches only
// the fields it names.
type Store struct {
	api  Caller
	host host.Adapter
	log  *zap.Logger

	// OnInvoiceStatus receives the terminal status the host reports for an
	// invoice opened by OpenSubscription. Set before use.
	OnInvoiceStatus func(host.InvoiceStatus)

	mu          sync.Mutex
	state       State
	subscribers []func(State)

	// dayIssued numbers day re-fetches as they start; dayApplied is the
	// newest one written. An older response never overwrites a newer one.
	dayIssued  uint64
	dayApplied uint64
}

func New(api Caller, h host.Adapter, log *zap.Logger) *Store {
	if h == nil {
		h = host.Noop{}
	}
	return &Store{
		api:   api,
		host:  h,
		log:   logger.OrNop(log),
		state: initialState(),
	}
}

// Snapshot returns a deep copy of the current state.
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

// Subscribe registers fn to receive a snapshot after every change.
// fn runs on the goroutine that made the change.
func (s *Store) Subscribe(fn func(State)) {
	s.mu.Lock()
	s.subscribers = append(s.subscribers, fn)
	s.mu.Unlock()
}

func (s *Store) update(fn func(*State)) {
	s.commit(func(st *State) bool {
		fn(st)
		return true
	})
}

// commit applies fn under the lock and notifies subscribers when fn reports
// a change.
func (s *Store) commit(fn func(*State) bool) {
	s.mu.Lock()
	if !fn(&s.state) {
		s.mu.Unlock()
		return
	}
	snap := s.state.clone()
	subs := make([]func(State), len(s.subscribers))
	copy(subs, s.subscribers)
	s.mu.Unlock()

	for _, sub := range subs {
		sub(snap)
	}
}

func (s *Store) goal() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Goal
}

// Load runs the bootstrap reads. Each read falls back independently, so
// Load itself never fails; the per-endpoint errors are logged.
func (s *Store) Load(ctx context.Context) {
	goal := DefaultGoal
	if r, err := s.getJSON(ctx, pathProfile); err != nil {
		s.log.Warn("load profile failed, using default goal", zap.Error(err))
	} else if v := r.Get("goal"); present(v) {
		goal = int(v.Int())
	}
	s.update(func(st *State) { st.Goal = goal })

	gen := s.issueDay()
	day := daySummary{total: 0, remaining: goal, meals: []Meal{}}
	if r, err := s.getJSON(ctx, pathDay); err != nil {
		s.log.Warn("load day summary failed", zap.Error(err))
	} else {
		day = parseDay(r, goal)
	}
	s.applyDay(gen, day)

	var monthTotal int
	var avg float64
	if r, err := s.getJSON(ctx, pathMonth); err != nil {
		s.log.Warn("load month summary failed", zap.Error(err))
	} else {
		monthTotal = int(r.Get("total").Int())
		avg = r.Get("avgPerDay").Float()
	}
	s.update(func(st *State) {
		st.MonthTotal = monthTotal
		st.AvgPerDay = avg
	})

	plan := PlanTrial
	var trialLeft *int
	if r, err := s.getJSON(ctx, pathSubStatus); err != nil {
		s.log.Warn("load subscription status failed", zap.Error(err))
	} else {
		if p := r.Get("plan").String(); p != "" {
			plan = Plan(p)
		}
		if v := r.Get("trial_days_left"); present(v) {
			n := int(v.Int())
			trialLeft = &n
		}
	}
	s.update(func(st *State) {
		st.Plan = plan
		st.TrialDaysLeft = trialLeft
		st.Loaded = true
	})
}

// SetInputs records the add-form fields.
func (s *Store) SetInputs(description, kcal string) {
	s.update(func(st *State) {
		st.Inputs = Inputs{Description: description, Kcal: kcal}
	})
}

// AddManual creates a meal from the form. Empty or non-integer kcal is a
// no-op with no request. On a successful create the day is re-fetched and
// the inputs cleared; on failure nothing changes.
func (s *Store) AddManual(ctx context.Context, description, kcalText string) error {
	kcalText = strings.TrimSpace(kcalText)
	if kcalText == "" {
		return nil
	}
	kcal, err := strconv.Atoi(kcalText)
	if err != nil {
		return nil
	}

	body, err := apiclient.JSONBody(map[string]any{"calories": kcal, "description": description})
	if err != nil {
		return err
	}
	resp, err := s.api.Call(ctx, pathAddMeal, apiclient.Options{Method: http.MethodPost, Body: body})
	if err != nil {
		return fmt.Errorf("add meal: %w", err)
	}
	drain(resp)
	if !succeeded(resp) {
		return &StatusError{Path: pathAddMeal, Code: resp.StatusCode}
	}

	if err := s.refreshDay(ctx); err != nil {
		return err
	}
	s.clearInputs()
	return nil
}

// EstimateWithAI sends description to the estimator and keeps the result
// for display. A body that is not an estimate yields *DecodeError and skips
// the re-fetch; Estimating is cleared on every path.
func (s *Store) EstimateWithAI(ctx context.Context, description string) error {
	if strings.TrimSpace(description) == "" {
		return nil
	}
	s.update(func(st *State) {
		st.Estimating = true
		st.AI = nil
	})
	defer s.update(func(st *State) { st.Estimating = false })

	reqBody, err := apiclient.JSONBody(map[string]string{"text": description})
	if err != nil {
		return err
	}
	resp, err := s.api.Call(ctx, pathAIAdd, apiclient.Options{Method: http.MethodPost, Body: reqBody})
	if err != nil {
		return fmt.Errorf("estimate: %w", err)
	}
	// The status is not checked; a body without the estimate shape fails
	// to decode and aborts.
	body, err := readAnyBody(resp)
	if err != nil {
		return fmt.Errorf("estimate: %w", err)
	}
	est, err := decodeEstimate(body, pathAIAdd)
	if err != nil {
		return err
	}
	s.update(func(st *State) { st.AI = est })

	if err := s.refreshDay(ctx); err != nil {
		return err
	}
	s.clearInputs()
	return nil
}

// DeleteMeal deletes id and then re-fetches the day whatever the delete
// returned.
func (s *Store) DeleteMeal(ctx context.Context, id int64) error {
	path := pathMeal + strconv.FormatInt(id, 10)
	var delErr error
	resp, err := s.api.Call(ctx, path, apiclient.Options{Method: http.MethodDelete})
	switch {
	case err != nil:
		delErr = fmt.Errorf("delete meal %d: %w", id, err)
	case !succeeded(resp):
		drain(resp)
		delErr = &StatusError{Path: path, Code: resp.StatusCode}
	default:
		drain(resp)
	}
	if delErr != nil {
		s.log.Debug("delete meal did not succeed, re-fetching anyway", zap.Error(delErr))
	}
	return errors.Join(delErr, s.refreshDay(ctx))
}

// UploadPhoto sends a photo tagged with kind. A nil photo is a no-op.
func (s *Store) UploadPhoto(ctx context.Context, kind PhotoKind, photo *Photo) error {
	if photo == nil || photo.Data == nil {
		return nil
	}
	if photo.Reset != nil {
		defer photo.Reset()
	}
	if !kind.Valid() {
		return ErrInvalidPhotoKind
	}

	name := photo.Name
	if name == "" {
		name = defaultPhotoName
	}
	form := apiclient.NewForm()
	if err := form.AddField(uploadKindField, string(kind)); err != nil {
		return err
	}
	if err := form.AddFile(uploadFileField, name, photo.Data); err != nil {
		return fmt.Errorf("read photo: %w", err)
	}

	s.update(func(st *State) { st.Uploading = true })
	resp, err := s.api.Call(ctx, pathUpload, apiclient.Options{Method: http.MethodPost, Body: form})
	s.update(func(st *State) { st.Uploading = false })
	if err != nil {
		return fmt.Errorf("upload photo: %w", err)
	}
	drain(resp)
	if !succeeded(resp) {
		return &StatusError{Path: pathUpload, Code: resp.StatusCode}
	}
	return s.refreshDay(ctx)
}

// FetchCoachText loads advice into the shared text slot.
func (s *Store) FetchCoachText(ctx context.Context) error {
	return s.fetchText(ctx, pathCoach)
}

// FetchDayAnalysis loads the day analysis into the shared text slot.
func (s *Store) FetchDayAnalysis(ctx context.Context) error {
	return s.fetchText(ctx, pathAnalyzeDay)
}

func (s *Store) fetchText(ctx context.Context, path string) error {
	resp, err := s.api.Call(ctx, path, apiclient.Options{})
	if err != nil {
		return fmt.Errorf("fetch %s: %w", path, err)
	}
	body, err := readBody(resp, path)
	if err != nil {
		return err
	}
	text := string(body)
	s.update(func(st *State) { st.CoachText = text })
	return nil
}

// OpenSubscription creates an invoice and hands it to the host. The status
// the host reports later is stored and passed to OnInvoiceStatus.
func (s *Store) OpenSubscription(ctx context.Context) error {
	resp, err := s.api.Call(ctx, pathSubCreate, apiclient.Options{Method: http.MethodPost})
	if err != nil {
		return fmt.Errorf("create invoice: %w", err)
	}
	r, err := readJSON(resp, pathSubCreate)
	if err != nil {
		return err
	}
	url := r.Get("invoice_url").String()
	if url == "" {
		return &DecodeError{Path: pathSubCreate, Err: errors.New("missing invoice_url")}
	}
	s.update(func(st *State) {
		st.InvoiceURL = url
		st.InvoiceStatus = host.InvoicePending
	})

	if err := s.host.OpenInvoice(url, s.invoiceSettled); err != nil {
		return fmt.Errorf("open invoice: %w", err)
	}
	return nil
}

func (s *Store) invoiceSettled(status host.InvoiceStatus) {
	s.log.Info("invoice status", zap.String("status", string(status)))
	s.update(func(st *State) { st.InvoiceStatus = status })
	if s.OnInvoiceStatus != nil {
		s.OnInvoiceStatus(status)
	}
}

// RefreshMonth re-reads the month summary. A failed read leaves it as is.
func (s *Store) RefreshMonth(ctx context.Context) error {
	r, err := s.getJSON(ctx, pathMonth)
	if err != nil {
		return err
	}
	s.update(func(st *State) {
		st.MonthTotal = int(r.Get("total").Int())
		st.AvgPerDay = r.Get("avgPerDay").Float()
	})
	return nil
}

// refreshDay re-reads the day summary and replaces the day fields wholesale.
// A failed read leaves them untouched.
func (s *Store) refreshDay(ctx context.Context) error {
	gen := s.issueDay()
	r, err := s.getJSON(ctx, pathDay)
	if err != nil {
		return fmt.Errorf("refresh day: %w", err)
	}
	s.applyDay(gen, parseDay(r, s.goal()))
	return nil
}

func (s *Store) issueDay() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dayIssued++
	return s.dayIssued
}

func (s *Store) applyDay(gen uint64, day daySummary) {
	s.commit(func(st *State) bool {
		if gen < s.dayApplied {
			s.log.Debug("dropping stale day summary", zap.Uint64("generation", gen))
			return false
		}
		s.dayApplied = gen
		st.DayTotal = day.total
		st.Remaining = day.remaining
		st.Meals = day.meals
		return true
	})
}

func (s *Store) clearInputs() {
	s.update(func(st *State) { st.Inputs = Inputs{} })
}

func (s *Store) getJSON(ctx context.Context, path string) (gjson.Result, error) {
	resp, err := s.api.Call(ctx, path, apiclient.Options{})
	if err != nil {
		return gjson.Result{}, err
	}
	return readJSON(resp, path)
}
