package syncstate

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fdg312/calorie-hub/internal/apiclient"
	"github.com/fdg312/calorie-hub/internal/host"
)

const (
	keyProfile = "GET /api/profile"
	keyDay     = "GET /api/summary?period=day"
	keyMonth   = "GET /api/summary?period=month"
	keySub     = "GET /api/subscribe/status"
)

// backend routes on "METHOD uri" and counts every request it sees.
type backend struct {
	mu       sync.Mutex
	calls    map[string]int
	total    int
	handlers map[string]http.HandlerFunc
}

func newBackend(t *testing.T) (*backend, *httptest.Server) {
	t.Helper()
	b := &backend{calls: map[string]int{}, handlers: map[string]http.HandlerFunc{}}
	srv := httptest.NewServer(b)
	t.Cleanup(srv.Close)
	return b, srv
}

func (b *backend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	key := r.Method + " " + r.URL.RequestURI()
	b.mu.Lock()
	b.calls[key]++
	b.total++
	h := b.handlers[key]
	b.mu.Unlock()
	if h == nil {
		http.NotFound(w, r)
		return
	}
	h(w, r)
}

func (b *backend) on(key string, h http.HandlerFunc) {
	b.mu.Lock()
	b.handlers[key] = h
	b.mu.Unlock()
}

func (b *backend) count(key string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[key]
}

func (b *backend) requests() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.total
}

func reply(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}
}

func newStore(srv *httptest.Server, h host.Adapter) *Store {
	return New(apiclient.New(srv.URL, h), h, nil)
}

// seeded returns a store loaded against a backend with a 2000 goal and one
// 300 kcal meal.
func seeded(t *testing.T) (*backend, *Store) {
	t.Helper()
	b, srv := newBackend(t)
	b.on(keyProfile, reply(200, `{"goal":2000}`))
	b.on(keyDay, reply(200, `{"total":300,"remaining":1700,"items":[{"id":1,"time":"08:10","kcal":300,"item":"Oatmeal"}]}`))
	b.on(keyMonth, reply(200, `{"total":9000,"avgPerDay":290.3}`))
	b.on(keySub, reply(200, `{"plan":"trial","trial_days_left":5}`))

	s := newStore(srv, host.Noop{})
	s.Load(context.Background())
	return b, s
}

// failingCaller fails every request for which fail returns true.
type failingCaller struct {
	inner Caller
	fail  func(path string, opts apiclient.Options) bool
	mu    sync.Mutex
	calls int
}

func (f *failingCaller) Call(ctx context.Context, path string, opts apiclient.Options) (*http.Response, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.fail(path, opts) {
		return nil, errors.New("connection refused")
	}
	return f.inner.Call(ctx, path, opts)
}

func TestLoadWithBackendUnreachable(t *testing.T) {
	_, srv := newBackend(t)
	srv.Close()

	s := newStore(srv, host.Noop{})
	s.Load(context.Background())

	st := s.Snapshot()
	assert.Equal(t, 2200, st.Goal)
	assert.Equal(t, 0, st.DayTotal)
	assert.Equal(t, 2200, st.Remaining)
	assert.Equal(t, 2200, st.DisplayRemaining())
	assert.Empty(t, st.Meals)
	assert.NotNil(t, st.Meals)
	assert.Equal(t, 0, st.MonthTotal)
	assert.Equal(t, 0.0, st.AvgPerDay)
	assert.Equal(t, PlanTrial, st.Plan)
	assert.Nil(t, st.TrialDaysLeft)
	assert.Equal(t, DefaultTrialDays, st.TrialDays())
	assert.True(t, st.Loaded)
}

func TestLoadFallsBackPerEndpoint(t *testing.T) {
	b, srv := newBackend(t)
	b.on(keyProfile, reply(200, `{"goal":1800}`))
	b.on(keyDay, reply(500, `{"error":{"code":"internal_error","message":"boom"}}`))
	b.on(keyMonth, reply(200, `not json`))
	b.on(keySub, reply(200, `{"plan":"pro"}`))

	s := newStore(srv, host.Noop{})
	s.Load(context.Background())

	st := s.Snapshot()
	assert.Equal(t, 1800, st.Goal)
	assert.Equal(t, 0, st.DayTotal)
	assert.Equal(t, 1800, st.Remaining)
	assert.Equal(t, 0, st.MonthTotal)
	assert.Equal(t, PlanPro, st.Plan)
	assert.Nil(t, st.TrialDaysLeft)
}

func TestLoadDerivesRemainingWhenOmitted(t *testing.T) {
	b, srv := newBackend(t)
	b.on(keyProfile, reply(200, `{"goal":2000}`))
	b.on(keyDay, reply(200, `{"total":450,"items":[]}`))

	s := newStore(srv, nil)
	s.Load(context.Background())

	assert.Equal(t, 1550, s.Snapshot().Remaining)
}

func TestOverGoalIsClamped(t *testing.T) {
	b, srv := newBackend(t)
	b.on(keyProfile, reply(200, `{"goal":2000}`))
	b.on(keyDay, reply(200, `{"total":2500,"remaining":-500,"items":[]}`))

	s := newStore(srv, nil)
	s.Load(context.Background())

	st := s.Snapshot()
	assert.Equal(t, -500, st.Remaining)
	assert.Equal(t, 0, st.DisplayRemaining())
	assert.Equal(t, 100.0, st.DayPercent())
}

func TestLoadParsesDay(t *testing.T) {
	_, s := seeded(t)

	st := s.Snapshot()
	assert.Equal(t, 2000, st.Goal)
	assert.Equal(t, 300, st.DayTotal)
	assert.Equal(t, 1700, st.Remaining)
	assert.Equal(t, []Meal{{ID: 1, Time: "08:10", Kcal: 300, Item: "Oatmeal"}}, st.Meals)
	assert.Equal(t, 9000, st.MonthTotal)
	assert.InDelta(t, 290.3, st.AvgPerDay, 1e-9)
	require.NotNil(t, st.TrialDaysLeft)
	assert.Equal(t, 5, *st.TrialDaysLeft)
}

func TestAddManualInvalidInputMakesNoCalls(t *testing.T) {
	for _, kcal := range []string{"", "   ", "abc", "12.5", "1e3"} {
		t.Run(kcal, func(t *testing.T) {
			b, s := seeded(t)
			s.SetInputs("toast", kcal)
			before := b.requests()
			want := s.Snapshot()

			require.NoError(t, s.AddManual(context.Background(), "toast", kcal))

			assert.Equal(t, before, b.requests())
			assert.Equal(t, want, s.Snapshot())
		})
	}
}

func TestAddManualSuccessRefetchesOnce(t *testing.T) {
	b, s := seeded(t)
	got := make(chan []byte, 1)
	b.on("POST /api/addmeal", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		got <- body
		reply(200, `{"ok":true}`)(w, r)
	})
	b.on(keyDay, reply(200, `{"total":650,"remaining":1350,"items":[{"id":1,"time":"08:10","kcal":300,"item":"Oatmeal"},{"id":2,"time":"12:00","kcal":350,"item":"Soup"}]}`))
	s.SetInputs("Soup", "350")
	daysBefore := b.count(keyDay)

	require.NoError(t, s.AddManual(context.Background(), "Soup", "350"))

	assert.JSONEq(t, `{"calories":350,"description":"Soup"}`, string(<-got))
	assert.Equal(t, daysBefore+1, b.count(keyDay))
	st := s.Snapshot()
	assert.Equal(t, 650, st.DayTotal)
	assert.Len(t, st.Meals, 2)
	assert.Equal(t, Inputs{}, st.Inputs)
}

func TestAddManualFailureLeavesState(t *testing.T) {
	b, s := seeded(t)
	b.on("POST /api/addmeal", reply(500, `{}`))
	s.SetInputs("Soup", "350")
	want := s.Snapshot()
	daysBefore := b.count(keyDay)

	err := s.AddManual(context.Background(), "Soup", "350")

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, 500, statusErr.Code)
	assert.Equal(t, daysBefore, b.count(keyDay))
	assert.Equal(t, want, s.Snapshot())
}

func TestDeleteMealAlwaysRefetchesOnce(t *testing.T) {
	cases := []struct {
		name     string
		handler  http.HandlerFunc
		dropConn bool
	}{
		{name: "success", handler: reply(200, `{"ok":true}`)},
		{name: "not found", handler: reply(404, `{}`)},
		{name: "transport failure", dropConn: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b, srv := newBackend(t)
			b.on(keyDay, reply(200, `{"total":0,"remaining":2200,"items":[]}`))
			if tc.handler != nil {
				b.on("DELETE /api/meal/7", tc.handler)
			}
			api := &failingCaller{
				inner: apiclient.New(srv.URL, nil),
				fail: func(path string, opts apiclient.Options) bool {
					return tc.dropConn && opts.Method == http.MethodDelete
				},
			}
			s := New(api, nil, nil)

			err := s.DeleteMeal(context.Background(), 7)

			assert.Equal(t, 1, b.count(keyDay))
			if tc.name == "success" {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestEstimateWithAIBlankMakesNoCalls(t *testing.T) {
	b, s := seeded(t)
	before := b.requests()

	require.NoError(t, s.EstimateWithAI(context.Background(), "  \t"))

	assert.Equal(t, before, b.requests())
}

func TestEstimateWithAIStoresResult(t *testing.T) {
	b, s := seeded(t)
	b.on("POST /api/aiadd", reply(200, `{"items":[{"name":"Borscht","grams":300,"kcal":180}],"total_kcal":180}`))
	s.SetInputs("bowl of borscht", "")
	daysBefore := b.count(keyDay)

	var sawEstimating bool
	s.Subscribe(func(st State) {
		if st.Estimating {
			sawEstimating = true
		}
	})

	require.NoError(t, s.EstimateWithAI(context.Background(), "bowl of borscht"))

	st := s.Snapshot()
	require.NotNil(t, st.AI)
	assert.Equal(t, 180, st.AI.TotalKcal)
	assert.Equal(t, []AIItem{{Name: "Borscht", Grams: 300, Kcal: 180}}, st.AI.Items)
	assert.Equal(t, daysBefore+1, b.count(keyDay))
	assert.Equal(t, Inputs{}, st.Inputs)
	assert.False(t, st.Estimating)
	assert.True(t, sawEstimating)
}

func TestEstimateWithAIDecodeFailureAborts(t *testing.T) {
	for name, body := range map[string]string{
		"not json":      `<html>oops</html>`,
		"wrong shape":   `{"items":"many","total_kcal":"lots"}`,
		"missing total": `{"items":[]}`,
	} {
		t.Run(name, func(t *testing.T) {
			b, s := seeded(t)
			b.on("POST /api/aiadd", reply(200, body))
			s.SetInputs("pizza", "")
			daysBefore := b.count(keyDay)

			err := s.EstimateWithAI(context.Background(), "pizza")

			var decodeErr *DecodeError
			require.ErrorAs(t, err, &decodeErr)
			assert.Equal(t, daysBefore, b.count(keyDay))
			st := s.Snapshot()
			assert.False(t, st.Estimating)
			assert.Nil(t, st.AI)
			assert.Equal(t, "pizza", st.Inputs.Description)
		})
	}
}

func TestEstimateWithAIIgnoresStatus(t *testing.T) {
	b, s := seeded(t)
	b.on("POST /api/aiadd", reply(502, `{"items":[{"name":"Soup","grams":250,"kcal":120}],"total_kcal":120}`))
	daysBefore := b.count(keyDay)

	require.NoError(t, s.EstimateWithAI(context.Background(), "soup"))

	st := s.Snapshot()
	require.NotNil(t, st.AI)
	assert.Equal(t, 120, st.AI.TotalKcal)
	assert.Equal(t, daysBefore+1, b.count(keyDay))
}

func TestEstimateWithAIErrorEnvelopeIsDecodeError(t *testing.T) {
	b, s := seeded(t)
	b.on("POST /api/aiadd", reply(400, `{"error":{"code":"empty_text","message":"text is required"}}`))
	daysBefore := b.count(keyDay)

	err := s.EstimateWithAI(context.Background(), "soup")

	var decodeErr *DecodeError
	require.ErrorAs(t, err, &decodeErr)
	assert.Equal(t, daysBefore, b.count(keyDay))
	assert.Nil(t, s.Snapshot().AI)
}

func TestSubscribersSeeEveryCommit(t *testing.T) {
	_, srv := newBackend(t)
	s := newStore(srv, host.Noop{})

	var first, second []string
	s.Subscribe(func(st State) { first = append(first, st.Inputs.Description) })
	s.Subscribe(func(st State) { second = append(second, st.Inputs.Description) })

	s.SetInputs("tea", "")
	s.SetInputs("toast", "120")

	assert.Equal(t, []string{"tea", "toast"}, first)
	assert.Equal(t, first, second)
}

func TestUploadPhotoWithoutFile(t *testing.T) {
	b, s := seeded(t)
	before := b.requests()
	var sawUploading bool
	s.Subscribe(func(st State) {
		if st.Uploading {
			sawUploading = true
		}
	})

	require.NoError(t, s.UploadPhoto(context.Background(), PhotoDish, nil))

	assert.Equal(t, before, b.requests())
	assert.False(t, sawUploading)
}

func TestUploadPhotoInvalidKind(t *testing.T) {
	b, s := seeded(t)
	before := b.requests()
	resets := 0

	err := s.UploadPhoto(context.Background(), "selfie", &Photo{Data: bytes.NewReader([]byte("x")), Reset: func() { resets++ }})

	assert.ErrorIs(t, err, ErrInvalidPhotoKind)
	assert.Equal(t, before, b.requests())
	assert.Equal(t, 1, resets)
	assert.False(t, s.Snapshot().Uploading)
}

func TestUploadPhoto(t *testing.T) {
	cases := []struct {
		name       string
		status     int
		wantRefetch int
	}{
		{name: "accepted", status: 200, wantRefetch: 1},
		{name: "subscription required", status: 402, wantRefetch: 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b, s := seeded(t)
			var mu sync.Mutex
			var kind, filename string
			b.on("POST /api/upload", func(w http.ResponseWriter, r *http.Request) {
				mu.Lock()
				if assert.NoError(t, r.ParseMultipartForm(1<<20)) {
					kind = r.FormValue("type")
					if _, hdr, err := r.FormFile("file"); assert.NoError(t, err) {
						filename = hdr.Filename
					}
				}
				mu.Unlock()
				reply(tc.status, `{}`)(w, r)
			})
			daysBefore := b.count(keyDay)
			resets := 0

			err := s.UploadPhoto(context.Background(), PhotoReceipt, &Photo{
				Name:  "check.jpg",
				Data:  bytes.NewReader([]byte("\xff\xd8\xff\xe0jpeg")),
				Reset: func() { resets++ },
			})

			if tc.status == 200 {
				assert.NoError(t, err)
			} else {
				var statusErr *StatusError
				assert.ErrorAs(t, err, &statusErr)
			}
			mu.Lock()
			assert.Equal(t, "receipt", kind)
			assert.Equal(t, "check.jpg", filename)
			mu.Unlock()
			assert.Equal(t, daysBefore+tc.wantRefetch, b.count(keyDay))
			assert.Equal(t, 1, resets)
			assert.False(t, s.Snapshot().Uploading)
		})
	}
}

func TestCoachAndAnalysisShareSlot(t *testing.T) {
	b, s := seeded(t)
	b.on("GET /api/coach", reply(200, "Drink more water."))
	b.on("GET /api/analyze_day", reply(200, "Protein is low today."))

	require.NoError(t, s.FetchCoachText(context.Background()))
	assert.Equal(t, "Drink more water.", s.Snapshot().CoachText)

	require.NoError(t, s.FetchDayAnalysis(context.Background()))
	assert.Equal(t, "Protein is low today.", s.Snapshot().CoachText)

	b.on("GET /api/coach", reply(503, "busy"))
	assert.Error(t, s.FetchCoachText(context.Background()))
	assert.Equal(t, "Protein is low today.", s.Snapshot().CoachText)
}

func TestOpenSubscriptionReportsStatus(t *testing.T) {
	b, srv := newBackend(t)
	b.on("POST /api/subscribe/create", reply(200, `{"invoice_url":"https://t.me/$inv"}`))
	opener := &host.StaticOpener{Status: host.InvoicePaid}
	h := host.NewTelegram(host.Snapshot{InitData: "hash=1", Invoices: opener}, host.NewScope(), nil)
	s := newStore(srv, h)

	got := make(chan host.InvoiceStatus, 1)
	s.OnInvoiceStatus = func(status host.InvoiceStatus) { got <- status }

	require.NoError(t, s.OpenSubscription(context.Background()))

	select {
	case status := <-got:
		assert.Equal(t, host.InvoicePaid, status)
	case <-time.After(time.Second):
		t.Fatal("invoice status not delivered")
	}
	st := s.Snapshot()
	assert.Equal(t, "https://t.me/$inv", st.InvoiceURL)
	assert.Equal(t, host.InvoicePaid, st.InvoiceStatus)
	assert.Equal(t, []string{"https://t.me/$inv"}, opener.Opened())
}

func TestOpenSubscriptionWithoutHost(t *testing.T) {
	b, srv := newBackend(t)
	b.on("POST /api/subscribe/create", reply(200, `{"invoice_url":"https://t.me/$inv"}`))
	s := newStore(srv, host.Noop{})

	err := s.OpenSubscription(context.Background())

	assert.ErrorIs(t, err, host.ErrNoHost)
	assert.Equal(t, "https://t.me/$inv", s.Snapshot().InvoiceURL)
}

func TestOpenSubscriptionMissingURL(t *testing.T) {
	b, srv := newBackend(t)
	b.on("POST /api/subscribe/create", reply(200, `{}`))
	s := newStore(srv, host.Noop{})

	var decodeErr *DecodeError
	assert.ErrorAs(t, s.OpenSubscription(context.Background()), &decodeErr)
	assert.Empty(t, s.Snapshot().InvoiceURL)
}

func TestStaleDayRefetchIsDropped(t *testing.T) {
	b, srv := newBackend(t)
	b.on("DELETE /api/meal/1", reply(200, `{}`))
	b.on("DELETE /api/meal/2", reply(200, `{}`))

	firstArrived := make(chan struct{})
	release := make(chan struct{})
	var mu sync.Mutex
	n := 0
	b.on(keyDay, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		n++
		first := n == 1
		mu.Unlock()
		if first {
			close(firstArrived)
			<-release
			reply(200, `{"total":100,"items":[]}`)(w, r)
			return
		}
		reply(200, `{"total":200,"items":[]}`)(w, r)
	})
	s := newStore(srv, nil)

	done := make(chan error, 1)
	go func() { done <- s.DeleteMeal(context.Background(), 1) }()
	<-firstArrived

	require.NoError(t, s.DeleteMeal(context.Background(), 2))
	assert.Equal(t, 200, s.Snapshot().DayTotal)

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, 200, s.Snapshot().DayTotal)
}

func TestRefreshMonth(t *testing.T) {
	b, s := seeded(t)
	b.on(keyMonth, reply(200, `{"total":12000,"avgPerDay":387.1}`))

	require.NoError(t, s.RefreshMonth(context.Background()))
	assert.Equal(t, 12000, s.Snapshot().MonthTotal)

	b.on(keyMonth, reply(500, `{}`))
	assert.Error(t, s.RefreshMonth(context.Background()))
	assert.Equal(t, 12000, s.Snapshot().MonthTotal)
}

func TestSnapshotIsACopy(t *testing.T) {
	_, s := seeded(t)

	st := s.Snapshot()
	st.Meals[0].Kcal = 9999
	*st.TrialDaysLeft = 0

	fresh := s.Snapshot()
	assert.Equal(t, 300, fresh.Meals[0].Kcal)
	assert.Equal(t, 5, *fresh.TrialDaysLeft)
}

func TestRequestsCarryInitDataOnlyWhenEmbedded(t *testing.T) {
	var seen []string
	var mu sync.Mutex
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		_, ok := r.Header[apiclient.InitDataHeader]
		if ok {
			seen = append(seen, r.Header.Get(apiclient.InitDataHeader))
		}
		mu.Unlock()
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	newStore(srv, host.Noop{}).Load(context.Background())
	mu.Lock()
	assert.Empty(t, seen)
	mu.Unlock()

	h := host.NewTelegram(host.Snapshot{InitData: "user=1&hash=2"}, host.NewScope(), nil)
	newStore(srv, h).Load(context.Background())
	mu.Lock()
	assert.Equal(t, []string{"user=1&hash=2", "user=1&hash=2", "user=1&hash=2", "user=1&hash=2"}, seen)
	mu.Unlock()
}
