package handler

import (
    "context"
    "encoding/json"
    "net/http"
    "net/http/httptest"
    "strings"
    "sync"
    "testing"
    "time"

    "github.com/labstack/echo/v4"
    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/iliyamo/raffle-number-reservation/internal/model"
    "github.com/iliyamo/raffle-number-reservation/internal/notify"
    "github.com/iliyamo/raffle-number-reservation/internal/repository"
    "github.com/iliyamo/raffle-number-reservation/internal/service"
)

// fakeStore mirrors the repository's observable behavior in memory so the
// handlers run against the real engine.
type fakeStore struct {
    mu      sync.Mutex
    tickets map[int]*model.Ticket
}

func newFakeStore(size int) *fakeStore {
    s := &fakeStore{tickets: make(map[int]*model.Ticket)}
    for i := 1; i <= size; i++ {
        s.tickets[i] = &model.Ticket{Number: i, Status: model.StatusAvailable}
    }
    return s
}

func (s *fakeStore) ListAll(context.Context) ([]model.Ticket, error) {
    s.mu.Lock()
    defer s.mu.Unlock()
    out := make([]model.Ticket, 0, len(s.tickets))
    for i := 1; i <= len(s.tickets); i++ {
        out = append(out, *s.tickets[i])
    }
    return out, nil
}

func (s *fakeStore) ReserveNumbers(_ context.Context, numbers []int, holder model.Holder, reservedAt, expiresAt time.Time) error {
    s.mu.Lock()
    defer s.mu.Unlock()
    for _, n := range numbers {
        t, ok := s.tickets[n]
        if !ok || t.Status != model.StatusAvailable {
            return repository.ErrConflict
        }
    }
    for _, n := range numbers {
        t := s.tickets[n]
        name, email, phone := holder.Name, holder.Email, holder.Phone
        rd, re := reservedAt, expiresAt
        t.Status = model.StatusReserved
        t.Name, t.Email, t.Phone = &name, &email, &phone
        t.ReservationDate, t.ReservationExpiry = &rd, &re
    }
    return nil
}

func (s *fakeStore) MarkSold(_ context.Context, numbers []int) (int64, error) {
    s.mu.Lock()
    defer s.mu.Unlock()
    var affected int64
    for _, n := range numbers {
        if t, ok := s.tickets[n]; ok {
            t.Status = model.StatusSold
            affected++
        }
    }
    return affected, nil
}

func (s *fakeStore) ReleaseNumbers(_ context.Context, numbers []int) (int64, error) {
    s.mu.Lock()
    defer s.mu.Unlock()
    var affected int64
    for _, n := range numbers {
        if t, ok := s.tickets[n]; ok {
            t.Status = model.StatusAvailable
            t.Name, t.Email, t.Phone = nil, nil, nil
            t.ReservationDate, t.ReservationExpiry = nil, nil
            affected++
        }
    }
    return affected, nil
}

func (s *fakeStore) ReleaseExpired(_ context.Context, now time.Time) (int64, error) {
    return 0, nil
}

func (s *fakeStore) InsertInitialPool(_ context.Context, size int) (int, error) {
    s.mu.Lock()
    defer s.mu.Unlock()
    if len(s.tickets) > 0 {
        return 0, repository.ErrPoolExists
    }
    for i := 1; i <= size; i++ {
        s.tickets[i] = &model.Ticket{Number: i, Status: model.StatusAvailable}
    }
    return size, nil
}

func newTestHandler(size int) (*NumbersHandler, *fakeStore) {
    store := newFakeStore(size)
    broker := notify.NewBroker()
    engine := service.NewReservationEngine(store, broker, 15*time.Minute)
    return NewNumbersHandler(engine, broker, 100), store
}

func doJSON(t *testing.T, h echo.HandlerFunc, method, path, body string) *httptest.ResponseRecorder {
    t.Helper()
    e := echo.New()
    var req *http.Request
    if body == "" {
        req = httptest.NewRequest(method, path, nil)
    } else {
        req = httptest.NewRequest(method, path, strings.NewReader(body))
        req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
    }
    rec := httptest.NewRecorder()
    require.NoError(t, h(e.NewContext(req, rec)))
    return rec
}

func TestGetNumbersReturnsOrderedPool(t *testing.T) {
    h, _ := newTestHandler(5)
    rec := doJSON(t, h.GetNumbers, http.MethodGet, "/api/numbers", "")

    require.Equal(t, http.StatusOK, rec.Code)
    var resp struct {
        Numbers []model.Ticket `json:"numbers"`
    }
    require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
    require.Len(t, resp.Numbers, 5)
    for i, tk := range resp.Numbers {
        assert.Equal(t, i+1, tk.Number)
        assert.Equal(t, model.StatusAvailable, tk.Status)
    }
}

func TestReserveNumbersEndpoint(t *testing.T) {
    h, store := newTestHandler(10)

    rec := doJSON(t, h.ReserveNumbers, http.MethodPost, "/api/reserve-numbers",
        `{"numbers":[1,2,3],"name":"A","email":"a@x.com","phone":"555"}`)
    require.Equal(t, http.StatusOK, rec.Code)
    assert.Contains(t, rec.Body.String(), "reserved successfully")

    tk := store.tickets[2]
    assert.Equal(t, model.StatusReserved, tk.Status)
    require.NotNil(t, tk.Email)
    assert.Equal(t, "a@x.com", *tk.Email)
}

func TestReserveNumbersMissingFields(t *testing.T) {
    h, store := newTestHandler(10)

    rec := doJSON(t, h.ReserveNumbers, http.MethodPost, "/api/reserve-numbers",
        `{"numbers":[1],"name":"A","email":"","phone":"555"}`)
    require.Equal(t, http.StatusBadRequest, rec.Code)
    assert.Contains(t, rec.Body.String(), "message")
    assert.Equal(t, model.StatusAvailable, store.tickets[1].Status)
}

func TestReserveNumbersConflict(t *testing.T) {
    h, _ := newTestHandler(10)

    rec := doJSON(t, h.ReserveNumbers, http.MethodPost, "/api/reserve-numbers",
        `{"numbers":[3],"name":"A","email":"a@x.com","phone":"555"}`)
    require.Equal(t, http.StatusOK, rec.Code)

    rec = doJSON(t, h.ReserveNumbers, http.MethodPost, "/api/reserve-numbers",
        `{"numbers":[3,4],"name":"B","email":"b@x.com","phone":"556"}`)
    require.Equal(t, http.StatusConflict, rec.Code)
    assert.Contains(t, rec.Body.String(), "no longer available")
}

func TestConfirmPaymentEndpoint(t *testing.T) {
    h, store := newTestHandler(10)
    doJSON(t, h.ReserveNumbers, http.MethodPost, "/api/reserve-numbers",
        `{"numbers":[1],"name":"A","email":"a@x.com","phone":"555"}`)

    rec := doJSON(t, h.ConfirmPayment, http.MethodPost, "/api/confirm-payment", `{"numbers":[1]}`)
    require.Equal(t, http.StatusOK, rec.Code)
    assert.Contains(t, rec.Body.String(), "Payment confirmed")

    tk := store.tickets[1]
    assert.Equal(t, model.StatusSold, tk.Status)
    assert.NotNil(t, tk.Name, "holder kept for record")

    rec = doJSON(t, h.ConfirmPayment, http.MethodPost, "/api/confirm-payment", `{"numbers":[]}`)
    require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestClearSelectionEndpoint(t *testing.T) {
    h, store := newTestHandler(10)
    doJSON(t, h.ReserveNumbers, http.MethodPost, "/api/reserve-numbers",
        `{"numbers":[1,2],"name":"A","email":"a@x.com","phone":"555"}`)

    rec := doJSON(t, h.ClearSelection, http.MethodPost, "/api/clear-selection", `{"numbers":[1,2]}`)
    require.Equal(t, http.StatusOK, rec.Code)

    for _, n := range []int{1, 2} {
        tk := store.tickets[n]
        assert.Equal(t, model.StatusAvailable, tk.Status)
        assert.Nil(t, tk.Name)
        assert.Nil(t, tk.ReservationExpiry)
    }
}

func TestPopulateIsOneShot(t *testing.T) {
    store := &fakeStore{tickets: make(map[int]*model.Ticket)}
    broker := notify.NewBroker()
    engine := service.NewReservationEngine(store, broker, 15*time.Minute)
    h := NewNumbersHandler(engine, broker, 100)

    rec := doJSON(t, h.Populate, http.MethodGet, "/api/populate", "")
    require.Equal(t, http.StatusOK, rec.Code)
    var resp struct {
        Message string `json:"message"`
        Data    int    `json:"data"`
    }
    require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
    assert.Equal(t, 100, resp.Data)

    rec = doJSON(t, h.Populate, http.MethodGet, "/api/populate", "")
    require.Equal(t, http.StatusConflict, rec.Code)
    assert.Contains(t, rec.Body.String(), "already populated")
}

// syncRecorder makes the recorder safe to read while the streaming handler
// is still writing from its own goroutine.
type syncRecorder struct {
    *httptest.ResponseRecorder
    mu sync.Mutex
}

func (r *syncRecorder) Write(b []byte) (int, error) {
    r.mu.Lock()
    defer r.mu.Unlock()
    return r.ResponseRecorder.Write(b)
}

func (r *syncRecorder) Flush() {
    r.mu.Lock()
    defer r.mu.Unlock()
    r.ResponseRecorder.Flush()
}

func (r *syncRecorder) body() string {
    r.mu.Lock()
    defer r.mu.Unlock()
    return r.ResponseRecorder.Body.String()
}

func TestSubscribeStreamsChangeEvents(t *testing.T) {
    h, _ := newTestHandler(10)

    e := echo.New()
    ctx, cancel := context.WithCancel(context.Background())
    req := httptest.NewRequest(http.MethodGet, "/api/admin/subscribe", nil).WithContext(ctx)
    rec := &syncRecorder{ResponseRecorder: httptest.NewRecorder()}

    done := make(chan error, 1)
    go func() { done <- h.Subscribe(e.NewContext(req, rec)) }()

    // wait for the subscription to register, then trigger a change
    require.Eventually(t, func() bool { return h.Broker.SubscriberCount() == 1 },
        time.Second, 5*time.Millisecond)
    h.Broker.Publish(context.Background(), notify.EventRefreshNumbers)

    require.Eventually(t, func() bool {
        return strings.Contains(rec.body(), `data: {"update":"refresh"}`)
    }, time.Second, 5*time.Millisecond)

    cancel()
    select {
    case err := <-done:
        require.NoError(t, err)
    case <-time.After(time.Second):
        t.Fatal("subscribe handler did not return on client disconnect")
    }

    assert.Equal(t, "text/event-stream", rec.Header().Get(echo.HeaderContentType))
    assert.Contains(t, rec.body(), "event: refreshNumbers")
}
