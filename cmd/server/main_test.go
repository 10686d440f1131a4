package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"github.com/example/food-order-service/internal/adapter/auth"
	"github.com/example/food-order-service/internal/adapter/httpapi"
	"github.com/example/food-order-service/internal/adapter/idgen"
	"github.com/example/food-order-service/internal/adapter/memstore"
	"github.com/example/food-order-service/internal/adapter/realtime"
	"github.com/example/food-order-service/internal/domain"
	"github.com/example/food-order-service/internal/usecase"
)

func call(t *testing.T, ts *httptest.Server, v *auth.Verifier, method, path string, as uuid.UUID, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, ts.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	tok, err := v.Sign(domain.Identity{SubjectID: as, Email: "u@example.com"}, time.Hour)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+tok)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

// Продавец подключается к websocket, покупатель размещает заказ: продавец
// получает число ожидающих заказов.
func TestPendingCountReachesVendor(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	log, _ := test.NewNullLogger()
	store := memstore.New()
	ids, err := idgen.NewSnowflake(1)
	require.NoError(t, err)
	verifier := auth.NewVerifier([]byte("e2e-secret"), "authenticated")
	registry := realtime.NewRegistry(log)
	uc := buildUseCases(store, ids, log)

	feed := &feedSupervisor{
		Opener:    store,
		OnChange:  usecase.QueueCountNotifier{Sender: registry}.OnQueueChange,
		Log:       log,
		BaseDelay: 10 * time.Millisecond,
		MaxDelay:  50 * time.Millisecond,
	}
	go feed.Run(ctx)
	defer feed.Close(context.Background())
	require.Eventually(t, func() bool { return store.StreamCount() == 1 }, time.Second, 5*time.Millisecond)

	ts := httptest.NewServer(httpapi.NewServer(uc, verifier, registry, log))
	defer ts.Close()

	vendorID, buyerID := uuid.New(), uuid.New()
	resp := call(t, ts, verifier, http.MethodPost, "/vendor/new", vendorID,
		`{"name":"Pizzaria","menu":[{"name":"X","price":{"amount":"50","currency":"NGN"}}]}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var vendor domain.Vendor
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&vendor))
	require.Len(t, vendor.Menu, 1)

	resp = call(t, ts, verifier, http.MethodPost, "/consumer/anonymous", buyerID, "")
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	ws, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/vendor/Pizzaria/ws/order-count", nil)
	require.NoError(t, err)
	defer ws.Close()
	require.Eventually(t, func() bool { return registry.Len() == 1 }, time.Second, 5*time.Millisecond)

	order := fmt.Sprintf(`{"vendor_id":%q,"foods":[{"food_id":%q,"quantity":2}],"total_price":100}`, vendorID, vendor.Menu[0])
	resp = call(t, ts, verifier, http.MethodPost, "/order", buyerID, order)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	_ = ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := ws.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, "1", string(msg))

	resp = call(t, ts, verifier, http.MethodGet, "/vendor/orders/next", vendorID, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	_, msg, err = ws.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, "0", string(msg))
}

// flakyOpener отказывает первые fails раз.
type flakyOpener struct {
	domain.QueueStreamOpener
	fails atomic.Int32
	calls atomic.Int32
}

func (o *flakyOpener) OpenQueueStream(ctx context.Context) (domain.QueueStream, error) {
	o.calls.Add(1)
	if o.fails.Add(-1) >= 0 {
		return nil, errors.New("store unavailable")
	}
	return o.QueueStreamOpener.OpenQueueStream(ctx)
}

func TestFeedSupervisorRestartsAfterFailure(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	log, hook := test.NewNullLogger()
	store := memstore.New()
	opener := &flakyOpener{QueueStreamOpener: store}
	opener.fails.Store(2)

	got := make(chan domain.Queue, 1)
	s := &feedSupervisor{
		Opener: opener,
		OnChange: func(_ context.Context, q domain.Queue) error {
			got <- q
			return nil
		},
		Log:       log,
		BaseDelay: time.Millisecond,
		MaxDelay:  10 * time.Millisecond,
	}
	go s.Run(ctx)
	require.Eventually(t, func() bool { return store.StreamCount() == 1 }, time.Second, time.Millisecond)
	require.EqualValues(t, 3, opener.calls.Load())

	var failures int
	for _, e := range hook.AllEntries() {
		if e.Message == "queue feed failed" {
			failures++
		}
	}
	require.Equal(t, 2, failures)

	q := domain.NewQueue("V")
	require.NoError(t, store.CreateVendor(ctx, domain.Vendor{ID: uuid.New(), Name: "V"}, q))
	require.NoError(t, q.Enqueue("1"))
	_, err := store.SaveQueue(ctx, q)
	require.NoError(t, err)

	select {
	case ev := <-got:
		require.Equal(t, []string{"1"}, ev.Orders)
	case <-ctx.Done():
		t.Fatal("no event after restart")
	}

	require.NoError(t, s.Close(ctx))
	require.Equal(t, 0, store.StreamCount())
}

func TestFeedSupervisorCloseDuringBackoff(t *testing.T) {
	log, _ := test.NewNullLogger()
	opener := &flakyOpener{QueueStreamOpener: memstore.New()}
	opener.fails.Store(100)

	s := &feedSupervisor{
		Opener:    opener,
		OnChange:  func(context.Context, domain.Queue) error { return nil },
		Log:       log,
		BaseDelay: time.Hour,
		MaxDelay:  time.Hour,
	}
	go s.Run(context.Background())
	require.Eventually(t, func() bool { return opener.calls.Load() == 1 }, time.Second, time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Close(ctx))
}

func TestNextBackoff(t *testing.T) {
	tests := []struct {
		curr, limit, want time.Duration
	}{
		{time.Second, 30 * time.Second, 2 * time.Second},
		{16 * time.Second, 30 * time.Second, 30 * time.Second},
		{30 * time.Second, 30 * time.Second, 30 * time.Second},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, nextBackoff(tt.curr, tt.limit))
	}
}

func TestSleepWithContext(t *testing.T) {
	require.True(t, sleepWithContext(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.False(t, sleepWithContext(ctx, time.Hour))
}
