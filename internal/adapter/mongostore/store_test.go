package mongostore

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/example/food-order-service/internal/domain"
)

func TestOrderDocKeepsMoney(t *testing.T) {
	o := domain.Order{
		ID:         "42",
		VendorID:   uuid.New(),
		ConsumerID: uuid.New(),
		Foods:      []domain.FoodItem{{FoodID: uuid.New(), Quantity: 3}},
		TotalPrice: decimal.RequireFromString("149.97"),
		Status:     domain.StatusWaiting,
	}
	doc, err := newOrderDoc(o)
	require.NoError(t, err)
	got, err := doc.domain()
	require.NoError(t, err)
	require.True(t, o.TotalPrice.Equal(got.TotalPrice))
	got.TotalPrice = o.TotalPrice
	require.Equal(t, o, got)
}

// setupTestDB подключается к TEST_MONGODB_URI (replica set) и отдаёт
// свежую базу.
func setupTestDB(t *testing.T) *Store {
	t.Helper()
	uri := os.Getenv("TEST_MONGODB_URI")
	if uri == "" {
		t.Skip("TEST_MONGODB_URI is not set")
	}
	ctx := context.Background()
	s, err := New(ctx, uri, fmt.Sprintf("food_test_%d", time.Now().UnixNano()))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = s.Drop(ctx)
		_ = s.Close(ctx)
	})
	return s
}

func TestStoreVendorAndQueue(t *testing.T) {
	ctx := context.Background()
	s := setupTestDB(t)

	v := domain.Vendor{ID: uuid.New(), Name: "Pizzaria", Email: "p@example.com"}
	require.NoError(t, s.CreateVendor(ctx, v, domain.NewQueue(v.Name)))
	require.ErrorIs(t, s.CreateVendor(ctx, domain.Vendor{ID: uuid.New(), Name: "Pizzaria"}, domain.NewQueue("Pizzaria")), domain.ErrDuplicateName)

	food := uuid.New()
	require.NoError(t, s.AppendVendorOrder(ctx, v.ID, "1"))
	require.NoError(t, s.AppendVendorMenu(ctx, v.ID, []uuid.UUID{food}))

	v.Name = "Renamed"
	v.Status = domain.VendorOpen
	v.Orders = []string{"stale"}
	require.NoError(t, s.SaveVendor(ctx, v))
	got, err := s.VendorByID(ctx, v.ID)
	require.NoError(t, err)
	require.Equal(t, "Pizzaria", got.Name)
	require.Equal(t, domain.VendorOpen, got.Status)
	require.Equal(t, []string{"1"}, got.Orders)
	require.Equal(t, []uuid.UUID{food}, got.Menu)
	require.ErrorIs(t, s.AppendVendorOrder(ctx, uuid.New(), "2"), domain.ErrVendorNotFound)

	c := domain.Consumer{ID: uuid.New(), IsAnonymous: true}
	require.NoError(t, s.CreateConsumer(ctx, c))
	require.NoError(t, s.AppendConsumerOrder(ctx, c.ID, "1"))
	c.IsAnonymous, c.Email = false, "c@example.com"
	require.NoError(t, s.SaveConsumer(ctx, c))
	gotC, err := s.ConsumerByID(ctx, c.ID)
	require.NoError(t, err)
	require.False(t, gotC.IsAnonymous)
	require.Equal(t, []string{"1"}, gotC.Orders)

	a, err := s.QueueByName(ctx, "Pizzaria")
	require.NoError(t, err)
	b := a.Clone()
	require.NoError(t, a.Enqueue("1"))
	_, err = s.SaveQueue(ctx, a)
	require.NoError(t, err)
	require.NoError(t, b.Enqueue("2"))
	_, err = s.SaveQueue(ctx, b)
	require.ErrorIs(t, err, domain.ErrConflict)
}

func TestQueueChangeStream(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s := setupTestDB(t)
	require.NoError(t, s.CreateVendor(ctx, domain.Vendor{ID: uuid.New(), Name: "A", Email: "a@example.com"}, domain.NewQueue("A")))

	st, err := s.OpenQueueStream(ctx)
	require.NoError(t, err)
	defer st.Close(ctx)

	q, err := s.QueueByName(ctx, "A")
	require.NoError(t, err)
	q.CurrentOrder = "x"
	q, err = s.SaveQueue(ctx, q)
	require.NoError(t, err)

	_, err = s.db.Collection(queueCollection).UpdateOne(ctx,
		map[string]any{"name": "A"}, map[string]any{"$set": map[string]any{"name": "B"}})
	require.NoError(t, err)

	q, err = s.QueueByName(ctx, "B")
	require.NoError(t, err)
	require.NoError(t, q.Enqueue("1"))
	_, err = s.SaveQueue(ctx, q)
	require.NoError(t, err)

	ev, err := st.Next(ctx)
	require.NoError(t, err)
	require.Equal(t, "B", ev.Name)
	require.Equal(t, []string{"1"}, ev.Orders)
}
