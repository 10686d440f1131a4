package usecase

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"github.com/example/food-order-service/internal/adapter/memstore"
	"github.com/example/food-order-service/internal/domain"
)

type seqIDs struct{ n atomic.Int64 }

func (g *seqIDs) NewOrderID() string { return strconv.FormatInt(g.n.Add(1), 10) }

type sentMessage struct{ name, text string }

type fakeSender struct {
	mu      sync.Mutex
	sent []sentMessage
	err  error
	ch   chan sentMessage
}

func newFakeSender() *fakeSender { return &fakeSender{ch: make(chan sentMessage, 16)} }

func (f *fakeSender) Send(_ context.Context, name, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	m := sentMessage{name, text}
	f.sent = append(f.sent, m)
	select {
	case f.ch <- m:
	default:
	}
	return nil
}

func (f *fakeSender) messages() []sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentMessage(nil), f.sent...)
}

func quietLogger() logrus.FieldLogger {
	l, _ := test.NewNullLogger()
	return l
}

type fixture struct {
	store    *memstore.Store
	vendor   domain.Vendor
	consumer domain.Consumer
	food     domain.Food

	place    PlaceOrder
	next     GetNextOrder
	all      GetAllOrders
	complete CompleteCurrentOrder
}

// newFixture — продавец "Pizzaria" с блюдом X за 50 и покупатель.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	s := memstore.New()

	vendorID := uuid.New()
	v, err := CreateVendor{Vendors: s, Foods: s}.Execute(ctx,
		domain.Identity{SubjectID: vendorID, Email: "pizza@example.com"},
		VendorInput{
			Name: "Pizzaria",
			Menu: []domain.Food{{Name: "X", Price: domain.FoodPrice{Amount: decimal.NewFromInt(50), Currency: "NGN"}}},
		})
	require.NoError(t, err)
	food, err := s.FoodByID(ctx, v.Menu[0])
	require.NoError(t, err)

	c, err := CreateAnonymousConsumer{Consumers: s}.Execute(ctx, domain.Identity{SubjectID: uuid.New(), IsAnonymous: true})
	require.NoError(t, err)

	q := VendorQueue{Queues: s, Orders: s}
	return &fixture{
		store:    s,
		vendor:   v,
		consumer: c,
		food:     food,
		place:    PlaceOrder{Vendors: s, Consumers: s, Foods: s, Orders: s, Queue: q, IDs: &seqIDs{}},
		next:     GetNextOrder{Vendors: s, Queue: q},
		all:      GetAllOrders{Vendors: s, Orders: s},
		complete: CompleteCurrentOrder{Vendors: s, Queue: q},
	}
}

func (fx *fixture) command(qty int, total int64) PlaceOrderCommand {
	return PlaceOrderCommand{
		VendorID:   fx.vendor.ID,
		ConsumerID: fx.consumer.ID,
		Foods:      []domain.FoodItem{{FoodID: fx.food.ID, Quantity: qty}},
		TotalPrice: decimal.NewFromInt(total),
	}
}

func (fx *fixture) queue(t *testing.T) domain.Queue {
	t.Helper()
	q, err := fx.store.QueueByName(context.Background(), fx.vendor.Name)
	require.NoError(t, err)
	return q
}
