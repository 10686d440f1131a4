package memstore

import (
	"context"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/example/food-order-service/internal/domain"
)

// Store — хранилище документов в памяти процесса. Каждая операция
// атомарна на уровне документа: всё под одним мьютексом.
type Store struct {
	mu          sync.RWMutex
	vendors     map[uuid.UUID]domain.Vendor
	vendorNames map[string]uuid.UUID
	consumers   map[uuid.UUID]domain.Consumer
	foods       map[uuid.UUID]domain.Food
	orders      map[string]domain.Order
	queues      map[string]domain.Queue
	streams     map[*queueStream]struct{}
}

func New() *Store {
	return &Store{
		vendors:     make(map[uuid.UUID]domain.Vendor),
		vendorNames: make(map[string]uuid.UUID),
		consumers:   make(map[uuid.UUID]domain.Consumer),
		foods:       make(map[uuid.UUID]domain.Food),
		orders:      make(map[string]domain.Order),
		queues:      make(map[string]domain.Queue),
		streams:     make(map[*queueStream]struct{}),
	}
}

func (s *Store) CreateVendor(_ context.Context, v domain.Vendor, q domain.Queue) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.vendors[v.ID]; ok {
		return domain.ErrAlreadyExists
	}
	if _, ok := s.vendorNames[v.Name]; ok {
		return domain.ErrDuplicateName
	}
	if _, ok := s.queues[q.Name]; ok {
		return domain.ErrDuplicateName
	}
	s.vendors[v.ID] = cloneVendor(v)
	s.vendorNames[v.Name] = v.ID
	s.queues[q.Name] = q.Clone()
	return nil
}

func (s *Store) VendorByID(_ context.Context, id uuid.UUID) (domain.Vendor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.vendors[id]
	if !ok {
		return domain.Vendor{}, domain.ErrVendorNotFound
	}
	return cloneVendor(v), nil
}

func (s *Store) VendorByName(ctx context.Context, name string) (domain.Vendor, error) {
	s.mu.RLock()
	id, ok := s.vendorNames[name]
	s.mu.RUnlock()
	if !ok {
		return domain.Vendor{}, domain.ErrVendorNotFound
	}
	return s.VendorByID(ctx, id)
}

func (s *Store) SaveVendor(_ context.Context, v domain.Vendor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.vendors[v.ID]
	if !ok {
		return domain.ErrVendorNotFound
	}
	// имя продавца равно имени очереди и не меняется
	v.Name = old.Name
	v.Menu, v.Orders = old.Menu, old.Orders
	s.vendors[v.ID] = cloneVendor(v)
	return nil
}

func (s *Store) AppendVendorMenu(_ context.Context, id uuid.UUID, foodIDs []uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.vendors[id]
	if !ok {
		return domain.ErrVendorNotFound
	}
	v.Menu = append(slices.Clone(v.Menu), foodIDs...)
	s.vendors[id] = v
	return nil
}

func (s *Store) AppendVendorOrder(_ context.Context, id uuid.UUID, orderID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.vendors[id]
	if !ok {
		return domain.ErrVendorNotFound
	}
	v.Orders = append(slices.Clone(v.Orders), orderID)
	s.vendors[id] = v
	return nil
}

func (s *Store) CreateConsumer(_ context.Context, c domain.Consumer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.consumers[c.ID]; ok {
		return domain.ErrAlreadyExists
	}
	c.Orders = slices.Clone(c.Orders)
	s.consumers[c.ID] = c
	return nil
}

func (s *Store) ConsumerByID(_ context.Context, id uuid.UUID) (domain.Consumer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.consumers[id]
	if !ok {
		return domain.Consumer{}, domain.ErrConsumerNotFound
	}
	c.Orders = slices.Clone(c.Orders)
	return c, nil
}

func (s *Store) SaveConsumer(_ context.Context, c domain.Consumer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.consumers[c.ID]
	if !ok {
		return domain.ErrConsumerNotFound
	}
	c.Orders = old.Orders
	s.consumers[c.ID] = c
	return nil
}

func (s *Store) AppendConsumerOrder(_ context.Context, id uuid.UUID, orderID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.consumers[id]
	if !ok {
		return domain.ErrConsumerNotFound
	}
	c.Orders = append(slices.Clone(c.Orders), orderID)
	s.consumers[id] = c
	return nil
}

func (s *Store) InsertFoods(_ context.Context, foods []domain.Food) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range foods {
		if _, ok := s.foods[f.ID]; ok {
			return domain.ErrAlreadyExists
		}
	}
	for _, f := range foods {
		s.foods[f.ID] = f
	}
	return nil
}

func (s *Store) FoodByID(_ context.Context, id uuid.UUID) (domain.Food, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.foods[id]
	if !ok {
		return domain.Food{}, domain.ErrFoodNotFound
	}
	return f, nil
}

func (s *Store) FoodsByIDs(_ context.Context, ids []uuid.UUID) ([]domain.Food, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Food, 0, len(ids))
	for _, id := range ids {
		if f, ok := s.foods[id]; ok {
			out = append(out, f)
		}
	}
	return out, nil
}

func (s *Store) FoodPrices(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	prices := make(map[uuid.UUID]decimal.Decimal, len(ids))
	for _, id := range ids {
		if f, ok := s.foods[id]; ok {
			prices[id] = f.Price.Amount
		}
	}
	return prices, nil
}

func (s *Store) InsertOrder(_ context.Context, o domain.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orders[o.ID]; ok {
		return domain.ErrAlreadyExists
	}
	o.Foods = slices.Clone(o.Foods)
	s.orders[o.ID] = o
	return nil
}

func (s *Store) OrderByID(_ context.Context, id string) (domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[id]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	o.Foods = slices.Clone(o.Foods)
	return o, nil
}

func (s *Store) OrdersByIDs(_ context.Context, ids []string) ([]domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Order, 0, len(ids))
	for _, id := range ids {
		if o, ok := s.orders[id]; ok {
			o.Foods = slices.Clone(o.Foods)
			out = append(out, o)
		}
	}
	return out, nil
}

func (s *Store) SaveOrder(_ context.Context, o domain.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orders[o.ID]; !ok {
		return domain.ErrOrderNotFound
	}
	o.Foods = slices.Clone(o.Foods)
	s.orders[o.ID] = o
	return nil
}

func (s *Store) QueueByName(_ context.Context, name string) (domain.Queue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q, ok := s.queues[name]
	if !ok {
		return domain.Queue{}, domain.ErrQueueNotFound
	}
	return q.Clone(), nil
}

// SaveQueue пишет только orders и current_order; событие в потоки уходит,
// если изменился список orders.
func (s *Store) SaveQueue(_ context.Context, q domain.Queue) (domain.Queue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.queues[q.Name]
	if !ok {
		return domain.Queue{}, domain.ErrQueueNotFound
	}
	if old.Version != q.Version {
		return domain.Queue{}, domain.ErrConflict
	}
	next := old.Clone()
	next.Orders = slices.Clone(q.Orders)
	if next.Orders == nil {
		next.Orders = []string{}
	}
	next.CurrentOrder = q.CurrentOrder
	next.Version++
	s.queues[q.Name] = next

	if !slices.Equal(old.Orders, next.Orders) {
		for st := range s.streams {
			st.push(next.Clone())
		}
	}
	return next.Clone(), nil
}

// RenameQueue меняет только имя документа очереди. Поле orders не
// затрагивается, поэтому событий в потоках нет.
func (s *Store) RenameQueue(_ context.Context, from, to string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.queues[from]
	if !ok {
		return domain.ErrQueueNotFound
	}
	if _, taken := s.queues[to]; taken {
		return domain.ErrDuplicateName
	}
	delete(s.queues, from)
	q.Name = to
	q.Version++
	s.queues[to] = q
	return nil
}

func (s *Store) OpenQueueStream(_ context.Context) (domain.QueueStream, error) {
	st := &queueStream{
		owner:  s,
		signal: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	s.mu.Lock()
	s.streams[st] = struct{}{}
	s.mu.Unlock()
	return st, nil
}

// Close закрывает все открытые потоки.
func (s *Store) Close(ctx context.Context) error {
	s.mu.RLock()
	streams := make([]*queueStream, 0, len(s.streams))
	for st := range s.streams {
		streams = append(streams, st)
	}
	s.mu.RUnlock()
	for _, st := range streams {
		_ = st.Close(ctx)
	}
	return nil
}

func cloneVendor(v domain.Vendor) domain.Vendor {
	v.Menu = slices.Clone(v.Menu)
	v.Orders = slices.Clone(v.Orders)
	return v
}

var _ domain.Store = (*Store)(nil)

// StreamCount — число открытых потоков событий.
func (s *Store) StreamCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.streams)
}
