package usecase

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/example/food-order-service/internal/domain"
)

// conflictRetries — сколько раз вызывающий сценарий повторяет операцию над
// очередью, если документ успели изменить параллельно.
const conflictRetries = 3

// VendorQueue — операции над очередью продавца поверх хранилища.
// Блокировок внутри процесса нет: атомарность записи документа очереди
// обеспечивает хранилище, повторы при конфликте делает вызывающий.
type VendorQueue struct {
	Queues domain.QueueRepository
	Orders domain.OrderRepository
	Log    logrus.FieldLogger
}

// Enqueue добавляет заказ в хвост очереди name.
func (vq VendorQueue) Enqueue(ctx context.Context, name string, order domain.Order) error {
	q, err := vq.Queues.QueueByName(ctx, name)
	if err != nil {
		return err
	}
	if err := q.Enqueue(order.ID); err != nil {
		return err
	}
	_, err = vq.Queues.SaveQueue(ctx, q)
	return err
}

// Dequeue делает голову очереди текущим заказом и переводит его в
// processing. На пустой очереди очищает слот и возвращает nil.
// Голова, которую нельзя начать (заказа нет или он уже не waiting),
// снимается с очереди с предупреждением в лог.
func (vq VendorQueue) Dequeue(ctx context.Context, name string) (*domain.Order, error) {
	q, err := vq.Queues.QueueByName(ctx, name)
	if err != nil {
		return nil, err
	}

	for {
		id, ok := q.Dequeue()
		if !ok {
			_, err := vq.Queues.SaveQueue(ctx, q)
			return nil, err
		}

		order, err := vq.Orders.OrderByID(ctx, id)
		if domain.IsNotFound(err) {
			vq.dropHead(name, id, err)
			continue
		}
		if err != nil {
			return nil, err
		}
		if err := order.Start(); err != nil {
			var te *domain.TransitionError
			if errors.As(err, &te) {
				vq.dropHead(name, id, err)
				continue
			}
			return nil, err
		}

		// две отдельные записи: очередь, затем заказ
		if _, err := vq.Queues.SaveQueue(ctx, q); err != nil {
			return nil, err
		}
		if err := vq.Orders.SaveOrder(ctx, order); err != nil {
			return nil, err
		}
		return &order, nil
	}
}

func (vq VendorQueue) dropHead(name, orderID string, reason error) {
	if vq.Log == nil {
		return
	}
	vq.Log.WithError(reason).WithFields(logrus.Fields{
		"queue":    name,
		"order_id": orderID,
	}).Warn("dropping queue head that cannot be started")
}

// MarkCurrentCompleted завершает текущий заказ. Сохраняется только заказ:
// слот очереди продолжает ссылаться на него до следующего Dequeue.
func (vq VendorQueue) MarkCurrentCompleted(ctx context.Context, name string) (*domain.Order, error) {
	q, err := vq.Queues.QueueByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if q.CurrentOrder == "" {
		return nil, nil
	}

	order, err := vq.Orders.OrderByID(ctx, q.CurrentOrder)
	if err != nil {
		return nil, err
	}
	if order.Status == domain.StatusCompleted {
		return &order, nil
	}
	if err := order.Complete(); err != nil {
		return nil, err
	}
	if err := vq.Orders.SaveOrder(ctx, order); err != nil {
		return nil, err
	}
	return &order, nil
}

// retryOnConflict повторяет fn, пока хранилище отвечает ErrConflict.
func retryOnConflict(ctx context.Context, fn func() error) error {
	var err error
	for i := 0; i < conflictRetries; i++ {
		if err = fn(); !domain.IsConflict(err) {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return err
}
