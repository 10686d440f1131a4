package usecase

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/example/food-order-service/internal/domain"
)

// PlaceOrderCommand — данные для нового заказа.
type PlaceOrderCommand struct {
	VendorID   uuid.UUID         `json:"vendor_id"`
	ConsumerID uuid.UUID         `json:"consumer_id"`
	Foods      []domain.FoodItem `json:"foods"`
	TotalPrice decimal.Decimal   `json:"total_price"`
}

// PlaceOrder — проверить заказ по каталогу, сохранить его, привязать к
// покупателю и продавцу и поставить в очередь продавца.
type PlaceOrder struct {
	Vendors   domain.VendorRepository
	Consumers domain.ConsumerRepository
	Foods     domain.FoodRepository
	Orders    domain.OrderRepository
	Queue     VendorQueue
	IDs       domain.OrderIDGenerator
}

func (uc PlaceOrder) Execute(ctx context.Context, cmd PlaceOrderCommand) (domain.Order, error) {
	consumer, err := uc.Consumers.ConsumerByID(ctx, cmd.ConsumerID)
	if err != nil {
		if domain.IsNotFound(err) {
			return domain.Order{}, domain.ErrInvalidConsumer
		}
		return domain.Order{}, err
	}

	vendor, err := uc.Vendors.VendorByID(ctx, cmd.VendorID)
	if err != nil {
		if domain.IsNotFound(err) {
			return domain.Order{}, domain.ErrInvalidVendor
		}
		return domain.Order{}, err
	}

	items, err := domain.MergeFoodItems(cmd.Foods)
	if err != nil {
		return domain.Order{}, err
	}
	if len(items) == 0 {
		return domain.Order{}, domain.ErrEmptyOrder
	}
	for _, it := range items {
		if !vendor.HasFood(it.FoodID) {
			return domain.Order{}, fmt.Errorf("%w with id: %s", domain.ErrInvalidItem, it.FoodID)
		}
	}

	prices, err := uc.Foods.FoodPrices(ctx, domain.FoodIDs(items))
	if err != nil {
		return domain.Order{}, err
	}
	total, ok := domain.TotalFor(items, prices)
	if !ok {
		return domain.Order{}, domain.ErrInvalidItem
	}
	if !total.Equal(cmd.TotalPrice) {
		return domain.Order{}, domain.ErrPriceMismatch
	}

	order := domain.Order{
		ID:         uc.IDs.NewOrderID(),
		VendorID:   vendor.ID,
		ConsumerID: consumer.ID,
		Foods:      items,
		TotalPrice: cmd.TotalPrice,
		Status:     domain.StatusWaiting,
	}

	// Заказ пишется первым: при сбое между шагами останется заказ без
	// ссылки из очереди, но не ссылка на несуществующий заказ.
	if err := uc.Orders.InsertOrder(ctx, order); err != nil {
		return domain.Order{}, err
	}

	if err := uc.Consumers.AppendConsumerOrder(ctx, consumer.ID, order.ID); err != nil {
		return domain.Order{}, err
	}
	if err := uc.Vendors.AppendVendorOrder(ctx, vendor.ID, order.ID); err != nil {
		return domain.Order{}, err
	}

	err = retryOnConflict(ctx, func() error {
		return uc.Queue.Enqueue(ctx, vendor.Name, order)
	})
	if err != nil {
		return domain.Order{}, err
	}
	return order, nil
}

// GetNextOrder — взять следующий заказ из очереди продавца.
type GetNextOrder struct {
	Vendors domain.VendorRepository
	Queue   VendorQueue
}

func (uc GetNextOrder) Execute(ctx context.Context, vendorID uuid.UUID) (*domain.Order, error) {
	vendor, err := uc.Vendors.VendorByID(ctx, vendorID)
	if err != nil {
		return nil, err
	}

	var next *domain.Order
	err = retryOnConflict(ctx, func() error {
		var err error
		next, err = uc.Queue.Dequeue(ctx, vendor.Name)
		return err
	})
	return next, err
}

// CompleteCurrentOrder — отметить текущий заказ продавца выполненным.
type CompleteCurrentOrder struct {
	Vendors domain.VendorRepository
	Queue   VendorQueue
}

func (uc CompleteCurrentOrder) Execute(ctx context.Context, vendorID uuid.UUID) (*domain.Order, error) {
	vendor, err := uc.Vendors.VendorByID(ctx, vendorID)
	if err != nil {
		return nil, err
	}
	return uc.Queue.MarkCurrentCompleted(ctx, vendor.Name)
}

// GetAllOrders — все заказы продавца: ожидающие, в работе и выполненные.
type GetAllOrders struct {
	Vendors domain.VendorRepository
	Orders  domain.OrderRepository
}

func (uc GetAllOrders) Execute(ctx context.Context, vendorID uuid.UUID) ([]domain.Order, error) {
	vendor, err := uc.Vendors.VendorByID(ctx, vendorID)
	if err != nil {
		return nil, err
	}
	return uc.Orders.OrdersByIDs(ctx, vendor.Orders)
}

// ProcessIncomingOrder — разместить заказ, пришедший сообщением из брокера.
// Ошибка возвращается только для сбоев инфраструктуры, чтобы брокер
// доставил сообщение повторно; битые и отклонённые заказы подтверждаются.
type ProcessIncomingOrder struct {
	Place PlaceOrder
	Log   logrus.FieldLogger
}

func (uc ProcessIncomingOrder) Execute(ctx context.Context, raw []byte) error {
	var cmd PlaceOrderCommand
	if err := json.Unmarshal(raw, &cmd); err != nil {
		uc.Log.WithError(err).Warn("dropping malformed order message")
		return nil
	}
	if cmd.VendorID == uuid.Nil || cmd.ConsumerID == uuid.Nil {
		uc.Log.Warn("dropping order message without vendor_id or consumer_id")
		return nil
	}

	order, err := uc.Place.Execute(ctx, cmd)
	if err != nil {
		if domain.IsValidation(err) || domain.IsNotFound(err) {
			uc.Log.WithError(err).WithField("vendor_id", cmd.VendorID).Warn("order message rejected")
			return nil
		}
		return err
	}
	uc.Log.WithFields(logrus.Fields{"order_id": order.ID, "vendor_id": order.VendorID}).Info("order placed from message")
	return nil
}
