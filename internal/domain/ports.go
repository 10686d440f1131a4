package domain

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// VendorRepository — порт персистентности продавцов.
type VendorRepository interface {
	// CreateVendor атомарно сохраняет продавца вместе с его очередью.
	CreateVendor(ctx context.Context, v Vendor, q Queue) error
	VendorByID(ctx context.Context, id uuid.UUID) (Vendor, error)
	VendorByName(ctx context.Context, name string) (Vendor, error)
	// SaveVendor пишет поля профиля. Name, Menu и Orders не перезаписываются:
	// меню и история меняются только через Append-методы.
	SaveVendor(ctx context.Context, v Vendor) error
	// AppendVendorMenu атомарно дописывает блюда в меню продавца.
	AppendVendorMenu(ctx context.Context, id uuid.UUID, foodIDs []uuid.UUID) error
	// AppendVendorOrder атомарно дописывает заказ в историю продавца.
	AppendVendorOrder(ctx context.Context, id uuid.UUID, orderID string) error
}

// ConsumerRepository — порт персистентности покупателей.
type ConsumerRepository interface {
	CreateConsumer(ctx context.Context, c Consumer) error
	ConsumerByID(ctx context.Context, id uuid.UUID) (Consumer, error)
	// SaveConsumer пишет всё, кроме истории заказов.
	SaveConsumer(ctx context.Context, c Consumer) error
	AppendConsumerOrder(ctx context.Context, id uuid.UUID, orderID string) error
}

// FoodRepository — порт каталога блюд.
type FoodRepository interface {
	InsertFoods(ctx context.Context, foods []Food) error
	FoodByID(ctx context.Context, id uuid.UUID) (Food, error)
	FoodsByIDs(ctx context.Context, ids []uuid.UUID) ([]Food, error)
	// FoodPrices возвращает текущие цены; отсутствующих блюд в ответе нет.
	FoodPrices(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]decimal.Decimal, error)
}

// OrderRepository — порт персистентности заказов.
type OrderRepository interface {
	InsertOrder(ctx context.Context, o Order) error
	OrderByID(ctx context.Context, id string) (Order, error)
	// OrdersByIDs возвращает заказы в порядке ids, пропуская отсутствующие.
	OrdersByIDs(ctx context.Context, ids []string) ([]Order, error)
	SaveOrder(ctx context.Context, o Order) error
}

// QueueRepository — порт персистентности очередей.
type QueueRepository interface {
	QueueByName(ctx context.Context, name string) (Queue, error)
	// SaveQueue пишет Orders и CurrentOrder, если версия в хранилище равна
	// q.Version, и возвращает очередь с новой версией. Иначе ErrConflict.
	// Name никогда не перезаписывается.
	SaveQueue(ctx context.Context, q Queue) (Queue, error)
}

// QueueStream — курсор событий изменения очередей. Событие — полный
// документ очереди после обновления, затронувшего поле orders.
type QueueStream interface {
	// Next блокируется до следующего события или отмены ctx.
	Next(ctx context.Context) (Queue, error)
	Close(ctx context.Context) error
}

// QueueStreamOpener открывает курсор на коллекции очередей.
type QueueStreamOpener interface {
	OpenQueueStream(ctx context.Context) (QueueStream, error)
}

// Store — всё хранилище целиком.
type Store interface {
	VendorRepository
	ConsumerRepository
	FoodRepository
	OrderRepository
	QueueRepository
	QueueStreamOpener
	Close(ctx context.Context) error
}

// OrderIDGenerator выдаёт идентификаторы заказов.
type OrderIDGenerator interface {
	NewOrderID() string
}

// MessageSender — порт доставки сообщений в realtime-соединения продавцов.
// ErrDisconnected означает, что соединение уже убрано отправителем.
type MessageSender interface {
	Send(ctx context.Context, name, text string) error
}

// MessageSubscriber — порт подписчика на входящие сообщения заказов.
type MessageSubscriber interface {
	// Subscribe регистрирует обработчик; ack/повторные доставки реализует адаптер.
	Subscribe(ctx context.Context, handler func(ctx context.Context, raw []byte) error) error
}
