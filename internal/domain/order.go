package domain

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderStatus — стадия обработки заказа.
type OrderStatus string

const (
	StatusWaiting    OrderStatus = "waiting"
	StatusProcessing OrderStatus = "processing"
	StatusCompleted  OrderStatus = "completed"
	StatusCanceled   OrderStatus = "canceled"
)

// Terminal — из completed и canceled переходов нет.
func (s OrderStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCanceled
}

// FoodItem — позиция заказа: блюдо и количество (>= 1).
type FoodItem struct {
	FoodID   uuid.UUID `json:"food_id"`
	Quantity int       `json:"quantity"`
}

// Order — доменная сущность заказа.
type Order struct {
	ID         string          `json:"id"`
	VendorID   uuid.UUID       `json:"vendor_id"`
	ConsumerID uuid.UUID       `json:"consumer_id"`
	Foods      []FoodItem      `json:"foods"`
	TotalPrice decimal.Decimal `json:"total_price"`
	Status     OrderStatus     `json:"status"`
}

// Start переводит заказ waiting -> processing.
func (o *Order) Start() error {
	return o.transition(StatusWaiting, StatusProcessing)
}

// Complete переводит заказ processing -> completed.
func (o *Order) Complete() error {
	return o.transition(StatusProcessing, StatusCompleted)
}

// Cancel переводит заказ waiting -> canceled.
func (o *Order) Cancel() error {
	return o.transition(StatusWaiting, StatusCanceled)
}

func (o *Order) transition(from, to OrderStatus) error {
	if o.Status != from {
		return &TransitionError{OrderID: o.ID, From: o.Status, To: to}
	}
	o.Status = to
	return nil
}

// MergeFoodItems схлопывает повторяющиеся блюда, суммируя количество.
// Порядок первых вхождений сохраняется.
func MergeFoodItems(items []FoodItem) ([]FoodItem, error) {
	idx := make(map[uuid.UUID]int, len(items))
	out := make([]FoodItem, 0, len(items))
	for _, it := range items {
		if it.Quantity < 1 {
			return nil, ErrInvalidQuantity
		}
		if i, ok := idx[it.FoodID]; ok {
			out[i].Quantity += it.Quantity
			continue
		}
		idx[it.FoodID] = len(out)
		out = append(out, it)
	}
	return out, nil
}

// FoodIDs — идентификаторы блюд в заказе.
func FoodIDs(items []FoodItem) []uuid.UUID {
	ids := make([]uuid.UUID, len(items))
	for i, it := range items {
		ids[i] = it.FoodID
	}
	return ids
}

// TotalFor считает сумму заказа по ценам каталога.
// Если цены для какого-то блюда нет, ok == false.
func TotalFor(items []FoodItem, prices map[uuid.UUID]decimal.Decimal) (total decimal.Decimal, ok bool) {
	total = decimal.Zero
	for _, it := range items {
		p, found := prices[it.FoodID]
		if !found {
			return decimal.Zero, false
		}
		total = total.Add(p.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	return total, true
}
