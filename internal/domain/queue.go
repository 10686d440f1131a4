package domain

import (
	"slices"

	"github.com/google/uuid"
)

// Queue — очередь заказов продавца.
//
// Orders — ожидающие заказы, самый старый в голове. CurrentOrder — заказ,
// который продавец сейчас готовит ("" если такого нет). Name совпадает с
// именем продавца и после создания не меняется. Version растёт на каждом
// сохранении и используется хранилищем для атомарной записи документа.
type Queue struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Orders       []string  `json:"orders"`
	CurrentOrder string    `json:"current_order,omitempty"`
	Version      int64     `json:"version"`
}

// NewQueue — пустая очередь для продавца с именем name.
func NewQueue(name string) Queue {
	return Queue{ID: uuid.New(), Name: name, Orders: []string{}}
}

// Pending — число ожидающих заказов.
func (q Queue) Pending() int { return len(q.Orders) }

// Enqueue добавляет заказ в хвост очереди.
func (q *Queue) Enqueue(orderID string) error {
	if orderID == "" {
		return ErrInvalidOrder
	}
	if q.CurrentOrder == orderID || slices.Contains(q.Orders, orderID) {
		return ErrOrderAlreadyQueued
	}
	q.Orders = append(q.Orders, orderID)
	return nil
}

// Dequeue снимает голову очереди в слот текущего заказа.
// На пустой очереди слот очищается и ok == false.
func (q *Queue) Dequeue() (orderID string, ok bool) {
	if len(q.Orders) == 0 {
		q.CurrentOrder = ""
		return "", false
	}
	orderID = q.Orders[0]
	q.Orders = slices.Clone(q.Orders[1:])
	q.CurrentOrder = orderID
	return orderID, true
}

// Clone — глубокая копия, чтобы хранилища не делили срез с вызывающим.
func (q Queue) Clone() Queue {
	q.Orders = slices.Clone(q.Orders)
	if q.Orders == nil {
		q.Orders = []string{}
	}
	return q
}
