package domain

import (
	"errors"
	"fmt"
)

// Ошибки "не найдено".
var (
	ErrNotFound         = notFoundError("not found")
	ErrVendorNotFound   = notFoundError("vendor not found")
	ErrConsumerNotFound = notFoundError("consumer not found")
	ErrFoodNotFound     = notFoundError("food not found")
	ErrOrderNotFound    = notFoundError("order not found")
	ErrQueueNotFound    = notFoundError("queue not found")
)

// Ошибки валидации. Наружу уходят с конкретной причиной и не повторяются.
var (
	ErrValidation          = validationError("invalid data")
	ErrInvalidVendor       = validationError("vendor does not exist")
	ErrInvalidConsumer     = validationError("consumer does not exist")
	ErrInvalidItem         = validationError("invalid food item")
	ErrInvalidQuantity     = validationError("quantity cannot be less than 1")
	ErrPriceMismatch       = validationError("food prices don't match")
	ErrEmptyOrder          = validationError("order has no foods")
	ErrInvalidOrder        = validationError("invalid order")
	ErrOrderAlreadyQueued  = validationError("order is already queued")
	ErrDuplicateName       = validationError("name already taken")
	ErrAlreadyExists       = validationError("already exists")
	ErrEmptyVendorName     = validationError("cannot provide empty vendor name")
	ErrEmptyFoodName       = validationError("cannot provide empty food name")
	ErrContactRequired     = validationError("must provide email or phone")
	ErrInvalidVendorStatus = validationError("invalid vendor status")
	ErrInvalidPrice        = validationError("price cannot be negative")
)

// ErrConflict — документ изменился между чтением и записью.
var ErrConflict = conflictError("document was modified concurrently")

// ErrDisconnected — собеседник отключился во время отправки.
var ErrDisconnected = errors.New("connection disconnected")

type notFoundError string

func (e notFoundError) Error() string { return string(e) }

type validationError string

func (e validationError) Error() string { return string(e) }

type conflictError string

func (e conflictError) Error() string { return string(e) }

// TransitionError — недопустимый переход статуса заказа.
type TransitionError struct {
	OrderID  string
	From, To OrderStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("order %s: cannot move from %q to %q", e.OrderID, e.From, e.To)
}

func IsNotFound(err error) bool {
	var nf notFoundError
	return errors.As(err, &nf)
}

func IsValidation(err error) bool {
	var v validationError
	var t *TransitionError
	return errors.As(err, &v) || errors.As(err, &t)
}

func IsConflict(err error) bool {
	var c conflictError
	return errors.As(err, &c)
}
