package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// VendorStatus — открыт продавец или закрыт.
type VendorStatus string

const (
	VendorOpen   VendorStatus = "Open"
	VendorClosed VendorStatus = "Closed"
)

// Valid — допустимое ли значение статуса.
func (s VendorStatus) Valid() bool {
	return s == VendorOpen || s == VendorClosed
}

type Location struct {
	Street string `json:"street"`
	Town   string `json:"town"`
}

// FoodPrice — цена блюда в валюте продавца.
type FoodPrice struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

// Food — блюдо из меню продавца (каталог).
type Food struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Pictures    []string  `json:"picture,omitempty"`
	Price       FoodPrice `json:"price"`
	Available   bool      `json:"available"`
	TTP         int       `json:"ttp"`
	Ingredients []string  `json:"ingredients,omitempty"`
	Category    []string  `json:"category,omitempty"`
}

// Validate нормализует имя и проверяет цену.
func (f *Food) Validate() error {
	f.Name = strings.TrimSpace(f.Name)
	if f.Name == "" {
		return ErrEmptyFoodName
	}
	if f.Price.Amount.IsNegative() {
		return ErrInvalidPrice
	}
	return nil
}

// Vendor — продавец. Menu ссылается на блюда каталога, Orders — история
// всех заказов продавца. Очередь продавца называется так же, как он сам.
type Vendor struct {
	ID             uuid.UUID    `json:"id"`
	Name           string       `json:"name"`
	Email          string       `json:"email,omitempty"`
	Phone          string       `json:"phone,omitempty"`
	Location       Location     `json:"location"`
	Description    string       `json:"description,omitempty"`
	ProfilePicture string       `json:"profile_picture,omitempty"`
	Rating         float64      `json:"rating"`
	Status         VendorStatus `json:"status"`
	Menu           []uuid.UUID  `json:"menu"`
	Orders         []string     `json:"-"`
}

// Validate нормализует имя и проверяет обязательные поля.
func (v *Vendor) Validate() error {
	v.Name = strings.TrimSpace(v.Name)
	if v.Name == "" {
		return ErrEmptyVendorName
	}
	if v.Email == "" && v.Phone == "" {
		return ErrContactRequired
	}
	if v.Status == "" {
		v.Status = VendorClosed
	}
	if !v.Status.Valid() {
		return ErrInvalidVendorStatus
	}
	return nil
}

// HasFood — есть ли блюдо в меню продавца.
func (v Vendor) HasFood(id uuid.UUID) bool {
	for _, m := range v.Menu {
		if m == id {
			return true
		}
	}
	return false
}

// Consumer — покупатель: анонимный или привязанный к email/телефону.
type Consumer struct {
	ID          uuid.UUID `json:"id"`
	Email       string    `json:"email,omitempty"`
	Phone       string    `json:"phone,omitempty"`
	IsAnonymous bool      `json:"is_anonymous"`
	Disabled    bool      `json:"disabled"`
	Orders      []string  `json:"-"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Identity — проверенная личность из токена.
type Identity struct {
	SubjectID   uuid.UUID
	Email       string
	Phone       string
	IsAnonymous bool
}
