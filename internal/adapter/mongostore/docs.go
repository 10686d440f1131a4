package mongostore

import (
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/example/food-order-service/internal/domain"
)

// Документы коллекций. Идентификаторы хранятся строками, деньги — Decimal128.

type locationDoc struct {
	Street string `bson:"street"`
	Town   string `bson:"town"`
}

type vendorDoc struct {
	ID             string      `bson:"_id"`
	Name           string      `bson:"name"`
	Email          string      `bson:"email,omitempty"`
	Phone          string      `bson:"phone,omitempty"`
	Location       locationDoc `bson:"location"`
	Description    string      `bson:"description,omitempty"`
	ProfilePicture string      `bson:"profile_picture,omitempty"`
	Rating         float64     `bson:"rating"`
	Status         string      `bson:"status"`
	Menu           []string    `bson:"menu"`
	Orders         []string    `bson:"orders"`
}

type consumerDoc struct {
	ID          string    `bson:"_id"`
	Email       string    `bson:"email,omitempty"`
	Phone       string    `bson:"phone,omitempty"`
	IsAnonymous bool      `bson:"is_anonymous"`
	Disabled    bool      `bson:"disabled"`
	Orders      []string  `bson:"orders"`
	CreatedAt   time.Time `bson:"created_at"`
	UpdatedAt   time.Time `bson:"updated_at"`
}

type priceDoc struct {
	Amount   primitive.Decimal128 `bson:"amount"`
	Currency string               `bson:"currency"`
}

type foodDoc struct {
	ID          string   `bson:"_id"`
	Name        string   `bson:"name"`
	Description string   `bson:"description,omitempty"`
	Pictures    []string `bson:"picture,omitempty"`
	Price       priceDoc `bson:"price"`
	Available   bool     `bson:"available"`
	TTP         int      `bson:"ttp"`
	Ingredients []string `bson:"ingredients,omitempty"`
	Category    []string `bson:"category,omitempty"`
}

type foodItemDoc struct {
	FoodID   string `bson:"food_id"`
	Quantity int    `bson:"quantity"`
}

type orderDoc struct {
	ID         string               `bson:"_id"`
	VendorID   string               `bson:"vendor_id"`
	ConsumerID string               `bson:"consumer_id"`
	Foods      []foodItemDoc        `bson:"foods"`
	TotalPrice primitive.Decimal128 `bson:"total_price"`
	Status     string               `bson:"status"`
}

type queueDoc struct {
	ID           string   `bson:"_id"`
	Name         string   `bson:"name"`
	Orders       []string `bson:"orders"`
	CurrentOrder string   `bson:"current_order"`
	Version      int64    `bson:"version"`
}

func toDecimal128(d decimal.Decimal) (primitive.Decimal128, error) {
	v, err := primitive.ParseDecimal128(d.String())
	return v, errors.Wrapf(err, "decimal %s", d)
}

func fromDecimal128(v primitive.Decimal128) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(v.String())
	return d, errors.Wrapf(err, "decimal128 %s", v)
}

func parseIDs(in []string) ([]uuid.UUID, error) {
	out := make([]uuid.UUID, 0, len(in))
	for _, s := range in {
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, errors.Wrapf(err, "id %q", s)
		}
		out = append(out, id)
	}
	return out, nil
}

func idStrings(in []uuid.UUID) []string {
	out := make([]string, len(in))
	for i, id := range in {
		out[i] = id.String()
	}
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func newVendorDoc(v domain.Vendor) vendorDoc {
	return vendorDoc{
		ID:             v.ID.String(),
		Name:           v.Name,
		Email:          v.Email,
		Phone:          v.Phone,
		Location:       locationDoc(v.Location),
		Description:    v.Description,
		ProfilePicture: v.ProfilePicture,
		Rating:         v.Rating,
		Status:         string(v.Status),
		Menu:           idStrings(v.Menu),
		Orders:         nonNil(v.Orders),
	}
}

func (d vendorDoc) domain() (domain.Vendor, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return domain.Vendor{}, errors.Wrap(err, "vendor id")
	}
	menu, err := parseIDs(d.Menu)
	if err != nil {
		return domain.Vendor{}, err
	}
	return domain.Vendor{
		ID:             id,
		Name:           d.Name,
		Email:          d.Email,
		Phone:          d.Phone,
		Location:       domain.Location(d.Location),
		Description:    d.Description,
		ProfilePicture: d.ProfilePicture,
		Rating:         d.Rating,
		Status:         domain.VendorStatus(d.Status),
		Menu:           menu,
		Orders:         d.Orders,
	}, nil
}

func newConsumerDoc(c domain.Consumer) consumerDoc {
	return consumerDoc{
		ID:          c.ID.String(),
		Email:       c.Email,
		Phone:       c.Phone,
		IsAnonymous: c.IsAnonymous,
		Disabled:    c.Disabled,
		Orders:      nonNil(c.Orders),
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
}

func (d consumerDoc) domain() (domain.Consumer, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return domain.Consumer{}, errors.Wrap(err, "consumer id")
	}
	return domain.Consumer{
		ID:          id,
		Email:       d.Email,
		Phone:       d.Phone,
		IsAnonymous: d.IsAnonymous,
		Disabled:    d.Disabled,
		Orders:      d.Orders,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}, nil
}

func newFoodDoc(f domain.Food) (foodDoc, error) {
	amount, err := toDecimal128(f.Price.Amount)
	if err != nil {
		return foodDoc{}, err
	}
	return foodDoc{
		ID:          f.ID.String(),
		Name:        f.Name,
		Description: f.Description,
		Pictures:    f.Pictures,
		Price:       priceDoc{Amount: amount, Currency: f.Price.Currency},
		Available:   f.Available,
		TTP:         f.TTP,
		Ingredients: f.Ingredients,
		Category:    f.Category,
	}, nil
}

func (d foodDoc) domain() (domain.Food, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return domain.Food{}, errors.Wrap(err, "food id")
	}
	amount, err := fromDecimal128(d.Price.Amount)
	if err != nil {
		return domain.Food{}, err
	}
	return domain.Food{
		ID:          id,
		Name:        d.Name,
		Description: d.Description,
		Pictures:    d.Pictures,
		Price:       domain.FoodPrice{Amount: amount, Currency: d.Price.Currency},
		Available:   d.Available,
		TTP:         d.TTP,
		Ingredients: d.Ingredients,
		Category:    d.Category,
	}, nil
}

func newOrderDoc(o domain.Order) (orderDoc, error) {
	total, err := toDecimal128(o.TotalPrice)
	if err != nil {
		return orderDoc{}, err
	}
	foods := make([]foodItemDoc, len(o.Foods))
	for i, it := range o.Foods {
		foods[i] = foodItemDoc{FoodID: it.FoodID.String(), Quantity: it.Quantity}
	}
	return orderDoc{
		ID:         o.ID,
		VendorID:   o.VendorID.String(),
		ConsumerID: o.ConsumerID.String(),
		Foods:      foods,
		TotalPrice: total,
		Status:     string(o.Status),
	}, nil
}

func (d orderDoc) domain() (domain.Order, error) {
	vendorID, err := uuid.Parse(d.VendorID)
	if err != nil {
		return domain.Order{}, errors.Wrap(err, "order vendor id")
	}
	consumerID, err := uuid.Parse(d.ConsumerID)
	if err != nil {
		return domain.Order{}, errors.Wrap(err, "order consumer id")
	}
	total, err := fromDecimal128(d.TotalPrice)
	if err != nil {
		return domain.Order{}, err
	}
	foods := make([]domain.FoodItem, len(d.Foods))
	for i, it := range d.Foods {
		fid, err := uuid.Parse(it.FoodID)
		if err != nil {
			return domain.Order{}, errors.Wrap(err, "order food id")
		}
		foods[i] = domain.FoodItem{FoodID: fid, Quantity: it.Quantity}
	}
	return domain.Order{
		ID:         d.ID,
		VendorID:   vendorID,
		ConsumerID: consumerID,
		Foods:      foods,
		TotalPrice: total,
		Status:     domain.OrderStatus(d.Status),
	}, nil
}

func newQueueDoc(q domain.Queue) queueDoc {
	return queueDoc{
		ID:           q.ID.String(),
		Name:         q.Name,
		Orders:       nonNil(q.Orders),
		CurrentOrder: q.CurrentOrder,
		Version:      q.Version,
	}
}

func (d queueDoc) domain() (domain.Queue, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return domain.Queue{}, errors.Wrap(err, "queue id")
	}
	return domain.Queue{
		ID:           id,
		Name:         d.Name,
		Orders:       nonNil(d.Orders),
		CurrentOrder: d.CurrentOrder,
		Version:      d.Version,
	}, nil
}
