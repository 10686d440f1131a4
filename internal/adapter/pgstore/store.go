package pgstore

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/example/food-order-service/internal/domain"
)

const uniqueViolation = "23505"

// Store — хранилище документов в Postgres: jsonb-документы продавцов,
// покупателей, блюд и заказов и строки очередей.
type Store struct {
	Pool *pgxpool.Pool
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, errors.Wrap(err, "postgres connect")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "postgres ping")
	}
	return &Store{Pool: pool}, nil
}

func (s *Store) Close(context.Context) error {
	s.Pool.Close()
	return nil
}

// vendorDoc и consumerDoc хранят историю заказов, скрытую в JSON API.
type vendorDoc struct {
	domain.Vendor
	Orders []string `json:"orders"`
}

type consumerDoc struct {
	domain.Consumer
	Orders []string `json:"orders"`
}

func (s *Store) CreateVendor(ctx context.Context, v domain.Vendor, q domain.Queue) error {
	raw, err := json.Marshal(vendorDoc{Vendor: v, Orders: v.Orders})
	if err != nil {
		return errors.Wrap(err, "marshal vendor")
	}
	err = pgx.BeginFunc(ctx, s.Pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `INSERT INTO vendors(id, name, payload) VALUES($1, $2, $3)`,
			v.ID, v.Name, raw); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `INSERT INTO queues(id, name, orders, current_order, version)
			VALUES($1, $2, $3, $4, $5)`, q.ID, q.Name, nonNil(q.Orders), q.CurrentOrder, q.Version)
		return err
	})
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		if pgErr.ConstraintName == "vendors_pkey" {
			return domain.ErrAlreadyExists
		}
		return domain.ErrDuplicateName
	}
	return errors.Wrap(err, "create vendor")
}

func (s *Store) VendorByID(ctx context.Context, id uuid.UUID) (domain.Vendor, error) {
	return s.vendorWhere(ctx, `SELECT payload FROM vendors WHERE id = $1`, id)
}

func (s *Store) VendorByName(ctx context.Context, name string) (domain.Vendor, error) {
	return s.vendorWhere(ctx, `SELECT payload FROM vendors WHERE name = $1`, name)
}

func (s *Store) vendorWhere(ctx context.Context, query string, arg any) (domain.Vendor, error) {
	var doc vendorDoc
	if err := s.getDoc(ctx, query, arg, &doc); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Vendor{}, domain.ErrVendorNotFound
		}
		return domain.Vendor{}, errors.Wrap(err, "load vendor")
	}
	doc.Vendor.Orders = doc.Orders
	return doc.Vendor, nil
}

// SaveVendor перезаписывает профиль. name, menu и orders берутся из
// текущей строки в том же UPDATE.
func (s *Store) SaveVendor(ctx context.Context, v domain.Vendor) error {
	raw, err := json.Marshal(vendorDoc{Vendor: v})
	if err != nil {
		return errors.Wrap(err, "marshal vendor")
	}
	return s.updateVendor(ctx, "save vendor", `UPDATE vendors
		SET payload = $2::jsonb
			|| jsonb_build_object('name', name)
			|| jsonb_build_object('menu', COALESCE(payload -> 'menu', '[]'::jsonb))
			|| jsonb_build_object('orders', COALESCE(payload -> 'orders', '[]'::jsonb))
		WHERE id = $1`, v.ID, raw)
}

func (s *Store) AppendVendorMenu(ctx context.Context, id uuid.UUID, foodIDs []uuid.UUID) error {
	raw, err := json.Marshal(foodIDs)
	if err != nil {
		return errors.Wrap(err, "marshal menu")
	}
	return s.updateVendor(ctx, "append vendor menu", `UPDATE vendors
		SET payload = jsonb_array_append(payload, 'menu', $2::jsonb)
		WHERE id = $1`, id, raw)
}

func (s *Store) AppendVendorOrder(ctx context.Context, id uuid.UUID, orderID string) error {
	return s.updateVendor(ctx, "append vendor order", `UPDATE vendors
		SET payload = jsonb_array_append(payload, 'orders', jsonb_build_array($2::text))
		WHERE id = $1`, id, orderID)
}

func (s *Store) updateVendor(ctx context.Context, op, query string, args ...any) error {
	tag, err := s.Pool.Exec(ctx, query, args...)
	if err != nil {
		return errors.Wrap(err, op)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrVendorNotFound
	}
	return nil
}

func (s *Store) CreateConsumer(ctx context.Context, c domain.Consumer) error {
	raw, err := json.Marshal(consumerDoc{Consumer: c, Orders: c.Orders})
	if err != nil {
		return errors.Wrap(err, "marshal consumer")
	}
	_, err = s.Pool.Exec(ctx, `INSERT INTO consumers(id, payload) VALUES($1, $2)`, c.ID, raw)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return domain.ErrAlreadyExists
	}
	return errors.Wrap(err, "create consumer")
}

func (s *Store) ConsumerByID(ctx context.Context, id uuid.UUID) (domain.Consumer, error) {
	var doc consumerDoc
	if err := s.getDoc(ctx, `SELECT payload FROM consumers WHERE id = $1`, id, &doc); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Consumer{}, domain.ErrConsumerNotFound
		}
		return domain.Consumer{}, errors.Wrap(err, "load consumer")
	}
	doc.Consumer.Orders = doc.Orders
	return doc.Consumer, nil
}

func (s *Store) SaveConsumer(ctx context.Context, c domain.Consumer) error {
	raw, err := json.Marshal(consumerDoc{Consumer: c})
	if err != nil {
		return errors.Wrap(err, "marshal consumer")
	}
	return s.updateConsumer(ctx, "save consumer", `UPDATE consumers
		SET payload = $2::jsonb
			|| jsonb_build_object('orders', COALESCE(payload -> 'orders', '[]'::jsonb))
		WHERE id = $1`, c.ID, raw)
}

func (s *Store) AppendConsumerOrder(ctx context.Context, id uuid.UUID, orderID string) error {
	return s.updateConsumer(ctx, "append consumer order", `UPDATE consumers
		SET payload = jsonb_array_append(payload, 'orders', jsonb_build_array($2::text))
		WHERE id = $1`, id, orderID)
}

func (s *Store) updateConsumer(ctx context.Context, op, query string, args ...any) error {
	tag, err := s.Pool.Exec(ctx, query, args...)
	if err != nil {
		return errors.Wrap(err, op)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrConsumerNotFound
	}
	return nil
}

func (s *Store) InsertFoods(ctx context.Context, foods []domain.Food) error {
	batch := &pgx.Batch{}
	for _, f := range foods {
		raw, err := json.Marshal(f)
		if err != nil {
			return errors.Wrap(err, "marshal food")
		}
		batch.Queue(`INSERT INTO foods(id, payload) VALUES($1, $2)`, f.ID, raw)
	}
	err := pgx.BeginFunc(ctx, s.Pool, func(tx pgx.Tx) error {
		return tx.SendBatch(ctx, batch).Close()
	})
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return domain.ErrAlreadyExists
	}
	return errors.Wrap(err, "insert foods")
}

func (s *Store) FoodByID(ctx context.Context, id uuid.UUID) (domain.Food, error) {
	var f domain.Food
	if err := s.getDoc(ctx, `SELECT payload FROM foods WHERE id = $1`, id, &f); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Food{}, domain.ErrFoodNotFound
		}
		return domain.Food{}, errors.Wrap(err, "load food")
	}
	return f, nil
}

func (s *Store) FoodsByIDs(ctx context.Context, ids []uuid.UUID) ([]domain.Food, error) {
	byID := make(map[uuid.UUID]domain.Food, len(ids))
	err := s.eachDoc(ctx, `SELECT payload FROM foods WHERE id = ANY($1::uuid[])`, uuidStrings(ids), func(raw []byte) error {
		var f domain.Food
		if err := json.Unmarshal(raw, &f); err != nil {
			return err
		}
		byID[f.ID] = f
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "load foods")
	}
	out := make([]domain.Food, 0, len(ids))
	for _, id := range ids {
		if f, ok := byID[id]; ok {
			out = append(out, f)
		}
	}
	return out, nil
}

func (s *Store) FoodPrices(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]decimal.Decimal, error) {
	rows, err := s.Pool.Query(ctx, `SELECT id::text, payload->'price'->>'amount'
		FROM foods WHERE id = ANY($1::uuid[])`, uuidStrings(ids))
	if err != nil {
		return nil, errors.Wrap(err, "load prices")
	}
	defer rows.Close()
	prices := make(map[uuid.UUID]decimal.Decimal, len(ids))
	for rows.Next() {
		var id, amount string
		if err := rows.Scan(&id, &amount); err != nil {
			return nil, errors.Wrap(err, "scan price")
		}
		d, err := decimal.NewFromString(amount)
		if err != nil {
			return nil, errors.Wrapf(err, "price of food %s", id)
		}
		prices[uuid.MustParse(id)] = d
	}
	return prices, errors.Wrap(rows.Err(), "load prices")
}

func (s *Store) InsertOrder(ctx context.Context, o domain.Order) error {
	raw, err := json.Marshal(o)
	if err != nil {
		return errors.Wrap(err, "marshal order")
	}
	_, err = s.Pool.Exec(ctx, `INSERT INTO orders(order_uid, payload) VALUES($1, $2)`, o.ID, raw)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return domain.ErrAlreadyExists
	}
	return errors.Wrap(err, "insert order")
}

func (s *Store) OrderByID(ctx context.Context, id string) (domain.Order, error) {
	var o domain.Order
	if err := s.getDoc(ctx, `SELECT payload FROM orders WHERE order_uid = $1`, id, &o); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Order{}, domain.ErrOrderNotFound
		}
		return domain.Order{}, errors.Wrap(err, "load order")
	}
	return o, nil
}

func (s *Store) OrdersByIDs(ctx context.Context, ids []string) ([]domain.Order, error) {
	byID := make(map[string]domain.Order, len(ids))
	err := s.eachDoc(ctx, `SELECT payload FROM orders WHERE order_uid = ANY($1)`, ids, func(raw []byte) error {
		var o domain.Order
		if err := json.Unmarshal(raw, &o); err != nil {
			return err
		}
		byID[o.ID] = o
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "load orders")
	}
	out := make([]domain.Order, 0, len(ids))
	for _, id := range ids {
		if o, ok := byID[id]; ok {
			out = append(out, o)
		}
	}
	return out, nil
}

func (s *Store) SaveOrder(ctx context.Context, o domain.Order) error {
	raw, err := json.Marshal(o)
	if err != nil {
		return errors.Wrap(err, "marshal order")
	}
	tag, err := s.Pool.Exec(ctx, `UPDATE orders SET payload = $2 WHERE order_uid = $1`, o.ID, raw)
	if err != nil {
		return errors.Wrap(err, "save order")
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrOrderNotFound
	}
	return nil
}

func (s *Store) getDoc(ctx context.Context, query string, arg any, dst any) error {
	var raw []byte
	if err := s.Pool.QueryRow(ctx, query, arg).Scan(&raw); err != nil {
		return err
	}
	return json.Unmarshal(raw, dst)
}

func (s *Store) eachDoc(ctx context.Context, query string, arg any, fn func(raw []byte) error) error {
	rows, err := s.Pool.Query(ctx, query, arg)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return err
		}
		if err := fn(raw); err != nil {
			return err
		}
	}
	return rows.Err()
}

func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
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

var _ domain.Store = (*Store)(nil)
