package mongostore

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/example/food-order-service/internal/domain"
)

// Имена коллекций.
const (
	vendorsCollection   = "vendors"
	consumersCollection = "consumers"
	foodsCollection     = "foods"
	ordersCollection    = "orders"
	queueCollection     = "queue"
)

// Store — хранилище в MongoDB. Нужен replica set: транзакции и change
// streams без него не работают.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

// New подключается, проверяет связь и создаёт уникальные индексы имён.
func New(ctx context.Context, uri, database string) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, errors.Wrap(err, "mongo connect")
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, errors.Wrap(err, "mongo ping")
	}
	s := &Store{client: client, db: client.Database(database)}
	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	unique := mongo.IndexModel{
		Keys:    bson.D{{Key: "name", Value: 1}},
		Options: options.Index().SetUnique(true),
	}
	for _, coll := range []string{vendorsCollection, queueCollection} {
		if _, err := s.db.Collection(coll).Indexes().CreateOne(ctx, unique); err != nil {
			return errors.Wrapf(err, "index %s.name", coll)
		}
	}
	return nil
}

func (s *Store) Close(ctx context.Context) error {
	return errors.Wrap(s.client.Disconnect(ctx), "mongo disconnect")
}

// Drop удаляет базу целиком; нужен тестам.
func (s *Store) Drop(ctx context.Context) error {
	return s.db.Drop(ctx)
}

// CreateVendor вставляет продавца и его очередь в одной транзакции.
func (s *Store) CreateVendor(ctx context.Context, v domain.Vendor, q domain.Queue) error {
	sess, err := s.client.StartSession()
	if err != nil {
		return errors.Wrap(err, "start session")
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (any, error) {
		if _, err := s.db.Collection(vendorsCollection).InsertOne(sc, newVendorDoc(v)); err != nil {
			return nil, err
		}
		_, err := s.db.Collection(queueCollection).InsertOne(sc, newQueueDoc(q))
		return nil, err
	})
	if mongo.IsDuplicateKeyError(err) {
		if strings.Contains(err.Error(), "_id_") {
			return domain.ErrAlreadyExists
		}
		return domain.ErrDuplicateName
	}
	return errors.Wrap(err, "create vendor")
}

func (s *Store) VendorByID(ctx context.Context, id uuid.UUID) (domain.Vendor, error) {
	return s.findVendor(ctx, bson.D{{Key: "_id", Value: id.String()}})
}

func (s *Store) VendorByName(ctx context.Context, name string) (domain.Vendor, error) {
	return s.findVendor(ctx, bson.D{{Key: "name", Value: name}})
}

func (s *Store) findVendor(ctx context.Context, filter bson.D) (domain.Vendor, error) {
	var doc vendorDoc
	err := s.db.Collection(vendorsCollection).FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.Vendor{}, domain.ErrVendorNotFound
	}
	if err != nil {
		return domain.Vendor{}, errors.Wrap(err, "load vendor")
	}
	return doc.domain()
}

// SaveVendor обновляет поля профиля; имя, меню и история не трогаются.
func (s *Store) SaveVendor(ctx context.Context, v domain.Vendor) error {
	doc := newVendorDoc(v)
	set := bson.D{
		{Key: "email", Value: doc.Email},
		{Key: "phone", Value: doc.Phone},
		{Key: "location", Value: doc.Location},
		{Key: "description", Value: doc.Description},
		{Key: "profile_picture", Value: doc.ProfilePicture},
		{Key: "rating", Value: doc.Rating},
		{Key: "status", Value: doc.Status},
	}
	return s.updateVendor(ctx, "save vendor", doc.ID, bson.D{{Key: "$set", Value: set}})
}

func (s *Store) AppendVendorMenu(ctx context.Context, id uuid.UUID, foodIDs []uuid.UUID) error {
	push := bson.D{{Key: "menu", Value: bson.D{{Key: "$each", Value: idStrings(foodIDs)}}}}
	return s.updateVendor(ctx, "append vendor menu", id.String(), bson.D{{Key: "$push", Value: push}})
}

func (s *Store) AppendVendorOrder(ctx context.Context, id uuid.UUID, orderID string) error {
	push := bson.D{{Key: "orders", Value: orderID}}
	return s.updateVendor(ctx, "append vendor order", id.String(), bson.D{{Key: "$push", Value: push}})
}

func (s *Store) updateVendor(ctx context.Context, op, id string, update bson.D) error {
	res, err := s.db.Collection(vendorsCollection).UpdateByID(ctx, id, update)
	if err != nil {
		return errors.Wrap(err, op)
	}
	if res.MatchedCount == 0 {
		return domain.ErrVendorNotFound
	}
	return nil
}

func (s *Store) CreateConsumer(ctx context.Context, c domain.Consumer) error {
	_, err := s.db.Collection(consumersCollection).InsertOne(ctx, newConsumerDoc(c))
	if mongo.IsDuplicateKeyError(err) {
		return domain.ErrAlreadyExists
	}
	return errors.Wrap(err, "create consumer")
}

func (s *Store) ConsumerByID(ctx context.Context, id uuid.UUID) (domain.Consumer, error) {
	var doc consumerDoc
	err := s.db.Collection(consumersCollection).FindOne(ctx, bson.D{{Key: "_id", Value: id.String()}}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.Consumer{}, domain.ErrConsumerNotFound
	}
	if err != nil {
		return domain.Consumer{}, errors.Wrap(err, "load consumer")
	}
	return doc.domain()
}

// SaveConsumer обновляет всё, кроме истории заказов.
func (s *Store) SaveConsumer(ctx context.Context, c domain.Consumer) error {
	doc := newConsumerDoc(c)
	set := bson.D{
		{Key: "email", Value: doc.Email},
		{Key: "phone", Value: doc.Phone},
		{Key: "is_anonymous", Value: doc.IsAnonymous},
		{Key: "disabled", Value: doc.Disabled},
		{Key: "created_at", Value: doc.CreatedAt},
		{Key: "updated_at", Value: doc.UpdatedAt},
	}
	return s.updateConsumer(ctx, "save consumer", doc.ID, bson.D{{Key: "$set", Value: set}})
}

func (s *Store) AppendConsumerOrder(ctx context.Context, id uuid.UUID, orderID string) error {
	push := bson.D{{Key: "orders", Value: orderID}}
	return s.updateConsumer(ctx, "append consumer order", id.String(), bson.D{{Key: "$push", Value: push}})
}

func (s *Store) updateConsumer(ctx context.Context, op, id string, update bson.D) error {
	res, err := s.db.Collection(consumersCollection).UpdateByID(ctx, id, update)
	if err != nil {
		return errors.Wrap(err, op)
	}
	if res.MatchedCount == 0 {
		return domain.ErrConsumerNotFound
	}
	return nil
}

func (s *Store) InsertFoods(ctx context.Context, foods []domain.Food) error {
	docs := make([]any, 0, len(foods))
	for _, f := range foods {
		doc, err := newFoodDoc(f)
		if err != nil {
			return err
		}
		docs = append(docs, doc)
	}
	_, err := s.db.Collection(foodsCollection).InsertMany(ctx, docs)
	if mongo.IsDuplicateKeyError(err) {
		return domain.ErrAlreadyExists
	}
	return errors.Wrap(err, "insert foods")
}

func (s *Store) FoodByID(ctx context.Context, id uuid.UUID) (domain.Food, error) {
	var doc foodDoc
	err := s.db.Collection(foodsCollection).FindOne(ctx, bson.D{{Key: "_id", Value: id.String()}}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.Food{}, domain.ErrFoodNotFound
	}
	if err != nil {
		return domain.Food{}, errors.Wrap(err, "load food")
	}
	return doc.domain()
}

func (s *Store) FoodsByIDs(ctx context.Context, ids []uuid.UUID) ([]domain.Food, error) {
	var docs []foodDoc
	if err := s.findIn(ctx, foodsCollection, idStrings(ids), &docs); err != nil {
		return nil, errors.Wrap(err, "load foods")
	}
	byID := make(map[uuid.UUID]domain.Food, len(docs))
	for _, d := range docs {
		f, err := d.domain()
		if err != nil {
			return nil, err
		}
		byID[f.ID] = f
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
	foods, err := s.FoodsByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	prices := make(map[uuid.UUID]decimal.Decimal, len(foods))
	for _, f := range foods {
		prices[f.ID] = f.Price.Amount
	}
	return prices, nil
}

func (s *Store) InsertOrder(ctx context.Context, o domain.Order) error {
	doc, err := newOrderDoc(o)
	if err != nil {
		return err
	}
	_, err = s.db.Collection(ordersCollection).InsertOne(ctx, doc)
	if mongo.IsDuplicateKeyError(err) {
		return domain.ErrAlreadyExists
	}
	return errors.Wrap(err, "insert order")
}

func (s *Store) OrderByID(ctx context.Context, id string) (domain.Order, error) {
	var doc orderDoc
	err := s.db.Collection(ordersCollection).FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	if err != nil {
		return domain.Order{}, errors.Wrap(err, "load order")
	}
	return doc.domain()
}

func (s *Store) OrdersByIDs(ctx context.Context, ids []string) ([]domain.Order, error) {
	var docs []orderDoc
	if err := s.findIn(ctx, ordersCollection, ids, &docs); err != nil {
		return nil, errors.Wrap(err, "load orders")
	}
	byID := make(map[string]domain.Order, len(docs))
	for _, d := range docs {
		o, err := d.domain()
		if err != nil {
			return nil, err
		}
		byID[o.ID] = o
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
	doc, err := newOrderDoc(o)
	if err != nil {
		return err
	}
	res, err := s.db.Collection(ordersCollection).ReplaceOne(ctx, bson.D{{Key: "_id", Value: doc.ID}}, doc)
	if err != nil {
		return errors.Wrap(err, "save order")
	}
	if res.MatchedCount == 0 {
		return domain.ErrOrderNotFound
	}
	return nil
}

func (s *Store) findIn(ctx context.Context, coll string, ids []string, dst any) error {
	if len(ids) == 0 {
		return nil
	}
	cur, err := s.db.Collection(coll).Find(ctx, bson.D{{Key: "_id", Value: bson.D{{Key: "$in", Value: ids}}}})
	if err != nil {
		return err
	}
	return cur.All(ctx, dst)
}

var _ domain.Store = (*Store)(nil)
