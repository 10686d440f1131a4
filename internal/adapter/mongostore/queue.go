package mongostore

import (
	"context"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/example/food-order-service/internal/domain"
)

var ErrStreamClosed = errors.New("queue change stream closed")

func (s *Store) QueueByName(ctx context.Context, name string) (domain.Queue, error) {
	var doc queueDoc
	err := s.db.Collection(queueCollection).FindOne(ctx, bson.D{{Key: "name", Value: name}}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.Queue{}, domain.ErrQueueNotFound
	}
	if err != nil {
		return domain.Queue{}, errors.Wrap(err, "load queue")
	}
	return doc.domain()
}

// SaveQueue — findAndModify с условием на версию. Пишутся только orders и
// current_order, имя очереди не трогается.
func (s *Store) SaveQueue(ctx context.Context, q domain.Queue) (domain.Queue, error) {
	coll := s.db.Collection(queueCollection)
	filter := bson.D{{Key: "name", Value: q.Name}, {Key: "version", Value: q.Version}}
	update := bson.D{
		{Key: "$set", Value: bson.D{
			{Key: "orders", Value: nonNil(q.Orders)},
			{Key: "current_order", Value: q.CurrentOrder},
		}},
		{Key: "$inc", Value: bson.D{{Key: "version", Value: 1}}},
	}
	var doc queueDoc
	err := coll.FindOneAndUpdate(ctx, filter, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&doc)
	if err == nil {
		return doc.domain()
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return domain.Queue{}, errors.Wrap(err, "save queue")
	}

	n, err := coll.CountDocuments(ctx, bson.D{{Key: "name", Value: q.Name}})
	if err != nil {
		return domain.Queue{}, errors.Wrap(err, "save queue")
	}
	if n > 0 {
		return domain.Queue{}, domain.ErrConflict
	}
	return domain.Queue{}, domain.ErrQueueNotFound
}

// ordersChanged — фильтр change stream: обновления, затронувшие поле orders.
// Сервер может описать изменение массива как "orders", как "orders.N" или
// через truncatedArrays.
func ordersChanged() mongo.Pipeline {
	touchesOrders := bson.D{{Key: "$gt", Value: bson.A{
		bson.D{{Key: "$size", Value: bson.D{{Key: "$filter", Value: bson.D{
			{Key: "input", Value: bson.D{{Key: "$objectToArray", Value: "$updateDescription.updatedFields"}}},
			{Key: "as", Value: "f"},
			{Key: "cond", Value: bson.D{{Key: "$regexMatch", Value: bson.D{
				{Key: "input", Value: "$$f.k"},
				{Key: "regex", Value: `^orders(\.|$)`},
			}}}},
		}}}}},
		0,
	}}}
	return mongo.Pipeline{
		{{Key: "$match", Value: bson.D{
			{Key: "operationType", Value: "update"},
			{Key: "$or", Value: bson.A{
				bson.D{{Key: "$expr", Value: touchesOrders}},
				bson.D{{Key: "updateDescription.truncatedArrays.field", Value: "orders"}},
			}},
		}}},
	}
}

// OpenQueueStream открывает change stream коллекции очередей с полным
// документом после обновления.
func (s *Store) OpenQueueStream(ctx context.Context) (domain.QueueStream, error) {
	cs, err := s.db.Collection(queueCollection).Watch(ctx, ordersChanged(),
		options.ChangeStream().SetFullDocument(options.UpdateLookup))
	if err != nil {
		return nil, errors.Wrap(err, "watch queue")
	}
	return &queueStream{cs: cs}, nil
}

type queueStream struct {
	cs *mongo.ChangeStream
}

type changeEvent struct {
	FullDocument *queueDoc `bson:"fullDocument"`
}

func (st *queueStream) Next(ctx context.Context) (domain.Queue, error) {
	for st.cs.Next(ctx) {
		var ev changeEvent
		if err := st.cs.Decode(&ev); err != nil {
			return domain.Queue{}, errors.Wrap(err, "decode change event")
		}
		// документ удалён до lookup
		if ev.FullDocument == nil {
			continue
		}
		return ev.FullDocument.domain()
	}
	if err := ctx.Err(); err != nil {
		return domain.Queue{}, err
	}
	if err := st.cs.Err(); err != nil {
		return domain.Queue{}, errors.Wrap(err, "queue change stream")
	}
	return domain.Queue{}, ErrStreamClosed
}

func (st *queueStream) Close(ctx context.Context) error {
	return errors.Wrap(st.cs.Close(ctx), "close change stream")
}
