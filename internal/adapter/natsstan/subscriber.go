package natsstan

import (
	"context"
	"fmt"
	"time"

	stan "github.com/nats-io/stan.go"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/example/food-order-service/internal/domain"
)

const (
	queueGroup     = "food-order-workers"
	handlerTimeout = 5 * time.Second
	ackWait        = 10 * time.Second
)

// Subscriber — приём команд размещения заказов из NATS Streaming.
// Сообщение подтверждается только после успешной обработки.
type Subscriber struct {
	ClusterID string
	ClientID  string
	URL       string
	Subject   string
	Durable   string
	Log       logrus.FieldLogger
}

func (s *Subscriber) Subscribe(ctx context.Context, handler func(ctx context.Context, raw []byte) error) error {
	clientID := s.ClientID
	if clientID == "" {
		clientID = fmt.Sprintf("food-svc-%d", time.Now().UnixNano())
	}
	sc, err := stan.Connect(s.ClusterID, clientID, stan.NatsURL(s.URL),
		stan.SetConnectionLostHandler(func(_ stan.Conn, reason error) {
			s.Log.WithError(reason).Error("stan connection lost")
		}))
	if err != nil {
		return errors.Wrap(err, "stan connect")
	}

	_, err = sc.QueueSubscribe(s.Subject, queueGroup, func(m *stan.Msg) {
		log := s.Log.WithFields(logrus.Fields{"subject": m.Subject, "seq": m.Sequence})
		deliver(ctx, log, m.Data, handler, m.Ack)
	}, stan.DurableName(s.Durable), stan.SetManualAckMode(), stan.AckWait(ackWait), stan.DeliverAllAvailable())
	if err != nil {
		_ = sc.Close()
		return errors.Wrap(err, "stan subscribe")
	}

	go func() {
		<-ctx.Done()
		if err := sc.Close(); err != nil {
			s.Log.WithError(err).Warn("stan close")
		}
	}()
	s.Log.WithField("subject", s.Subject).Info("subscribed to order intake")
	return nil
}

// deliver вызывает handler и подтверждает сообщение только при успехе;
// без ack сервер доставит его повторно после AckWait.
func deliver(ctx context.Context, log logrus.FieldLogger, data []byte,
	handler func(ctx context.Context, raw []byte) error, ack func() error) bool {
	hCtx, cancel := context.WithTimeout(ctx, handlerTimeout)
	defer cancel()
	if err := handler(hCtx, data); err != nil {
		log.WithError(err).Error("order message handler failed")
		return false
	}
	if err := ack(); err != nil {
		log.WithError(err).Warn("ack failed")
		return false
	}
	return true
}

var _ domain.MessageSubscriber = (*Subscriber)(nil)
