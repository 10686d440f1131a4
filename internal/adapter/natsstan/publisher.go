package natsstan

import (
	stan "github.com/nats-io/stan.go"
	"github.com/pkg/errors"
)

// Publisher — отправка команд размещения заказов в NATS Streaming.
type Publisher struct {
	sc      stan.Conn
	subject string
}

func NewPublisher(clusterID, clientID, url, subject string) (*Publisher, error) {
	sc, err := stan.Connect(clusterID, clientID, stan.NatsURL(url))
	if err != nil {
		return nil, errors.Wrap(err, "stan connect")
	}
	return &Publisher{sc: sc, subject: subject}, nil
}

// Publish синхронно публикует raw и ждёт подтверждения сервера.
func (p *Publisher) Publish(raw []byte) error {
	return errors.Wrapf(p.sc.Publish(p.subject, raw), "publish to %s", p.subject)
}

func (p *Publisher) Close() error {
	return p.sc.Close()
}
