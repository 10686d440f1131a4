package usecase

import (
	"context"
	"errors"
	"strconv"

	"github.com/example/food-order-service/internal/domain"
)

// QueueCountNotifier — обработчик ленты очередей: отправляет продавцу число
// ожидающих заказов в его realtime-соединение.
type QueueCountNotifier struct {
	Sender domain.MessageSender
}

func (n QueueCountNotifier) OnQueueChange(ctx context.Context, q domain.Queue) error {
	err := n.Sender.Send(ctx, q.Name, strconv.Itoa(q.Pending()))
	if errors.Is(err, domain.ErrDisconnected) {
		// отправитель уже убрал ушедшее соединение
		return nil
	}
	return err
}
