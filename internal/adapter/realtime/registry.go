package realtime

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/example/food-order-service/internal/domain"
)

// Коды закрытия websocket.
const (
	CloseGoingAway = 1001
	// CloseDuplicate — соединение вытеснено новым под тем же именем.
	CloseDuplicate = 1010
)

// State — состояние соединения с точки зрения сервера.
type State int

const (
	StateConnected State = iota
	StateDisconnected
)

// Conn — realtime-соединение. SendText возвращает ошибку, совместимую с
// domain.ErrDisconnected, если собеседник ушёл.
type Conn interface {
	State() State
	SendText(ctx context.Context, text string) error
	Close(code int, reason string) error
}

// Registry — соединения продавцов по имени, не больше одного на имя.
// Отключившиеся соединения вычищаются при следующем обращении, за ними
// никто не следит.
type Registry struct {
	log logrus.FieldLogger

	mu    sync.Mutex
	conns map[string]Conn
}

func NewRegistry(log logrus.FieldLogger) *Registry {
	return &Registry{log: log, conns: make(map[string]Conn)}
}

// Connect регистрирует conn под именем name, закрывая прежнее соединение.
func (r *Registry) Connect(name string, conn Conn) {
	r.mu.Lock()
	prev, ok := r.conns[name]
	r.conns[name] = conn
	r.mu.Unlock()

	if ok && prev != conn && prev.State() == StateConnected {
		if err := prev.Close(CloseDuplicate, "Duplicate connection"); err != nil {
			r.log.WithError(err).WithField("name", name).Debug("close replaced connection")
		}
	}
}

// Send отправляет text соединению name. Отсутствие соединения не ошибка.
// Если собеседник ушёл во время отправки, из реестра убирается именно это
// соединение, а ошибка возвращается вызывающему.
func (r *Registry) Send(ctx context.Context, name, text string) error {
	r.mu.Lock()
	conn, ok := r.conns[name]
	r.mu.Unlock()

	switch {
	case !ok:
		r.log.WithField("name", name).Warn("invalid connection")
		return nil
	case conn.State() != StateConnected:
		r.evict(name, conn)
		return nil
	}
	err := conn.SendText(ctx, text)
	if errors.Is(err, domain.ErrDisconnected) {
		r.evict(name, conn)
	}
	return err
}

// Remove убирает соединение name из реестра, не закрывая его.
func (r *Registry) Remove(name string) {
	r.mu.Lock()
	delete(r.conns, name)
	r.mu.Unlock()
}

// Release убирает conn после отключения клиента, если под именем ещё
// не зарегистрировано новое соединение.
func (r *Registry) Release(name string, conn Conn) {
	r.evict(name, conn)
}

// Broadcast отправляет text всем подключённым; ушедших вычищает.
func (r *Registry) Broadcast(ctx context.Context, text string) {
	for name, conn := range r.snapshot() {
		if conn.State() != StateConnected {
			r.evict(name, conn)
			continue
		}
		if err := conn.SendText(ctx, text); err != nil {
			r.log.WithError(err).WithField("name", name).Warn("broadcast failed")
			r.evict(name, conn)
		}
	}
}

// Shutdown закрывает и убирает все соединения. Вызывает только владелец
// реестра при остановке процесса.
func (r *Registry) Shutdown(ctx context.Context) {
	r.mu.Lock()
	conns := r.conns
	r.conns = make(map[string]Conn)
	r.mu.Unlock()

	r.log.WithField("connections", len(conns)).Info("shutting down realtime registry")
	for name, conn := range conns {
		if ctx.Err() != nil {
			return
		}
		if conn.State() != StateConnected {
			continue
		}
		if err := conn.Close(CloseGoingAway, "Server shutdown"); err != nil {
			r.log.WithError(err).WithField("name", name).Debug("close connection")
		}
	}
}

// Len — число зарегистрированных соединений.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns)
}

// evict убирает conn, только если под именем всё ещё именно оно.
func (r *Registry) evict(name string, conn Conn) {
	r.mu.Lock()
	if r.conns[name] == conn {
		delete(r.conns, name)
	}
	r.mu.Unlock()
}

func (r *Registry) snapshot() map[string]Conn {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]Conn, len(r.conns))
	for k, v := range r.conns {
		out[k] = v
	}
	return out
}

var _ domain.MessageSender = (*Registry)(nil)
