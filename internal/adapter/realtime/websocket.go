package realtime

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/example/food-order-service/internal/domain"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// WSConn — Conn поверх gorilla/websocket. Запись сериализуется мьютексом,
// чтение крутится в ReadLoop.
type WSConn struct {
	ws *websocket.Conn

	writeMu sync.Mutex
	state   atomic.Int32
}

// Upgrade переводит HTTP-запрос в websocket.
func Upgrade(up *websocket.Upgrader, w http.ResponseWriter, r *http.Request) (*WSConn, error) {
	ws, err := up.Upgrade(w, r, nil)
	if err != nil {
		return nil, errors.Wrap(err, "websocket upgrade")
	}
	return &WSConn{ws: ws}, nil
}

func (c *WSConn) State() State {
	return State(c.state.Load())
}

func (c *WSConn) SendText(ctx context.Context, text string) error {
	if c.State() != StateConnected {
		return domain.ErrDisconnected
	}
	deadline := time.Now().Add(writeWait)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.ws.SetWriteDeadline(deadline)
	if err := c.ws.WriteMessage(websocket.TextMessage, []byte(text)); err != nil {
		// после ошибки записи соединение в gorilla непригодно
		c.markDisconnected()
		return errors.Wrap(domain.ErrDisconnected, err.Error())
	}
	return nil
}

func (c *WSConn) Close(code int, reason string) error {
	if !c.markDisconnected() {
		return nil
	}
	c.writeMu.Lock()
	msg := websocket.FormatCloseMessage(code, reason)
	err := c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
	c.writeMu.Unlock()
	if cerr := c.ws.Close(); err == nil {
		err = cerr
	}
	return err
}

// ReadLoop читает и отбрасывает входящие кадры (клиент шлёт их как
// keepalive) и пингует клиента. Возвращается, когда соединение закрыто.
func (c *WSConn) ReadLoop(ctx context.Context) {
	done := make(chan struct{})
	defer close(done)
	go c.pingLoop(ctx, done)

	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.ws.ReadMessage(); err != nil {
			break
		}
		_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	}
	c.markDisconnected()
	_ = c.ws.Close()
}

func (c *WSConn) pingLoop(ctx context.Context, done <-chan struct{}) {
	t := time.NewTicker(pingPeriod)
	defer t.Stop()
	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			_ = c.Close(websocket.CloseGoingAway, "Server shutdown")
			return
		case <-t.C:
			c.writeMu.Lock()
			err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
			c.writeMu.Unlock()
			if err != nil {
				c.markDisconnected()
				return
			}
		}
	}
}

// markDisconnected возвращает true, если состояние изменилось.
func (c *WSConn) markDisconnected() bool {
	return c.state.CompareAndSwap(int32(StateConnected), int32(StateDisconnected))
}

var _ Conn = (*WSConn)(nil)
