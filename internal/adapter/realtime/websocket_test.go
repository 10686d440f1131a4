package realtime

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
)

func TestWSConnDuplicateAndSend(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	log, _ := test.NewNullLogger()
	reg := NewRegistry(log)
	up := &websocket.Upgrader{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := Upgrade(up, w, r)
		if err != nil {
			return
		}
		reg.Connect("V", conn)
		conn.ReadLoop(ctx)
	}))
	defer srv.Close()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")

	c1, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer c1.Close()
	require.Eventually(t, func() bool { return reg.Len() == 1 }, time.Second, 5*time.Millisecond)

	c2, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer c2.Close()

	_ = c1.SetReadDeadline(time.Now().Add(time.Second))
	_, _, err = c1.ReadMessage()
	require.True(t, websocket.IsCloseError(err, CloseDuplicate), "got %v", err)

	// c2 зарегистрирован до закрытия c1
	require.NoError(t, reg.Send(ctx, "V", "2"))
	_ = c2.SetReadDeadline(time.Now().Add(time.Second))
	_, msg, err := c2.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, "2", string(msg))
}
