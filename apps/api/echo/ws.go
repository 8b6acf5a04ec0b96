package echoapi

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/trezcool/elimu/core/quiz"
)

const wsWriteTimeout = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// stream pushes the state of a quiz session to a websocket after every change,
// starting with the current one. The countdown is delivered this way.
func (api *quizApi) stream(ctx echo.Context) error {
	entry, err := api.entry(ctx)
	if err != nil {
		return err
	}

	conn, err := upgrader.Upgrade(ctx.Response(), ctx.Request(), nil)
	if err != nil {
		// the upgrader already replied
		ctx.Logger().Warn(err)
		return nil
	}
	defer conn.Close()

	// only the latest snapshot matters: a slow reader skips the older ones
	updates := make(chan quiz.Snapshot, 1)
	unsubscribe := entry.Session.Subscribe(func(snap quiz.Snapshot) {
		for {
			select {
			case updates <- snap:
				return
			default:
			}
			select {
			case <-updates:
			default:
			}
		}
	})
	defer unsubscribe()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	write := func(snap quiz.Snapshot) error {
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		return conn.WriteJSON(newSessionView(entry, snap))
	}

	if err := write(entry.Session.Snapshot()); err != nil {
		return nil
	}
	for {
		select {
		case <-closed:
			return nil
		case snap := <-updates:
			if err := write(snap); err != nil {
				return nil
			}
		}
	}
}
