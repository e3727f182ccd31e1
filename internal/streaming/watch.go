package streaming

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/eternisai/enchanted-chat/internal/logger"
	"github.com/gorilla/websocket"
)

const (
	writeTimeout      = 10 * time.Second
	readTimeout       = 90 * time.Second
	heartbeatInterval = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origins are enforced by the CORS layer in front of the router.
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// ServeWatch upgrades the request to a websocket and relays the conversation's
// events until either side goes away. Ownership must be checked by the caller.
func ServeWatch(w http.ResponseWriter, r *http.Request, broadcaster Broadcaster, conversationID string, log *logger.Logger) {
	log = log.WithContext(r.Context()).WithComponent("conversation-watch")

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error("failed to upgrade connection", slog.String("error", err.Error()))
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	defer cancel()

	sub, err := broadcaster.Subscribe(ctx, conversationID)
	if err != nil {
		log.Error("failed to subscribe to conversation", slog.String("error", err.Error()))
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "subscription failed"),
			time.Now().Add(writeTimeout))
		return
	}
	defer sub.Close()

	log.Info("watcher connected", slog.String("subscriber_id", sub.ID))

	done := make(chan struct{})
	go func() {
		defer close(done)
		writeLoop(ctx, conn, sub, log)
		// Unblock the read loop below.
		conn.Close()
	}()

	conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readTimeout))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Warn("websocket read error", slog.String("error", err.Error()))
			}
			break
		}
		conn.SetReadDeadline(time.Now().Add(readTimeout))
	}

	cancel()
	<-done
	log.Info("watcher disconnected", slog.String("subscriber_id", sub.ID))
}

func writeLoop(ctx context.Context, conn *websocket.Conn, sub *Subscription, log *logger.Logger) {
	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case event := <-sub.Ch:
			if err := writeEvent(conn, event); err != nil {
				log.Warn("failed to write to websocket", slog.String("error", err.Error()))
				return
			}

		case <-heartbeat.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				return
			}
			if err := writeEvent(conn, Event{Type: EventHeartbeat, Timestamp: time.Now().UTC()}); err != nil {
				return
			}

		case <-sub.Done():
			return

		case <-ctx.Done():
			return
		}
	}
}

func writeEvent(conn *websocket.Conn, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteMessage(websocket.TextMessage, data)
}
