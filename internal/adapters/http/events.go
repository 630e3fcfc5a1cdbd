package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/dkeye/peercall/internal/app"
	"github.com/dkeye/peercall/internal/metrics"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	writeWait         = 5 * time.Second
	defaultPingPeriod = 54 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// EventsController streams mailbox events to a websocket. Messages are
// wake-up hints only; the HTTP mailbox stays the source of truth.
type EventsController struct {
	Hub        *app.Hub
	Metrics    metrics.Collector
	PingPeriod time.Duration
	ReadLimit  int64
}

func (ctl *EventsController) HandleEvents(ctx context.Context, c *gin.Context) {
	user := currentUser(c)
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Msg("ws upgrade")
		return
	}
	log.Info().Str("module", "adapters.http").Str("user", user.String()).Msg("event stream opened")

	sub := ctl.Hub.Subscribe(user)
	ctl.Metrics.SubscriberConnected()
	ctx, cancel := context.WithCancel(ctx)

	go ctl.writePump(ctx, ws, sub)
	go func() {
		defer func() {
			cancel()
			sub.Close()
			_ = ws.Close()
			ctl.Metrics.SubscriberDisconnected()
			log.Info().Str("module", "adapters.http").Str("user", user.String()).Msg("event stream closed")
		}()
		ctl.readPump(ctx, ws)
	}()
}

func (ctl *EventsController) pingPeriod() time.Duration {
	if ctl.PingPeriod <= 0 {
		return defaultPingPeriod
	}
	return ctl.PingPeriod
}

// readPump only watches for close and pongs; clients send nothing useful.
func (ctl *EventsController) readPump(ctx context.Context, ws *websocket.Conn) {
	pongWait := ctl.pingPeriod() * 10 / 9
	if ctl.ReadLimit > 0 {
		ws.SetReadLimit(ctl.ReadLimit)
	}
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if ctx.Err() != nil {
			return
		}
		if _, _, err := ws.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Str("module", "adapters.http").Msg("readPump read error")
			}
			return
		}
	}
}

func (ctl *EventsController) writePump(ctx context.Context, ws *websocket.Conn, sub *app.Subscription) {
	ticker := time.NewTicker(ctl.pingPeriod())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
			return
		case ev, ok := <-sub.Events():
			if !ok {
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				log.Error().Err(err).Str("module", "adapters.http").Msg("writePump marshal")
				continue
			}
			if err := ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				log.Error().Err(err).Str("module", "adapters.http").Msg("writePump set deadline")
				return
			}
			if err := ws.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "adapters.http").Msg("writePump write error")
				return
			}
		case <-ticker.C:
			if err := ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}
