package http

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"quiz-eval-service/internal/app"
)

const writeWait = 10 * time.Second

type WSHandler struct {
	hub      *app.Hub
	logger   *zap.Logger
	upgrader websocket.Upgrader
}

func NewWSHandler(hub *app.Hub, logger *zap.Logger) *WSHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WSHandler{
		hub:    hub,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// ServeWS upgrades the request and streams live events until the observer
// disconnects. Inbound frames are discarded.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	id, events, cancel := h.hub.Subscribe()
	defer cancel()
	log := h.logger.With(zap.Stringer("observer", id))

	writerDone := make(chan struct{})

	// Single writer: gorilla connections allow one concurrent writer.
	go func() {
		defer close(writerDone)
		for ev := range events {
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(ev); err != nil {
				log.Debug("ws write error", zap.Error(err))
				_ = conn.Close()
				return
			}
		}
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	cancel()
	<-writerDone
	log.Debug("ws connection closed")
}
