package api

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"
)

// Options tunes the per-connection transport.
type Options struct {
	// SendBuffer is the number of outbound payloads queued per connection
	// before best-effort delivery starts dropping.
	SendBuffer int
	// MaxMessageSize caps inbound frame size in bytes. Zero means no limit.
	MaxMessageSize int64
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origins are open, same as the CORS policy on the HTTP side.
	CheckOrigin: func(*http.Request) bool { return true },
}

// Register wires up the sync endpoint and healthcheck on the provided Echo
// instance.
func Register(e *echo.Echo, router *Router, hub *Hub, opts Options, logger *log.Logger) {
	e.GET("/ws", serveSync(router, hub, opts, logger))
	e.GET("/healthz", healthz())
}

func healthz() echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	}
}

// serveSync upgrades the request to a websocket, registers the connection,
// and pumps events until the client goes away. Presence cleanup runs after
// the read loop exits for any reason.
func serveSync(router *Router, hub *Hub, opts Options, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
		if err != nil {
			return err
		}

		client := NewClient(uuid.NewString(), conn, opts.SendBuffer, opts.MaxMessageSize, logger)
		hub.Register(client)
		logger.WithFields(log.Fields{
			"conn":   client.ID(),
			"remote": c.Request().RemoteAddr,
			"total":  hub.Len(),
		}).Debug("connection opened")

		go client.writePump()
		client.readPump(router)

		router.HandleDisconnect(client.ID())
		client.close()
		return nil
	}
}
