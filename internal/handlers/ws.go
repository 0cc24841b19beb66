// internal/handlers/ws.go
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/jason-s-yu/pairline/internal/auth"
	"github.com/jason-s-yu/pairline/internal/middleware"
	"github.com/jason-s-yu/pairline/internal/models"
	"github.com/jason-s-yu/pairline/internal/session"
	"github.com/sirupsen/logrus"
)

// Subprotocol must be offered by every client.
const Subprotocol = "pairline"

const (
	pingInterval = 30 * time.Second
	writeTimeout = 5 * time.Second
	// readLimit leaves room for a full signaling payload plus its envelope.
	readLimit = 64 * 1024
)

// WSOptions configures the websocket endpoint.
type WSOptions struct {
	// OriginPatterns are passed to websocket.Accept. Empty means same origin.
	OriginPatterns []string
	// Guests identifies the browser. Nil leaves every connection without a
	// guest id, which disables same-browser avoidance.
	Guests *auth.Guests
}

// WSHandler upgrades to a websocket, registers the connection with the hub
// and pumps frames until either side goes away.
func WSHandler(logger *logrus.Logger, hub *session.Hub, opts WSOptions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// the guest cookie has to be set before the upgrade response is written
		guestID := uuid.Nil
		if opts.Guests != nil {
			id, err := opts.Guests.Identify(w, r)
			if err != nil {
				logger.WithError(err).Warn("guest identity")
				http.Error(w, "could not issue guest identity", http.StatusInternalServerError)
				return
			}
			guestID = id
		}

		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			Subprotocols:   []string{Subprotocol},
			OriginPatterns: opts.OriginPatterns,
		})
		if err != nil {
			logger.WithError(err).Warn("websocket accept error")
			return
		}
		defer c.Close(websocket.StatusInternalError, "handler finished")

		if c.Subprotocol() != Subprotocol {
			c.Close(BadSubprotocolError, "client must speak the pairline subprotocol")
			return
		}
		c.SetReadLimit(readLimit)

		q := r.URL.Query()
		conn := hub.Register(models.Profile{Name: q.Get("name"), Avatar: q.Get("avatar")}, guestID)
		middleware.LogWebSocketConnect(logger, r, conn.ID)

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		go writePump(ctx, cancel, c, conn, logger)
		err = readPump(ctx, c, hub, conn, logger)

		hub.Unregister(conn.ID)
		middleware.LogWebSocketDisconnect(logger, r, conn.ID, err)
		cancel()
		c.Close(websocket.StatusNormalClosure, "")
	}
}

// readPump feeds text frames to the hub until the connection fails.
func readPump(ctx context.Context, c *websocket.Conn, hub *session.Hub, conn *session.Connection, logger *logrus.Logger) error {
	for {
		typ, msg, err := c.Read(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		if typ != websocket.MessageText {
			logger.WithField("conn", conn.ID).Debug("ignoring non-text frame")
			continue
		}
		// handled or rejected inside the hub
		_ = hub.HandleFrame(conn.ID, msg)
	}
}

// writePump drains OutChan onto the socket and keeps the connection alive
// with pings. Any write failure ends the connection.
func writePump(ctx context.Context, cancel context.CancelFunc, c *websocket.Conn, conn *session.Connection, logger *logrus.Logger) {
	defer cancel()
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	log := logger.WithField("conn", conn.ID)
	for {
		select {
		case <-ctx.Done():
			return

		case ev := <-conn.OutChan:
			data, err := json.Marshal(ev)
			if err != nil {
				log.WithError(err).Warn("failed to marshal outgoing event")
				continue
			}
			writeCtx, cancelWrite := context.WithTimeout(ctx, writeTimeout)
			err = c.Write(writeCtx, websocket.MessageText, data)
			cancelWrite()
			if err != nil {
				if errors.Is(err, context.DeadlineExceeded) {
					c.Close(SlowConsumerError, "write timeout")
				}
				log.WithError(err).Debug("write failed")
				return
			}

		case <-ticker.C:
			pingCtx, cancelPing := context.WithTimeout(ctx, writeTimeout)
			err := c.Ping(pingCtx)
			cancelPing()
			if err != nil {
				log.WithError(err).Debug("ping failed")
				return
			}
		}
	}
}
