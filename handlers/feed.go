// handlers/feed.go - Live Run Feed (WebSocket)
package handlers

import (
	"log"
	"typerush/services"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

type FeedHandler struct {
	feed *services.RunFeed
}

func NewFeedHandler(feed *services.RunFeed) *FeedHandler {
	return &FeedHandler{feed: feed}
}

// Upgrade gates the route to genuine websocket upgrade requests.
func (h *FeedHandler) Upgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// Stream pushes recorded runs to the client until it disconnects.
func (h *FeedHandler) Stream() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		events := h.feed.Subscribe()
		defer h.feed.Unsubscribe(events)

		// Reads are discarded; the pump only notices the disconnect.
		done := make(chan struct{})
		go func() {
			defer close(done)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		for {
			select {
			case event, ok := <-events:
				if !ok {
					return
				}
				if err := conn.WriteJSON(event); err != nil {
					log.Printf("Feed subscriber dropped: %v", err)
					return
				}
			case <-done:
				return
			}
		}
	})
}
