package ws

import (
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
)

// RequireUpgrade rejects plain HTTP requests on the websocket route
func RequireUpgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return c.SendStatus(fiber.StatusUpgradeRequired)
}

// Handler subscribes the connection to the merchant stored under merchantKey
// by the auth middleware and keeps it open until the client goes away.
func (h *Hub) Handler(merchantKey string) fiber.Handler {
	return websocket.New(func(c *websocket.Conn) {
		merchantID, _ := c.Locals(merchantKey).(string)
		client := &Client{Conn: c, MerchantID: merchantID}
		if !h.Join(client) {
			return
		}
		defer h.Leave(client)

		for {
			// keep alive; inbound messages are ignored
			if _, _, err := c.ReadMessage(); err != nil {
				break
			}
		}
	})
}
