package ws

import (
	"github.com/gofiber/websocket/v2"
)

// Client is one websocket subscriber. An empty cameraID receives every camera.
type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	cameraID string
	send     chan []byte
}

func (c *Client) ReadPump() {
	defer func() {
		c.hub.unregister <- c
		_ = c.conn.Close()
	}()

	for {
		_, _, err := c.conn.ReadMessage()
		if err != nil {
			break
		}
	}
}

func (c *Client) WritePump() {
	defer func() {
		_ = c.conn.Close()
	}()

	for message := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			return
		}
	}
}
