// Package transport provides the websocket implementation of
// contract.Transport used by live sessions.
package transport

import (
	"context"

	"github.com/gorilla/websocket"

	"ttv-chat/contract"
)

// WebsocketTransport wraps a single gorilla websocket connection.
// It is used by exactly one session: one goroutine reads, one writes.
type WebsocketTransport struct {
	conn *websocket.Conn
}

// Dial opens a websocket connection to the chat endpoint. The default
// ping handler answers keepalive pings with pongs while the read pump
// is running, which is all the liveness the protocol requires.
func Dial(ctx context.Context, endpoint string) (contract.Transport, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return nil, err
	}
	return &WebsocketTransport{conn: conn}, nil
}

func (t *WebsocketTransport) ReadMessage() ([]byte, error) {
	_, payload, err := t.conn.ReadMessage()
	return payload, err
}

func (t *WebsocketTransport) WriteText(line string) error {
	return t.conn.WriteMessage(websocket.TextMessage, []byte(line))
}

func (t *WebsocketTransport) Close() error {
	return t.conn.Close()
}
