package game

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	pongWait   = time.Minute
	writeWait  = 10 * time.Second
	closeGrace = 2 * time.Second
)

type websocketConnection struct {
	socket *websocket.Conn
	once   sync.Once
}

func (wc *websocketConnection) Write(data []byte) error {
	wc.socket.SetWriteDeadline(time.Now().Add(writeWait))
	return wc.socket.WriteMessage(websocket.TextMessage, data)
}

func (wc *websocketConnection) Ping() error {
	return wc.socket.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

func (wc *websocketConnection) Read() ([]byte, error) {
	_, p, err := wc.socket.ReadMessage()
	return p, err
}

func (wc *websocketConnection) Close(reason string) {
	wc.once.Do(func() {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason)
		wc.socket.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeGrace))
		wc.socket.Close()
	})
}

func NewWebsocketConnection(conn *websocket.Conn) *websocketConnection {
	conn.SetReadLimit(64 * 1024)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(appData string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	return &websocketConnection{socket: conn}
}
