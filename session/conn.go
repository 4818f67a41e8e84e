package session

import (
	"context"
	"net/http"

	"securechat/backend/models"
	"securechat/backend/realtime"
)

// Conn 是 Session 擁有的即時連線，每個 Session 一條，隨 Session 結束而關閉
type Conn interface {
	SocketID() string
	Subscribe(channel string, grant models.ChannelGrant) error
	Unsubscribe(channel string) error
	Trigger(channel, event string, data any) error
	Frames() <-chan models.Frame
	Close() error
}

// Dialer 建立新的即時連線
type Dialer func(ctx context.Context) (Conn, error)

// WebSocketDialer 連到 /realtime WebSocket 端點
func WebSocketDialer(url string, header http.Header) Dialer {
	return func(ctx context.Context) (Conn, error) {
		conn, err := realtime.Dial(ctx, url, header)
		if err != nil {
			return nil, err
		}
		return conn, nil
	}
}
