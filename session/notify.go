package session

import (
	"io"
	"sync"
)

// NotificationSink 播放提示（對方加入、收到對方訊息）
type NotificationSink interface {
	Play()
}

// NopSink 不做任何事
type NopSink struct{}

func (NopSink) Play() {}

// BellSink 在終端機輸出 BEL 字元
type BellSink struct {
	mu sync.Mutex
	W  io.Writer
}

func (b *BellSink) Play() {
	b.mu.Lock()
	defer b.mu.Unlock()
	// 提示失敗不影響聊天
	_, _ = b.W.Write([]byte{'\a'})
}
