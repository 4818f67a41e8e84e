package realtime

import (
	"context"
	"encoding/json"
	"sync"
)

// Envelope 是在 broker 上流動的事件
type Envelope struct {
	Channel      string          `json:"channel"`
	Event        string          `json:"event"`
	Data         json.RawMessage `json:"data,omitempty"`
	ExceptSocket string          `json:"except_socket,omitempty"` // 不送給觸發事件的 socket
}

// Broker 把事件分送到所有伺服器實例（包含自己）
type Broker interface {
	Publish(ctx context.Context, env Envelope) error
	// Start 開始接收事件並呼叫 deliver；設定完成後即返回
	Start(ctx context.Context, deliver func(Envelope)) error
	Close() error
}

// LocalBroker 只在單一程序內分送
type LocalBroker struct {
	mu      sync.RWMutex
	deliver func(Envelope)
}

func NewLocalBroker() *LocalBroker {
	return &LocalBroker{}
}

func (b *LocalBroker) Publish(_ context.Context, env Envelope) error {
	b.mu.RLock()
	deliver := b.deliver
	b.mu.RUnlock()
	if deliver != nil {
		deliver(env)
	}
	return nil
}

func (b *LocalBroker) Start(_ context.Context, deliver func(Envelope)) error {
	b.mu.Lock()
	b.deliver = deliver
	b.mu.Unlock()
	return nil
}

func (b *LocalBroker) Close() error {
	b.mu.Lock()
	b.deliver = nil
	b.mu.Unlock()
	return nil
}
