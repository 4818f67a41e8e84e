package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/nats-io/nats.go"
)

// DefaultNATSSubject 所有實例共用的 NATS subject
const DefaultNATSSubject = "realtime.events"

// NATSBroker 透過 NATS core pub/sub 分送事件（at-most-once，與頻道語意相同）
type NATSBroker struct {
	conn    *nats.Conn
	subject string
	sub     *nats.Subscription
}

func NewNATSBroker(conn *nats.Conn, subject string) *NATSBroker {
	if subject == "" {
		subject = DefaultNATSSubject
	}
	return &NATSBroker{conn: conn, subject: subject}
}

func (b *NATSBroker) Publish(_ context.Context, env Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	if err := b.conn.Publish(b.subject, data); err != nil {
		return fmt.Errorf("nats publish: %w", err)
	}
	return nil
}

func (b *NATSBroker) Start(_ context.Context, deliver func(Envelope)) error {
	sub, err := b.conn.Subscribe(b.subject, func(msg *nats.Msg) {
		var env Envelope
		if err := json.Unmarshal(msg.Data, &env); err != nil {
			log.Printf("[broker] dropping malformed nats envelope: %v", err)
			return
		}
		deliver(env)
	})
	if err != nil {
		return fmt.Errorf("nats subscribe %s: %w", b.subject, err)
	}
	// Flush 確認伺服器已收到訂閱
	if err := b.conn.Flush(); err != nil {
		_ = sub.Unsubscribe()
		return fmt.Errorf("nats flush: %w", err)
	}
	b.sub = sub
	return nil
}

func (b *NATSBroker) Close() error {
	if b.sub == nil {
		return nil
	}
	return b.sub.Unsubscribe()
}
