package main

import (
	"bytes"
	"testing"

	"securechat/backend/models"
	"securechat/backend/session"

	"github.com/stretchr/testify/assert"
)

func TestWSURL(t *testing.T) {
	assert.Equal(t, "ws://localhost:8080/realtime", wsURL("http://localhost:8080/"))
	assert.Equal(t, "wss://chat.example.com/realtime", wsURL("https://chat.example.com"))
}

func TestPrinterOnlyPrintsChanges(t *testing.T) {
	var buf bytes.Buffer
	p := &printer{w: &buf}

	p.render(session.Snapshot{State: session.StateConnecting})
	p.render(session.Snapshot{State: session.StateConnected, Role: models.RoleClient, Status: session.MsgCounterpartOffline})
	p.render(session.Snapshot{State: session.StateConnected, Role: models.RoleClient, CounterpartOnline: true})
	p.render(session.Snapshot{State: session.StateConnected, Role: models.RoleClient, CounterpartOnline: true, Messages: []models.ChatMessage{
		{Content: "hello", Sender: models.RoleAdmin},
	}})
	// 同樣的快照不會重複輸出
	p.render(session.Snapshot{State: session.StateConnected, Role: models.RoleClient, CounterpartOnline: true, Messages: []models.ChatMessage{
		{Content: "hello", Sender: models.RoleAdmin},
	}})

	out := buf.String()
	assert.Contains(t, out, "-- Connecting...\n")
	assert.Contains(t, out, "-- Connected\n")
	assert.Contains(t, out, "-- "+session.MsgCounterpartOffline+"\n")
	assert.Contains(t, out, "-- admin joined\n")
	assert.Equal(t, 1, bytes.Count(buf.Bytes(), []byte("admin: hello")))
}
