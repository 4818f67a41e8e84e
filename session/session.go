// Package session 是聊天室一端（管理員或客戶）的客戶端代理：
// 連線、授權、訂閱頻道，維護記憶體內的訊息、對方在線與輸入狀態。
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"securechat/backend/auth"
	"securechat/backend/models"
	"securechat/backend/realtime"
)

// Config 建立 Session 所需的參數
type Config struct {
	RoomID string
	// Role 是預期的角色，可留空。實際角色取自授權回傳的成員資料，兩者不同時 Run 失敗
	Role       models.Role
	API        API
	Dial       Dialer
	Sink       NotificationSink
	TypingIdle time.Duration
	// OnChange 在狀態改變後呼叫，不可在其中再呼叫 Session 的阻塞方法
	OnChange func(Snapshot)
}

// Snapshot 是某一時刻的 Session 狀態複本
type Snapshot struct {
	State             State
	Role              models.Role // 授權後才確定

	Messages          []models.ChatMessage
	CounterpartOnline bool
	CounterpartTyping bool
	Sending           bool
	Input             string
	Status            string // 使用者訊息：錯誤、對方離線等
	SendError         string
	Notes             *models.NoteUpdate
}

// Session 一個參與者在一個聊天室的連線生命週期
type Session struct {
	cfg     Config
	channel string

	mu       sync.Mutex
	state    State
	role     models.Role
	conn     Conn
	messages []models.ChatMessage
	presence *presenceTracker
	typing   *typingDebouncer
	input    string
	sending  bool
	status   string
	sendErr  string
	notes    *models.NoteUpdate
}

// New 檢查設定並建立 Session，連線在 Run 時才建立
func New(cfg Config) (*Session, error) {
	if cfg.RoomID == "" {
		return nil, fmt.Errorf("%w: room id is required", models.ErrValidation)
	}
	if cfg.Role != "" && !cfg.Role.Valid() {
		return nil, fmt.Errorf("%w: invalid role %q", models.ErrValidation, cfg.Role)
	}
	if cfg.API == nil || cfg.Dial == nil {
		return nil, fmt.Errorf("%w: api and dialer are required", models.ErrValidation)
	}
	if cfg.Sink == nil {
		cfg.Sink = NopSink{}
	}

	s := &Session{
		cfg:      cfg,
		channel:  auth.ChannelName(cfg.RoomID),
		state:    StateConnecting,
		presence: newPresenceTracker(cfg.Role),
	}
	s.typing = newTypingDebouncer(cfg.TypingIdle, s.emitTyping)
	return s, nil
}

// Run 連線、授權並處理頻道事件，直到 ctx 結束或連線中斷。
// 授權失敗是終止狀態，不會重試。
func (s *Session) Run(ctx context.Context) error {
	conn, err := s.cfg.Dial(ctx)
	if err != nil {
		s.fail(MsgConnectionLost)
		return fmt.Errorf("%w: %v", models.ErrTransport, err)
	}
	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()
	defer s.teardown()

	grant, err := s.cfg.API.Authorize(ctx, conn.SocketID(), s.channel)
	if err != nil {
		s.fail(describe(err))
		return err
	}
	role, err := grantedRole(grant)
	if err != nil {
		s.fail(describe(err))
		return err
	}
	if s.cfg.Role != "" && role != s.cfg.Role {
		s.fail(MsgRoleMismatch)
		return fmt.Errorf("%w: granted %s, expected %s", ErrRoleMismatch, role, s.cfg.Role)
	}
	s.update(func() {
		s.role = role
		s.presence = newPresenceTracker(role)
	})
	if err := conn.Subscribe(s.channel, grant); err != nil {
		s.fail(MsgConnectionLost)
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case frame, ok := <-conn.Frames():
			if !ok {
				s.fail(MsgConnectionLost)
				return fmt.Errorf("%w: connection closed", models.ErrTransport)
			}
			if err := s.handle(frame); err != nil {
				return err
			}
		}
	}
}

func (s *Session) handle(frame models.Frame) error {
	if frame.Channel != "" && frame.Channel != s.channel {
		return nil
	}

	switch frame.Event {
	case realtime.EventSubscriptionSucceeded:
		var ok realtime.SubscriptionSucceeded
		if err := json.Unmarshal(frame.Data, &ok); err != nil {
			log.Printf("[session] malformed subscription payload: %v", err)
			return nil
		}
		s.update(func() {
			s.state = StateConnected
			s.presence.reset(ok.Members)
			s.status = s.presenceStatus()
		})

	case realtime.EventSubscriptionError:
		var subErr realtime.SubscriptionError
		_ = json.Unmarshal(frame.Data, &subErr)
		err := subscriptionError(subErr)
		s.fail(describe(err))
		return err

	case realtime.EventSubscriptionRevoked:
		s.fail(MsgRoomDisabled)
		return models.ErrRoomInactive

	case realtime.EventMemberAdded:
		var member models.PresenceMember
		if err := json.Unmarshal(frame.Data, &member); err != nil {
			return nil
		}
		var joined bool
		s.update(func() {
			joined = s.presence.added(member)
			s.status = s.presenceStatus()
		})
		if joined {
			s.cfg.Sink.Play()
		}

	case realtime.EventMemberRemoved:
		var member models.PresenceMember
		if err := json.Unmarshal(frame.Data, &member); err != nil {
			return nil
		}
		s.update(func() {
			s.presence.removed(member)
			s.status = s.presenceStatus()
		})

	case models.EventChatMessage:
		var msg models.ChatMessage
		if err := json.Unmarshal(frame.Data, &msg); err != nil {
			log.Printf("[session] malformed message: %v", err)
			return nil
		}
		s.update(func() { s.messages = append(s.messages, msg) })
		if msg.Sender != s.currentRole() {
			s.cfg.Sink.Play()
		}

	case models.EventTypingStart, models.EventTypingStop:
		var signal models.TypingSignal
		if err := json.Unmarshal(frame.Data, &signal); err != nil {
			return nil
		}
		s.update(func() { s.presence.typingSignal(signal, frame.Event == models.EventTypingStart) })

	case models.EventNoteUpdated:
		var notes models.NoteUpdate
		if err := json.Unmarshal(frame.Data, &notes); err != nil {
			return nil
		}
		s.update(func() { s.notes = &notes })
	}
	return nil
}

// SetInput 更新輸入框內容；非空白輸入會觸發輸入中訊號
func (s *Session) SetInput(text string) {
	var connected bool
	s.update(func() {
		s.input = text
		connected = s.state == StateConnected
	})
	if connected && text != "" {
		s.typing.Keystroke()
	}
}

// Send 送出目前輸入框的內容。
// 成功時清空輸入並送出 typing-stop；失敗時保留輸入並顯示錯誤，不會自動重試。
// 送出期間頻道事件照常處理。
func (s *Session) Send(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateConnected {
		s.mu.Unlock()
		return ErrNotConnected
	}
	if s.sending {
		s.mu.Unlock()
		return ErrSendInFlight
	}
	content := strings.TrimSpace(s.input)
	if content == "" {
		s.mu.Unlock()
		return models.ErrEmptyContent
	}
	s.sending = true
	s.sendErr = ""
	s.mu.Unlock()
	s.notify()

	_, err := s.cfg.API.Send(ctx, s.cfg.RoomID, content)
	s.update(func() {
		s.sending = false
		if err != nil {
			s.sendErr = MsgSendFailed
			if errors.Is(err, models.ErrRoomInactive) {
				s.sendErr = MsgRoomDisabled
			}
			return
		}
		s.input = ""
	})
	if err != nil {
		log.Printf("[session] send to room %s failed: %v", s.cfg.RoomID, err)
		return err
	}

	s.typing.Stop()
	return nil
}

// Snapshot 回傳目前狀態的複本
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	snap := Snapshot{
		State:             s.state,
		Role:              s.role,
		Messages:          append([]models.ChatMessage(nil), s.messages...),
		CounterpartOnline: s.presence.online,
		CounterpartTyping: s.presence.typing,
		Sending:           s.sending,
		Input:             s.input,
		Status:            s.status,
		SendError:         s.sendErr,
	}
	if s.notes != nil {
		notes := *s.notes
		snap.Notes = &notes
	}
	return snap
}

func (s *Session) currentRole() models.Role {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.role
}

// grantedRole 取出授權成員資料中的角色，這是伺服器對這條連線的認定
func grantedRole(grant models.ChannelGrant) (models.Role, error) {
	var member models.PresenceMember
	if err := json.Unmarshal([]byte(grant.ChannelData), &member); err != nil {
		return "", fmt.Errorf("%w: malformed channel data: %v", models.ErrTransport, err)
	}
	if !member.UserInfo.Role.Valid() {
		return "", fmt.Errorf("%w: channel data carries no role", models.ErrTransport)
	}
	return member.UserInfo.Role, nil
}

func (s *Session) presenceStatus() string {
	if !s.presence.online {
		return MsgCounterpartOffline
	}
	return ""
}

func (s *Session) update(fn func()) {
	s.mu.Lock()
	fn()
	s.mu.Unlock()
	s.notify()
}

func (s *Session) notify() {
	if s.cfg.OnChange == nil {
		return
	}
	s.cfg.OnChange(s.Snapshot())
}

// fail 進入終止狀態並顯示訊息
func (s *Session) fail(status string) {
	s.update(func() {
		s.state = StateDisconnected
		s.status = status
	})
}

func (s *Session) emitTyping(start bool) {
	s.mu.Lock()
	conn, role := s.conn, s.role
	s.mu.Unlock()
	if conn == nil || role == "" {
		return
	}

	event := models.EventTypingStop
	if start {
		event = models.EventTypingStart
	}
	if err := conn.Trigger(s.channel, event, models.TypingSignal{Role: role}); err != nil {
		log.Printf("[session] failed to trigger %s: %v", event, err)
	}
}

// teardown 取消訂閱並釋放連線，記憶體內的訊息也一併清除
func (s *Session) teardown() {
	s.typing.Cancel()

	s.mu.Lock()
	conn := s.conn
	s.conn = nil
	s.mu.Unlock()

	if conn != nil {
		_ = conn.Unsubscribe(s.channel)
		_ = conn.Close()
	}

	s.update(func() {
		s.state = StateDisconnected
		s.messages = nil
		s.presence.online = false
		s.presence.typing = false
	})
}

func subscriptionError(subErr realtime.SubscriptionError) error {
	switch subErr.Status {
	case 401:
		return fmt.Errorf("%w: %s", models.ErrUnauthorized, subErr.Error)
	case 403:
		return fmt.Errorf("%w: %s", models.ErrRoomInactive, subErr.Error)
	default:
		return fmt.Errorf("%w: %s", models.ErrTransport, subErr.Error)
	}
}
