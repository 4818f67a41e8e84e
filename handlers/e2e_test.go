package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"securechat/backend/auth"
	"securechat/backend/database"
	"securechat/backend/models"
	"securechat/backend/realtime"
	"securechat/backend/relay"
	"securechat/backend/rooms"
	"securechat/backend/session"
	"securechat/backend/utils"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type liveServer struct {
	url        string
	wsURL      string
	repo       *database.MemoryRoomRepository
	directory  *rooms.Directory
	adminToken string
}

func newLiveServer(t *testing.T) *liveServer {
	t.Helper()
	repo := database.NewMemoryRoomRepository()
	directory := rooms.NewDirectory(repo)
	signer := auth.NewGrantSigner(testSecret, time.Minute)
	authorizer := auth.NewChannelAuthorizer(directory, signer)
	hub := realtime.NewHub(signer, authorizer, realtime.NewLocalBroker(), realtime.NewMemoryPresence())

	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	h := New(directory, authorizer, relay.New(directory, hub), hub, AdminCredentials{}, testSecret)
	router := mux.NewRouter()
	h.RegisterRoutes(router)
	srv := httptest.NewServer(router)
	t.Cleanup(func() {
		cancel()
		hub.Wait()
		srv.Close()
	})

	token, err := utils.GenerateJWT(testAdminEmail, testSecret, time.Hour)
	require.NoError(t, err)
	return &liveServer{
		url:        srv.URL,
		wsURL:      "ws" + strings.TrimPrefix(srv.URL, "http") + "/realtime",
		repo:       repo,
		directory:  directory,
		adminToken: token,
	}
}

type runningSession struct {
	*session.Session
	api  *session.HTTPAPI
	done chan error
}

func (s *liveServer) join(t *testing.T, roomID string, role models.Role, api *session.HTTPAPI) *runningSession {
	t.Helper()
	sess, err := session.New(session.Config{
		RoomID:     roomID,
		Role:       role,
		API:        api,
		Dial:       session.WebSocketDialer(s.wsURL, nil),
		TypingIdle: 100 * time.Millisecond,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sess.Run(ctx) }()
	t.Cleanup(cancel)
	return &runningSession{Session: sess, api: api, done: done}
}

func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	require.Eventually(t, cond, 3*time.Second, 10*time.Millisecond, msg)
}

func TestEphemeralChatEndToEnd(t *testing.T) {
	srv := newLiveServer(t)
	ctx := context.Background()

	room, err := srv.directory.Create(ctx, rooms.CreateRoomRequest{Title: "r1", AdminNote: "keep me"})
	require.NoError(t, err)

	client := srv.join(t, room.ID, models.RoleClient, &session.HTTPAPI{BaseURL: srv.url, AccessKey: room.AccessKey})
	admin := srv.join(t, room.ID, models.RoleAdmin, &session.HTTPAPI{BaseURL: srv.url, AdminToken: srv.adminToken})

	for _, s := range []*runningSession{client, admin} {
		s := s
		eventually(t, func() bool {
			snap := s.Snapshot()
			return snap.State == session.StateConnected && snap.CounterpartOnline
		}, "both sessions should connect and see each other")
	}

	// 輸入中訊號直接在頻道上傳遞，停止輸入後自動清除
	client.SetInput("h")
	eventually(t, func() bool { return admin.Snapshot().CounterpartTyping }, "admin should see client typing")
	eventually(t, func() bool { return !admin.Snapshot().CounterpartTyping }, "typing should stop after idle")
	assert.False(t, client.Snapshot().CounterpartTyping)

	admin.SetInput("hello")
	require.NoError(t, admin.Send(ctx))
	for _, s := range []*runningSession{client, admin} {
		s := s
		eventually(t, func() bool { return len(s.Snapshot().Messages) == 1 }, "message should reach both logs")
		msg := s.Snapshot().Messages[0]
		assert.Equal(t, models.RoleAdmin, msg.Sender)
		assert.Equal(t, "hello", msg.Content)
	}
	assert.Empty(t, admin.Snapshot().Input)

	// 空白內容在 Session 與伺服器兩端都被拒絕，不發布任何事件
	client.SetInput("")
	assert.ErrorIs(t, client.Send(ctx), models.ErrEmptyContent)
	_, err = client.api.Send(ctx, room.ID, "   ")
	assert.ErrorIs(t, err, models.ErrValidation)

	// 停用聊天室：客戶的訂閱被撤銷，之後送訊息被拒絕
	req, err := http.NewRequest(http.MethodPatch, srv.url+"/chat/rooms/"+room.ID, strings.NewReader(`{"isActive":false}`))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+srv.adminToken)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	select {
	case err := <-client.done:
		assert.ErrorIs(t, err, models.ErrRoomInactive)
	case <-time.After(3 * time.Second):
		t.Fatal("client session was not revoked")
	}
	assert.Equal(t, session.MsgRoomDisabled, client.Snapshot().Status)

	eventually(t, func() bool { return !admin.Snapshot().CounterpartOnline }, "admin should see client leave")
	assert.Len(t, admin.Snapshot().Messages, 1)

	_, err = client.api.Send(ctx, room.ID, "still here?")
	assert.ErrorIs(t, err, models.ErrUnauthorized)

	// 管理員仍可在停用的聊天室送訊息
	_, err = admin.api.Send(ctx, room.ID, "closing note")
	require.NoError(t, err)
	eventually(t, func() bool { return len(admin.Snapshot().Messages) == 2 }, "admin should receive own message")

	// 儲存層只剩聊天室本身，筆記未被訊息影響
	assert.Equal(t, 1, srv.repo.Len())
	stored, err := srv.repo.FindByID(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, "keep me", stored.AdminNote)
	assert.Empty(t, stored.ClientNote)
	assert.False(t, stored.IsActive)
}

func TestSessionRejectedWithWrongKey(t *testing.T) {
	srv := newLiveServer(t)
	room, err := srv.directory.Create(context.Background(), rooms.CreateRoomRequest{Title: "r1"})
	require.NoError(t, err)

	client := srv.join(t, room.ID, models.RoleClient, &session.HTTPAPI{BaseURL: srv.url, AccessKey: "not-the-key"})

	select {
	case err := <-client.done:
		assert.ErrorIs(t, err, models.ErrUnauthorized)
	case <-time.After(3 * time.Second):
		t.Fatal("session should stop on authorization failure")
	}
	snap := client.Snapshot()
	assert.Equal(t, session.StateDisconnected, snap.State)
	assert.Equal(t, session.MsgAccessDenied, snap.Status)
}

func TestSessionWithExpiredAdminTokenJoinsAsClient(t *testing.T) {
	srv := newLiveServer(t)
	room, err := srv.directory.Create(context.Background(), rooms.CreateRoomRequest{Title: "r1"})
	require.NoError(t, err)
	expired, err := utils.GenerateJWT(testAdminEmail, testSecret, -time.Hour)
	require.NoError(t, err)
	api := &session.HTTPAPI{BaseURL: srv.url, AdminToken: expired, AccessKey: room.AccessKey}

	// 預期是管理員：伺服器只認得存取金鑰，因此結束並提示
	wanted := srv.join(t, room.ID, models.RoleAdmin, api)
	select {
	case err := <-wanted.done:
		assert.ErrorIs(t, err, session.ErrRoleMismatch)
	case <-time.After(3 * time.Second):
		t.Fatal("session should stop when the granted role differs")
	}
	assert.Equal(t, session.MsgRoleMismatch, wanted.Snapshot().Status)

	// 不指定角色：以客戶身分加入，獨自在聊天室時對方顯示離線
	alone := srv.join(t, room.ID, "", api)
	eventually(t, func() bool { return alone.Snapshot().State == session.StateConnected }, "session should connect as client")
	snap := alone.Snapshot()
	assert.Equal(t, models.RoleClient, snap.Role)
	assert.False(t, snap.CounterpartOnline)
	assert.Equal(t, session.MsgCounterpartOffline, snap.Status)
}
