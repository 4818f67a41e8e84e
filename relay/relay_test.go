package relay

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"securechat/backend/auth"
	"securechat/backend/database/mocks"
	"securechat/backend/models"
	"securechat/backend/rooms"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type published struct {
	channel string
	event   string
	data    any
}

type fakePublisher struct {
	mu     sync.Mutex
	events []published
	err    error
}

func (p *fakePublisher) Publish(_ context.Context, channel, event string, data any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, published{channel: channel, event: event, data: data})
	return nil
}

func activeRoom() *models.ChatRoom {
	return &models.ChatRoom{ID: "r1", Title: "t", AccessKey: "tok1-abcdefgh", IsActive: true}
}

// gomock 的 repository 只預期 FindByID：任何寫入呼叫都會讓測試失敗
func newRelay(t *testing.T, room *models.ChatRoom) (*Relay, *fakePublisher, *mocks.MockRoomRepository) {
	t.Helper()
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockRoomRepository(ctrl)
	if room != nil {
		repo.EXPECT().FindByID(gomock.Any(), room.ID).Return(room, nil).AnyTimes()
	}
	pub := &fakePublisher{}
	r := New(rooms.NewDirectory(repo), pub)
	r.now = func() time.Time { return time.UnixMilli(1_700_000_000_000) }
	return r, pub, repo
}

func TestSendAdmin(t *testing.T) {
	r, pub, _ := newRelay(t, activeRoom())

	msg, err := r.Send(context.Background(), "r1", "  hello  ", auth.Credentials{AdminSession: true})
	require.NoError(t, err)

	assert.Equal(t, "hello", msg.Content)
	assert.Equal(t, models.RoleAdmin, msg.Sender)
	assert.Equal(t, int64(1_700_000_000_000), msg.Timestamp)
	assert.NotEmpty(t, msg.ID)

	require.Len(t, pub.events, 1, "應該只發布一次")
	assert.Equal(t, "presence-chat-r1", pub.events[0].channel)
	assert.Equal(t, models.EventChatMessage, pub.events[0].event)

	raw, err := json.Marshal(pub.events[0].data)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"`+msg.ID+`","content":"hello","sender":"admin","timestamp":1700000000000}`, string(raw))
}

func TestSendClient(t *testing.T) {
	r, pub, _ := newRelay(t, activeRoom())

	msg, err := r.Send(context.Background(), "r1", "hi there", auth.Credentials{AccessKey: "tok1-abcdefgh"})
	require.NoError(t, err)
	assert.Equal(t, models.RoleClient, msg.Sender)
	assert.Len(t, pub.events, 1)

	second, err := r.Send(context.Background(), "r1", "again", auth.Credentials{AccessKey: "tok1-abcdefgh"})
	require.NoError(t, err)
	assert.NotEqual(t, msg.ID, second.ID)
}

func TestSendEmptyContent(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockRoomRepository(ctrl) // 空內容不需要查詢資料庫
	pub := &fakePublisher{}

	for _, content := range []string{"", "   ", "\n\t"} {
		_, err := New(rooms.NewDirectory(repo), pub).Send(context.Background(), "r1", content, auth.Credentials{AdminSession: true})
		assert.ErrorIs(t, err, models.ErrEmptyContent)
		assert.ErrorIs(t, err, models.ErrValidation)
	}
	assert.Empty(t, pub.events)
}

func TestSendTokenGate(t *testing.T) {
	room := activeRoom()
	room.IsActive = false
	r, pub, _ := newRelay(t, room)
	ctx := context.Background()

	_, err := r.Send(ctx, "r1", "hello", auth.Credentials{AccessKey: "tok1-abcdefgh"})
	assert.ErrorIs(t, err, models.ErrRoomInactive)

	_, err = r.Send(ctx, "r1", "hello", auth.Credentials{AccessKey: "wrong"})
	assert.ErrorIs(t, err, models.ErrUnauthorized)
	assert.NotErrorIs(t, err, models.ErrRoomInactive)

	_, err = r.Send(ctx, "r1", "hello", auth.Credentials{})
	assert.ErrorIs(t, err, models.ErrUnauthorized)
	assert.Empty(t, pub.events)

	// 管理員不受停用影響
	_, err = r.Send(ctx, "r1", "still here", auth.Credentials{AdminSession: true})
	require.NoError(t, err)
	assert.Len(t, pub.events, 1)
}

func TestSendUnknownRoom(t *testing.T) {
	r, pub, repo := newRelay(t, nil)
	repo.EXPECT().FindByID(gomock.Any(), "missing").Return(nil, models.ErrRoomNotFound)

	_, err := r.Send(context.Background(), "missing", "hello", auth.Credentials{AdminSession: true})
	assert.ErrorIs(t, err, models.ErrNotFound)
	assert.Empty(t, pub.events)
}

func TestSendPublishFailure(t *testing.T) {
	r, pub, _ := newRelay(t, activeRoom())
	pub.err = errors.New("broker down")

	_, err := r.Send(context.Background(), "r1", "hello", auth.Credentials{AdminSession: true})
	assert.ErrorIs(t, err, models.ErrTransport)
}
