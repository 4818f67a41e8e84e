package database

import (
	"context"
	"testing"
	"time"

	"securechat/backend/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"
)

// 需要 Docker；go test -short 會略過
func TestMongoRoomRepository(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping MongoDB container test in short mode")
	}
	ctx := context.Background()

	container, err := mongodb.Run(ctx, "mongo:7")
	if err != nil {
		t.Skipf("MongoDB container not available: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	uri, err := container.ConnectionString(ctx)
	require.NoError(t, err)

	client, err := ConnectMongoDB(ctx, uri)
	require.NoError(t, err)
	t.Cleanup(func() { DisconnectMongoDB(client) })

	repo, err := NewMongoRoomRepository(ctx, client.Database("secure_chat_test"))
	require.NoError(t, err)

	now := time.Now().UTC().Truncate(time.Millisecond)
	room := &models.ChatRoom{ID: "room-1", Title: "Website redesign", AccessKey: "key-1", IsActive: true, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, repo.Insert(ctx, room))

	// accessKey 有唯一索引
	dup := &models.ChatRoom{ID: "room-2", Title: "dup", AccessKey: "key-1", CreatedAt: now}
	assert.Error(t, repo.Insert(ctx, dup))

	got, err := repo.FindByID(ctx, "room-1")
	require.NoError(t, err)
	assert.Equal(t, "Website redesign", got.Title)
	assert.Equal(t, "key-1", got.AccessKey)

	note := "pinned"
	updated, err := repo.Update(ctx, "room-1", models.RoomPatch{AdminNote: &note})
	require.NoError(t, err)
	assert.Equal(t, "pinned", updated.AdminNote)
	assert.True(t, updated.IsActive)

	rooms, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, rooms, 1)

	require.NoError(t, repo.Delete(ctx, "room-1"))
	_, err = repo.FindByID(ctx, "room-1")
	assert.ErrorIs(t, err, models.ErrRoomNotFound)

	// 資料庫裡只會有聊天室集合，沒有任何訊息集合
	names, err := client.Database("secure_chat_test").ListCollectionNames(ctx, map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, []string{roomsCollection}, names)
}
