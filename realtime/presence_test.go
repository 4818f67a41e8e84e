package realtime

import (
	"context"
	"testing"

	"securechat/backend/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryPresenceCountsConnectionsPerUser(t *testing.T) {
	ctx := context.Background()
	p := NewMemoryPresence()

	first, err := p.Add(ctx, testChannel, clientMember)
	require.NoError(t, err)
	assert.True(t, first)

	// 同一位客戶開了第二個分頁
	first, err = p.Add(ctx, testChannel, clientMember)
	require.NoError(t, err)
	assert.False(t, first)

	last, err := p.Remove(ctx, testChannel, clientMember)
	require.NoError(t, err)
	assert.False(t, last)

	members, err := p.Members(ctx, testChannel)
	require.NoError(t, err)
	assert.Equal(t, []models.PresenceMember{clientMember}, members)

	last, err = p.Remove(ctx, testChannel, clientMember)
	require.NoError(t, err)
	assert.True(t, last)

	members, err = p.Members(ctx, testChannel)
	require.NoError(t, err)
	assert.Empty(t, members)
}

func TestMemoryPresenceRemoveUnknown(t *testing.T) {
	p := NewMemoryPresence()
	last, err := p.Remove(context.Background(), testChannel, adminMember)
	require.NoError(t, err)
	assert.False(t, last)
}

func TestMemoryPresenceSortsMembers(t *testing.T) {
	ctx := context.Background()
	p := NewMemoryPresence()
	_, err := p.Add(ctx, testChannel, clientMember)
	require.NoError(t, err)
	_, err = p.Add(ctx, testChannel, adminMember)
	require.NoError(t, err)

	members, err := p.Members(ctx, testChannel)
	require.NoError(t, err)
	assert.Equal(t, []models.PresenceMember{adminMember, clientMember}, members)
}
