package session

import (
	"testing"

	"securechat/backend/models"

	"github.com/stretchr/testify/assert"
)

func TestPresenceTracker(t *testing.T) {
	tests := []struct {
		name       string
		me         models.Role
		members    []models.PresenceMember
		wantOnline bool
	}{
		{name: "alone", me: models.RoleAdmin, members: []models.PresenceMember{admin}, wantOnline: false},
		{name: "counterpart present", me: models.RoleAdmin, members: []models.PresenceMember{admin, client}, wantOnline: true},
		{name: "only same role", me: models.RoleClient, members: []models.PresenceMember{client, member("client-2", models.RoleClient)}, wantOnline: false},
		{name: "empty", me: models.RoleClient, members: nil, wantOnline: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newPresenceTracker(tt.me)
			p.reset(tt.members)
			assert.Equal(t, tt.wantOnline, p.online)
		})
	}
}

func TestPresenceTrackerTypingRules(t *testing.T) {
	p := newPresenceTracker(models.RoleAdmin)
	p.reset([]models.PresenceMember{admin, client})

	p.typingSignal(models.TypingSignal{Role: models.RoleAdmin}, true)
	assert.False(t, p.typing)

	p.typingSignal(models.TypingSignal{Role: models.RoleClient}, true)
	assert.True(t, p.typing)

	// 自己的另一條連線離開不影響對方狀態
	p.removed(admin)
	assert.True(t, p.online)
	assert.True(t, p.typing)

	p.removed(client)
	assert.False(t, p.online)
	assert.False(t, p.typing)

	assert.False(t, p.added(admin))
	assert.True(t, p.added(client))
	assert.True(t, p.online)
}
