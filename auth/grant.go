package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"securechat/backend/models"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidGrant  = errors.New("invalid channel grant")
	ErrGrantMismatch = errors.New("channel grant does not match this connection")
	ErrEmptySecret   = errors.New("channel grant secret is empty")
)

// grantClaims 綁定 socket、頻道與成員資料
type grantClaims struct {
	SocketID    string `json:"socket_id"`
	Channel     string `json:"channel"`
	ChannelData string `json:"channel_data"`
	jwt.RegisteredClaims
}

// GrantSigner 以 HS256 簽發並驗證頻道授權
type GrantSigner struct {
	secret []byte
	ttl    time.Duration
}

func NewGrantSigner(secret string, ttl time.Duration) *GrantSigner {
	return &GrantSigner{secret: []byte(secret), ttl: ttl}
}

// Sign 簽發授權，ChannelData 是成員資料的 JSON 字串
func (s *GrantSigner) Sign(socketID, channel string, member models.PresenceMember) (models.ChannelGrant, error) {
	if len(s.secret) == 0 {
		return models.ChannelGrant{}, ErrEmptySecret
	}
	data, err := json.Marshal(member)
	if err != nil {
		return models.ChannelGrant{}, err
	}

	now := time.Now()
	claims := grantClaims{
		SocketID:    socketID,
		Channel:     channel,
		ChannelData: string(data),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return models.ChannelGrant{}, fmt.Errorf("sign channel grant: %w", err)
	}
	return models.ChannelGrant{Auth: token, ChannelData: string(data)}, nil
}

// Verify 驗證簽章、有效期，以及授權是否屬於這個 socket 與頻道
func (s *GrantSigner) Verify(auth, socketID, channel string) (models.PresenceMember, error) {
	if len(s.secret) == 0 {
		return models.PresenceMember{}, fmt.Errorf("%w: %v", ErrInvalidGrant, ErrEmptySecret)
	}
	claims := &grantClaims{}
	token, err := jwt.ParseWithClaims(auth, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return models.PresenceMember{}, fmt.Errorf("%w: %v", ErrInvalidGrant, err)
	}
	if claims.SocketID != socketID || claims.Channel != channel {
		return models.PresenceMember{}, ErrGrantMismatch
	}

	var member models.PresenceMember
	if err := json.Unmarshal([]byte(claims.ChannelData), &member); err != nil {
		return models.PresenceMember{}, fmt.Errorf("%w: bad channel data", ErrInvalidGrant)
	}
	if member.UserID == "" || !member.UserInfo.Role.Valid() {
		return models.PresenceMember{}, fmt.Errorf("%w: bad channel data", ErrInvalidGrant)
	}
	return member, nil
}
