package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"securechat/backend/models"
)

// API 是 Session 需要的兩個伺服器端點：頻道授權與送出訊息
type API interface {
	Authorize(ctx context.Context, socketID, channel string) (models.ChannelGrant, error)
	Send(ctx context.Context, roomID, content string) (models.ChatMessage, error)
}

// HTTPAPI 透過 HTTP 呼叫後端，憑證為管理員 JWT 或存取金鑰其中之一
type HTTPAPI struct {
	BaseURL    string
	AdminToken string
	AccessKey  string
	Client     *http.Client
}

type sendRequest struct {
	RoomID    string `json:"roomId"`
	Content   string `json:"content"`
	AccessKey string `json:"accessKey,omitempty"`
}

type sendResponse struct {
	Success bool               `json:"success"`
	Message models.ChatMessage `json:"message"`
}

func (a *HTTPAPI) client() *http.Client {
	if a.Client != nil {
		return a.Client
	}
	return &http.Client{Timeout: 10 * time.Second}
}

func (a *HTTPAPI) withCredentials(req *http.Request) {
	if a.AdminToken != "" {
		req.Header.Set("Authorization", "Bearer "+a.AdminToken)
	}
	if a.AccessKey != "" {
		req.Header.Set(models.AccessKeyHeader, a.AccessKey)
	}
}

// Authorize 以表單送出 socket_id 與 channel_name
func (a *HTTPAPI) Authorize(ctx context.Context, socketID, channel string) (models.ChannelGrant, error) {
	form := url.Values{}
	form.Set("socket_id", socketID)
	form.Set("channel_name", channel)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(a.BaseURL, "/")+"/realtime/auth", strings.NewReader(form.Encode()))
	if err != nil {
		return models.ChannelGrant{}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	a.withCredentials(req)

	var grant models.ChannelGrant
	if err := a.do(req, &grant); err != nil {
		return models.ChannelGrant{}, err
	}
	return grant, nil
}

// Send 送出訊息，伺服器會重新檢查權限
func (a *HTTPAPI) Send(ctx context.Context, roomID, content string) (models.ChatMessage, error) {
	body, err := json.Marshal(sendRequest{RoomID: roomID, Content: content, AccessKey: a.AccessKey})
	if err != nil {
		return models.ChatMessage{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(a.BaseURL, "/")+"/chat/message", bytes.NewReader(body))
	if err != nil {
		return models.ChatMessage{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	a.withCredentials(req)

	var resp sendResponse
	if err := a.do(req, &resp); err != nil {
		return models.ChatMessage{}, err
	}
	return resp.Message, nil
}

func (a *HTTPAPI) do(req *http.Request, out any) error {
	resp, err := a.client().Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var errResp models.ErrorResponse
		_ = json.NewDecoder(resp.Body).Decode(&errResp)
		return statusError(resp.StatusCode, errResp.Error)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %v", models.ErrTransport, err)
	}
	return nil
}

// statusError 把 HTTP 狀態碼轉回錯誤分類
func statusError(status int, message string) error {
	if message == "" {
		message = http.StatusText(status)
	}
	switch status {
	case http.StatusBadRequest:
		return fmt.Errorf("%w: %s", models.ErrValidation, message)
	case http.StatusUnauthorized:
		return fmt.Errorf("%w: %s", models.ErrUnauthorized, message)
	case http.StatusForbidden:
		return fmt.Errorf("%w: %s", models.ErrRoomInactive, message)
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", models.ErrNotFound, message)
	default:
		return fmt.Errorf("%w: %d %s", models.ErrTransport, status, message)
	}
}
