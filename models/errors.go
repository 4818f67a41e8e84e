package models

import (
	"errors"
	"fmt"
)

// 錯誤分類，HTTP 層用 errors.Is 對應狀態碼
var (
	ErrValidation   = errors.New("validation failed")
	ErrUnauthorized = errors.New("unauthorized")
	ErrNotFound     = errors.New("not found")
	ErrTransport    = errors.New("transport failure")
)

var (
	ErrEmptyContent   = fmt.Errorf("%w: message content is required", ErrValidation)
	ErrTitleRequired  = fmt.Errorf("%w: title is required", ErrValidation)
	ErrInvalidChannel = fmt.Errorf("%w: invalid channel name", ErrValidation)

	// ErrRoomInactive 同時也是 ErrUnauthorized，但對應 403
	ErrRoomInactive = fmt.Errorf("%w: this chat room is no longer active", ErrUnauthorized)

	ErrRoomNotFound = fmt.Errorf("room %w", ErrNotFound)
)
