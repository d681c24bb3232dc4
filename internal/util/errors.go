package util

import "errors"

var (
	ErrUserNotFound          = errors.New("用户不存在")
	ErrEmailRegistered       = errors.New("该邮箱已被注册")
	ErrInvalidCredentials    = errors.New("invalid credentials")
	ErrAccountDisabled       = errors.New("账号已被禁用")
	ErrPermissionDenied      = errors.New("permission denied")
	ErrPresentationNotFound  = errors.New("presentation not found")
	ErrCheckpointNotFound    = errors.New("checkpoint not found")
	ErrCheckpointLocked      = errors.New("checkpoint locked by a running session")
	ErrSessionNotFound       = errors.New("session not found")
	ErrSessionEnded          = errors.New("session already ended")
	ErrCheckpointActive      = errors.New("another checkpoint is still active")
	ErrCheckpointNotActive   = errors.New("checkpoint is not active")
	ErrCheckpointExpired     = errors.New("answer window closed")
	ErrAlreadySubmitted      = errors.New("answer already submitted")
	ErrEmptySelection        = errors.New("at least one option is required")
	ErrUnknownOption         = errors.New("unknown option id")
	ErrSessionStillActive    = errors.New("session is still active")
	ErrRecordingNotSupported = errors.New("unsupported recording format")
)
