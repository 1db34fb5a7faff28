package models

import "errors"

var (
	ErrTokenNotFound  = errors.New("token not found")
	ErrDuplicateToken = errors.New("token already exists")
	ErrTokenExpired   = errors.New("token expired")
)
