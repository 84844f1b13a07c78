package storage

import "errors"

var (
	ErrUserExists           = errors.New("user already exists")
	ErrUserNotFound         = errors.New("user not found")
	ErrAccessCodeInvalid    = errors.New("access code invalid")
	ErrRefreshTokenNotFound = errors.New("refresh token not found")
)
