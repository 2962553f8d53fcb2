package model

import "errors"

var (
	ErrNotFound           = errors.New("not found")
	ErrValidation         = errors.New("validation error")
	ErrConflict           = errors.New("conflict")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrOptimisticConflict = errors.New("concurrent update conflict")
	ErrUpstream           = errors.New("consultation service unavailable")
	ErrUpstreamContract   = errors.New("malformed consultation service response")
)
