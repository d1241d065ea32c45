package auth

import "errors"

var (
	ErrInvalidToken     = errors.New("invalid or expired token")
	ErrMissingPrincipal = errors.New("request is not authenticated")
	ErrForbidden        = errors.New("not allowed to act on this employee")
)
