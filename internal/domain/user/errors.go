package user

import "errors"

var (
	ErrInsufficientPermissions = errors.New("insufficient permissions")
	ErrEmployeeNotLinked       = errors.New("user account is not linked to an employee")
)
