package domain

import "errors"

var (
	// ErrJobNotFound is returned when a job does not exist or belongs to another user
	ErrJobNotFound = errors.New("job not found")

	// ErrUserNotFound is returned when a user id or username is unknown
	ErrUserNotFound = errors.New("user not found")

	// ErrUsernameTaken is returned when registering an existing username
	ErrUsernameTaken = errors.New("username already exists")

	// ErrEmailTaken is returned when registering an existing email
	ErrEmailTaken = errors.New("email already exists")

	ErrInvalidStatus   = errors.New("invalid status")
	ErrInvalidPriority = errors.New("invalid priority")
)
