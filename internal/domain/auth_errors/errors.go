package auth_errors

import "errors"

// Errors returned by the account endpoints of the chat API.
var (
	// ErrUserAlreadyExists indicates a registration failed because the
	// username is taken.
	ErrUserAlreadyExists = errors.New("user already exists")

	// ErrInvalidCredentials indicates a login failed due to an incorrect
	// username or password combination.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrNotAuthenticated indicates the API rejected or did not receive the
	// session token. The user has to log in again.
	ErrNotAuthenticated = errors.New("not authenticated")
)
