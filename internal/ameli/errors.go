package ameli

import "errors"

var (
	// ErrLoginFailed is returned when the credentials are rejected or the page
	// that follows the login form is not the one of a logged in user.
	ErrLoginFailed = errors.New("LOGIN_FAILED")
	// ErrUserActionNeeded is returned when the portal requires the user to
	// accept its general terms of use before anything else.
	ErrUserActionNeeded = errors.New("USER_ACTION_NEEDED")
	// ErrMarkupMismatch is returned when an element the parsers rely on is
	// missing or malformed, which means the portal markup changed.
	ErrMarkupMismatch = errors.New("MARKUP_MISMATCH")
)
