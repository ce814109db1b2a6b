package boterr

import "errors"

var (
	ErrNoGuildContext = errors.New("no guild context")
	ErrUnauthorized   = errors.New("unauthenticated")
	ErrForbidden      = errors.New("not a member of guild")
	ErrCSRFMismatch   = errors.New("csrf token mismatch")
	ErrTransport      = errors.New("transport failure")
)
