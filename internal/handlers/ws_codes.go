package handlers

import "github.com/coder/websocket"

// Close codes sent when a websocket is rejected after the upgrade. They give
// the client a more specific reason than the standard codes.
const (
	InvalidAuthTokenError websocket.StatusCode = 3001 // token missing, malformed or expired
	InvalidUserIDError    websocket.StatusCode = 3002 // token carried no usable user id
	UserNotFoundError     websocket.StatusCode = 3003 // token user no longer exists
	AuthUnavailableError  websocket.StatusCode = 3004 // user lookup failed on our side
)
