package api

import "time"

// OperatorAuthRequest is the login payload for the control surface.
type OperatorAuthRequest struct {
	OperatorKey string `json:"operator_key"`
}

// OperatorAuthResponse carries the issued token.
type OperatorAuthResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// EmergencyStopRequest names the reason for the stop.
type EmergencyStopRequest struct {
	Reason string `json:"reason"`
}

// ErrorResponse is the uniform error payload.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
