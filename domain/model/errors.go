package model

import "errors"

// Platform error taxonomy. All of these are caught at the platform client boundary
// and converted into a failed PublishOutcome or returned from the auth flow; none
// of them propagate past the orchestrator as an unhandled fault.
var (
	ErrAuthNotConfigured    = errors.New("auth_not_configured")
	ErrAuthExchangeFailed   = errors.New("auth_exchange_failed")
	ErrInvalidState         = errors.New("invalid_state")
	ErrUnsupportedMediaType = errors.New("unsupported_media_type")
	ErrRemoteAPI            = errors.New("remote_api_error")
	ErrPollTimeout          = errors.New("poll_timeout")
	ErrLocalIO              = errors.New("local_io_error")
)
