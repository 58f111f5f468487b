package models

// ErrorType identifies an API error condition to clients
type ErrorType string

const (
	ErrTypeInvalidToken         ErrorType = "invalid_token"
	ErrTypeSessionNotFound      ErrorType = "session_not_found"
	ErrTypeSessionExpired       ErrorType = "session_expired"
	ErrTypeSessionUsed          ErrorType = "session_used"
	ErrTypeMissingFiles         ErrorType = "missing_files"
	ErrTypeUploadError          ErrorType = "upload_error"
	ErrTypeUnsupportedType      ErrorType = "unsupported_type"
	ErrTypeAnimatedNotSupported ErrorType = "animated_not_supported"
	ErrTypeNotFound             ErrorType = "not_found"
	ErrTypeBadRequest           ErrorType = "bad_request"
)

// APIError is the JSON error body shared by all endpoints
type APIError struct {
	Type    ErrorType `json:"type"`
	Message string    `json:"message"`
}

// NewAPIError builds an error body
func NewAPIError(t ErrorType, message string) APIError {
	return APIError{Type: t, Message: message}
}
