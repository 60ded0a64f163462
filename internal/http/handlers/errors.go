// Package handlers defines HTTP-layer error codes used across all API endpoints.
//
// Codes are lowercase snake_case and stable: clients branch on them for
// programmatic error handling, so renaming one is a breaking change. Generic
// codes mirror common HTTP status semantics; domain-specific codes convey
// business outcomes a status alone cannot.
package handlers

const (
	ErrCodeBadRequest   = "bad_request"
	ErrCodeUnauthorized = "unauthorized"
	ErrCodeForbidden    = "forbidden"
	ErrCodeNotFound     = "not_found"
	ErrCodeConflict     = "conflict"
	ErrCodeRateLimited  = "too_many_requests"
	ErrCodeInternal     = "internal_error"

	ErrCodeMethodNotAllowed = "method_not_allowed"

	// Domain-specific:
	ErrCodeDeliveryFailed     = "delivery_failed"
	ErrCodeInvalidStatus      = "invalid_status"
	ErrCodeInvalidCredentials = "invalid_credentials"
	ErrCodeEmailTaken         = "email_taken"
	ErrCodePromoInvalid       = "promo_invalid"
	ErrCodePromoUsed          = "promo_used"
	ErrCodeChatNotActive      = "chat_not_active"
	ErrCodeSelfDelete         = "self_delete"
)
