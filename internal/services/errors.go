// Package services implements the business logic for exchange requests,
// accounts, promo codes, and order chats. This file centralizes service-level
// error values so they can be consistently returned by service methods and
// checked by callers.
//
// These errors are intended for internal use by the service layer; translation
// into user-facing messages or HTTP status codes is performed at the handler
// layer.
package services

import "errors"

// Exchange request errors.
var (
	// ErrRequestNotFound indicates the requested exchange request does not
	// exist (by internal id or by order id).
	ErrRequestNotFound = errors.New("exchange request not found")

	// ErrOrderIDTaken is returned when a create names an order id that is
	// already bound to another request.
	ErrOrderIDTaken = errors.New("order id already exists")

	// ErrMissingFields is returned when a create omits required fields.
	ErrMissingFields = errors.New("required fields are missing")

	// ErrInvalidAmount is returned when the exchange amount is not positive.
	ErrInvalidAmount = errors.New("amount must be positive")

	// ErrInvalidStatus is returned when a status transition names an unknown
	// status value.
	ErrInvalidStatus = errors.New("invalid status value")
)

// Account errors.
var (
	// ErrEmailTaken is returned when registering or updating to an email that
	// another account already holds.
	ErrEmailTaken = errors.New("email already registered")

	// ErrInvalidCredentials is returned on login with an unknown email or a
	// wrong password. The two cases are deliberately indistinguishable.
	ErrInvalidCredentials = errors.New("invalid email or password")

	// ErrUserNotFound indicates the requested user does not exist.
	ErrUserNotFound = errors.New("user not found")

	// ErrSelfDelete is returned when an admin tries to delete their own account.
	ErrSelfDelete = errors.New("cannot delete own account")

	// ErrInvalidRole is returned when a role update names an unknown role.
	ErrInvalidRole = errors.New("invalid role value")
)

// Promo code errors.
var (
	// ErrPromoInvalid is returned when a code is unknown, already spent, or
	// past its expiry. The three cases are deliberately indistinguishable to
	// the caller.
	ErrPromoInvalid = errors.New("promo code is invalid or expired")

	// ErrPromoNotOwned is returned when a valid code belongs to another user.
	ErrPromoNotOwned = errors.New("promo code belongs to another user")

	// ErrPromoUsed is returned when deleting a code that has been spent;
	// spent codes are part of the audit trail and are never removed.
	ErrPromoUsed = errors.New("promo code already used")

	// ErrPromoNotFound indicates the requested promo code does not exist.
	ErrPromoNotFound = errors.New("promo code not found")

	// ErrInvalidDiscount is returned when a discount is outside (0, 100].
	ErrInvalidDiscount = errors.New("discount must be between 1 and 100")
)

// Chat errors.
var (
	// ErrChatNotFound indicates the requested chat does not exist.
	ErrChatNotFound = errors.New("chat not found")

	// ErrChatNotActive is returned when posting into a closed or archived chat.
	ErrChatNotActive = errors.New("chat is not active")

	// ErrChatNotClosed is returned when archiving a chat that is not closed.
	ErrChatNotClosed = errors.New("only closed chats can be archived")

	// ErrEmptyMessage is returned when a chat message has no content.
	ErrEmptyMessage = errors.New("message is empty")
)
