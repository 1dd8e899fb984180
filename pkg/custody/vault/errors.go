package vault

import (
	"github.com/pkg/errors"
)

var (
	// ErrUnauthorized is returned when the caller's owner identity is missing
	ErrUnauthorized = errors.New("owner identity is required")

	// ErrInvalidAmount is returned when an amount of zero is provided
	ErrInvalidAmount = errors.New("amount must be positive")

	// ErrInvalidRecipient is returned when a withdrawal recipient is missing
	ErrInvalidRecipient = errors.New("recipient is required")

	// ErrInsufficientBalance is returned when the vault balance cannot cover
	// the requested amount
	ErrInsufficientBalance = errors.New("insufficient vault balance")

	// ErrTimelockNotExpired is returned when a withdrawal is executed before
	// its waiting period has elapsed
	ErrTimelockNotExpired = errors.New("withdrawal timelock has not expired")
)
